package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	chaosmonkey "github.com/BBVA/chaos-monkey-engine"
	"gopkg.in/yaml.v3"
)

// Registry 某一种插件(attack或planner)的注册中心
// 只有类型为*Type[F]的成员属于该种类
type Registry[F any] struct {
	kind    string
	catalog *Catalog
	logger  chaosmonkey.Logger

	mu    sync.RWMutex
	units []*Unit
}

func NewRegistry[F any](kind string, catalog *Catalog, logger chaosmonkey.Logger) *Registry[F] {
	if catalog == nil {
		catalog = NewCatalog()
	}
	if logger == nil {
		logger = chaosmonkey.NewNopLogger()
	}
	return &Registry[F]{
		kind:    kind,
		catalog: catalog,
		logger:  logger.With(chaosmonkey.String("kind", kind)),
	}
}

func NewAttackRegistry(catalog *Catalog, logger chaosmonkey.Logger) *Registry[AttackFactory] {
	return NewRegistry[AttackFactory]("attack", catalog, logger)
}

func NewPlannerRegistry(catalog *Catalog, logger chaosmonkey.Logger) *Registry[PlannerFactory] {
	return NewRegistry[PlannerFactory]("planner", catalog, logger)
}

// unitDescriptor 目录中的unit描述文件，文件名即unit名称
type unitDescriptor struct {
	// Source 引用的Catalog unit，为空时与文件名相同
	Source string `yaml:"source"`
	// Types 只启用其中的部分类型，为空时启用全部
	Types []string `yaml:"types"`
}

// Load 加载目录下所有的unit描述文件(不递归)
// 任意一个文件加载失败都不会注册任何unit
func (r *Registry[F]) Load(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return &LoadError{Path: dir, Err: err}
	}
	if !info.IsDir() {
		return &LoadError{Path: dir, Err: fmt.Errorf("not a directory")}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return &LoadError{Path: dir, Err: err}
	}

	units := make([]*Unit, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			r.logger.Debug("skip file", chaosmonkey.String("file", entry.Name()))
			continue
		}

		path := filepath.Join(dir, entry.Name())
		unit, err := r.loadUnit(path, strings.TrimSuffix(entry.Name(), ext))
		if err != nil {
			return &LoadError{Path: path, Err: err}
		}
		units = append(units, unit)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{}, len(units))
	for _, unit := range units {
		if _, ok := seen[unit.Name]; ok || r.indexOf(unit.Name) >= 0 {
			return &LoadError{Path: dir, Err: fmt.Errorf("%w: %s", ErrDuplicateUnit, unit.Name)}
		}
		seen[unit.Name] = struct{}{}
	}
	for _, unit := range units {
		r.logger.Debug("added unit", chaosmonkey.String("unit", unit.Name))
	}
	r.units = append(r.units, units...)
	return nil
}

func (r *Registry[F]) loadUnit(path, name string) (*Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var desc unitDescriptor
	if err = yaml.Unmarshal(data, &desc); err != nil {
		return nil, err
	}
	if desc.Source == "" {
		desc.Source = name
	}

	source, ok := r.catalog.Lookup(desc.Source)
	if !ok {
		return nil, fmt.Errorf("unknown source unit %q", desc.Source)
	}
	if len(desc.Types) == 0 {
		return NewUnit(name, source.Members...), nil
	}

	members := make([]Member, 0, len(desc.Types))
	for _, typeName := range desc.Types {
		m, ok := source.member(typeName)
		if !ok {
			return nil, fmt.Errorf("unknown type %q in source unit %q", typeName, desc.Source)
		}
		members = append(members, m)
	}
	return NewUnit(name, members...), nil
}

func (r *Registry[F]) Add(unit *Unit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOf(unit.Name) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateUnit, unit.Name)
	}
	r.units = append(r.units, unit)
	return nil
}

func (r *Registry[F]) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.indexOf(name)
	if idx < 0 {
		return fmt.Errorf("%w: unit %s", ErrLookup, name)
	}
	r.units = append(r.units[:idx], r.units[idx+1:]...)
	return nil
}

// List 返回所有属于该种类的类型ref，按unit注册顺序和unit内的声明顺序
func (r *Registry[F]) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var refs []string
	for _, unit := range r.units {
		for _, m := range unit.Members {
			if _, ok := m.(*Type[F]); ok {
				refs = append(refs, unit.Name+":"+m.TypeName())
			}
		}
	}
	return refs
}

// Get 解析"unit:TypeName"，返回可以实例化的类型
func (r *Registry[F]) Get(ref string) (*Type[F], error) {
	unitName, typeName, ok := strings.Cut(ref, ":")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	idx := r.indexOf(unitName)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s: unit %s not loaded", ErrLookup, ref, unitName)
	}

	m, ok := r.units[idx].member(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %s: not found in unit", ErrLookup, ref)
	}
	t, ok := m.(*Type[F])
	if !ok {
		return nil, fmt.Errorf("%w: %s: not a %s", ErrLookup, ref, r.kind)
	}
	r.logger.Debug("found on registry", chaosmonkey.String("ref", ref))
	return t, nil
}

// Descriptors 返回所有类型的描述信息，顺序与List一致
func (r *Registry[F]) Descriptors() []Descriptor {
	refs := r.List()
	res := make([]Descriptor, 0, len(refs))
	for _, ref := range refs {
		t, err := r.Get(ref)
		if err != nil {
			// 在List和Get之间被移除
			continue
		}
		res = append(res, t.Descriptor(ref))
	}
	return res
}

func (r *Registry[F]) indexOf(name string) int {
	for i, unit := range r.units {
		if unit.Name == name {
			return i
		}
	}
	return -1
}
