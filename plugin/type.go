package plugin

import (
	"encoding/json"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Member unit中导出的类型
type Member interface {
	TypeName() string
}

// Type 插件类型，F为对应种类的工厂方法
type Type[F any] struct {
	Name string
	// Schema 配置的JSON Schema，为空时不做校验
	Schema string
	// Example 满足Schema的配置示例
	Example map[string]any
	New     F

	once      sync.Once
	schema    *jsonschema.Schema
	schemaErr error
}

// Descriptor 插件的描述信息
type Descriptor struct {
	Ref     string          `json:"ref"`
	Schema  json.RawMessage `json:"schema"`
	Example map[string]any  `json:"example"`
}

func (t *Type[F]) TypeName() string {
	return t.Name
}

func (t *Type[F]) Descriptor(ref string) Descriptor {
	schema := json.RawMessage("{}")
	if t.Schema != "" {
		schema = json.RawMessage(t.Schema)
	}
	return Descriptor{Ref: ref, Schema: schema, Example: t.Example}
}

// Validate 校验JSON通用表示的配置
func (t *Type[F]) Validate(ref string, doc any) error {
	if t.Schema == "" {
		return nil
	}

	t.once.Do(func() {
		t.schema, t.schemaErr = jsonschema.CompileString(t.Name+".json", t.Schema)
	})
	if t.schemaErr != nil {
		return &ValidationError{Ref: ref, Err: t.schemaErr}
	}
	if err := t.schema.Validate(doc); err != nil {
		return &ValidationError{Ref: ref, Err: err}
	}
	return nil
}
