package plugin

// Unit 一组插件类型，unit名称是ref的前半部分
type Unit struct {
	Name    string
	Members []Member
}

func NewUnit(name string, members ...Member) *Unit {
	return &Unit{Name: name, Members: members}
}

func (u *Unit) member(name string) (Member, bool) {
	for _, m := range u.Members {
		if m.TypeName() == name {
			return m, true
		}
	}
	return nil, false
}

// Catalog 编译进程序的unit，目录中的描述文件通过source引用
type Catalog struct {
	units map[string]*Unit
}

func NewCatalog(units ...*Unit) *Catalog {
	c := &Catalog{units: make(map[string]*Unit, len(units))}
	for _, u := range units {
		c.units[u.Name] = u
	}
	return c
}

func (c *Catalog) Lookup(name string) (*Unit, bool) {
	u, ok := c.units[name]
	return u, ok
}
