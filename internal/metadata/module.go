package metadata

const (
	ModuleTypeReader = "reader"
	ModuleTypeList   = "list"
)

// Module is a front end module: either a reader bound to a reader
// configuration or a list of container rows.
type Module struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	Type         string        `json:"type"`
	ReaderConfig int64         `json:"reader_config,omitempty"`
	List         *ListSettings `json:"list,omitempty"`
}

func (m *Module) IsList() bool {
	return m.Type == ModuleTypeList && m.List != nil
}

// ListSettings describes what a list module shows.
type ListSettings struct {
	Container string            `json:"container"`
	Fields    []string          `json:"fields,omitempty"`
	Filter    int64             `json:"filter,omitempty"`
	Where     []ConditionClause `json:"where,omitempty"`
	Sort      string            `json:"sort,omitempty"`
	Order     string            `json:"order,omitempty"` // asc, desc
	Limit     int               `json:"limit,omitempty"`
	Template  string            `json:"template"`
}

// Filter is a stored filter definition. Its clauses form the base condition;
// each element can be bound to a contextual value at query time.
type Filter struct {
	ID       int64             `json:"id"`
	Name     string            `json:"name"`
	Clauses  []ConditionClause `json:"clauses,omitempty"`
	Elements []FilterElement   `json:"elements,omitempty"`
}

// FilterElement is a named filter input mapped to a container field.
type FilterElement struct {
	Name     string `json:"name"`
	Field    string `json:"field"`
	Operator string `json:"operator,omitempty"` // default "equal"
}

// GetElement returns the element with the given name, or nil.
func (f *Filter) GetElement(name string) *FilterElement {
	for i := range f.Elements {
		if f.Elements[i].Name == name {
			return &f.Elements[i]
		}
	}
	return nil
}

// Page is a routable page that redirects can point to.
type Page struct {
	ID    int64  `json:"id"`
	Alias string `json:"alias"`
	URL   string `json:"url,omitempty"` // explicit target, overrides the alias
}
