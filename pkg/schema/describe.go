package schema

// Description is the public view of a dataset schema served to clients.
// Custom aggregation expressions are backend details and only their names
// are listed.
type Description struct {
	Name               string                 `json:"name" yaml:"name"`
	Description        string                 `json:"description,omitempty" yaml:"description,omitempty"`
	PathPrefix         string                 `json:"path_prefix" yaml:"path_prefix"`
	Version            int                    `json:"version" yaml:"version"`
	Tables             []TableDescription     `json:"tables" yaml:"tables"`
	Hierarchies        []HierarchyDescription `json:"hierarchies" yaml:"hierarchies"`
	CustomAggregations []string               `json:"custom_aggregations" yaml:"custom_aggregations"`
}

// TableDescription describes one table.
type TableDescription struct {
	Name        string              `json:"name" yaml:"name"`
	Description string              `json:"description,omitempty" yaml:"description,omitempty"`
	Columns     []ColumnDescription `json:"columns" yaml:"columns"`
}

// ColumnDescription describes one column.
type ColumnDescription struct {
	Name        string `json:"name" yaml:"name"`
	Kind        string `json:"kind" yaml:"kind"`
	DataType    string `json:"data_type,omitempty" yaml:"data_type,omitempty"`
	Parent      string `json:"parent,omitempty" yaml:"parent,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// HierarchyDescription lists the levels of a hierarchy as "table.column",
// root first.
type HierarchyDescription struct {
	Name     string   `json:"name" yaml:"name"`
	Levels   []string `json:"levels" yaml:"levels"`
	Implicit bool     `json:"implicit,omitempty" yaml:"implicit,omitempty"`
}

// Describe returns the public description of the registry.
func (r *Registry) Describe() Description {
	d := Description{
		Name:               r.Name,
		Description:        r.Description,
		PathPrefix:         r.PathPrefix,
		Version:            r.Version,
		Tables:             make([]TableDescription, 0, len(r.tables)),
		Hierarchies:        make([]HierarchyDescription, 0, len(r.hierarchies)),
		CustomAggregations: r.CustomAggregations(),
	}
	for _, t := range r.tables {
		td := TableDescription{Name: t.Name, Description: t.Description, Columns: make([]ColumnDescription, 0, len(t.columns))}
		for _, c := range t.columns {
			cd := ColumnDescription{
				Name:        c.Name,
				Kind:        string(c.Kind),
				DataType:    string(c.DataType),
				Description: c.Description,
			}
			if c.Parent != nil {
				cd.Parent = c.Parent.String()
			}
			td.Columns = append(td.Columns, cd)
		}
		d.Tables = append(d.Tables, td)
	}
	for _, h := range r.hierarchies {
		levels := make([]string, len(h.Levels))
		for i, l := range h.Levels {
			levels[i] = l.String()
		}
		d.Hierarchies = append(d.Hierarchies, HierarchyDescription{Name: h.Name, Levels: levels, Implicit: h.Implicit})
	}
	return d
}
