package schema

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/anyset/pkg/core"
	"gopkg.in/yaml.v3"
)

// DefinitionKind is the expected value of the document "kind" field.
const DefinitionKind = "Dataset"

// Definition is the declarative description of one dataset, usually read
// from a YAML document.
type Definition struct {
	Kind        string `yaml:"kind"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	PathPrefix  string `yaml:"path_prefix"`
	Version     int    `yaml:"version"`

	// Adapter is a registered adapter type or the name of a configured target.
	Adapter       string         `yaml:"adapter"`
	AdapterConfig map[string]any `yaml:"adapter_config,omitempty"`

	Tables             TableDefs         `yaml:"dataset_tables"`
	Hierarchies        HierarchyDefs     `yaml:"category_hierarchies,omitempty"`
	CustomAggregations map[string]string `yaml:"custom_aggregation_functions,omitempty"`
}

// TableDef describes one table. Column order is significant.
type TableDef struct {
	Name        string     `yaml:"-"`
	Description string     `yaml:"description,omitempty"`
	Columns     ColumnDefs `yaml:"columns"`
}

// ColumnDef describes one column.
type ColumnDef struct {
	Name        string `yaml:"-"`
	Type        string `yaml:"column_type"`
	DataType    string `yaml:"column_data_type,omitempty"`
	Parent      string `yaml:"parent,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// HierarchyDef names an ordered list of levels, root first. Levels are
// written as "table.column".
type HierarchyDef struct {
	Name   string
	Levels []string
}

// TableDefs decodes a YAML mapping of table name to table, keeping order.
type TableDefs []TableDef

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *TableDefs) UnmarshalYAML(node *yaml.Node) error {
	return decodeOrdered(node, "dataset_tables", func(name string, value *yaml.Node) error {
		var def TableDef
		if err := value.Decode(&def); err != nil {
			return err
		}
		def.Name = name
		*t = append(*t, def)
		return nil
	})
}

// ColumnDefs decodes a YAML mapping of column name to column, keeping order.
type ColumnDefs []ColumnDef

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *ColumnDefs) UnmarshalYAML(node *yaml.Node) error {
	return decodeOrdered(node, "columns", func(name string, value *yaml.Node) error {
		var def ColumnDef
		if err := value.Decode(&def); err != nil {
			return err
		}
		def.Name = name
		*c = append(*c, def)
		return nil
	})
}

// HierarchyDefs decodes a YAML mapping of hierarchy name to levels.
// A level is either "table.column" or a two element [table, column] list.
type HierarchyDefs []HierarchyDef

// UnmarshalYAML implements yaml.Unmarshaler.
func (h *HierarchyDefs) UnmarshalYAML(node *yaml.Node) error {
	return decodeOrdered(node, "category_hierarchies", func(name string, value *yaml.Node) error {
		if value.Kind != yaml.SequenceNode {
			return fmt.Errorf("line %d: hierarchy %q must be a list of levels", value.Line, name)
		}
		def := HierarchyDef{Name: name}
		for _, lvl := range value.Content {
			switch lvl.Kind {
			case yaml.ScalarNode:
				def.Levels = append(def.Levels, lvl.Value)
			case yaml.SequenceNode:
				var pair []string
				if err := lvl.Decode(&pair); err != nil {
					return err
				}
				if len(pair) != 2 {
					return fmt.Errorf("line %d: hierarchy %q level must be [table, column]", lvl.Line, name)
				}
				def.Levels = append(def.Levels, pair[0]+"."+pair[1])
			default:
				return fmt.Errorf("line %d: hierarchy %q has a malformed level", lvl.Line, name)
			}
		}
		*h = append(*h, def)
		return nil
	})
}

func decodeOrdered(node *yaml.Node, field string, fn func(name string, value *yaml.Node) error) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: %s must be a mapping", node.Line, field)
	}
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if seen[key.Value] {
			return fmt.Errorf("line %d: duplicate key %q in %s", key.Line, key.Value, field)
		}
		seen[key.Value] = true
		if err := fn(key.Value, value); err != nil {
			return err
		}
	}
	return nil
}

// parseColumnType maps the column_type spellings found in dataset documents
// onto a kind and its implied data type. The data type is empty when the
// spelling implies none.
func parseColumnType(s string) (core.ColumnKind, core.DataType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "category", "text_category":
		return core.KindCategory, "", true
	case "boolean", "bool":
		return core.KindCategory, core.TypeBoolean, true
	case "fact", "numeric_fact", "number":
		return core.KindFact, core.TypeNumber, true
	case "date", "datetime", "date_time", "timestamp":
		return core.KindDate, core.TypeDateTime, true
	case "other", "text_other", "text":
		return core.KindOther, "", true
	}
	return "", "", false
}

func parseDataType(s string) (core.DataType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "text":
		return core.TypeString, true
	case "number", "numeric", "float", "integer":
		return core.TypeNumber, true
	case "boolean", "bool":
		return core.TypeBoolean, true
	case "datetime", "date", "timestamp":
		return core.TypeDateTime, true
	}
	return "", false
}
