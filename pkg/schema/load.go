package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/leapstack-labs/anyset/pkg/core"
)

var (
	identPattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	tablePattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)
	prefixPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
)

// loader accumulates problems so a single SchemaError reports all of them.
type loader struct {
	def      Definition
	reg      *Registry
	problems []string
}

func (l *loader) addf(format string, args ...any) {
	l.problems = append(l.problems, fmt.Sprintf(format, args...))
}

// Load builds a Registry from a definition. Every problem found is
// reported in one *core.SchemaError.
func Load(def Definition) (*Registry, error) {
	l := &loader{
		def: def,
		reg: &Registry{
			Name:          def.Name,
			Description:   def.Description,
			PathPrefix:    def.PathPrefix,
			Version:       def.Version,
			Adapter:       def.Adapter,
			AdapterConfig: def.AdapterConfig,
			tableIndex:    make(map[string]*Table),
			hierIndex:     make(map[string]*Hierarchy),
			custom:        make(map[string]string),
			arena:         newArena(),
		},
	}
	if l.reg.Version == 0 {
		l.reg.Version = 1
	}

	l.checkIdentity()
	l.loadTables()
	l.loadParents()
	l.loadHierarchies()
	if len(l.problems) == 0 {
		l.checkCycles()
	}
	if len(l.problems) == 0 {
		l.deriveImplicitHierarchies()
		l.resolveEdges()
	}
	l.loadCustomAggregations()

	if len(l.problems) > 0 {
		return nil, &core.SchemaError{Dataset: def.Name, Problems: l.problems}
	}

	sort.Slice(l.reg.hierarchies, func(i, j int) bool {
		return l.reg.hierarchies[i].Name < l.reg.hierarchies[j].Name
	})
	return l.reg, nil
}

func (l *loader) checkIdentity() {
	if l.def.Kind != "" && l.def.Kind != DefinitionKind {
		l.addf("kind must be %q, got %q", DefinitionKind, l.def.Kind)
	}
	if strings.TrimSpace(l.def.Name) == "" {
		l.addf("name is required")
	}
	switch {
	case l.def.PathPrefix == "":
		l.addf("path_prefix is required")
	case !prefixPattern.MatchString(l.def.PathPrefix):
		l.addf("path_prefix %q must be lowercase letters, digits, '-' or '_'", l.def.PathPrefix)
	}
	if l.def.Version < 0 {
		l.addf("version must not be negative")
	}
	if len(l.def.Tables) == 0 {
		l.addf("dataset_tables must define at least one table")
	}
}

func (l *loader) loadTables() {
	for _, td := range l.def.Tables {
		if !tablePattern.MatchString(td.Name) {
			l.addf("table %q: name is not a valid identifier", td.Name)
			continue
		}
		if _, dup := l.reg.tableIndex[td.Name]; dup {
			l.addf("table %q: defined more than once", td.Name)
			continue
		}
		t := &Table{Name: td.Name, Description: td.Description, index: make(map[string]int)}
		if len(td.Columns) == 0 {
			l.addf("table %q: no columns defined", td.Name)
		}
		for _, cd := range td.Columns {
			if !identPattern.MatchString(cd.Name) {
				l.addf("column %s.%s: name is not a valid identifier", td.Name, cd.Name)
				continue
			}
			if _, dup := t.index[cd.Name]; dup {
				l.addf("column %s.%s: defined more than once", td.Name, cd.Name)
				continue
			}
			kind, implied, ok := parseColumnType(cd.Type)
			if !ok {
				l.addf("column %s.%s: unknown column_type %q", td.Name, cd.Name, cd.Type)
				continue
			}
			dt := implied
			if cd.DataType != "" {
				parsed, ok := parseDataType(cd.DataType)
				if !ok {
					l.addf("column %s.%s: unknown column_data_type %q", td.Name, cd.Name, cd.DataType)
					continue
				}
				dt = parsed
			}
			if dt == "" {
				dt = core.DefaultDataType(kind)
			}
			t.index[cd.Name] = len(t.columns)
			t.columns = append(t.columns, Column{
				Table:       td.Name,
				Name:        cd.Name,
				Kind:        kind,
				DataType:    dt,
				Description: cd.Description,
			})
		}
		l.reg.tables = append(l.reg.tables, t)
		l.reg.tableIndex[t.Name] = t
	}
}

// categoryColumn resolves "table.column" or "column" and checks it is a
// category column.
func (l *loader) categoryColumn(ref, defaultTable, context string) (Column, bool) {
	table, column := splitRef(ref, defaultTable)
	t, ok := l.reg.tableIndex[table]
	if !ok {
		l.addf("%s: table %q not found", context, table)
		return Column{}, false
	}
	c, ok := t.Column(column)
	if !ok {
		l.addf("%s: column %s.%s not found", context, table, column)
		return Column{}, false
	}
	if c.Kind != core.KindCategory {
		l.addf("%s: %s.%s is %s, hierarchy levels must be category", context, table, column, c.Kind)
		return Column{}, false
	}
	return c, true
}

func (l *loader) loadParents() {
	for _, td := range l.def.Tables {
		t, ok := l.reg.tableIndex[td.Name]
		if !ok {
			continue
		}
		for _, cd := range td.Columns {
			if cd.Parent == "" {
				continue
			}
			i, ok := t.index[cd.Name]
			if !ok {
				continue
			}
			child := &t.columns[i]
			ctx := fmt.Sprintf("column %s.%s parent", td.Name, cd.Name)
			if child.Kind != core.KindCategory {
				l.addf("%s: only category columns can have a parent, %s.%s is %s", ctx, td.Name, cd.Name, child.Kind)
				continue
			}
			parent, ok := l.categoryColumn(cd.Parent, td.Name, ctx)
			if !ok {
				continue
			}
			ref := parent.Ref()
			child.Parent = &ref
			if err := l.reg.arena.link(child.Ref(), ref); err != nil {
				l.addf("%s: %v", ctx, err)
			}
		}
	}
}

func (l *loader) loadHierarchies() {
	for _, hd := range l.def.Hierarchies {
		ctx := fmt.Sprintf("hierarchy %q", hd.Name)
		if strings.TrimSpace(hd.Name) == "" {
			l.addf("hierarchy name must not be empty")
			continue
		}
		if len(hd.Levels) < 2 {
			l.addf("%s: needs at least two levels", ctx)
			continue
		}
		h := &Hierarchy{Name: hd.Name}
		seen := make(map[string]bool)
		ok := true
		for _, lvl := range hd.Levels {
			table, _ := splitRef(lvl, "")
			if table == "" {
				l.addf("%s: level %q must be written as table.column", ctx, lvl)
				ok = false
				continue
			}
			c, found := l.categoryColumn(lvl, "", ctx)
			if !found {
				ok = false
				continue
			}
			key := refKey(c.Table, c.Name)
			if seen[key] {
				l.addf("%s: level %s.%s appears more than once", ctx, c.Table, c.Name)
				ok = false
				continue
			}
			seen[key] = true
			h.Levels = append(h.Levels, c.Ref())
		}
		if !ok {
			continue
		}
		for i := 1; i < len(h.Levels); i++ {
			if err := l.reg.arena.link(h.Levels[i], h.Levels[i-1]); err != nil {
				l.addf("%s: %v", ctx, err)
				ok = false
			}
		}
		if ok {
			l.reg.hierarchies = append(l.reg.hierarchies, h)
			l.reg.hierIndex[h.Name] = h
		}
	}
}

func (l *loader) checkCycles() {
	for _, cycle := range l.reg.arena.cycles() {
		l.addf("hierarchy cycle: %s", formatCycle(cycle))
	}
}

// deriveImplicitHierarchies adds a hierarchy for every parent chain that
// no explicit hierarchy spells out.
func (l *loader) deriveImplicitHierarchies() {
	explicit := make(map[string]bool)
	for _, h := range l.reg.hierarchies {
		explicit[levelsKey(h.Levels)] = true
	}
	chains := l.reg.arena.chains()
	perRoot := make(map[string]int)
	for _, chain := range chains {
		perRoot[refKey(chain[0].Table, chain[0].Column)]++
	}
	for _, chain := range chains {
		if explicit[levelsKey(chain)] {
			continue
		}
		root, leaf := chain[0], chain[len(chain)-1]
		name := leaf.Table + "." + root.Column
		if perRoot[refKey(root.Table, root.Column)] > 1 {
			name += "." + leaf.Column
		}
		if _, taken := l.reg.hierIndex[name]; taken {
			continue
		}
		h := &Hierarchy{Name: name, Levels: chain, Implicit: true}
		l.reg.hierarchies = append(l.reg.hierarchies, h)
		l.reg.hierIndex[name] = h
	}
}

// resolveEdges finds, for every edge, a table that holds both levels so the
// value-level mapping can be read from data.
func (l *loader) resolveEdges() {
	for _, h := range l.reg.hierarchies {
		h.Edges = h.Edges[:0]
		for i := 1; i < len(h.Levels); i++ {
			parent, child := h.Levels[i-1], h.Levels[i]
			via, ok := l.edgeTable(parent, child)
			if !ok {
				l.addf("hierarchy %q: no table holds both %s and %s", h.Name, parent, child)
				continue
			}
			h.Edges = append(h.Edges, core.HierarchyEdge{Parent: parent, Child: child, Via: via})
		}
	}
}

func (l *loader) edgeTable(parent, child core.ColumnRef) (string, bool) {
	if child.Table == parent.Table {
		return child.Table, true
	}
	if t := l.reg.tableIndex[child.Table]; t != nil {
		if _, ok := t.Column(parent.Column); ok {
			return child.Table, true
		}
	}
	if t := l.reg.tableIndex[parent.Table]; t != nil {
		if _, ok := t.Column(child.Column); ok {
			return parent.Table, true
		}
	}
	return "", false
}

func (l *loader) loadCustomAggregations() {
	lower := make(map[string]string)
	names := make([]string, 0, len(l.def.CustomAggregations))
	for name := range l.def.CustomAggregations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		expr := l.def.CustomAggregations[name]
		switch {
		case strings.TrimSpace(name) == "":
			l.addf("custom aggregation name must not be empty")
			continue
		case core.IsBuiltinAggregation(name):
			l.addf("custom aggregation %q collides with a built-in function", name)
			continue
		case strings.TrimSpace(expr) == "":
			l.addf("custom aggregation %q has no expression", name)
			continue
		}
		if prev, dup := lower[strings.ToLower(name)]; dup {
			l.addf("custom aggregation %q collides with %q", name, prev)
			continue
		}
		lower[strings.ToLower(name)] = name
		l.reg.custom[name] = expr
	}
}

func levelsKey(levels []core.ColumnRef) string {
	parts := make([]string, len(levels))
	for i, r := range levels {
		parts[i] = refKey(r.Table, r.Column)
	}
	return strings.Join(parts, "\x01")
}
