package memory

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/anyset/pkg/core"
)

// FilterOptions computes filter options from the loaded tables.
func (a *Adapter) FilterOptions(_ context.Context, req *core.FilterOptionsRequest) ([]core.FilterOption, error) {
	opts := make([]core.FilterOption, 0, len(req.Columns)+len(req.Hierarchies))
	for _, col := range req.Columns {
		rows, err := a.rows(col.Ref.Table)
		if err != nil {
			return nil, a.fail("filter_options", err)
		}
		opt := core.FilterOption{Name: col.Ref.Column, Table: col.Ref.Table, Column: col.Ref.Column}
		if col.Ref.Kind == core.KindCategory {
			opt.Kind, opt.Values = core.OptionCategory, core.CategoryOptions(distinct(rows, col.Ref.Column))
		} else {
			lo := aggregateColumn(core.AggMin, col.Ref.Column, rows)
			hi := aggregateColumn(core.AggMax, col.Ref.Column, rows)
			opt.Kind, opt.Values = core.OptionMinMax, core.MinMaxOptions(lo, hi)
		}
		opts = append(opts, opt)
	}

	for _, h := range req.Hierarchies {
		edges := make([][]core.ValuePair, len(h.Edges))
		for i, e := range h.Edges {
			rows, err := a.rows(e.Via)
			if err != nil {
				return nil, a.fail("filter_options", fmt.Errorf("hierarchy %s: %w", h.Name, err))
			}
			seen := make(map[string]bool)
			for _, r := range rows {
				p, c := r[e.Parent.Column], r[e.Child.Column]
				k := key(p) + "\x00" + key(c)
				if seen[k] {
					continue
				}
				seen[k] = true
				edges[i] = append(edges[i], core.ValuePair{Parent: p, Child: c})
			}
		}
		opts = append(opts, core.FilterOption{
			Kind:   core.OptionHierarchy,
			Name:   h.Name,
			Values: core.BuildHierarchyOptions(edges),
		})
	}
	return opts, nil
}

func distinct(rows []Row, column string) []any {
	seen := make(map[string]bool)
	var out []any
	for _, r := range rows {
		v := r[column]
		if v == nil || seen[key(v)] {
			continue
		}
		seen[key(v)] = true
		out = append(out, v)
	}
	return out
}
