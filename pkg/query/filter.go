package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/leapstack-labs/anyset/pkg/core"
)

// dateLayouts are the accepted spellings of a date range bound.
var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", time.DateOnly}

// Bound is one side of a range filter. A nil *Bound is unbounded.
//
// Bounds keep their wire form: JSON numbers become Number, JSON strings
// become Text. Whether a bound is usable depends on the column kind and is
// decided by the validator.
type Bound struct {
	Number   float64
	Text     string
	IsNumber bool
}

// Num returns a numeric bound.
func Num(v float64) *Bound { return &Bound{Number: v, IsNumber: true} }

// Text returns a textual bound, typically a date.
func Text(s string) *Bound { return &Bound{Text: s} }

// Float returns the bound as a finite number. Numeric strings are accepted;
// NaN and infinities are not, in either form.
func (b *Bound) Float() (float64, bool) {
	f := b.Number
	if !b.IsNumber {
		var err error
		if f, err = strconv.ParseFloat(b.Text, 64); err != nil {
			return 0, false
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Time returns the bound as a timestamp. RFC 3339 and YYYY-MM-DD are accepted.
func (b *Bound) Time() (time.Time, bool) {
	if b.IsNumber {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, b.Text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (b *Bound) String() string {
	if b == nil {
		return "null"
	}
	if b.IsNumber {
		return strconv.FormatFloat(b.Number, 'g', -1, 64)
	}
	return strconv.Quote(b.Text)
}

// MarshalJSON writes the bound in its wire form.
func (b *Bound) MarshalJSON() ([]byte, error) {
	if b.IsNumber {
		return json.Marshal(b.Number)
	}
	return json.Marshal(b.Text)
}

// UnmarshalJSON accepts a JSON number or string.
func (b *Bound) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*b = Bound{Number: x, IsNumber: true}
	case string:
		*b = Bound{Text: x}
	default:
		return fmt.Errorf("range bound must be a number, a string or null, got %s", data)
	}
	return nil
}

// Filter restricts the rows of a request. It is a tagged variant: Kind
// selects which of Values (category) or Min/Max (fact and date) is
// meaningful.
//
// Kind holds whatever tag the caller sent, normalized to its canonical
// spelling when recognized, so an unknown tag reaches the validator intact.
type Filter struct {
	Kind       core.FilterKind
	ColumnName string

	// Values lists the accepted values of a category filter.
	Values []string

	// Min and Max are inclusive range bounds; nil is unbounded.
	Min, Max *Bound
}

// CategoryFilter builds a set-membership filter.
func CategoryFilter(column string, values ...string) Filter {
	return Filter{Kind: core.FilterCategory, ColumnName: column, Values: values}
}

// RangeFilter builds an inclusive range filter of kind fact or date.
func RangeFilter(kind core.FilterKind, column string, lo, hi *Bound) Filter {
	return Filter{Kind: kind, ColumnName: column, Min: lo, Max: hi}
}

// IsRange reports whether the filter is a fact or date range.
func (f Filter) IsRange() bool {
	return f.Kind == core.FilterFact || f.Kind == core.FilterDate
}

// ParseFilterKind maps a wire tag onto its canonical kind.
func ParseFilterKind(tag string) (core.FilterKind, bool) {
	switch tag {
	case "category", "QueryRequestFilterCategory":
		return core.FilterCategory, true
	case "fact", "QueryRequestFilterFact":
		return core.FilterFact, true
	case "date", "QueryRequestFilterDate":
		return core.FilterDate, true
	}
	return core.FilterKind(tag), false
}

type wireFilter struct {
	Kind       string          `json:"kind"`
	ColumnName string          `json:"column_name"`
	Values     json.RawMessage `json:"values,omitempty"`
	Range      json.RawMessage `json:"range,omitempty"`
}

// UnmarshalJSON decodes the tagged variant. Range filters read their bounds
// from "range", falling back to "values".
func (f *Filter) UnmarshalJSON(data []byte) error {
	var w wireFilter
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	kind, known := ParseFilterKind(w.Kind)
	*f = Filter{Kind: kind, ColumnName: w.ColumnName}
	if !known {
		return nil
	}

	if kind == core.FilterCategory {
		if isNull(w.Values) {
			return nil
		}
		vals, err := decodeCategoryValues(w.Values)
		if err != nil {
			return fmt.Errorf("filter on %q: %w", w.ColumnName, err)
		}
		f.Values = vals
		return nil
	}

	raw := w.Range
	if isNull(raw) {
		raw = w.Values
	}
	if isNull(raw) {
		return nil
	}
	var bounds []*Bound
	if err := json.Unmarshal(raw, &bounds); err != nil {
		return fmt.Errorf("filter on %q: %w", w.ColumnName, err)
	}
	if len(bounds) != 2 {
		return fmt.Errorf("filter on %q: range must be [min, max], got %d elements", w.ColumnName, len(bounds))
	}
	f.Min, f.Max = bounds[0], bounds[1]
	return nil
}

// MarshalJSON writes the canonical tag, with "values" for category filters
// and "range" for range filters.
func (f Filter) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"kind":        string(f.Kind),
		"column_name": f.ColumnName,
	}
	if f.IsRange() {
		out["range"] = []*Bound{f.Min, f.Max}
	} else {
		values := f.Values
		if values == nil {
			values = []string{}
		}
		out["values"] = values
	}
	return json.Marshal(out)
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// decodeCategoryValues accepts strings, numbers and booleans, since category
// columns include boolean flags and numeric codes.
func decodeCategoryValues(raw json.RawMessage) ([]string, error) {
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("values must be a list: %w", err)
	}
	vals := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			vals = append(vals, v)
		case float64:
			vals = append(vals, strconv.FormatFloat(v, 'f', -1, 64))
		case bool:
			vals = append(vals, strconv.FormatBool(v))
		default:
			return nil, fmt.Errorf("category values must be scalars, got %v", item)
		}
	}
	return vals, nil
}
