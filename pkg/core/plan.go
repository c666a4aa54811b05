package core

// ColumnRef is a fully resolved column reference.
type ColumnRef struct {
	Table  string     `json:"table"`
	Column string     `json:"column"`
	Kind   ColumnKind `json:"kind"`
}

// String returns "table.column".
func (r ColumnRef) String() string {
	return r.Table + "." + r.Column
}

// Catalog is the read-only view of a dataset schema an adapter needs while
// rendering a plan. *schema.Registry implements it.
type Catalog interface {
	// CustomAggregation returns the backend expression for a dataset-defined
	// aggregation.
	CustomAggregation(name string) (string, bool)
}

// Output is one column of the result, in request order.
type Output struct {
	Alias string `json:"alias"`

	// Column is nil only for custom aggregations.
	Column *ColumnRef `json:"column,omitempty"`

	// Aggregation is empty for plain selects.
	Aggregation AggregationFunction `json:"aggregation,omitempty"`

	// Custom names a dataset-defined aggregation.
	Custom string `json:"custom,omitempty"`

	Breakdown bool `json:"breakdown,omitempty"`
}

// IsAggregate reports whether the output is produced by an aggregation.
func (o Output) IsAggregate() bool {
	return o.Aggregation != "" || o.Custom != ""
}

// PredicateOp is the operator of a plain predicate.
type PredicateOp string

// Predicate operators.
const (
	OpIn    PredicateOp = "in"
	OpRange PredicateOp = "range"
)

// Predicate is a filter applied directly to a column.
//
// For OpIn, Values holds the accepted values. For OpRange, Min and Max are
// inclusive bounds where nil means unbounded; they hold float64 for fact
// columns and time.Time for date columns.
type Predicate struct {
	Column ColumnRef   `json:"column"`
	Op     PredicateOp `json:"op"`
	Values []string    `json:"values,omitempty"`
	Min    any         `json:"min,omitempty"`
	Max    any         `json:"max,omitempty"`
}

// HierarchyEdge links a parent level to a child level. Via names the table
// that holds both levels, where the value-level mapping lives.
type HierarchyEdge struct {
	Parent ColumnRef `json:"parent"`
	Child  ColumnRef `json:"child"`
	Via    string    `json:"via"`
}

// HierarchyExpansion restricts Target to the descendants of Values at Node.
// The adapter resolves the value-level mapping by walking Path from Node
// down to Target.
type HierarchyExpansion struct {
	Hierarchy string          `json:"hierarchy"`
	Node      ColumnRef       `json:"node"`
	Target    ColumnRef       `json:"target"`
	Path      []HierarchyEdge `json:"path"`
	Values    []string        `json:"values"`
}

// OrderKey is one ordering term. Exactly one of Column and Alias is set.
type OrderKey struct {
	Column    *ColumnRef `json:"column,omitempty"`
	Alias     string     `json:"alias,omitempty"`
	Direction Direction  `json:"direction"`
}

// Plan is the normalized, backend-agnostic form of a validated request.
// It carries no SQL text.
type Plan struct {
	ID         string               `json:"id"`
	Table      string               `json:"table"`
	Outputs    []Output             `json:"outputs"`
	GroupBy    []ColumnRef          `json:"group_by,omitempty"`
	Predicates []Predicate          `json:"predicates,omitempty"`
	Expansions []HierarchyExpansion `json:"expansions,omitempty"`
	OrderBy    []OrderKey           `json:"order_by"`

	// OrderSynthesized is true when OrderBy was defaulted.
	OrderSynthesized bool `json:"order_synthesized,omitempty"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`

	// Catalog resolves custom aggregations for the registry snapshot the
	// plan was built against.
	Catalog Catalog `json:"-"`
}

// Aggregated reports whether the plan contains any aggregation.
func (p *Plan) Aggregated() bool {
	for _, o := range p.Outputs {
		if o.IsAggregate() {
			return true
		}
	}
	return false
}

// Aliases returns the output aliases in order.
func (p *Plan) Aliases() []string {
	aliases := make([]string, len(p.Outputs))
	for i, o := range p.Outputs {
		aliases[i] = o.Alias
	}
	return aliases
}
