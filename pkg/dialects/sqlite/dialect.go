package sqlite

import (
	"github.com/leapstack-labs/anyset/pkg/core"
	"github.com/leapstack-labs/anyset/pkg/dialect"
)

func init() {
	dialect.Register(SQLite)
}

// SQLite is the SQLite dialect. SQLite has no median aggregate.
var SQLite = dialect.New(Config).
	WithoutAggregate(core.AggMedian).
	Build()
