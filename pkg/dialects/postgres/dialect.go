package postgres

import (
	"github.com/leapstack-labs/anyset/pkg/dialect"
)

func init() {
	dialect.Register(Postgres, "postgresql", "pg")
}

// Postgres is the PostgreSQL dialect. Placeholders are $1, $2, ... and
// MEDIAN renders as an ordered-set aggregate.
var Postgres = dialect.New(Config).Build()
