package databricks

import (
	"github.com/leapstack-labs/anyset/pkg/dialect"
)

func init() {
	dialect.Register(Databricks)
}

// Databricks is the Databricks SQL dialect. Plans render to Databricks SQL
// for callers that execute it themselves; there is no bundled driver.
var Databricks = dialect.New(Config).Build()
