package snowflake

import (
	"github.com/leapstack-labs/anyset/pkg/dialect"
)

func init() {
	dialect.Register(Snowflake)
}

// Snowflake is the Snowflake SQL dialect. Plans render to Snowflake SQL for
// callers that execute it themselves; there is no bundled driver.
var Snowflake = dialect.New(Config).Build()
