package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/anyset/internal/cli/output"
	"github.com/leapstack-labs/anyset/internal/config"
	"github.com/leapstack-labs/anyset/pkg/core"
	"github.com/leapstack-labs/anyset/pkg/dialect"
	"github.com/leapstack-labs/anyset/pkg/planner"
	"github.com/leapstack-labs/anyset/pkg/sqlgen"

	// Dialects without a bundled adapter, for --sql.
	_ "github.com/leapstack-labs/anyset/pkg/dialects/databricks"
	_ "github.com/leapstack-labs/anyset/pkg/dialects/snowflake"
)

// PlanOptions holds options for the plan command.
type PlanOptions struct {
	SQL string
}

// planOutput is the JSON output of the plan command with --sql.
type planOutput struct {
	Plan    *core.Plan `json:"plan"`
	Dialect string     `json:"dialect"`
	SQL     string     `json:"sql"`
	Args    []any      `json:"args"`
	Count   string     `json:"count_sql,omitempty"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand() *cobra.Command {
	opts := &PlanOptions{}
	cmd := &cobra.Command{
		Use:   "plan <dataset> <request.json|->",
		Short: "Show the execution plan for a query request",
		Long: `Validate a query request and print the plan an adapter would execute:
outputs, inferred grouping, predicates, hierarchy expansions, ordering and
pagination. No adapter is contacted.

With --sql, also print the parameterized SQL the plan renders to in the
given dialect.`,
		Example: `  # Explain a request
  anyset plan cc/v1 request.json

  # Machine-readable plan
  anyset plan cc request.json -o json

  # SQL for a warehouse without a bundled adapter
  anyset plan cc request.json --sql snowflake`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, args[0], args[1], opts)
		},
	}

	cmd.Flags().StringVar(&opts.SQL, "sql", "", "Render the plan as SQL in this dialect")
	_ = cmd.RegisterFlagCompletionFunc("sql", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return dialect.List(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runPlan(cmd *cobra.Command, ref, src string, opts *PlanOptions) error {
	cc := NewCommandContext(cmd)
	reg, err := cc.LoadDataset(ref)
	if err != nil {
		return err
	}
	req, err := readRequest(cmd, src)
	if err != nil {
		return err
	}

	plan, err := planner.Plan(req, reg, plannerOptions(cc.Cfg.Query)...)
	if err != nil {
		return err
	}

	var stmt *sqlgen.Statement
	if opts.SQL != "" {
		d, err := dialect.Lookup(opts.SQL)
		if err != nil {
			return err
		}
		if stmt, err = sqlgen.Build(plan, d); err != nil {
			return err
		}
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		if stmt == nil {
			return r.JSON(plan)
		}
		return r.JSON(planOutput{
			Plan:    plan,
			Dialect: strings.ToLower(opts.SQL),
			SQL:     stmt.Select.SQL,
			Args:    stmt.Select.Args,
			Count:   stmt.Count.SQL,
		})
	}

	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}

	r.Header(1, "Plan "+plan.ID)
	r.StatusLine("Table", plan.Table)
	r.StatusLine("Outputs", strings.Join(plan.Aliases(), ", "))
	if len(plan.GroupBy) > 0 {
		r.StatusLine("Group by", joinRefs(plan.GroupBy))
	}
	if len(plan.Expansions) > 0 {
		names := make([]string, len(plan.Expansions))
		for i, exp := range plan.Expansions {
			names[i] = fmt.Sprintf("%s: %s -> %s", exp.Hierarchy, exp.Node.Column, exp.Target.Column)
		}
		r.StatusLine("Expansions", strings.Join(names, "; "))
	}
	r.StatusLine("Page", fmt.Sprintf("offset %d, limit %d", plan.Offset, plan.Limit))
	r.Println()

	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(output.FormatCodeBlock("json", string(data)))
	} else {
		r.Println(string(data))
	}

	if stmt != nil {
		r.Println()
		r.Header(2, "SQL ("+strings.ToLower(opts.SQL)+")")
		printSQL(r, stmt.Select)
		if stmt.Count.SQL != "" {
			r.Header(2, "Count")
			printSQL(r, stmt.Count)
		}
	}
	return nil
}

func printSQL(r *output.Renderer, q sqlgen.Query) {
	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(output.FormatCodeBlock("sql", q.SQL))
	} else {
		r.Println(q.SQL)
	}
	if len(q.Args) > 0 {
		args := make([]string, len(q.Args))
		for i, a := range q.Args {
			args[i] = output.FormatValue(a)
		}
		r.StatusLine("Args", strings.Join(args, ", "))
	}
	r.Println()
}

func plannerOptions(cfg config.QueryConfig) []planner.Option {
	var opts []planner.Option
	if cfg.DefaultLimit > 0 {
		opts = append(opts, planner.WithDefaultLimit(cfg.DefaultLimit))
	}
	if cfg.MaxLimit > 0 {
		opts = append(opts, planner.WithMaxLimit(cfg.MaxLimit))
	}
	return opts
}

func joinRefs(refs []core.ColumnRef) string {
	names := make([]string, len(refs))
	for i, ref := range refs {
		names[i] = ref.Column
	}
	return strings.Join(names, ", ")
}
