package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/anyset/internal/cli/output"
	"github.com/leapstack-labs/anyset/pkg/core"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query <dataset> [request.json|-]",
		Short: "Execute a query request against a dataset",
		Long: `Validate, plan and execute a query request through the dataset's adapter
and print the resulting page of rows. Without a request an interactive
shell is started.

The default format follows --output: a table on a terminal, markdown when
piped, JSON for -o json. --format overrides it.`,
		Example: `  # Run a request file
  anyset query cc/v1 request.json

  # Read the request from stdin and emit CSV
  cat request.json | anyset query cc - --format csv

  # Full response document
  anyset query cc request.json --format json

  # Interactive shell
  anyset query cc`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				format, err := queryFormat(cmd, opts)
				if err != nil {
					return err
				}
				return runQueryREPL(cmd, args[0], format)
			}
			return runQuery(cmd, args[0], args[1], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, json, csv, md")
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "csv", "md"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// queryFormat resolves --format, defaulting to the output mode's format.
func queryFormat(cmd *cobra.Command, opts *QueryOptions) (output.TableFormat, error) {
	if opts.Format != "" {
		return output.ParseTableFormat(opts.Format)
	}
	return output.TableFormatFor(NewCommandContext(cmd).Renderer.EffectiveMode()), nil
}

func runQuery(cmd *cobra.Command, ref, src string, opts *QueryOptions) error {
	cc := NewCommandContext(cmd)

	format, err := queryFormat(cmd, opts)
	if err != nil {
		return err
	}

	req, err := readRequest(cmd, src)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	catalog, reg, err := cc.OpenDataset(ctx, ref)
	if err != nil {
		return err
	}
	defer func() { _ = catalog.Close() }()

	rs, err := catalog.Query(ctx, reg.PathPrefix, reg.Version, req)
	if err != nil {
		return err
	}
	return renderResultset(cc.Renderer.Writer(), rs, format)
}

func renderResultset(w io.Writer, rs *core.Resultset, format output.TableFormat) error {
	if format == output.TableJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rs)
	}

	output.WriteTable(w, format, rs.Aliases(), rs.Rows())
	if format != output.TableCSV {
		_, _ = fmt.Fprintf(w, "(%d of %d rows)\n", rs.RecordCountCurrentPage, rs.RecordCountTotal)
	}
	return nil
}
