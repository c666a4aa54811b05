package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/anyset/internal/cli/output"
	"github.com/leapstack-labs/anyset/pkg/core"
)

// maxListedValues bounds how many values text output shows per option.
const maxListedValues = 10

// NewOptionsCommand creates the options command.
func NewOptionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "options <dataset>",
		Short: "Show the filter options of a dataset",
		Long: `Compute the values a client can filter on: distinct values of category
columns, min and max of fact and date columns, and the value trees of
hierarchies. The dataset's adapter is queried.`,
		Example: `  anyset options cc
  anyset options cc/v1 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptions(cmd, args[0])
		},
	}
}

func runOptions(cmd *cobra.Command, ref string) error {
	cc := NewCommandContext(cmd)
	ctx := cmd.Context()

	catalog, reg, err := cc.OpenDataset(ctx, ref)
	if err != nil {
		return err
	}
	defer func() { _ = catalog.Close() }()

	opts, err := catalog.FilterOptions(ctx, reg.PathPrefix, reg.Version)
	if err != nil {
		return err
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		if opts == nil {
			opts = []core.FilterOption{}
		}
		return r.JSON(opts)
	}

	r.Header(1, "Filter options: "+reg.Key())
	for _, opt := range opts {
		r.StatusLine(fmt.Sprintf("%s (%s)", opt.Name, opt.Kind), summarizeValues(opt))
	}
	return nil
}

func summarizeValues(opt core.FilterOption) string {
	if opt.Kind == core.OptionMinMax && len(opt.Values) == 2 {
		return fmt.Sprintf("%s .. %s", output.FormatValue(opt.Values[0].Value), output.FormatValue(opt.Values[1].Value))
	}
	labels := make([]string, 0, min(len(opt.Values), maxListedValues))
	for i, v := range opt.Values {
		if i == maxListedValues {
			labels = append(labels, fmt.Sprintf("... %d more", len(opt.Values)-maxListedValues))
			break
		}
		label := v.Label
		if n := countLeaves(v.Children); n > 0 {
			label += fmt.Sprintf(" [%d]", n)
		}
		labels = append(labels, label)
	}
	return strings.Join(labels, ", ")
}

func countLeaves(values []core.OptionValue) int {
	n := 0
	for _, v := range values {
		if len(v.Children) == 0 {
			n++
			continue
		}
		n += countLeaves(v.Children)
	}
	return n
}
