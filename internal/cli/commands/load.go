package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/anyset/internal/cli/output"
	"github.com/leapstack-labs/anyset/internal/config"
	"github.com/leapstack-labs/anyset/pkg/adapter"
)

// LoadOptions holds options for the load command.
type LoadOptions struct {
	Target  string
	Dataset string
	Table   string
}

// loadResult is the JSON output of the load command.
type loadResult struct {
	Table   string `json:"table"`
	File    string `json:"file"`
	Adapter string `json:"adapter"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand() *cobra.Command {
	opts := &LoadOptions{}

	cmd := &cobra.Command{
		Use:   "load <file.csv>...",
		Short: "Load CSV files into an adapter's database",
		Long: `Create a table from each CSV file in the database behind a target or a
dataset's adapter. Useful for demo data and local development.

The table is named after the file unless --table is given.`,
		Example: `  # Load into a named target from anyset.yaml
  anyset load data/cc_transactions.csv --target warehouse

  # Load into whatever the cc dataset is bound to
  anyset load cc_transactions.csv --dataset cc`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Target, "target", "", "Target name or adapter type to load into")
	cmd.Flags().StringVar(&opts.Dataset, "dataset", "", "Load into the adapter bound to this dataset")
	cmd.Flags().StringVar(&opts.Table, "table", "", "Table name (only with a single file)")
	cmd.MarkFlagsMutuallyExclusive("target", "dataset")
	cmd.MarkFlagsOneRequired("target", "dataset")

	return cmd
}

func runLoad(cmd *cobra.Command, files []string, opts *LoadOptions) error {
	if opts.Table != "" && len(files) > 1 {
		return fmt.Errorf("--table needs exactly one file, got %d", len(files))
	}
	cc := NewCommandContext(cmd)
	ctx := cmd.Context()

	target, err := loadTarget(cc, opts)
	if err != nil {
		return err
	}

	adp, err := adapter.NewAdapter(target, cc.Logger)
	if err != nil {
		return err
	}
	loader, ok := adp.(adapter.CSVLoader)
	if !ok {
		return fmt.Errorf("%s adapter cannot load CSV files", target.Type)
	}
	if err := adp.Connect(ctx, target); err != nil {
		_ = adp.Close()
		return fmt.Errorf("failed to connect %s adapter: %w", target.Type, err)
	}
	defer func() { _ = adp.Close() }()

	r := cc.Renderer
	results := make([]loadResult, 0, len(files))
	for _, file := range files {
		table := opts.Table
		if table == "" {
			table = tableNameFor(file)
		}
		if err := loader.LoadCSV(ctx, table, file); err != nil {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
		results = append(results, loadResult{Table: table, File: file, Adapter: target.Type})
		if r.EffectiveMode() != output.ModeJSON {
			r.Success(fmt.Sprintf("%s -> %s", file, table))
		}
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(results)
	}
	return nil
}

func loadTarget(cc *CommandContext, opts *LoadOptions) (config.TargetConfig, error) {
	if opts.Target != "" {
		return cc.Cfg.ResolveTarget(opts.Target, nil)
	}
	reg, err := cc.LoadDataset(opts.Dataset)
	if err != nil {
		return config.TargetConfig{}, err
	}
	return cc.Cfg.ResolveTarget(reg.Adapter, reg.AdapterConfig)
}

// tableNameFor derives a table name from a file name: "raw-orders.csv"
// becomes "raw_orders".
func tableNameFor(file string) string {
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
}
