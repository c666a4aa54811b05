package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/anyset/internal/cli/output"
	"github.com/leapstack-labs/anyset/pkg/core"
	"github.com/leapstack-labs/anyset/pkg/schema"
)

// ErrSchemaCheckFailed is returned when any dataset document is broken.
var ErrSchemaCheckFailed = errors.New("schema check failed")

// NewSchemaCommand creates the schema command group.
func NewSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect and check dataset schemas",
	}
	cmd.AddCommand(newSchemaCheckCommand())
	cmd.AddCommand(newSchemaShowCommand())
	return cmd
}

// fileCheck is the outcome of loading one dataset document.
type fileCheck struct {
	File     string   `json:"file"`
	Dataset  string   `json:"dataset,omitempty"`
	OK       bool     `json:"ok"`
	Problems []string `json:"problems,omitempty"`
}

func newSchemaCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check [dir]",
		Short: "Load every dataset document and report problems",
		Long: `Load every dataset document in the datasets directory (or dir) and report
all problems found in each: unknown column types, broken parent references,
hierarchy cycles, duplicate datasets.`,
		Example: `  anyset schema check
  anyset schema check ./datasets -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContext(cmd)
			dir := cc.Cfg.DatasetsDir
			if len(args) == 1 {
				dir = args[0]
			}
			return runSchemaCheck(cc.Renderer, dir)
		},
	}
}

func checkDatasetFiles(dir string) ([]fileCheck, error) {
	paths, err := schema.DatasetFiles(dir)
	if err != nil {
		return nil, err
	}
	checks := make([]fileCheck, 0, len(paths))
	seen := make(map[string]string)
	for _, p := range paths {
		check := fileCheck{File: filepath.Base(p)}
		reg, err := schema.LoadFile(p)
		switch {
		case err != nil:
			check.Problems = problemsOf(err)
		case seen[reg.Key()] != "":
			check.Dataset = reg.Key()
			check.Problems = []string{fmt.Sprintf("dataset %s already defined in %s", reg.Key(), seen[reg.Key()])}
		default:
			check.Dataset = reg.Key()
			check.OK = true
			seen[reg.Key()] = check.File
		}
		checks = append(checks, check)
	}
	return checks, nil
}

func problemsOf(err error) []string {
	var schemaErr *core.SchemaError
	if errors.As(err, &schemaErr) {
		return schemaErr.Problems
	}
	return []string{err.Error()}
}

func runSchemaCheck(r *output.Renderer, dir string) error {
	checks, err := checkDatasetFiles(dir)
	if err != nil {
		return err
	}
	failed := 0
	for _, c := range checks {
		if !c.OK {
			failed++
		}
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		if err := r.JSON(checks); err != nil {
			return err
		}
	case output.ModeMarkdown:
		r.Header(1, fmt.Sprintf("Schema check (%d files, %d failed)", len(checks), failed))
		for _, c := range checks {
			status := "PASS"
			if !c.OK {
				status = "FAIL"
			}
			r.Printf("- **[%s]** %s %s\n", status, c.File, c.Dataset)
			for _, p := range c.Problems {
				r.Printf("  - %s\n", p)
			}
		}
	default:
		if len(checks) == 0 {
			r.Warning("no dataset documents in " + dir)
		}
		for _, c := range checks {
			if c.OK {
				r.Success(fmt.Sprintf("%s (%s)", c.File, c.Dataset))
				continue
			}
			r.Fail(c.File)
			for _, p := range c.Problems {
				r.Muted("    - " + p)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d files", ErrSchemaCheckFailed, failed, len(checks))
	}
	return nil
}

func newSchemaShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <dataset>",
		Short: "Show the tables, columns and hierarchies of a dataset",
		Example: `  anyset schema show cc
  anyset schema show cc/v2 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContext(cmd)
			reg, err := cc.LoadDataset(args[0])
			if err != nil {
				return err
			}
			return renderDescription(cc.Renderer, reg.Describe())
		},
	}
}

func renderDescription(r *output.Renderer, d schema.Description) error {
	mode := r.EffectiveMode()
	if mode == output.ModeJSON {
		return r.JSON(d)
	}

	r.Header(1, fmt.Sprintf("%s (%s/v%d)", d.Name, d.PathPrefix, d.Version))
	if d.Description != "" {
		r.Println(d.Description)
		r.Println()
	}

	format := output.TableFormatFor(mode)
	for _, t := range d.Tables {
		r.Header(2, t.Name)
		rows := make([][]any, len(t.Columns))
		for i, c := range t.Columns {
			rows[i] = []any{c.Name, c.Kind, c.DataType, c.Parent}
		}
		output.WriteTable(r.Writer(), format, []string{"column", "kind", "data type", "parent"}, rows)
		r.Println()
	}

	if len(d.Hierarchies) > 0 {
		r.Header(2, "Hierarchies")
		for _, h := range d.Hierarchies {
			line := fmt.Sprintf("%s: %s", h.Name, strings.Join(h.Levels, " > "))
			if h.Implicit {
				line += " (implicit)"
			}
			r.Println("- " + line)
		}
		r.Println()
	}
	if len(d.CustomAggregations) > 0 {
		r.StatusLine("Custom aggregations", strings.Join(d.CustomAggregations, ", "))
	}
	return nil
}
