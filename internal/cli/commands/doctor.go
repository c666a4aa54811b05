package commands

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/anyset/internal/cli/output"
	"github.com/leapstack-labs/anyset/internal/config"
	"github.com/leapstack-labs/anyset/pkg/adapter"
	"github.com/leapstack-labs/anyset/pkg/schema"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Format  string // Output format: text, markdown, json
	Offline bool   // Skip connecting adapters
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, dataset schemas and adapter connectivity",
		Long: `Run a health check over the AnySet setup:
- Configuration (config file, datasets directory)
- Schemas (every dataset document loads)
- Adapters (targets resolve, adapters connect and compute filter options)

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Run health check
  anyset doctor

  # Without touching any database
  anyset doctor --offline

  # Output as JSON
  anyset doctor --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, markdown, json")
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "Skip adapter connection checks")

	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         SetupSummary  `json:"summary"`
	HealthChecks    []HealthCheck `json:"health_checks"`
	Score           int           `json:"score"`
	Recommendations []string      `json:"recommendations"`
	IssueCount      int           `json:"issue_count"`
}

// SetupSummary contains setup-level statistics.
type SetupSummary struct {
	ConfigFile  string   `json:"config_file,omitempty"`
	DatasetsDir string   `json:"datasets_dir"`
	Datasets    int      `json:"datasets"`
	Adapters    []string `json:"adapters"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Status     string   `json:"status"` // "pass", "warn", "error", "skip"
	IssueCount int      `json:"issue_count"`
	Details    []string `json:"details,omitempty"`
}

// check accumulates the issues of one health check.
type check struct {
	HealthCheck
	severity string
}

func newCheck(id, name, group, severity string) *check {
	return &check{HealthCheck: HealthCheck{ID: id, Name: name, Group: group, Status: "pass"}, severity: severity}
}

func (c *check) fail(format string, args ...any) {
	c.Status = c.severity
	c.IssueCount++
	c.Details = append(c.Details, fmt.Sprintf(format, args...))
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer
	if opts.Format != "" {
		mode, err := output.ParseMode(opts.Format)
		if err != nil {
			return err
		}
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)
	}

	out := diagnose(cmd.Context(), cc, opts.Offline)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		return renderDoctorMarkdown(r, out)
	default:
		return renderDoctorText(r, out)
	}
}

func diagnose(ctx context.Context, cc *CommandContext, offline bool) *DoctorOutput {
	cfg := cc.Cfg
	summary := SetupSummary{ConfigFile: cc.ConfigFile, DatasetsDir: cfg.DatasetsDir, Adapters: adapter.ListAdapters()}

	configFile := newCheck("CF01", "Config file found", "configuration", "warn")
	if cc.ConfigFile == "" {
		configFile.fail("no %s found; using defaults and environment", config.ConfigFileName)
	}

	datasetsDir := newCheck("CF02", "Datasets directory exists", "configuration", "error")
	if info, err := os.Stat(cfg.DatasetsDir); err != nil || !info.IsDir() {
		datasetsDir.fail("%s is not a directory", cfg.DatasetsDir)
	}

	schemas := newCheck("SC01", "Dataset documents load", "schemas", "error")
	var regs []*schema.Registry
	if datasetsDir.Status == "pass" {
		checks, err := checkDatasetFiles(cfg.DatasetsDir)
		if err != nil {
			schemas.fail("%v", err)
		}
		for _, c := range checks {
			if !c.OK {
				schemas.fail("%s: %s", c.File, strings.Join(c.Problems, "; "))
			}
		}
		if schemas.Status == "pass" {
			// Every file loaded individually; LoadDir also rejects duplicates.
			regs, _ = schema.LoadDir(cfg.DatasetsDir)
		}
	}
	summary.Datasets = len(regs)

	targets := newCheck("AD01", "Adapter targets resolve", "adapters", "error")
	custom := newCheck("AD02", "Custom aggregations are executable", "adapters", "warn")
	resolved := make(map[string]config.TargetConfig, len(regs))
	for _, reg := range regs {
		target, err := cfg.ResolveTarget(reg.Adapter, reg.AdapterConfig)
		if err != nil {
			targets.fail("%s: %v", reg.Key(), err)
			continue
		}
		resolved[reg.Key()] = target
		if target.Type == "memory" && len(reg.CustomAggregations()) > 0 {
			custom.fail("%s: memory adapter cannot run %s", reg.Key(), strings.Join(reg.CustomAggregations(), ", "))
		}
	}

	connect := newCheck("AD03", "Adapters connect and answer", "adapters", "error")
	if offline {
		connect.Status = "skip"
	} else {
		for _, reg := range regs {
			target, ok := resolved[reg.Key()]
			if !ok {
				continue
			}
			if err := probeAdapter(ctx, cc, reg, target); err != nil {
				connect.fail("%s (%s): %v", reg.Key(), target.Type, err)
			}
		}
	}

	all := []*check{configFile, datasetsDir, schemas, targets, custom, connect}
	checks := make([]HealthCheck, len(all))
	issues := 0
	for i, c := range all {
		checks[i] = c.HealthCheck
		issues += c.IssueCount
	}
	sort.SliceStable(checks, func(i, j int) bool {
		return groupOrder(checks[i].Group) < groupOrder(checks[j].Group)
	})

	return &DoctorOutput{
		Summary:         summary,
		HealthChecks:    checks,
		Score:           calculateHealthScore(checks, len(regs)),
		Recommendations: generateRecommendations(checks),
		IssueCount:      issues,
	}
}

// probeAdapter connects the dataset's adapter and computes its filter
// options, the cheapest call that touches every table.
func probeAdapter(ctx context.Context, cc *CommandContext, reg *schema.Registry, target config.TargetConfig) error {
	adp, err := adapter.NewAdapter(target, cc.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = adp.Close() }()

	if cc.Cfg.Query.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cc.Cfg.Query.Timeout)
		defer cancel()
	}
	if err := adp.Connect(ctx, target); err != nil {
		return err
	}
	_, err = adp.FilterOptions(ctx, reg.FilterOptionsRequest())
	return err
}

func groupOrder(group string) int {
	switch group {
	case "configuration":
		return 0
	case "schemas":
		return 1
	default:
		return 2
	}
}

// calculateHealthScore computes a health score from 0-100.
// Errors count double; with more datasets each issue weighs less.
func calculateHealthScore(checks []HealthCheck, datasetCount int) int {
	if len(checks) == 0 {
		return 100
	}

	score := 100.0
	basePenalty := 10.0
	if datasetCount > 5 {
		basePenalty = 5.0
	}
	if datasetCount > 20 {
		basePenalty = 2.0
	}

	for _, check := range checks {
		switch check.Status {
		case "error":
			score -= float64(check.IssueCount) * basePenalty * 2
		case "warn":
			score -= float64(check.IssueCount) * basePenalty
		}
	}

	return int(min(max(score, 0), 100))
}

// generateRecommendations creates actionable recommendations based on findings.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	for _, check := range checks {
		if check.IssueCount == 0 {
			continue
		}
		if rec := getRecommendation(check.ID); rec != "" {
			recommendations = append(recommendations, rec)
		}
	}
	return recommendations
}

// getRecommendation returns a recommendation for a specific check.
func getRecommendation(id string) string {
	switch id {
	case "CF01":
		return "Create " + config.ConfigFileName + " to pin the datasets directory and adapter targets"
	case "CF02":
		return "Set datasets_dir (or --datasets) to the directory holding dataset YAML files"
	case "SC01":
		return "Run 'anyset schema check' and fix the reported dataset documents"
	case "AD01":
		return "Declare the missing targets under 'targets:' or fix each dataset's 'adapter' field"
	case "AD02":
		return "Bind datasets with custom aggregations to a SQL adapter"
	case "AD03":
		return "Check adapter credentials and network access; rerun with --log-level debug"
	default:
		return ""
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render("AnySet Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	r.Println(styles.Header2.Render("Setup"))
	if out.Summary.ConfigFile != "" {
		r.Printf("   Config: %s\n", out.Summary.ConfigFile)
	}
	r.Printf("   Datasets: %d in %s\n", out.Summary.Datasets, out.Summary.DatasetsDir)
	r.Printf("   Adapters: %s\n", strings.Join(out.Summary.Adapters, ", "))
	r.Println("")

	r.Println(styles.Header2.Render("Health Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.StatusSuccess.String()
		switch check.Status {
		case "warn":
			icon = styles.Warning.Render("!")
		case "error":
			icon = styles.StatusFailed.String()
		case "skip":
			icon = styles.Muted.Render("-")
		}

		status := fmt.Sprintf("%s %s: %s", icon, check.ID, check.Name)
		if check.IssueCount > 0 {
			status += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		r.Println("   " + status)

		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) error {
	r.Println("# AnySet Health Report")
	r.Println("")

	r.Println("## Setup")
	r.Println("")
	if out.Summary.ConfigFile != "" {
		r.Printf("- **Config**: %s\n", out.Summary.ConfigFile)
	}
	r.Printf("- **Datasets**: %d in %s\n", out.Summary.Datasets, out.Summary.DatasetsDir)
	r.Printf("- **Adapters**: %s\n", strings.Join(out.Summary.Adapters, ", "))
	r.Println("")

	r.Println("## Health Checks")
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("### " + titleCaser.String(currentGroup))
			r.Println("")
		}

		r.Printf("- **[%s]** %s: %s", strings.ToUpper(check.Status), check.ID, check.Name)
		if check.IssueCount > 0 {
			r.Printf(" (%d issues)", check.IssueCount)
		}
		r.Println("")

		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	r.Println("## Health Score")
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}
