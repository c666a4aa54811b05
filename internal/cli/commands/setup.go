// Package commands implements the anyset subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/anyset/internal/cli/output"
	"github.com/leapstack-labs/anyset/internal/config"
	"github.com/leapstack-labs/anyset/internal/service"
	"github.com/leapstack-labs/anyset/pkg/query"
	"github.com/leapstack-labs/anyset/pkg/schema"
)

type (
	configKey     struct{}
	configFileKey struct{}
	loggerKey     struct{}
	rendererKey   struct{}
)

// WithConfig stores the loaded configuration in ctx.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// WithConfigFile records which config file was read, if any.
func WithConfigFile(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, configFileKey{}, path)
}

// WithLogger stores the logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithRenderer stores the renderer in ctx.
func WithRenderer(ctx context.Context, r *output.Renderer) context.Context {
	return context.WithValue(ctx, rendererKey{}, r)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// CommandContext holds the dependencies shared by commands.
type CommandContext struct {
	Cfg        *config.Config
	ConfigFile string
	Logger     *slog.Logger
	Renderer   *output.Renderer
}

// NewCommandContext collects what the root command stored in the command
// context. Missing values fall back to defaults so commands can run in
// tests without the root.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, ok := ctx.Value(configKey{}).(*config.Config)
	if !ok {
		cfg = &config.Config{
			DatasetsDir: config.DefaultDatasetsDir,
			Query: config.QueryConfig{
				DefaultLimit: config.DefaultQueryLimit,
				MaxLimit:     config.DefaultMaxLimit,
				Timeout:      config.DefaultQueryTimeout,
			},
		}
	}
	r, ok := ctx.Value(rendererKey{}).(*output.Renderer)
	if !ok {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ModeAuto)
	}
	file, _ := ctx.Value(configFileKey{}).(string)
	return &CommandContext{Cfg: cfg, ConfigFile: file, Logger: GetLogger(ctx), Renderer: r}
}

// OpenCatalog loads every dataset and connects its adapter.
func (cc *CommandContext) OpenCatalog(ctx context.Context) (*service.Catalog, error) {
	return service.Load(ctx, cc.Cfg, cc.Logger)
}

// OpenDataset opens a catalog holding only the dataset ref names.
func (cc *CommandContext) OpenDataset(ctx context.Context, ref string) (*service.Catalog, *schema.Registry, error) {
	reg, err := cc.LoadDataset(ref)
	if err != nil {
		return nil, nil, err
	}
	c := service.NewCatalog(cc.Cfg.Query, cc.Cfg.ResolveTarget, cc.Logger)
	if err := c.Add(ctx, reg); err != nil {
		return nil, nil, err
	}
	return c, reg, nil
}

// LoadDataset reads one dataset definition without connecting an adapter.
func (cc *CommandContext) LoadDataset(ref string) (*schema.Registry, error) {
	regs, err := schema.LoadDir(cc.Cfg.DatasetsDir)
	if err != nil {
		return nil, err
	}
	return pickDataset(regs, ref)
}

// parseDatasetRef splits "prefix/v2" into its parts. A bare prefix has
// version 0, meaning the latest.
func parseDatasetRef(ref string) (string, int, error) {
	prefix, raw, found := strings.Cut(ref, "/")
	if prefix == "" {
		return "", 0, fmt.Errorf("invalid dataset %q: want <path_prefix>[/v<version>]", ref)
	}
	if !found {
		return prefix, 0, nil
	}
	version, err := strconv.Atoi(strings.TrimPrefix(raw, "v"))
	if err != nil || version < 1 {
		return "", 0, fmt.Errorf("invalid dataset %q: want <path_prefix>[/v<version>]", ref)
	}
	return prefix, version, nil
}

// pickDataset finds ref among regs, taking the highest version when ref
// names no version.
func pickDataset(regs []*schema.Registry, ref string) (*schema.Registry, error) {
	prefix, version, err := parseDatasetRef(ref)
	if err != nil {
		return nil, err
	}
	var best *schema.Registry
	for _, reg := range regs {
		if reg.PathPrefix != prefix {
			continue
		}
		if version > 0 && reg.Version == version {
			return reg, nil
		}
		if version == 0 && (best == nil || reg.Version > best.Version) {
			best = reg
		}
	}
	if best == nil {
		available := make([]string, len(regs))
		for i, reg := range regs {
			available[i] = reg.Key()
		}
		slices.Sort(available)
		return nil, fmt.Errorf("dataset %q not found (available: %s)", ref, strings.Join(available, ", "))
	}
	return best, nil
}

// readRequest reads a query request from a file, "-" for stdin, or inline
// JSON starting with "{".
func readRequest(cmd *cobra.Command, src string) (*query.Request, error) {
	switch {
	case src == "-":
		return query.Decode(cmd.InOrStdin())
	case strings.HasPrefix(strings.TrimSpace(src), "{"):
		return query.Parse([]byte(src))
	}
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open request: %w", err)
	}
	defer func() { _ = f.Close() }()
	return query.Decode(f)
}
