package service

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/anyset/internal/config"
	"github.com/leapstack-labs/anyset/pkg/schema"
)

// Load reads every dataset document in cfg.DatasetsDir and opens a catalog
// for them.
func Load(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Catalog, error) {
	regs, err := schema.LoadDir(cfg.DatasetsDir)
	if err != nil {
		return nil, err
	}
	c := NewCatalog(cfg.Query, cfg.ResolveTarget, logger)
	if err := c.Open(ctx, regs); err != nil {
		return nil, err
	}
	return c, nil
}

// Watch reloads dataset schemas from dir as their documents change, until
// ctx is done.
func (c *Catalog) Watch(ctx context.Context, dir string) error {
	w := &schema.Watcher{
		Dir:    dir,
		Logger: c.logger,
		Apply:  c.Reload,
	}
	return w.Run(ctx)
}
