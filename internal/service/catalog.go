// Package service binds loaded datasets to adapters and runs the
// validate, plan and execute pipeline for them.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/anyset/internal/config"
	"github.com/leapstack-labs/anyset/pkg/adapter"
	"github.com/leapstack-labs/anyset/pkg/core"
	"github.com/leapstack-labs/anyset/pkg/schema"
)

// Resolver turns a dataset's adapter reference into a connection config.
type Resolver func(ref string, overrides map[string]any) (config.TargetConfig, error)

// Dataset is a dataset bound to its adapter. The adapter is created once
// and shared by every request; the schema is replaced on reload.
type Dataset struct {
	Key    string
	holder *schema.Holder
	target config.TargetConfig
	adp    adapter.Adapter
}

// Registry returns the current schema snapshot.
func (d *Dataset) Registry() *schema.Registry {
	return d.holder.Load()
}

// AdapterType returns the registered adapter name.
func (d *Dataset) AdapterType() string {
	return d.target.Type
}

// Adapter returns the dataset's adapter.
func (d *Dataset) Adapter() adapter.Adapter {
	return d.adp
}

// Catalog holds the datasets served by one process, keyed by
// "<path_prefix>/v<version>".
type Catalog struct {
	cfg     config.QueryConfig
	resolve Resolver
	logger  *slog.Logger

	// NewAdapter creates adapters. Defaults to adapter.NewAdapter.
	NewAdapter func(cfg adapter.Config, logger *slog.Logger) (adapter.Adapter, error)

	mu       sync.RWMutex
	datasets map[string]*Dataset
}

// NewCatalog creates an empty catalog.
// If logger is nil, a discard logger is used.
func NewCatalog(cfg config.QueryConfig, resolve Resolver, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Catalog{
		cfg:        cfg,
		resolve:    resolve,
		logger:     logger,
		NewAdapter: adapter.NewAdapter,
		datasets:   make(map[string]*Dataset),
	}
}

// Add connects an adapter for reg and publishes the dataset. The connect
// runs outside the catalog lock so datasets can be added concurrently.
func (c *Catalog) Add(ctx context.Context, reg *schema.Registry) error {
	target, err := c.resolve(reg.Adapter, reg.AdapterConfig)
	if err != nil {
		return fmt.Errorf("dataset %s: %w", reg.Key(), err)
	}
	if c.loaded(reg.Key()) {
		return fmt.Errorf("dataset %s already loaded", reg.Key())
	}

	adp, err := c.NewAdapter(target, c.logger)
	if err != nil {
		return fmt.Errorf("dataset %s: %w", reg.Key(), err)
	}
	if err := adp.Connect(ctx, target); err != nil {
		_ = adp.Close()
		return fmt.Errorf("dataset %s: failed to connect %s adapter: %w", reg.Key(), target.Type, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.datasets[reg.Key()]; dup {
		_ = adp.Close()
		return fmt.Errorf("dataset %s already loaded", reg.Key())
	}
	c.datasets[reg.Key()] = &Dataset{Key: reg.Key(), holder: schema.NewHolder(reg), target: target, adp: adp}
	c.logger.Info("dataset loaded",
		slog.String("dataset", reg.Key()),
		slog.String("name", reg.Name),
		slog.String("adapter", target.Type))
	return nil
}

// maxParallelConnects bounds the adapters Open connects at once.
const maxParallelConnects = 8

// Open adds every registry, connecting adapters in parallel. On failure
// the remaining connects are cancelled and everything opened is closed.
func (c *Catalog) Open(ctx context.Context, regs []*schema.Registry) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelConnects)
	for _, reg := range regs {
		g.Go(func() error {
			return c.Add(gctx, reg)
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Join(err, c.Close())
	}
	return nil
}

// Reload publishes a new schema for a loaded dataset. The adapter binding
// cannot change without a restart.
func (c *Catalog) Reload(reg *schema.Registry) error {
	d, err := c.dataset(reg.Key())
	if err != nil {
		return err
	}
	target, err := c.resolve(reg.Adapter, reg.AdapterConfig)
	if err != nil {
		return err
	}
	if !reflect.DeepEqual(normalizeTarget(target), normalizeTarget(d.target)) {
		return fmt.Errorf("dataset %s: adapter configuration changed, restart to apply", reg.Key())
	}
	d.holder.Swap(reg)
	return nil
}

// Get returns a dataset by path prefix and version.
func (c *Catalog) Get(prefix string, version int) (*Dataset, error) {
	return c.dataset(schema.DatasetKey(prefix, version))
}

// List returns the loaded datasets sorted by key.
func (c *Catalog) List() []*Dataset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := slices.Sorted(maps.Keys(c.datasets))
	out := make([]*Dataset, len(keys))
	for i, k := range keys {
		out[i] = c.datasets[k]
	}
	return out
}

// Close closes every adapter.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for key, d := range c.datasets {
		if err := d.adp.Close(); err != nil {
			errs = append(errs, fmt.Errorf("dataset %s: %w", key, err))
		}
		delete(c.datasets, key)
	}
	return errors.Join(errs...)
}

func (c *Catalog) loaded(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.datasets[key]
	return ok
}

func (c *Catalog) dataset(key string) (*Dataset, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.datasets[key]
	if !ok {
		return nil, core.ErrNotFound("dataset %q not found", key)
	}
	return d, nil
}

// normalizeTarget treats nil and empty maps alike.
func normalizeTarget(t config.TargetConfig) config.TargetConfig {
	if len(t.Options) == 0 {
		t.Options = nil
	}
	if len(t.Params) == 0 {
		t.Params = nil
	}
	return t
}
