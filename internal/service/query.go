package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/leapstack-labs/anyset/pkg/core"
	"github.com/leapstack-labs/anyset/pkg/planner"
	"github.com/leapstack-labs/anyset/pkg/query"
	"github.com/leapstack-labs/anyset/pkg/validator"
)

// Validate checks req against the dataset schema without planning it.
func (d *Dataset) Validate(req *query.Request, maxLimit int) validator.Result {
	var opts []validator.Option
	if maxLimit > 0 {
		opts = append(opts, validator.WithMaxLimit(maxLimit))
	}
	return validator.Validate(req, d.Registry(), opts...)
}

// Validate checks a request against a dataset.
func (c *Catalog) Validate(prefix string, version int, req *query.Request) (validator.Result, error) {
	d, err := c.Get(prefix, version)
	if err != nil {
		return validator.Result{}, err
	}
	return d.Validate(req, c.cfg.MaxLimit), nil
}

// Explain plans a request without executing it.
func (c *Catalog) Explain(prefix string, version int, req *query.Request) (*core.Plan, error) {
	d, err := c.Get(prefix, version)
	if err != nil {
		return nil, err
	}
	return c.plan(d, req)
}

// Query validates, plans and executes a request.
func (c *Catalog) Query(ctx context.Context, prefix string, version int, req *query.Request) (*core.Resultset, error) {
	d, err := c.Get(prefix, version)
	if err != nil {
		return nil, err
	}

	// One snapshot for the whole request.
	reg := d.Registry()
	plan, err := planner.Plan(req, reg, c.plannerOptions()...)
	if err != nil {
		return nil, err
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := d.adp.Execute(ctx, plan)
	if err != nil {
		c.logger.Warn("query failed",
			slog.String("dataset", d.Key),
			slog.String("plan_id", plan.ID),
			slog.Any("error", err))
		return nil, err
	}

	rs, err := core.NewResultset(plan, reg.Meta(), d.AdapterType(), res)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("query executed",
		slog.String("dataset", d.Key),
		slog.String("plan_id", plan.ID),
		slog.Int("rows", rs.RecordCountCurrentPage),
		slog.Int("total", rs.RecordCountTotal),
		slog.Duration("elapsed", time.Since(start)))
	return rs, nil
}

// FilterOptions computes the filter options of a dataset.
func (c *Catalog) FilterOptions(ctx context.Context, prefix string, version int) ([]core.FilterOption, error) {
	d, err := c.Get(prefix, version)
	if err != nil {
		return nil, err
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	return d.adp.FilterOptions(ctx, d.Registry().FilterOptionsRequest())
}

func (c *Catalog) plan(d *Dataset, req *query.Request) (*core.Plan, error) {
	return planner.Plan(req, d.Registry(), c.plannerOptions()...)
}

func (c *Catalog) plannerOptions() []planner.Option {
	var opts []planner.Option
	if c.cfg.DefaultLimit > 0 {
		opts = append(opts, planner.WithDefaultLimit(c.cfg.DefaultLimit))
	}
	if c.cfg.MaxLimit > 0 {
		opts = append(opts, planner.WithMaxLimit(c.cfg.MaxLimit))
	}
	return opts
}
