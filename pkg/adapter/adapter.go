// Package adapter provides the adapter registry and the shared database/sql
// plumbing backend adapters build on.
//
// The contract itself (core.Adapter) lives in pkg/core so the planner and
// service layers can depend on it without importing any driver. Concrete
// adapters live in pkg/adapters/ subdirectories and register themselves
// from init().
package adapter

import (
	"context"

	"github.com/leapstack-labs/anyset/pkg/core"
)

// Type aliases so adapter implementations can spell the contract without
// importing pkg/core.
type (
	// Adapter is an alias for core.Adapter.
	Adapter = core.Adapter

	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig
)

// CSVLoader is implemented by adapters that can create a table from a CSV
// file. It is used to seed demo and test data.
type CSVLoader interface {
	LoadCSV(ctx context.Context, tableName string, filePath string) error
}
