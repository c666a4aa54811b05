package core

import (
	"context"
)

// Adapter defines the interface that all backend adapters must implement.
type Adapter interface {
	// Connect establishes a connection to the backend.
	Connect(ctx context.Context, cfg AdapterConfig) error

	// Close releases the connection.
	Close() error

	// Execute runs a plan and returns columnar data in plan output order.
	Execute(ctx context.Context, plan *Plan) (*ColumnarResult, error)

	// FilterOptions computes selectable values for filterable columns and hierarchies.
	FilterOptions(ctx context.Context, req *FilterOptionsRequest) ([]FilterOption, error)

	// DialectName returns the SQL dialect name, or "" for non-SQL backends.
	DialectName() string
}

// AdapterConfig holds configuration for connecting to a backend.
type AdapterConfig struct {
	Type     string            `koanf:"type" yaml:"type"`
	Path     string            `koanf:"path" yaml:"path"`
	Host     string            `koanf:"host" yaml:"host"`
	Port     int               `koanf:"port" yaml:"port"`
	Database string            `koanf:"database" yaml:"database"`
	Username string            `koanf:"user" yaml:"user"`
	Password string            `koanf:"password" yaml:"password"`
	Schema   string            `koanf:"schema" yaml:"schema"`
	Options  map[string]string `koanf:"options" yaml:"options"`
	Params   map[string]any    `koanf:"params" yaml:"params"`
}
