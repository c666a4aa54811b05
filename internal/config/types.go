// Package config loads AnySet configuration: server, query limits, logging
// and the named adapter targets datasets bind to.
//
// Values are layered with koanf. Defaults are overridden by anyset.yaml,
// then by ANYSET_ environment variables, then by explicitly set CLI flags.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/leapstack-labs/anyset/pkg/core"
)

// TargetConfig is a named adapter configuration datasets refer to by name.
type TargetConfig = core.AdapterConfig

// Config holds all AnySet configuration.
type Config struct {
	DatasetsDir string `koanf:"datasets_dir"`
	Watch       bool   `koanf:"watch"`
	Verbose     bool   `koanf:"verbose"`
	Output      string `koanf:"output"`

	Server ServerConfig `koanf:"server"`
	Query  QueryConfig  `koanf:"query"`
	Log    LogConfig    `koanf:"log"`

	// Targets maps a target name to its adapter configuration.
	Targets map[string]TargetConfig `koanf:"targets"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string          `koanf:"host"`
	Port            int             `koanf:"port"`
	ReadTimeout     time.Duration   `koanf:"read_timeout"`
	WriteTimeout    time.Duration   `koanf:"write_timeout"`
	ShutdownTimeout time.Duration   `koanf:"shutdown_timeout"`
	MaxConnections  int             `koanf:"max_connections"` // 0 is unlimited
	CORS            CORSConfig      `koanf:"cors"`
	RateLimit       RateLimitConfig `koanf:"rate_limit"`
}

// CORSConfig configures cross-origin access. No origins disables CORS.
type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

// RateLimitConfig configures request admission. Zero requests per second
// disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

// QueryConfig bounds query execution.
type QueryConfig struct {
	DefaultLimit int           `koanf:"default_limit"`
	MaxLimit     int           `koanf:"max_limit"`
	Timeout      time.Duration `koanf:"timeout"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text, json
}

// Default configuration values.
const (
	DefaultDatasetsDir     = "datasets"
	DefaultHost            = "127.0.0.1"
	DefaultPort            = 8080
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultQueryLimit      = 100
	DefaultMaxLimit        = 10000
	DefaultQueryTimeout    = 30 * time.Second
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultOutput          = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// Defaults returns the lowest configuration layer.
func Defaults() map[string]any {
	return map[string]any{
		"datasets_dir":                          DefaultDatasetsDir,
		"watch":                                 false,
		"verbose":                               false,
		"output":                                DefaultOutput,
		"server.host":                           DefaultHost,
		"server.port":                           DefaultPort,
		"server.read_timeout":                   DefaultReadTimeout,
		"server.write_timeout":                  DefaultWriteTimeout,
		"server.shutdown_timeout":               DefaultShutdownTimeout,
		"server.max_connections":                0,
		"server.cors.allowed_methods":           []string{"GET", "POST", "OPTIONS"},
		"server.cors.allowed_headers":           []string{"Accept", "Content-Type", "X-Request-ID"},
		"server.cors.max_age":                   300,
		"server.rate_limit.requests_per_second": 0.0,
		"server.rate_limit.burst":               0,
		"query.default_limit":                   DefaultQueryLimit,
		"query.max_limit":                       DefaultMaxLimit,
		"query.timeout":                         DefaultQueryTimeout,
		"log.level":                             DefaultLogLevel,
		"log.format":                            DefaultLogFormat,
	}
}

// Address returns host:port for the HTTP listener.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
