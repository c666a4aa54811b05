package config

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/leapstack-labs/anyset/pkg/adapter"
	"github.com/leapstack-labs/anyset/pkg/dialect"
)

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.DatasetsDir == "" {
		return fmt.Errorf("datasets_dir is required")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Query.DefaultLimit < 1 {
		return fmt.Errorf("query.default_limit must be at least 1")
	}
	if c.Query.MaxLimit < c.Query.DefaultLimit {
		return fmt.Errorf("query.max_limit %d is below query.default_limit %d", c.Query.MaxLimit, c.Query.DefaultLimit)
	}
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("server.max_connections must not be negative")
	}
	if c.Server.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must not be negative")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// ParseLevel parses a log level name.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log.level %q: %w", s, err)
	}
	return lvl, nil
}

// ResolveTarget returns the adapter configuration for a dataset. ref is a
// configured target name or a registered adapter type; overrides holds the
// dataset's adapter_config and takes precedence over the target.
func (c *Config) ResolveTarget(ref string, overrides map[string]any) (TargetConfig, error) {
	var base TargetConfig
	if t, ok := c.Targets[ref]; ok {
		base = t
	} else {
		base = TargetConfig{Type: ref}
	}

	override, err := DecodeTarget(overrides)
	if err != nil {
		return TargetConfig{}, err
	}
	merged := MergeTargetConfig(base, override)
	expandTargetEnvVars(&merged)
	merged.Path = resolveDatabasePath(merged.Path, c.ProjectRoot)
	ApplyTargetDefaults(&merged)

	if err := ValidateTarget(merged); err != nil {
		return TargetConfig{}, err
	}
	return merged, nil
}

// DecodeTarget decodes a loosely typed adapter_config mapping.
func DecodeTarget(raw map[string]any) (TargetConfig, error) {
	var t TargetConfig
	if len(raw) == 0 {
		return t, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "koanf",
		Result:           &t,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return t, err
	}
	if err := dec.Decode(raw); err != nil {
		return t, fmt.Errorf("invalid adapter_config: %w", err)
	}
	return t, nil
}

// ValidateTarget checks that the target names a registered adapter.
func ValidateTarget(t TargetConfig) error {
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	if !adapter.IsRegistered(t.Type) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}
	return nil
}

// ApplyTargetDefaults fills the schema and port from the adapter's dialect.
func ApplyTargetDefaults(t *TargetConfig) {
	t.Type = strings.ToLower(t.Type)
	if t.Schema == "" {
		if d, ok := dialect.Get(t.Type); ok {
			t.Schema = d.DefaultSchema
		}
	}
	if t.Type == "postgres" && t.Port == 0 {
		t.Port = 5432
	}
}

// MergeTargetConfig merges two target configs, with override taking precedence.
func MergeTargetConfig(base, override TargetConfig) TargetConfig {
	merged := base
	merged.Options = make(map[string]string, len(base.Options)+len(override.Options))
	merged.Params = make(map[string]any, len(base.Params)+len(override.Params))
	maps.Copy(merged.Options, base.Options)
	maps.Copy(merged.Params, base.Params)

	if override.Type != "" {
		merged.Type = override.Type
	}
	if override.Path != "" {
		merged.Path = override.Path
	}
	if override.Database != "" {
		merged.Database = override.Database
	}
	if override.Host != "" {
		merged.Host = override.Host
	}
	if override.Port != 0 {
		merged.Port = override.Port
	}
	if override.Username != "" {
		merged.Username = override.Username
	}
	if override.Password != "" {
		merged.Password = override.Password
	}
	if override.Schema != "" {
		merged.Schema = override.Schema
	}
	maps.Copy(merged.Options, override.Options)
	maps.Copy(merged.Params, override.Params)
	return merged
}

// expandEnvVars expands ${VAR} patterns with environment variable values.
// Unset variables are left as written.
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}

// expandTargetEnvVars expands environment variables in connection fields.
func expandTargetEnvVars(t *TargetConfig) {
	t.Host = expandEnvVars(t.Host)
	t.Database = expandEnvVars(t.Database)
	t.Path = expandEnvVars(t.Path)
	t.Username = expandEnvVars(t.Username)
	t.Password = expandEnvVars(t.Password)
}
