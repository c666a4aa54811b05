package main

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/leapstack-labs/anyset/internal/config"
)

// configDescriptions documents the keys in config.Defaults.
var configDescriptions = map[string]string{
	"datasets_dir":                          "Directory holding dataset documents",
	"watch":                                 "Reload dataset documents when they change (serve only)",
	"verbose":                               "Print extra diagnostics",
	"output":                                "Output mode: auto, text, markdown or json",
	"server.host":                           "HTTP listen host",
	"server.port":                           "HTTP listen port",
	"server.read_timeout":                   "HTTP read timeout",
	"server.write_timeout":                  "HTTP write timeout",
	"server.shutdown_timeout":               "Grace period for in-flight requests on shutdown",
	"server.max_connections":                "Cap on concurrent connections, 0 for no cap",
	"server.cors.allowed_methods":           "CORS allowed methods",
	"server.cors.allowed_headers":           "CORS allowed headers",
	"server.cors.max_age":                   "CORS preflight cache age in seconds",
	"server.rate_limit.requests_per_second": "Per-client request rate, 0 disables limiting",
	"server.rate_limit.burst":               "Per-client burst size",
	"query.default_limit":                   "Page size when a request leaves pagination.limit unset",
	"query.max_limit":                       "Largest page size a request may ask for",
	"query.timeout":                         "Per-query execution timeout",
	"log.level":                             "Log level: debug, info, warn or error",
	"log.format":                            "Log format: text or json",
}

// generateConfigDocs writes the configuration reference.
func generateConfigDocs(outDir string) error {
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	w := NewMarkdownWriter()
	w.Frontmatter("Configuration", "Configuration keys, defaults and environment variables for AnySet")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph(fmt.Sprintf("AnySet reads %s from the working directory or a parent, then environment variables, then command-line flags. "+
		"Later sources win.", InlineCode(config.ConfigFileName)))

	w.Header(2, "Keys")
	defaults := config.Defaults()
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{
			InlineCode(k),
			InlineCode(formatDefault(defaults[k])),
			InlineCode(envName(k)),
			configDescriptions[k],
		})
	}
	w.Table([]string{"Key", "Default", "Environment", "Description"}, rows)

	w.Header(2, "Targets")
	w.Paragraph("Named adapter connections live under " + InlineCode("targets") + ". " +
		"A dataset document binds to a target by name or names an adapter type directly. " +
		"Relative paths resolve against the directory holding the config file.")
	w.Table([]string{"Field", "Type"}, targetFields())
	w.CodeBlock("yaml", `targets:
  warehouse:
    type: postgres
    host: db.internal
    port: 5432
    database: analytics
    user: reader
  local:
    type: duckdb
    path: data/local.duckdb`)

	filename := filepath.Join(outDir, "configuration.md")
	return os.WriteFile(filename, w.Bytes(), 0600)
}

// envName maps a dotted key to its environment variable.
func envName(key string) string {
	return config.EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "__"))
}

func formatDefault(v any) string {
	switch val := v.(type) {
	case []string:
		return strings.Join(val, ",")
	case string:
		if val == "" {
			return `""`
		}
		return val
	default:
		return fmt.Sprint(val)
	}
}

// targetFields lists the koanf keys of config.TargetConfig.
func targetFields() [][]string {
	t := reflect.TypeOf(config.TargetConfig{})
	rows := make([][]string, 0, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			continue
		}
		rows = append(rows, []string{InlineCode(name), f.Type.String()})
	}
	return rows
}
