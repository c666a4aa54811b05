package duckdb

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Params is the duckdb section of a target's params:
//
//	params:
//	  extensions: [httpfs]
//	  settings: {memory_limit: 4GB, threads: 4}
//	  secrets:
//	    - {type: s3, provider: credential_chain, scope: s3://bucket}
type Params struct {
	Extensions []string          `mapstructure:"extensions"`
	Settings   map[string]string `mapstructure:"settings"`
	Secrets    []SecretConfig    `mapstructure:"secrets"`
}

// SecretConfig is one CREATE SECRET, for reading remote parquet or CSV
// that a dataset table is defined over.
type SecretConfig struct {
	Type     string   `mapstructure:"type"`
	Provider string   `mapstructure:"provider"`
	Region   string   `mapstructure:"region"`
	Scope    []string `mapstructure:"scope"`
	KeyID    string   `mapstructure:"key_id"`
	Secret   string   `mapstructure:"secret"`
	Endpoint string   `mapstructure:"endpoint"`
	URLStyle string   `mapstructure:"url_style"`
	UseSSL   *bool    `mapstructure:"use_ssl"`
}

// Extension names, setting names, secret types and providers are spliced
// into SQL unquoted.
var bareWord = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// parseParams decodes and checks raw params. Weak typing lets YAML give
// settings as numbers or booleans and a single scope as a plain string.
func parseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	if len(raw) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid duckdb params: %w", err)
	}

	var bad []string
	for _, ext := range p.Extensions {
		if !bareWord.MatchString(ext) {
			bad = append(bad, fmt.Sprintf("extension %q", ext))
		}
	}
	for k := range p.Settings {
		if !bareWord.MatchString(k) {
			bad = append(bad, fmt.Sprintf("setting %q", k))
		}
	}
	for i, s := range p.Secrets {
		if !bareWord.MatchString(s.Type) {
			bad = append(bad, fmt.Sprintf("secrets[%d].type %q", i, s.Type))
		}
		if s.Provider != "" && !bareWord.MatchString(s.Provider) {
			bad = append(bad, fmt.Sprintf("secrets[%d].provider %q", i, s.Provider))
		}
	}
	if len(bad) > 0 {
		return nil, fmt.Errorf("invalid duckdb params: %s", strings.Join(bad, ", "))
	}
	return p, nil
}
