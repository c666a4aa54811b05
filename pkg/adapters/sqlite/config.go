package sqlite

import (
	"fmt"
	"maps"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Params is the sqlite section of a target's params:
//
//	params:
//	  pragmas: {journal_mode: wal, busy_timeout: 5000, foreign_keys: "on"}
type Params struct {
	// Pragmas run on every new connection of the pool.
	Pragmas map[string]string `mapstructure:"pragmas"`
}

var (
	pragmaName  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	pragmaValue = regexp.MustCompile(`^[A-Za-z0-9_.+-]+$`)
)

// parseParams decodes and checks raw params. Weak typing lets YAML give
// pragma values as numbers or booleans.
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
		return nil, fmt.Errorf("invalid sqlite params: %w", err)
	}

	var bad []string
	for _, k := range slices.Sorted(maps.Keys(p.Pragmas)) {
		if !pragmaName.MatchString(k) {
			bad = append(bad, fmt.Sprintf("pragma %q", k))
			continue
		}
		if !pragmaValue.MatchString(p.Pragmas[k]) {
			bad = append(bad, fmt.Sprintf("pragma %s value %q", k, p.Pragmas[k]))
		}
	}
	if len(bad) > 0 {
		return nil, fmt.Errorf("invalid sqlite params: %s", strings.Join(bad, ", "))
	}
	return p, nil
}

// dataSource appends pragmas to path as _pragma=name(value) parameters.
// The driver runs them on each connection it opens.
func dataSource(path string, pragmas map[string]string) string {
	if len(pragmas) == 0 {
		return path
	}
	q := url.Values{}
	for _, k := range slices.Sorted(maps.Keys(pragmas)) {
		q.Add("_pragma", fmt.Sprintf("%s(%s)", k, pragmas[k]))
	}
	return path + "?" + q.Encode()
}
