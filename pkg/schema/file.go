package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/anyset/pkg/core"
	"gopkg.in/yaml.v3"
)

// Parse decodes a YAML dataset document. Unknown top-level fields are
// rejected.
func Parse(data []byte) (Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return def, fmt.Errorf("empty dataset document")
		}
		return def, err
	}
	return def, nil
}

// LoadFile reads, parses and loads one dataset document. Decoding failures
// are reported as a *core.SchemaError so callers see a single error kind.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, &core.SchemaError{Dataset: path, Problems: []string{err.Error()}}
	}
	reg, err := Load(def)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// LoadDir loads every *.yaml and *.yml file in dir, sorted by file name.
// Two files claiming the same path prefix and version are an error.
func LoadDir(dir string) ([]*Registry, error) {
	paths, err := DatasetFiles(dir)
	if err != nil {
		return nil, err
	}
	var regs []*Registry
	var errs []error
	seen := make(map[string]string)
	for _, p := range paths {
		reg, err := LoadFile(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if other, dup := seen[reg.Key()]; dup {
			errs = append(errs, fmt.Errorf("%s: dataset %s already defined in %s", p, reg.Key(), other))
			continue
		}
		seen[reg.Key()] = p
		regs = append(regs, reg)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return regs, nil
}

// DatasetFiles lists the dataset documents in dir.
func DatasetFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read datasets directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsDatasetFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// IsDatasetFile reports whether name has a YAML extension.
func IsDatasetFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
