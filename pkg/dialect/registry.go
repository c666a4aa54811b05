package dialect

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrDialectRequired is returned when a dialect is required but not provided.
var ErrDialectRequired = errors.New("dialect is required")

// UnknownDialectError is returned by Lookup for names nothing registered.
type UnknownDialectError struct {
	Name      string
	Available []string
}

func (e *UnknownDialectError) Error() string {
	return fmt.Sprintf("unknown dialect %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// registry maps lower-cased names and aliases to dialects. Only canonical
// names are listed.
var registry = struct {
	sync.RWMutex
	byName    map[string]*Dialect
	canonical map[string]bool
}{
	byName:    make(map[string]*Dialect),
	canonical: make(map[string]bool),
}

// Register makes d available under its name and any aliases. Dialect
// packages call it from init. Registering a name twice panics.
func Register(d *Dialect, aliases ...string) {
	registry.Lock()
	defer registry.Unlock()

	name := strings.ToLower(d.Name)
	for _, key := range append([]string{name}, aliases...) {
		key = strings.ToLower(key)
		if prev, dup := registry.byName[key]; dup && prev != d {
			panic(fmt.Sprintf("dialect: %q registered twice", key))
		}
		registry.byName[key] = d
	}
	registry.canonical[name] = true
}

// Get returns the dialect registered under name or one of its aliases.
func Get(name string) (*Dialect, bool) {
	registry.RLock()
	defer registry.RUnlock()
	d, ok := registry.byName[strings.ToLower(name)]
	return d, ok
}

// Lookup is Get with an *UnknownDialectError for missing names.
func Lookup(name string) (*Dialect, error) {
	if name == "" {
		return nil, ErrDialectRequired
	}
	if d, ok := Get(name); ok {
		return d, nil
	}
	return nil, &UnknownDialectError{Name: name, Available: List()}
}

// List returns the canonical dialect names, sorted.
func List() []string {
	registry.RLock()
	defer registry.RUnlock()
	names := make([]string, 0, len(registry.canonical))
	for name := range registry.canonical {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
