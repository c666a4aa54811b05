package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Factory creates an unconnected adapter.
type Factory func(*slog.Logger) Adapter

// ErrNoAdapterType is returned by NewAdapter for a config without a type.
var ErrNoAdapterType = errors.New("adapter type not specified")

type entry struct {
	name    string
	factory Factory
}

// factories maps lower-cased names and aliases to their registration.
var factories = struct {
	sync.RWMutex
	m map[string]entry
}{m: make(map[string]entry)}

// Register makes an adapter available under name and any aliases, matched
// case-insensitively. Adapter packages call it from init; registering a
// taken name panics.
func Register(name string, factory Factory, aliases ...string) {
	factories.Lock()
	defer factories.Unlock()

	canonical := strings.ToLower(name)
	for _, key := range append([]string{name}, aliases...) {
		key = strings.ToLower(key)
		if prev, taken := factories.m[key]; taken {
			panic(fmt.Sprintf("adapter: %q already registered by %s", key, prev.name))
		}
		factories.m[key] = entry{name: canonical, factory: factory}
	}
}

// Get returns the factory registered under name or an alias.
func Get(name string) (Factory, bool) {
	factories.RLock()
	defer factories.RUnlock()
	e, ok := factories.m[strings.ToLower(name)]
	return e.factory, ok
}

// NewAdapter creates an unconnected adapter for cfg.Type. A nil logger
// discards; the adapter's logger is tagged with its canonical name.
func NewAdapter(cfg Config, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, ErrNoAdapterType
	}

	factories.RLock()
	e, ok := factories.m[strings.ToLower(cfg.Type)]
	factories.RUnlock()
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: ListAdapters()}
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return e.factory(logger.With(slog.String("adapter", e.name))), nil
}

// ListAdapters returns the canonical adapter names, sorted. Aliases are
// not listed.
func ListAdapters() []string {
	factories.RLock()
	defer factories.RUnlock()
	var names []string
	for key, e := range factories.m {
		if key == e.name {
			names = append(names, key)
		}
	}
	sort.Strings(names)
	return names
}

// IsRegistered reports whether name or an alias is registered.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// UnknownAdapterError is returned for an adapter type nothing registered.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter type %q (available: %s); check the dataset's adapter field or targets.<name>.type in anyset.yaml",
		e.Type, strings.Join(e.Available, ", "))
}
