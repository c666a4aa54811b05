package schema

import "sync/atomic"

// Holder publishes the current Registry of a dataset. Readers take a
// snapshot with Load and use it for the whole request; reloads replace the
// pointer and never mutate a published Registry.
type Holder struct {
	current atomic.Pointer[Registry]
}

// NewHolder returns a Holder publishing reg.
func NewHolder(reg *Registry) *Holder {
	h := &Holder{}
	h.current.Store(reg)
	return h
}

// Load returns the current snapshot.
func (h *Holder) Load() *Registry {
	return h.current.Load()
}

// Swap publishes reg and returns the previous snapshot.
func (h *Holder) Swap(reg *Registry) *Registry {
	return h.current.Swap(reg)
}
