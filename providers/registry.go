package providers

import (
	"fmt"
	"sort"
)

/* Registry maps the {provider} path segment to its adapter and static
 * settings. Built once at startup; read-only afterwards, so lookups need
 * no locking. Static dispatch through the map avoids any reflection.
 */
type Registry struct {
	adapters map[string]Adapter
	settings map[string]Settings
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		settings: make(map[string]Settings),
	}
}

// Register adds an adapter with its settings. Registering the same
// provider twice is a wiring bug and returns an error.
func (r *Registry) Register(a Adapter, s Settings) error {
	name := a.Name()
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("validating settings for %q: %w", name, err)
	}
	r.adapters[name] = a
	r.settings[name] = s
	return nil
}

// Get returns the adapter and settings for a provider identifier.
// Unknown providers yield ErrUnsupportedProvider before any adapter work.
func (r *Registry) Get(name string) (Adapter, Settings, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, Settings{}, fmt.Errorf("%w: %s", ErrUnsupportedProvider, name)
	}
	return a, r.settings[name], nil
}

// Names returns the registered provider identifiers, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Defaults returns the canonical adapter set for all supported platforms
func Defaults() []Adapter {
	return []Adapter{
		NewCareem(),
		NewTalabat(),
		NewDeliveroo(),
		NewUberEats(),
	}
}
