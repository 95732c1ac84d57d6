package provider

import (
	"sort"
	"sync"

	"github.com/BaSui01/intelflow/types"
)

// Registry is a thread-safe registry of provider clients. It supports
// registering, retrieving, and listing clients, plus capability-checked
// lookups that return typed errors the fallback machinery can absorb.
type Registry struct {
	clients map[string]Client
	mu      sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// Register adds a client under its own name. An existing client with the
// same name is replaced.
func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.Name()] = c
}

// Get retrieves a client by name.
func (r *Registry) Get(name string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[name]
	return c, ok
}

// List returns the sorted names of all registered clients.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Searcher resolves a registered client into its search capability.
func (r *Registry) Searcher(name string) (Searcher, error) {
	c, ok := r.Get(name)
	if !ok {
		return nil, notRegistered(name)
	}
	s, ok := c.(Searcher)
	if !ok {
		return nil, noCapability(name, CapabilitySearch)
	}
	return s, nil
}

// Extractor resolves a registered client into its extract capability.
func (r *Registry) Extractor(name string) (Extractor, error) {
	c, ok := r.Get(name)
	if !ok {
		return nil, notRegistered(name)
	}
	e, ok := c.(Extractor)
	if !ok {
		return nil, noCapability(name, CapabilityExtract)
	}
	return e, nil
}

// Directory resolves a registered client into its directory capability.
func (r *Registry) Directory(name string) (Directory, error) {
	c, ok := r.Get(name)
	if !ok {
		return nil, notRegistered(name)
	}
	d, ok := c.(Directory)
	if !ok {
		return nil, noCapability(name, CapabilityDirectory)
	}
	return d, nil
}

// Synthesizer resolves a registered client into its synthesis capability.
func (r *Registry) Synthesizer(name string) (Synthesizer, error) {
	c, ok := r.Get(name)
	if !ok {
		return nil, notRegistered(name)
	}
	s, ok := c.(Synthesizer)
	if !ok {
		return nil, noCapability(name, CapabilitySynthesize)
	}
	return s, nil
}

func notRegistered(name string) error {
	return types.NewError(types.ErrProviderUnavailable, "provider not registered: "+name).
		WithProvider(name)
}

func noCapability(name string, cap Capability) error {
	return types.NewError(types.ErrProviderUnavailable, "provider "+name+" lacks capability "+string(cap)).
		WithProvider(name)
}
