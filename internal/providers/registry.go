package providers

import (
	"sort"
	"sync"

	"github.com/agentx/aichat/internal/models"
)

// Registry manages all available providers
type Registry struct {
	providers map[string]Provider
	mu        sync.RWMutex
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry under its name
func (r *Registry) Register(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
}

// Resolve returns the provider registered as id. An empty or unknown
// identifier is a configuration error.
func (r *Registry) Resolve(id string) (Provider, error) {
	if id == "" {
		return nil, models.NewConfigurationError("no LLM provider configured")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[id]
	if !ok {
		return nil, models.NewConfigurationError("unknown LLM provider %q", id)
	}
	return provider, nil
}

// List returns all registered provider IDs, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Has checks if a provider is registered
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.providers[id]
	return exists
}
