package providers

// Capabilities describes what a provider supports, for the admin
// settings form.
type Capabilities struct {
	ID             string `json:"id"`
	Streaming      bool   `json:"streaming"`
	CustomURL      bool   `json:"custom_url"`
	RequiresAPIKey bool   `json:"requires_api_key"`
}

// CapabilityDescriber is implemented by providers that need a custom URL
// or can run without an API key.
type CapabilityDescriber interface {
	Capabilities() Capabilities
}

// Describe lists the capabilities of every registered provider.
func (r *Registry) Describe() []Capabilities {
	ids := r.List()
	out := make([]Capabilities, 0, len(ids))
	for _, id := range ids {
		p, err := r.Resolve(id)
		if err != nil {
			continue
		}
		out = append(out, CapabilitiesOf(p))
	}
	return out
}

// CapabilitiesOf reports p's capabilities. Providers that do not
// describe themselves are assumed to need an API key and no URL.
func CapabilitiesOf(p Provider) Capabilities {
	if d, ok := p.(CapabilityDescriber); ok {
		c := d.Capabilities()
		c.ID = p.Name()
		return c
	}
	return Capabilities{
		ID:             p.Name(),
		Streaming:      p.SupportsStreaming(),
		RequiresAPIKey: true,
	}
}

// Capabilities forwards to the wrapped provider so decorators keep the
// description of what they wrap.
func (b *breakerProvider) Capabilities() Capabilities { return CapabilitiesOf(b.Provider) }
func (m *metricsProvider) Capabilities() Capabilities { return CapabilitiesOf(m.Provider) }
func (r *retryProvider) Capabilities() Capabilities   { return CapabilitiesOf(r.Provider) }
