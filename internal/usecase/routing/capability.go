package routing

import "notification-prep/internal/domain/entity"

// ProviderCapability decides whether a provider integration can deliver to a
// recipient, typically by checking that the profile carries the address the
// provider sends to.
type ProviderCapability interface {
	Handles(cfg *entity.Configuration, profile, data entity.Document) bool
}

// Capabilities looks up the capability registered for a provider key.
type Capabilities interface {
	Lookup(provider string) (ProviderCapability, bool)
}

// CapabilityFunc adapts a function to ProviderCapability.
type CapabilityFunc func(cfg *entity.Configuration, profile, data entity.Document) bool

// Handles calls f.
func (f CapabilityFunc) Handles(cfg *entity.Configuration, profile, data entity.Document) bool {
	return f(cfg, profile, data)
}
