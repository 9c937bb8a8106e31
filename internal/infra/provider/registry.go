// Package provider holds the capability checks of the provider integrations
// the delivery stage supports, keyed by the provider key stored on a
// configuration.
package provider

import (
	"sort"
	"sync"

	"notification-prep/internal/usecase/routing"
)

// Registry maps provider keys to capabilities. It is safe for concurrent use;
// registrations normally happen once at startup.
type Registry struct {
	mu   sync.RWMutex
	caps map[string]routing.ProviderCapability
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{caps: make(map[string]routing.ProviderCapability)}
}

// Register adds or replaces the capability for key.
func (r *Registry) Register(key string, capability routing.ProviderCapability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps[key] = capability
}

// Lookup implements routing.Capabilities.
func (r *Registry) Lookup(key string) (routing.ProviderCapability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[key]
	return c, ok
}

// Keys returns the registered provider keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.caps))
	for k := range r.caps {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultRegistry returns a registry with every built-in provider registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, key := range []string{"sendgrid", "mailgun", "postmark", "aws-ses", "smtp"} {
		r.Register(key, Email{})
	}
	for _, key := range []string{"twilio", "vonage", "sns"} {
		r.Register(key, SMS{})
	}
	r.Register("expo", Expo{})
	r.Register("firebase-fcm", FirebaseFCM{})
	r.Register("apn", APN{})
	r.Register("slack", Slack{})
	r.Register("msteams", MSTeams{})
	r.Register("webhook", Webhook{})
	return r
}
