package entity

import "time"

// Brand is a tenant's branding: colors, logo, email snippets and so on.
// Settings and Snippets are opaque to the preparation pipeline beyond merging.
type Brand struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenantId"`
	Name           string     `json:"name,omitempty"`
	Version        string     `json:"version,omitempty"`
	IsDefaultBrand bool       `json:"isDefaultBrand,omitempty"`
	Settings       Document   `json:"settings,omitempty"`
	Snippets       Document   `json:"snippets,omitempty"`
	PublishedAt    *time.Time `json:"publishedAt,omitempty"`
}

// Configuration is a tenant's configured provider integration (API keys,
// sender settings). Provider is the registry key, e.g. "sendgrid" or "twilio".
type Configuration struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	Provider string   `json:"provider"`
	Title    string   `json:"title,omitempty"`
	Settings Document `json:"settings,omitempty"`
}

// PreferenceStatus is a recipient's opt-in state for a notification or channel.
type PreferenceStatus string

const (
	PreferenceOptedIn  PreferenceStatus = "OPTED_IN"
	PreferenceOptedOut PreferenceStatus = "OPTED_OUT"
	PreferenceRequired PreferenceStatus = "REQUIRED"
)

// PreferenceTemplate is a reusable opt-in/opt-out policy. When a notification
// links one, it supersedes ad-hoc event preferences.
type PreferenceTemplate struct {
	ID            string           `json:"id"`
	TenantID      string           `json:"tenantId"`
	Name          string           `json:"name,omitempty"`
	DefaultStatus PreferenceStatus `json:"defaultStatus"`
}
