package memory

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"notification-prep/internal/domain/entity"
)

// Stores bundles one store per repository.
type Stores struct {
	EventMaps           *EventMapStore
	Notifications       *NotificationStore
	Brands              *BrandStore
	Configurations      *ConfigurationStore
	Profiles            *ProfileStore
	Preferences         *PreferenceStore
	PreferenceTemplates *PreferenceTemplateStore
	Blobs               *BlobStore
}

// NewStores creates empty stores.
func NewStores() *Stores {
	return &Stores{
		EventMaps:           NewEventMapStore(),
		Notifications:       NewNotificationStore(),
		Brands:              NewBrandStore(),
		Configurations:      NewConfigurationStore(),
		Profiles:            NewProfileStore(),
		Preferences:         NewPreferenceStore(),
		PreferenceTemplates: NewPreferenceTemplateStore(),
		Blobs:               NewBlobStore(),
	}
}

// Seed is the content of a seed file. Field names follow the JSON names of
// the entities, so a seed can be written in YAML or JSON.
//
//	eventMaps:
//	  - {tenantId: acme, eventId: welcome, notificationIds: [n1]}
//	notifications:
//	  - id: n1
//	    tenantId: acme
//	    state: published
//	    channels: {bestOf: [{id: ch1, channel: email, providers: [{configurationId: c1}]}]}
//	configurations:
//	  - {id: c1, tenantId: acme, provider: sendgrid}
//	recipients:
//	  - {tenantId: acme, recipientId: u1, profile: {email: u1@example.com}}
type Seed struct {
	EventMaps           []entity.EventMap           `json:"eventMaps"`
	Notifications       []entity.Notification       `json:"notifications"`
	Brands              []entity.Brand              `json:"brands"`
	Configurations      []entity.Configuration      `json:"configurations"`
	PreferenceTemplates []entity.PreferenceTemplate `json:"preferenceTemplates"`
	Recipients          []SeedRecipient             `json:"recipients"`
}

// SeedRecipient is the stored profile and preferences of one recipient.
type SeedRecipient struct {
	TenantID       string                            `json:"tenantId"`
	RecipientID    string                            `json:"recipientId"`
	Profile        entity.Document                   `json:"profile,omitempty"`
	Preferences    entity.Document                   `json:"preferences,omitempty"`
	TemplateValues map[string]entity.PreferenceValue `json:"templateValues,omitempty"`
}

// ParseSeed decodes a YAML (or JSON) seed document.
func ParseSeed(data []byte) (*Seed, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("ParseSeed: %w", err)
	}
	// Re-encoding as JSON lets the entities' json tags drive decoding.
	js, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("ParseSeed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(js, &seed); err != nil {
		return nil, fmt.Errorf("ParseSeed: %w", err)
	}
	return &seed, nil
}

// Apply stores every record of seed.
func (s *Stores) Apply(seed *Seed) {
	for i := range seed.EventMaps {
		s.EventMaps.Put(&seed.EventMaps[i])
	}
	for i := range seed.Notifications {
		s.Notifications.Put(&seed.Notifications[i])
	}
	for i := range seed.Brands {
		s.Brands.Put(&seed.Brands[i])
	}
	for i := range seed.Configurations {
		s.Configurations.Put(&seed.Configurations[i])
	}
	for i := range seed.PreferenceTemplates {
		s.PreferenceTemplates.Put(&seed.PreferenceTemplates[i])
	}
	for _, r := range seed.Recipients {
		if r.Profile != nil {
			s.Profiles.Put(r.TenantID, r.RecipientID, r.Profile)
		}
		if r.Preferences != nil {
			s.Preferences.Put(r.TenantID, r.RecipientID, r.Preferences)
		}
		for templateID, v := range r.TemplateValues {
			s.Preferences.PutTemplateValue(r.TenantID, r.RecipientID, templateID, &v)
		}
	}
}

// LoadSeedFile parses path and applies it. An empty path is a no-op.
func (s *Stores) LoadSeedFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("LoadSeedFile: %w", err)
	}
	seed, err := ParseSeed(data)
	if err != nil {
		return err
	}
	s.Apply(seed)
	return nil
}
