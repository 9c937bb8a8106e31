// Package memory provides in-process implementations of the repository
// interfaces. It backs local runs and tests.
package memory

import (
	"context"
	"strings"
	"sync"

	"notification-prep/internal/domain/entity"
	"notification-prep/internal/repository"
)

var (
	_ repository.EventMapRepository           = (*EventMapStore)(nil)
	_ repository.NotificationRepository       = (*NotificationStore)(nil)
	_ repository.BrandRepository              = (*BrandStore)(nil)
	_ repository.ConfigurationRepository      = (*ConfigurationStore)(nil)
	_ repository.ProfileRepository            = (*ProfileStore)(nil)
	_ repository.PreferenceRepository         = (*PreferenceStore)(nil)
	_ repository.PreferenceTemplateRepository = (*PreferenceTemplateStore)(nil)
	_ repository.BlobRepository               = (*BlobStore)(nil)
)

func key(parts ...string) string {
	return strings.Join(parts, "/")
}

/* ───────── event maps ───────── */

// EventMapStore holds event maps. Stubs counts created stubs.
type EventMapStore struct {
	mu    sync.RWMutex
	maps  map[string]*entity.EventMap
	Stubs int
}

// NewEventMapStore creates an empty event map store.
func NewEventMapStore() *EventMapStore {
	return &EventMapStore{maps: map[string]*entity.EventMap{}}
}

// Put stores an event map.
func (s *EventMapStore) Put(m *entity.EventMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.maps[key(m.TenantID, m.EventID)] = &cp
}

func (s *EventMapStore) Get(_ context.Context, tenantID, eventID string) (*entity.EventMap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.maps[key(tenantID, eventID)]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *EventMapStore) CreateStub(_ context.Context, tenantID, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(tenantID, eventID)
	if _, ok := s.maps[k]; ok {
		return false, nil
	}
	s.maps[k] = &entity.EventMap{TenantID: tenantID, EventID: eventID}
	s.Stubs++
	return true, nil
}

/* ───────── notifications ───────── */

// NotificationStore holds published and draft notifications.
type NotificationStore struct {
	mu        sync.RWMutex
	published map[string]*entity.Notification
	drafts    map[string]*entity.Notification
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{
		published: map[string]*entity.Notification{},
		drafts:    map[string]*entity.Notification{},
	}
}

// Put stores n as published or as the latest draft according to n.State.
func (s *NotificationStore) Put(n *entity.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	if n.State == entity.StateDraft {
		s.drafts[key(n.TenantID, n.ID)] = &cp
		return
	}
	s.published[key(n.TenantID, n.ID)] = &cp
}

func (s *NotificationStore) GetPublished(_ context.Context, tenantID, id string) (*entity.Notification, error) {
	return s.get(s.published, tenantID, id), nil
}

func (s *NotificationStore) GetLatestDraft(_ context.Context, tenantID, id string) (*entity.Notification, error) {
	return s.get(s.drafts, tenantID, id), nil
}

func (s *NotificationStore) get(m map[string]*entity.Notification, tenantID, id string) *entity.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := m[key(tenantID, id)]
	if !ok {
		return nil
	}
	cp := *n
	return &cp
}

/* ───────── brands ───────── */

// BrandStore holds brand versions and the tenant default brand.
type BrandStore struct {
	mu        sync.RWMutex
	published map[string]*entity.Brand
	latest    map[string]*entity.Brand
	defaults  map[string]string
}

func NewBrandStore() *BrandStore {
	return &BrandStore{
		published: map[string]*entity.Brand{},
		latest:    map[string]*entity.Brand{},
		defaults:  map[string]string{},
	}
}

// Put stores b as the latest version; a brand with PublishedAt set is also the
// published version. A default brand becomes the tenant default.
func (s *BrandStore) Put(b *entity.Brand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	k := key(b.TenantID, b.ID)
	s.latest[k] = &cp
	if b.PublishedAt != nil {
		s.published[k] = &cp
	}
	if b.IsDefaultBrand {
		s.defaults[b.TenantID] = b.ID
	}
}

func (s *BrandStore) GetPublished(_ context.Context, tenantID, id string) (*entity.Brand, error) {
	return s.get(s.published, tenantID, id), nil
}

func (s *BrandStore) GetLatest(_ context.Context, tenantID, id string) (*entity.Brand, error) {
	return s.get(s.latest, tenantID, id), nil
}

func (s *BrandStore) GetDefaultID(_ context.Context, tenantID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults[tenantID], nil
}

func (s *BrandStore) get(m map[string]*entity.Brand, tenantID, id string) *entity.Brand {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := m[key(tenantID, id)]
	if !ok {
		return nil
	}
	cp := *b
	return &cp
}

/* ───────── configurations ───────── */

// ConfigurationStore holds provider configurations.
type ConfigurationStore struct {
	mu      sync.RWMutex
	configs map[string]*entity.Configuration
	Lookups int
}

func NewConfigurationStore() *ConfigurationStore {
	return &ConfigurationStore{configs: map[string]*entity.Configuration{}}
}

func (s *ConfigurationStore) Put(c *entity.Configuration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.configs[key(c.TenantID, c.ID)] = &cp
}

func (s *ConfigurationStore) ListByIDs(_ context.Context, tenantID string, ids []string) ([]*entity.Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Lookups++
	out := make([]*entity.Configuration, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.configs[key(tenantID, id)]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

/* ───────── recipients ───────── */

// ProfileStore holds recipient profiles.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]entity.Document
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: map[string]entity.Document{}}
}

func (s *ProfileStore) Put(tenantID, recipientID string, profile entity.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[key(tenantID, recipientID)] = profile.Clone()
}

func (s *ProfileStore) Get(_ context.Context, tenantID, recipientID string) (entity.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles[key(tenantID, recipientID)].Clone(), nil
}

// PreferenceStore holds recipient preferences and preference template values.
type PreferenceStore struct {
	mu     sync.RWMutex
	prefs  map[string]entity.Document
	values map[string]*entity.PreferenceValue
}

func NewPreferenceStore() *PreferenceStore {
	return &PreferenceStore{
		prefs:  map[string]entity.Document{},
		values: map[string]*entity.PreferenceValue{},
	}
}

func (s *PreferenceStore) Put(tenantID, recipientID string, prefs entity.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[key(tenantID, recipientID)] = prefs.Clone()
}

// PutTemplateValue stores the recipient's value for a preference template.
func (s *PreferenceStore) PutTemplateValue(tenantID, recipientID, templateID string, v *entity.PreferenceValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *v
	s.values[key(tenantID, recipientID, templateID)] = &cp
}

func (s *PreferenceStore) Get(_ context.Context, tenantID, recipientID string) (entity.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs[key(tenantID, recipientID)].Clone(), nil
}

func (s *PreferenceStore) GetTemplateValue(_ context.Context, tenantID, recipientID, templateID string) (*entity.PreferenceValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key(tenantID, recipientID, templateID)]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

// PreferenceTemplateStore holds preference templates.
type PreferenceTemplateStore struct {
	mu        sync.RWMutex
	templates map[string]*entity.PreferenceTemplate
}

func NewPreferenceTemplateStore() *PreferenceTemplateStore {
	return &PreferenceTemplateStore{templates: map[string]*entity.PreferenceTemplate{}}
}

func (s *PreferenceTemplateStore) Put(t *entity.PreferenceTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.templates[key(t.TenantID, t.ID)] = &cp
}

func (s *PreferenceTemplateStore) Get(_ context.Context, tenantID, id string) (*entity.PreferenceTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[key(tenantID, id)]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

/* ───────── blobs ───────── */

// BlobStore keeps blobs in memory.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: map[string][]byte{}}
}

func (s *BlobStore) Put(_ context.Context, k string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[k] = append([]byte(nil), data...)
	return nil
}

func (s *BlobStore) Get(_ context.Context, k string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.blobs[k]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return append([]byte(nil), d...), nil
}

// Len returns the number of stored blobs.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
