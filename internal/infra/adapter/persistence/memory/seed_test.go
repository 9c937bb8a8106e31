package memory_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notification-prep/internal/domain/entity"
	"notification-prep/internal/infra/adapter/persistence/memory"
)

const seedYAML = `
eventMaps:
  - {tenantId: acme, eventId: welcome, notificationIds: [n1]}
notifications:
  - id: n1
    tenantId: acme
    title: Welcome
    state: published
    channels:
      bestOf:
        - id: ch1
          channel: email
          providers: [{configurationId: c1}]
      always: []
  - id: n1
    tenantId: acme
    title: Welcome v2
    state: draft
    channels: {bestOf: [], always: []}
brands:
  - id: b1
    tenantId: acme
    isDefaultBrand: true
    settings: {colors: {primary: "#ff0000"}}
    publishedAt: 2026-01-02T03:04:05Z
configurations:
  - {id: c1, tenantId: acme, provider: sendgrid}
preferenceTemplates:
  - {id: pt1, tenantId: acme, defaultStatus: OPTED_IN}
recipients:
  - tenantId: acme
    recipientId: u1
    profile: {email: u1@example.com}
    preferences: {notifications: {n1: {status: OPTED_OUT}}}
    templateValues:
      pt1: {status: OPTED_OUT}
`

func TestParseSeedAndApply(t *testing.T) {
	ctx := context.Background()
	seed, err := memory.ParseSeed([]byte(seedYAML))
	require.NoError(t, err)

	s := memory.NewStores()
	s.Apply(seed)

	m, err := s.EventMaps.Get(ctx, "acme", "welcome")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, []string{"n1"}, m.NotificationIDs)

	pub, err := s.Notifications.GetPublished(ctx, "acme", "n1")
	require.NoError(t, err)
	require.NotNil(t, pub)
	assert.Equal(t, "Welcome", pub.Title)
	require.Len(t, pub.Channels.BestOf, 1)
	assert.Equal(t, []string{"c1"}, pub.ConfigurationIDs())

	draft, err := s.Notifications.GetLatestDraft(ctx, "acme", "n1")
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Equal(t, "Welcome v2", draft.Title)

	defaultID, err := s.Brands.GetDefaultID(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "b1", defaultID)
	brand, err := s.Brands.GetPublished(ctx, "acme", "b1")
	require.NoError(t, err)
	require.NotNil(t, brand)
	assert.Equal(t, map[string]any{"primary": "#ff0000"}, brand.Settings["colors"])

	configs, err := s.Configurations.ListByIDs(ctx, "acme", []string{"c1"})
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "sendgrid", configs[0].Provider)

	tpl, err := s.PreferenceTemplates.Get(ctx, "acme", "pt1")
	require.NoError(t, err)
	require.NotNil(t, tpl)
	assert.Equal(t, entity.PreferenceOptedIn, tpl.DefaultStatus)

	profile, err := s.Profiles.Get(ctx, "acme", "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", profile["email"])

	v, err := s.Preferences.GetTemplateValue(ctx, "acme", "u1", "pt1")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, entity.PreferenceOptedOut, v.Status)
}

func TestParseSeed_Invalid(t *testing.T) {
	_, err := memory.ParseSeed([]byte("notifications: [unterminated"))
	assert.Error(t, err)

	_, err = memory.ParseSeed([]byte("notifications: {id: n1}"))
	assert.Error(t, err, "a mapping where a list is expected")
}

func TestLoadSeedFile(t *testing.T) {
	s := memory.NewStores()
	require.NoError(t, s.LoadSeedFile(""))

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))
	require.NoError(t, s.LoadSeedFile(path))

	m, err := s.EventMaps.Get(context.Background(), "acme", "welcome")
	require.NoError(t, err)
	assert.NotNil(t, m)

	assert.Error(t, s.LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml")))
}
