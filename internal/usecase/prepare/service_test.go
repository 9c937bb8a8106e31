package prepare_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notification-prep/internal/domain/entity"
	"notification-prep/internal/usecase/prepare"
	"notification-prep/internal/usecase/routing"
)

func TestPrepare_AlwaysChannelPersistsOneEnvelope(t *testing.T) {
	f := newFixture()
	f.seedSMS()

	out, err := f.svc.Prepare(context.Background(), request("welcome"), routing.ModeDeliver)
	require.NoError(t, err)

	assert.Equal(t, prepare.StatusRouted, out.Status)
	assert.Equal(t, []string{"t1/prepare_m1.json"}, out.EnvelopeKeys)
	require.Len(t, f.publisher.msgs, 1)
	assert.Equal(t, entity.RouteMessageType, f.publisher.msgs[0].Type)

	raw, err := f.blobs.Get(context.Background(), "t1/prepare_m1.json")
	require.NoError(t, err)
	var env entity.Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "sms", env.Channel)
	assert.Equal(t, "twilio", env.Provider)
	assert.Equal(t, "r1", env.Profile.String("user_id"))
	assert.Equal(t, "+15550100", env.Profile.String("phone_number"))
	assert.Contains(t, env.Configurations, "cfg-twilio")
	assert.Equal(t, "published/production", env.Scope)
}

func TestPrepare_UnmappedEventCreatesOneStub(t *testing.T) {
	f := newFixture()

	for i := 0; i < 2; i++ {
		out, err := f.svc.Prepare(context.Background(), request("order-shipped"), routing.ModeDeliver)
		require.NoError(t, err)
		assert.Equal(t, prepare.StatusUnmapped, out.Status)
	}

	assert.Equal(t, 1, f.events.Stubs)
	assert.Zero(t, f.blobs.Len())
}

func TestPrepare_EventIDThatIsNotificationID(t *testing.T) {
	f := newFixture()
	f.notifications.Put(smsNotification())
	f.configs.Put(&entity.Configuration{ID: "cfg-twilio", TenantID: tenant, Provider: "twilio"})

	out, err := f.svc.Prepare(context.Background(), request(notifID), routing.ModeDeliver)
	require.NoError(t, err)
	assert.Equal(t, prepare.StatusRouted, out.Status)
	assert.Zero(t, f.events.Stubs)
}

func TestPrepare_TopLevelConditionalFilters(t *testing.T) {
	f := newFixture()
	f.seedSMS()
	n := smsNotification()
	n.Conditional = &entity.Conditional{Filters: []entity.Filter{{
		Operator: entity.OpEquals, Property: "company", Source: "data", Value: "Acme",
	}}}
	f.notifications.Put(n)

	out, err := f.svc.Prepare(context.Background(), request("welcome"), routing.ModeDeliver)
	require.NoError(t, err)

	assert.Equal(t, prepare.StatusFiltered, out.Status)
	require.NotNil(t, out.Routing)
	assert.Empty(t, out.Routing.Candidates)
	assert.Zero(t, f.blobs.Len())
	assert.Empty(t, f.publisher.msgs)
}

func TestPrepare_PreferenceTemplateDefaultStatus(t *testing.T) {
	f := newFixture()
	f.seedSMS()
	n := smsNotification()
	n.PreferenceTemplateID = "tpl-marketing"
	f.notifications.Put(n)
	f.templates.Put(&entity.PreferenceTemplate{ID: "tpl-marketing", TenantID: tenant, DefaultStatus: entity.PreferenceOptedOut})

	req := request("welcome")
	// ad-hoc preferences are ignored for template-linked notifications
	req.Payload.EventPreferences = entity.Document{"notifications": map[string]any{
		notifID: map[string]any{"status": "OPTED_IN"},
	}}

	out, err := f.svc.Prepare(context.Background(), req, routing.ModeSummary)
	require.NoError(t, err)

	pref := entity.NotificationPreference(out.Routing.Preferences, notifID)
	assert.Equal(t, string(entity.PreferenceOptedOut), pref.String("status"))
	assert.Equal(t, prepare.StatusNoChannelSelected, out.Status)
	require.Len(t, out.Routing.Candidates, 1)
	assert.Equal(t, entity.ReasonChannelDisabled, out.Routing.Candidates[0].Reason)
}

func TestPrepare_StoredTemplateValueWins(t *testing.T) {
	f := newFixture()
	f.seedSMS()
	n := smsNotification()
	n.PreferenceTemplateID = "tpl-marketing"
	f.notifications.Put(n)
	f.templates.Put(&entity.PreferenceTemplate{ID: "tpl-marketing", TenantID: tenant, DefaultStatus: entity.PreferenceOptedOut})
	f.prefs.PutTemplateValue(tenant, "r1", "tpl-marketing", &entity.PreferenceValue{Status: entity.PreferenceOptedIn})

	out, err := f.svc.Prepare(context.Background(), request("welcome"), routing.ModeSummary)
	require.NoError(t, err)
	assert.Equal(t, prepare.StatusRouted, out.Status)
	assert.Empty(t, out.EnvelopeKeys, "summary mode never persists")
}

func TestPrepare_MissingNotification(t *testing.T) {
	tests := []struct {
		name      string
		withDraft bool
		want      string
	}{
		{name: "draft only", withDraft: true, want: prepare.StatusUnpublished},
		{name: "nothing stored", withDraft: false, want: prepare.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.events.Put(&entity.EventMap{TenantID: tenant, EventID: "welcome", NotificationIDs: []string{notifID}})
			if tt.withDraft {
				d := smsNotification()
				d.State = entity.StateDraft
				f.notifications.Put(d)
			}

			out, err := f.svc.Prepare(context.Background(), request("welcome"), routing.ModeDeliver)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Status)
		})
	}
}

func TestPrepare_PreparationErrors(t *testing.T) {
	t.Run("no providers", func(t *testing.T) {
		f := newFixture()
		f.seedSMS()
		n := smsNotification()
		n.Channels.Always[0].Providers = nil
		f.notifications.Put(n)

		_, err := f.svc.Prepare(context.Background(), request("welcome"), routing.ModeDeliver)
		var perr *prepare.PreparationError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, prepare.CodeNoProviders, perr.Code)
	})

	t.Run("missing configurations", func(t *testing.T) {
		f := newFixture()
		f.events.Put(&entity.EventMap{TenantID: tenant, EventID: "welcome", NotificationIDs: []string{notifID}})
		f.notifications.Put(smsNotification())

		_, err := f.svc.Prepare(context.Background(), request("welcome"), routing.ModeDeliver)
		var perr *prepare.PreparationError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, prepare.CodeMissingConfigurations, perr.Code)
	})

	t.Run("summary mode reports candidates instead", func(t *testing.T) {
		f := newFixture()
		f.events.Put(&entity.EventMap{TenantID: tenant, EventID: "welcome", NotificationIDs: []string{notifID}})
		f.notifications.Put(smsNotification())

		out, err := f.svc.Prepare(context.Background(), request("welcome"), routing.ModeSummary)
		require.NoError(t, err)
		require.Len(t, out.Routing.Candidates, 1)
		assert.Equal(t, entity.ReasonMissingConfiguration, out.Routing.Candidates[0].Reason)
	})
}

func TestPrepare_TestEnvironmentUsesSeparatePartition(t *testing.T) {
	f := newFixture()
	f.seedSMS()

	req := request("welcome")
	req.Scope = entity.Scope{State: entity.StatePublished, Environment: entity.EnvironmentTest}

	out, err := f.svc.Prepare(context.Background(), req, routing.ModeDeliver)
	require.NoError(t, err)
	assert.Equal(t, prepare.StatusUnmapped, out.Status)
	assert.Equal(t, 1, f.events.Stubs)

	m, err := f.events.Get(context.Background(), "t1/test", "welcome")
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestPrepare_CachesNotificationAcrossRequests(t *testing.T) {
	f := newFixture()
	f.seedSMS()
	cache := &cacheStub{}
	f.svc.Cache = cache
	f.svc.Flags = flagStub{variation: entity.CacheVariation{Notification: 60, Configurations: 60}}

	_, err := f.svc.Prepare(context.Background(), request("welcome"), routing.ModeSummary)
	require.NoError(t, err)
	out, err := f.svc.Prepare(context.Background(), request("welcome"), routing.ModeSummary)
	require.NoError(t, err)

	assert.Equal(t, prepare.StatusRouted, out.Status)
	assert.Equal(t, 2, cache.hits)
	assert.Equal(t, 1, f.configs.Lookups)
	assert.Contains(t, cache.entries, "t1/"+notifID+"/notification")
	assert.Contains(t, cache.entries, "t1/"+notifID+"/configurations")
}

func TestPrepare_FlagFailureDisablesCaching(t *testing.T) {
	f := newFixture()
	f.seedSMS()
	cache := &cacheStub{}
	f.svc.Cache = cache
	f.svc.Flags = flagStub{err: errStore}

	for i := 0; i < 2; i++ {
		_, err := f.svc.Prepare(context.Background(), request("welcome"), routing.ModeSummary)
		require.NoError(t, err)
	}

	assert.Empty(t, cache.entries)
	assert.Equal(t, 2, f.configs.Lookups)
}

func TestPrepare_StoreFailureIsTransient(t *testing.T) {
	f := newFixture()
	f.seedSMS()
	f.configs.err = errStore

	_, err := f.svc.Prepare(context.Background(), request("welcome"), routing.ModeDeliver)
	require.ErrorIs(t, err, errStore)
	var perr *prepare.PreparationError
	assert.NotErrorAs(t, err, &perr)
}

func TestPrepare_EnvelopesWithoutChannelIDsGetDistinctPaths(t *testing.T) {
	f := newFixture()
	f.seedSMS()
	n := smsNotification()
	sms := entity.ChannelConfig{Channel: "sms", Providers: []entity.ProviderRef{{ConfigurationID: "cfg-twilio"}}}
	n.Channels = entity.Channels{
		Always: []entity.ChannelConfig{sms, sms},
		BestOf: []entity.ChannelConfig{sms},
	}
	f.notifications.Put(n)

	out, err := f.svc.Prepare(context.Background(), request("welcome"), routing.ModeDeliver)
	require.NoError(t, err)

	require.Len(t, out.EnvelopeKeys, 3)
	distinct := map[string]bool{}
	for _, k := range out.EnvelopeKeys {
		distinct[k] = true
	}
	assert.Len(t, distinct, 3)
	assert.Equal(t, 3, f.blobs.Len())

	pointers := map[string]bool{}
	for _, m := range f.publisher.msgs {
		path, err := m.MessageLocation.BlobPath()
		require.NoError(t, err)
		pointers[path] = true
	}
	assert.Len(t, pointers, 3)
}

func TestPrepare_DraftAndSubmittedScopesShareCacheWithoutMixing(t *testing.T) {
	f := newFixture()
	f.seedSMS()
	f.configs.Put(&entity.Configuration{ID: "cfg-sendgrid", TenantID: tenant, Provider: "sendgrid"})

	submitted := time.Now().Add(-time.Hour)
	canceled := submitted.Add(time.Minute)
	draft := smsNotification()
	draft.State = entity.StateDraft
	draft.Channels = entity.Channels{
		Always: []entity.ChannelConfig{{
			ID:        "ch-email",
			Channel:   "email",
			Providers: []entity.ProviderRef{{ConfigurationID: "cfg-sendgrid"}},
		}},
		BestOf: []entity.ChannelConfig{},
	}
	draft.CheckConfig = &entity.CheckConfig{Enabled: true, SubmittedAt: &submitted, CanceledAt: &canceled}
	f.notifications.Put(draft)

	cache := &cacheStub{}
	f.svc.Cache = cache
	f.svc.Flags = flagStub{variation: entity.CacheVariation{Drafts: 60, Notification: 60, Configurations: 60}}

	channelOf := func(out *prepare.Outcome) string {
		t.Helper()
		require.Len(t, out.EnvelopeKeys, 1)
		raw, err := f.blobs.Get(context.Background(), out.EnvelopeKeys[0])
		require.NoError(t, err)
		var env entity.Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env.Channel
	}

	req := request("welcome")
	req.Payload.EventProfile["email"] = "r1@example.com"

	req.MessageID = "m-draft"
	req.Scope = entity.Scope{State: entity.StateDraft, Environment: entity.EnvironmentProduction}
	out, err := f.svc.Prepare(context.Background(), req, routing.ModeDeliver)
	require.NoError(t, err)
	assert.Equal(t, "email", channelOf(out))

	req.MessageID = "m-submitted"
	req.Scope = entity.Scope{State: entity.StateSubmitted, Environment: entity.EnvironmentProduction}
	out, err = f.svc.Prepare(context.Background(), req, routing.ModeDeliver)
	require.NoError(t, err)
	assert.Equal(t, "sms", channelOf(out))
	assert.Positive(t, cache.hits)
	assert.Contains(t, cache.entries, "t1/"+notifID+"/drafts")
	assert.Contains(t, cache.entries, "t1/"+notifID+"/notification")
	assert.Contains(t, cache.entries, "t1/"+notifID+"/configurations/draft")
	assert.Contains(t, cache.entries, "t1/"+notifID+"/configurations/submitted")
}
