package prepare_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"notification-prep/internal/domain/entity"
	"notification-prep/internal/infra/adapter/persistence/memory"
	"notification-prep/internal/infra/provider"
	"notification-prep/internal/resilience/retry"
	"notification-prep/internal/usecase/envelope"
	"notification-prep/internal/usecase/prepare"
	"notification-prep/internal/usecase/resolve"
	"notification-prep/internal/usecase/routing"
)

/*──────────────────────── fixture ────────────────────────*/

type fixture struct {
	events        *memory.EventMapStore
	notifications *memory.NotificationStore
	brands        *memory.BrandStore
	configs       *configStore
	profiles      *memory.ProfileStore
	prefs         *memory.PreferenceStore
	templates     *memory.PreferenceTemplateStore
	blobs         *memory.BlobStore
	publisher     *publisherStub
	requeuer      *requeuerStub
	svc           *prepare.Service
}

func newFixture() *fixture {
	f := &fixture{
		events:        memory.NewEventMapStore(),
		notifications: memory.NewNotificationStore(),
		brands:        memory.NewBrandStore(),
		configs:       &configStore{ConfigurationStore: memory.NewConfigurationStore()},
		profiles:      memory.NewProfileStore(),
		prefs:         memory.NewPreferenceStore(),
		templates:     memory.NewPreferenceTemplateStore(),
		blobs:         memory.NewBlobStore(),
		publisher:     &publisherStub{},
		requeuer:      &requeuerStub{},
	}
	fast := retry.Config{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	f.svc = &prepare.Service{
		Events:              resolve.NewEventResolver(f.events),
		Notifications:       resolve.NewNotificationResolver(f.notifications),
		Brands:              resolve.NewBrandResolver(f.brands),
		Configurations:      f.configs,
		Profiles:            f.profiles,
		Preferences:         f.prefs,
		PreferenceTemplates: f.templates,
		Engine:              routing.NewEngine(provider.DefaultRegistry()),
		Persister:           envelope.NewPersister(f.blobs, f.publisher).WithRetry(fast, fast),
		Blobs:               f.blobs,
		Requeuer:            f.requeuer,
		MaxAttempts:         3,
	}
	return f
}

const (
	tenant  = "t1"
	notifID = "6f1c2c1e-4d8e-4b36-9c55-8a3f4b0c2d11"
)

// smsNotification is a published notification that always sends SMS through
// the twilio configuration.
func smsNotification() *entity.Notification {
	return &entity.Notification{
		ID:       notifID,
		TenantID: tenant,
		Title:    "Welcome",
		State:    entity.StatePublished,
		Channels: entity.Channels{
			Always: []entity.ChannelConfig{{
				ID:        "ch-sms",
				Channel:   "sms",
				Providers: []entity.ProviderRef{{ConfigurationID: "cfg-twilio"}},
			}},
			BestOf: []entity.ChannelConfig{},
		},
	}
}

func (f *fixture) seedSMS() {
	f.events.Put(&entity.EventMap{TenantID: tenant, EventID: "welcome", NotificationIDs: []string{notifID}})
	f.notifications.Put(smsNotification())
	f.configs.Put(&entity.Configuration{ID: "cfg-twilio", TenantID: tenant, Provider: "twilio"})
}

func request(eventID string) prepare.Request {
	return prepare.Request{
		MessageID: "m1",
		TenantID:  tenant,
		Scope:     entity.DefaultScope,
		Payload: entity.MessagePayload{
			EventID:      eventID,
			RecipientID:  "r1",
			EventProfile: entity.Document{"phone_number": "+15550100"},
			EventData:    entity.Document{"company": "Acme"},
		},
	}
}

func inbound(req prepare.Request) []byte {
	payload, _ := json.Marshal(req.Payload)
	msg := entity.InboundMessage{
		MessageID:       req.MessageID,
		TenantID:        req.TenantID,
		MessageLocation: entity.MessageLocation{Type: entity.LocationInline, Path: payload},
		Scope:           req.Scope.String(),
	}
	body, _ := json.Marshal(msg)
	return body
}

/*──────────────────────── stubs ────────────────────────*/

type configStore struct {
	*memory.ConfigurationStore
	err error
}

func (c *configStore) ListByIDs(ctx context.Context, tenantID string, ids []string) ([]*entity.Configuration, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.ConfigurationStore.ListByIDs(ctx, tenantID, ids)
}

type publisherStub struct {
	mu   sync.Mutex
	msgs []entity.RouteMessage
}

func (p *publisherStub) Publish(_ context.Context, msg entity.RouteMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

type requeued struct {
	delivery prepare.Delivery
	attempt  int
}

type requeuerStub struct {
	calls []requeued
	err   error
}

func (r *requeuerStub) Requeue(_ context.Context, d prepare.Delivery, attempt int) error {
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, requeued{delivery: d, attempt: attempt})
	return nil
}

type flagStub struct {
	variation entity.CacheVariation
	err       error
}

func (f flagStub) CacheVariation(context.Context, string) (entity.CacheVariation, error) {
	return f.variation, f.err
}

// cacheStub is a map-backed prepare.Cache that ignores TTLs.
type cacheStub struct {
	mu      sync.Mutex
	entries map[string][]byte
	hits    int
}

func (c *cacheStub) GetOrLoad(ctx context.Context, key string, _ time.Duration, load func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	c.mu.Lock()
	if v, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		return v, true, nil
	}
	c.mu.Unlock()

	v, err := load(ctx)
	if err != nil {
		return nil, false, err
	}
	if v != nil {
		c.mu.Lock()
		if c.entries == nil {
			c.entries = map[string][]byte{}
		}
		c.entries[key] = v
		c.mu.Unlock()
	}
	return v, false, nil
}

var errStore = errors.New("store timeout")
