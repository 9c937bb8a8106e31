// Package prepare turns an inbound send request into a routing decision and,
// in deliver mode, persisted message envelopes.
package prepare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"notification-prep/internal/domain/entity"
	"notification-prep/internal/observability/logging"
	"notification-prep/internal/observability/metrics"
	"notification-prep/internal/observability/tracing"
	"notification-prep/internal/repository"
	"notification-prep/internal/usecase/envelope"
	"notification-prep/internal/usecase/merge"
	"notification-prep/internal/usecase/resolve"
	"notification-prep/internal/usecase/routing"
)

// Service runs the preparation pipeline. Cache and Flags are optional.
type Service struct {
	Events              *resolve.EventResolver
	Notifications       *resolve.NotificationResolver
	Brands              *resolve.BrandResolver
	Configurations      repository.ConfigurationRepository
	Profiles            repository.ProfileRepository
	Preferences         repository.PreferenceRepository
	PreferenceTemplates repository.PreferenceTemplateRepository
	Engine              *routing.Engine
	Persister           *envelope.Persister
	Cache               Cache
	Flags               FlagSource

	// Queue handling.
	Blobs       repository.BlobRepository
	Requeuer    Requeuer
	MaxAttempts int

	now func() time.Time
}

// Request is one recipient of one event.
type Request struct {
	MessageID string
	TenantID  string
	Scope     entity.Scope
	Payload   entity.MessagePayload
}

// Prepare resolves, routes and, in deliver mode, persists one request.
//
// Expected conditions (unmapped event, missing template, filtered, nothing
// selected) are reported through Outcome.Status with a nil error. A
// *PreparationError is returned for terminal domain failures; any other error
// is transient.
func (s *Service) Prepare(ctx context.Context, req Request, mode routing.Mode) (*Outcome, error) {
	start := s.clock()
	ctx, span := tracing.StartSpan(ctx, "prepare.Prepare",
		attribute.String("tenant.id", req.TenantID),
		attribute.String("event.id", req.Payload.EventID),
		attribute.String("prepare.scope", req.Scope.String()),
		attribute.String("routing.mode", mode.String()),
	)
	defer span.End()

	out, err := s.prepare(ctx, req, mode)

	status := StatusTransientError
	var perr *PreparationError
	switch {
	case err == nil:
		status = out.Status
	case errors.As(err, &perr):
		status = StatusPreparationError
	default:
		tracing.RecordError(span, err)
	}
	span.SetAttributes(attribute.String("prepare.outcome", status))
	metrics.RecordPreparation(status, mode.String(), s.clock().Sub(start))

	return out, err
}

func (s *Service) prepare(ctx context.Context, req Request, mode routing.Mode) (*Outcome, error) {
	logger := logging.FromContext(ctx)
	p := req.Payload
	tenantKey := req.Scope.TenantKey(req.TenantID)
	rc := requestCache{cache: s.Cache, policy: s.cachePolicy(ctx, req.TenantID)}

	ev, err := s.Events.ResolveEvent(ctx, tenantKey, p.EventID)
	if err != nil {
		return nil, fmt.Errorf("Prepare: %w", err)
	}
	if ev.Unmapped() {
		if !ev.MapExists {
			created := s.Events.CreateStub(ctx, tenantKey, p.EventID)
			metrics.RecordEventMapStub(created)
		}
		logger.InfoContext(ctx, "event is not mapped to a notification",
			slog.String("event", "unmapped"),
			slog.String("event_id", p.EventID))
		return &Outcome{Status: StatusUnmapped}, nil
	}

	n, err := s.notification(ctx, rc, tenantKey, ev.NotificationID, req.Scope.State)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return s.missingNotification(ctx, tenantKey, ev.NotificationID, req.Scope.State)
	}

	out := &Outcome{NotificationID: n.ID}
	if mode == routing.ModeDeliver && n.ProviderCount() == 0 {
		return out, &PreparationError{Code: CodeNoProviders, TenantID: req.TenantID, NotificationID: n.ID}
	}

	configs, err := s.configurations(ctx, rc, tenantKey, n, req.Scope.State)
	if err != nil {
		return nil, err
	}
	if mode == routing.ModeDeliver && len(configs) == 0 && len(n.ConfigurationIDs()) > 0 {
		return out, &PreparationError{Code: CodeMissingConfigurations, TenantID: req.TenantID, NotificationID: n.ID}
	}

	brand, err := s.brand(ctx, rc, tenantKey, n, p, req.Scope.State)
	if err != nil {
		return nil, err
	}

	profile, err := s.profile(ctx, tenantKey, p)
	if err != nil {
		return nil, err
	}
	prefs, err := s.preferences(ctx, tenantKey, n, p)
	if err != nil {
		return nil, err
	}

	vars := entity.VariableContext{
		Brand:     brandDocument(brand),
		Data:      p.EventData,
		Profile:   profile,
		Event:     p.EventID,
		Recipient: p.RecipientID,
	}
	res, err := s.Engine.Route(ctx, routing.Input{
		Notification:   n,
		Brand:          brand,
		Profile:        profile,
		Preferences:    prefs,
		Configurations: configs,
		Vars:           vars,
	}, mode)
	if err != nil {
		return nil, fmt.Errorf("Prepare: %w", err)
	}
	out.Routing = res

	switch {
	case res.Filtered:
		out.Status = StatusFiltered
		logger.InfoContext(ctx, "notification filtered",
			slog.String("event", "filtered"),
			slog.String("notification_id", n.ID))
		return out, nil
	case !res.Selected:
		out.Status = StatusNoChannelSelected
		logger.InfoContext(ctx, "no channel selected",
			slog.String("event", "no_channel_selected"),
			slog.String("notification_id", n.ID),
			slog.String("reason", res.Reason))
		return out, nil
	}

	out.Status = StatusRouted
	if mode != routing.ModeDeliver {
		return out, nil
	}

	envs := s.envelopes(req, n, brand, configs, profile, prefs, res.Deliveries)
	keys, err := s.Persister.PersistAll(ctx, envs)
	out.EnvelopeKeys = keys
	if err != nil {
		return out, fmt.Errorf("Prepare: %w", err)
	}
	logger.InfoContext(ctx, "message prepared",
		slog.String("event", "routed"),
		slog.String("notification_id", n.ID),
		slog.Int("envelopes", len(envs)))
	return out, nil
}

// missingNotification tells an unpublished template apart from one that does
// not exist at all.
func (s *Service) missingNotification(ctx context.Context, tenantKey, notificationID string, state entity.TemplateState) (*Outcome, error) {
	out := &Outcome{Status: StatusNotFound, NotificationID: notificationID}
	if state == entity.StatePublished {
		draft, err := s.Notifications.HasDraft(ctx, tenantKey, notificationID)
		if err != nil {
			return nil, fmt.Errorf("Prepare: %w", err)
		}
		if draft {
			out.Status = StatusUnpublished
		}
	}
	logging.FromContext(ctx).InfoContext(ctx, "notification not available",
		slog.String("event", strings.ToLower(out.Status)),
		slog.String("notification_id", notificationID))
	return out, nil
}

// notification caches the stored published version and latest draft under
// their own keys and picks the template for state after the cache, so every
// state reads the same raw entries.
func (s *Service) notification(ctx context.Context, rc requestCache, tenantKey, id string, state entity.TemplateState) (*entity.Notification, error) {
	var published, draft *entity.Notification
	var err error
	if state != entity.StateDraft {
		published, err = cached(ctx, rc, KindNotification, CacheKey(tenantKey, id, KindNotification), func(ctx context.Context) (*entity.Notification, error) {
			return s.Notifications.Published(ctx, tenantKey, id)
		})
		if err != nil {
			return nil, fmt.Errorf("Prepare: notification: %w", err)
		}
	}
	if state != entity.StatePublished {
		draft, err = cached(ctx, rc, KindDrafts, CacheKey(tenantKey, id, KindDrafts), func(ctx context.Context) (*entity.Notification, error) {
			return s.Notifications.LatestDraft(ctx, tenantKey, id)
		})
		if err != nil {
			return nil, fmt.Errorf("Prepare: notification: %w", err)
		}
	}
	return resolve.ForState(state, published, draft), nil
}

// configurations loads the provider configurations n references. Drafts and
// submitted overlays reference their own sets, so they are cached apart from
// the published one.
func (s *Service) configurations(ctx context.Context, rc requestCache, tenantKey string, n *entity.Notification, state entity.TemplateState) (map[string]*entity.Configuration, error) {
	ids := n.ConfigurationIDs()
	if len(ids) == 0 {
		return map[string]*entity.Configuration{}, nil
	}
	key := CacheKey(tenantKey, n.ID, KindConfigurations)
	if state != entity.StatePublished {
		key += "/" + string(state)
	}
	configs, err := cached(ctx, rc, KindConfigurations, key, func(ctx context.Context) (map[string]*entity.Configuration, error) {
		list, err := s.Configurations.ListByIDs(ctx, tenantKey, ids)
		if err != nil {
			return nil, err
		}
		m := make(map[string]*entity.Configuration, len(list))
		for _, c := range list {
			m[c.ID] = c
		}
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("Prepare: configurations: %w", err)
	}
	if configs == nil {
		configs = map[string]*entity.Configuration{}
	}
	return configs, nil
}

// brand resolves the brand. Only the template-driven brand is cached; a brand
// supplied with the request or a draft brand always goes to the resolver.
func (s *Service) brand(ctx context.Context, rc requestCache, tenantKey string, n *entity.Notification, p entity.MessagePayload, state entity.TemplateState) (*entity.Brand, error) {
	req := resolve.BrandRequest{
		TenantID:      tenantKey,
		Config:        n.BrandConfig,
		RequestBrand:  p.Brand,
		OverrideBrand: p.Override.Object("brand"),
		State:         state,
	}
	load := func(ctx context.Context) (*entity.Brand, error) {
		return s.Brands.ResolveBrand(ctx, req)
	}

	var b *entity.Brand
	var err error
	if len(p.Brand) == 0 && state != entity.StateDraft {
		b, err = cached(ctx, rc, KindBrand, CacheKey(tenantKey, n.ID, KindBrand), load)
	} else {
		b, err = load(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("Prepare: brand: %w", err)
	}
	return b, nil
}

func (s *Service) profile(ctx context.Context, tenantKey string, p entity.MessagePayload) (entity.Document, error) {
	stored, err := s.Profiles.Get(ctx, tenantKey, p.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("Prepare: profile: %w", err)
	}
	return merge.MergeProfile(stored, p.EventProfile), nil
}

// preferences returns the template-driven preferences when the notification is
// linked to a preference template, and the merged ad-hoc preferences otherwise.
func (s *Service) preferences(ctx context.Context, tenantKey string, n *entity.Notification, p entity.MessagePayload) (entity.Document, error) {
	if n.PreferenceTemplateID != "" {
		tpl, err := s.PreferenceTemplates.Get(ctx, tenantKey, n.PreferenceTemplateID)
		if err != nil {
			return nil, fmt.Errorf("Prepare: preference template: %w", err)
		}
		if tpl != nil {
			value, err := s.Preferences.GetTemplateValue(ctx, tenantKey, p.RecipientID, tpl.ID)
			if err != nil {
				return nil, fmt.Errorf("Prepare: preference value: %w", err)
			}
			return merge.TemplatePreferences(n.ID, value, tpl), nil
		}
	}

	stored, err := s.Preferences.Get(ctx, tenantKey, p.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("Prepare: preferences: %w", err)
	}
	return merge.MergePreferences(stored, p.EventPreferences), nil
}

func (s *Service) envelopes(
	req Request,
	n *entity.Notification,
	brand *entity.Brand,
	configs map[string]*entity.Configuration,
	profile, prefs entity.Document,
	deliveries []routing.Delivery,
) []*entity.Envelope {
	p := req.Payload
	recipientProfile := merge.Merge(merge.SyntheticProfile(p.RecipientID), profile)

	envs := make([]*entity.Envelope, 0, len(deliveries))
	for _, d := range deliveries {
		cfgs := make(map[string]entity.Configuration, 1)
		if c, ok := configs[d.ConfigurationID]; ok {
			cfgs[c.ID] = *c
		}
		envs = append(envs, &entity.Envelope{
			MessageID:      req.MessageID,
			TenantID:       req.TenantID,
			EventID:        p.EventID,
			RecipientID:    p.RecipientID,
			Notification:   d.Notification,
			Brand:          brand,
			Configurations: cfgs,
			Profile:        recipientProfile,
			Preferences:    prefs,
			Data:           p.EventData,
			CategoryID:     n.CategoryID,
			Channel:        d.Channel.Channel,
			ChannelID:      d.Channel.ID,
			Provider:       d.Provider,
			Scope:          req.Scope.String(),
			DryRunKey:      p.DryRunKey,
			Override:       p.Override,
			PreparedAt:     s.clock().UTC(),
		})
	}
	return envs
}

// cachePolicy reads the tenant's cache variation once. Flag failures disable
// caching for the request.
func (s *Service) cachePolicy(ctx context.Context, tenantID string) entity.CachePolicy {
	if s.Flags == nil {
		return entity.CachePolicy{}
	}
	v, err := s.Flags.CacheVariation(ctx, tenantID)
	if err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "cache flag unavailable, caching disabled",
			slog.Any("error", err))
		return entity.CachePolicy{}
	}
	return v.Policy()
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// brandDocument exposes a brand to conditional filters.
func brandDocument(b *entity.Brand) entity.Document {
	if b == nil {
		return nil
	}
	return entity.Document{
		"id":       b.ID,
		"name":     b.Name,
		"settings": map[string]any(b.Settings),
		"snippets": map[string]any(b.Snippets),
	}
}
