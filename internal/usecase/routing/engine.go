// Package routing decides which channels and provider integrations a
// notification is delivered through.
//
// The engine evaluates a notification's channel graph against one request:
// the top-level conditional, the recipient's channel preferences, each
// channel's conditional, and each provider's configuration, conditional and
// capability. Every examined (channel, provider) pair is recorded as a
// RoutingCandidate so the decision can be explained.
package routing

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"notification-prep/internal/domain/entity"
	"notification-prep/internal/observability/logging"
	"notification-prep/internal/observability/metrics"
	"notification-prep/internal/observability/tracing"
	"notification-prep/internal/usecase/filter"
)

// Mode selects what Route produces.
type Mode int

const (
	// ModeSummary reports candidates and preferences only.
	ModeSummary Mode = iota
	// ModeDeliver additionally reports one Delivery per selected channel.
	ModeDeliver
)

// String returns the metrics label of the mode.
func (m Mode) String() string {
	if m == ModeDeliver {
		return metrics.ModeDeliver
	}
	return metrics.ModeSummary
}

// Reasons reported in Result.Reason when nothing was selected.
const (
	ResultFiltered          = "FILTERED"
	ResultNoChannels        = "NO_CHANNELS"
	ResultNoChannelSelected = "NO_CHANNEL_SELECTED"
)

// Input is the read-only snapshot a routing decision is made over.
type Input struct {
	Notification   *entity.Notification
	Brand          *entity.Brand
	Profile        entity.Document
	Preferences    entity.Document
	Configurations map[string]*entity.Configuration
	Vars           entity.VariableContext
}

// Delivery is one channel selected for delivery.
type Delivery struct {
	// Notification is narrowed to the selected channel only.
	Notification    *entity.Notification
	Channel         entity.ChannelConfig
	Always          bool
	Provider        string
	ConfigurationID string
}

// Result is the outcome of Route.
type Result struct {
	// Filtered is set when the top-level conditional excluded the notification.
	Filtered bool
	// Selected is set when at least one channel was selected.
	Selected bool
	// Reason explains an unselected result; empty when Selected.
	Reason      string
	Candidates  []entity.RoutingCandidate
	Preferences entity.Document
	// Deliveries is only populated in ModeDeliver: one per selected always
	// channel followed by at most one for bestOf.
	Deliveries []Delivery
}

// Engine routes notifications. It holds no per-request state and is safe for
// concurrent use.
type Engine struct {
	capabilities Capabilities
}

// NewEngine creates an Engine that checks providers against capabilities.
func NewEngine(capabilities Capabilities) *Engine {
	return &Engine{capabilities: capabilities}
}

// Route evaluates in and reports the routing decision. Selecting nothing is a
// normal outcome, not an error.
func (e *Engine) Route(ctx context.Context, in Input, mode Mode) (*Result, error) {
	if in.Notification == nil {
		return nil, ErrMissingNotification
	}

	ctx, span := tracing.StartSpan(ctx, "routing.Route",
		attribute.String("notification.id", in.Notification.ID),
		attribute.String("routing.mode", mode.String()),
	)
	defer span.End()

	n := in.Notification
	res := &Result{Preferences: in.Preferences, Candidates: []entity.RoutingCandidate{}}

	if filter.ShouldFilter(n.Conditional, in.Vars) {
		res.Filtered = true
		res.Reason = ResultFiltered
		span.SetAttributes(attribute.Bool("routing.filtered", true))
		return res, nil
	}

	disabled := disabledChannels(in.Preferences, n.ID)

	for _, ch := range n.Channels.Always {
		sel := e.evaluateChannel(ch, true, disabled, in, res)
		if sel != nil && mode == ModeDeliver {
			res.Deliveries = append(res.Deliveries, *sel)
		}
		if sel != nil {
			res.Selected = true
		}
	}

	for _, ch := range n.Channels.BestOf {
		sel := e.evaluateChannel(ch, false, disabled, in, res)
		if sel == nil {
			continue
		}
		res.Selected = true
		if mode == ModeDeliver {
			res.Deliveries = append(res.Deliveries, *sel)
		}
		break
	}

	for _, c := range res.Candidates {
		metrics.RecordRoutingCandidate(string(c.Reason))
	}

	if !res.Selected {
		res.Reason = ResultNoChannelSelected
		if len(n.Channels.Always) == 0 && len(n.Channels.BestOf) == 0 {
			res.Reason = ResultNoChannels
		}
	}

	span.SetAttributes(
		attribute.Bool("routing.selected", res.Selected),
		attribute.Int("routing.candidates", len(res.Candidates)),
	)
	logging.FromContext(ctx).Debug("routing evaluated",
		slog.String("notification_id", n.ID),
		slog.Bool("selected", res.Selected),
		slog.Int("candidates", len(res.Candidates)))

	return res, nil
}

// evaluateChannel records the candidates of one channel and returns the
// delivery when a provider passes.
func (e *Engine) evaluateChannel(ch entity.ChannelConfig, always bool, disabled func(string) bool, in Input, res *Result) *Delivery {
	base := entity.RoutingCandidate{Channel: ch.Channel, ChannelID: ch.ID, Always: always}

	if ch.Disabled || disabled(ch.Channel) {
		base.Reason = entity.ReasonChannelDisabled
		res.Candidates = append(res.Candidates, base)
		return nil
	}
	if filter.ShouldFilter(ch.Conditional, in.Vars) {
		base.Reason = entity.ReasonFilteredOutAtChannel
		res.Candidates = append(res.Candidates, base)
		return nil
	}

	for _, ref := range ch.Providers {
		c := base
		c.ConfigurationID = ref.ConfigurationID

		cfg, reason := e.checkProvider(ref, in)
		if cfg != nil {
			c.Provider = cfg.Provider
		}
		c.Reason = reason
		c.Selected = reason == entity.ReasonNone
		res.Candidates = append(res.Candidates, c)

		if c.Selected {
			return &Delivery{
				Notification:    in.Notification.WithChannel(ch, always),
				Channel:         ch,
				Always:          always,
				Provider:        cfg.Provider,
				ConfigurationID: cfg.ID,
			}
		}
	}
	return nil
}

// checkProvider runs the provider checks in order and returns the first
// failing reason, or ReasonNone.
func (e *Engine) checkProvider(ref entity.ProviderRef, in Input) (*entity.Configuration, entity.RejectionReason) {
	if ref.ConfigurationID == "" {
		return nil, entity.ReasonMissingConfigurationID
	}
	cfg, ok := in.Configurations[ref.ConfigurationID]
	if !ok || cfg == nil {
		return nil, entity.ReasonMissingConfiguration
	}
	if filter.ShouldFilter(ref.Conditional, in.Vars) {
		return cfg, entity.ReasonFilteredAtProvider
	}
	capability, ok := e.capabilities.Lookup(cfg.Provider)
	if !ok {
		return cfg, entity.ReasonMissingProviderSupport
	}
	if !capability.Handles(cfg, in.Profile, in.Vars.Data) {
		return cfg, entity.ReasonIncompleteProfileData
	}
	return cfg, entity.ReasonNone
}
