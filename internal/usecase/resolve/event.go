// Package resolve turns the identifiers carried by a request into the
// notification template and brand it should be prepared with.
//
// Resolvers report "not found" as an absent value. Only store failures are
// returned as errors; deciding whether to retry is left to the caller.
package resolve

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"notification-prep/internal/observability/logging"
	"notification-prep/internal/repository"
)

// EventResolution is the outcome of resolving an event id.
type EventResolution struct {
	// NotificationID is empty when the event is unmapped.
	NotificationID string
	// MapExists reports whether an event map (possibly empty) is stored.
	MapExists bool
}

// Unmapped reports whether no notification could be resolved.
func (r EventResolution) Unmapped() bool {
	return r.NotificationID == ""
}

// EventResolver resolves event ids to notification ids.
type EventResolver struct {
	repo repository.EventMapRepository
}

// NewEventResolver creates an EventResolver backed by repo.
func NewEventResolver(repo repository.EventMapRepository) *EventResolver {
	return &EventResolver{repo: repo}
}

// ResolveEvent resolves eventID for tenantID.
//
// A non-empty stored map resolves to its first notification id. Without one,
// an eventID that is itself a notification id (a UUID) resolves to itself.
// Anything else is unmapped.
func (r *EventResolver) ResolveEvent(ctx context.Context, tenantID, eventID string) (EventResolution, error) {
	m, err := r.repo.Get(ctx, tenantID, eventID)
	if err != nil {
		return EventResolution{}, fmt.Errorf("ResolveEvent: %w", err)
	}

	res := EventResolution{MapExists: m != nil}
	if m != nil && len(m.NotificationIDs) > 0 {
		res.NotificationID = m.NotificationIDs[0]
		return res, nil
	}

	if IsNotificationID(eventID) {
		res.NotificationID = eventID
	}
	return res, nil
}

// CreateStub records an empty event map for an unmapped event so it shows up
// for configuration. Failures are logged and swallowed: the request that
// discovered the event must not fail because of it.
func (r *EventResolver) CreateStub(ctx context.Context, tenantID, eventID string) bool {
	created, err := r.repo.CreateStub(ctx, tenantID, eventID)
	if err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "failed to create event map stub",
			slog.String("tenant_id", tenantID),
			slog.String("event_id", eventID),
			slog.Any("error", err))
		return false
	}
	return created
}

// IsNotificationID reports whether id has the format of a notification id.
func IsNotificationID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
