package repository

import (
	"context"

	"notification-prep/internal/domain/entity"
)

// EventMapRepository stores the mapping from tenant event ids to notification ids.
type EventMapRepository interface {
	// Get returns the event map for (tenantID, eventID).
	// Returns (nil, nil) when no map exists.
	Get(ctx context.Context, tenantID, eventID string) (*entity.EventMap, error)
	// CreateStub records an empty map so tenants can discover the event and
	// configure it later. Creating a stub that already exists is a no-op and
	// reports created=false.
	CreateStub(ctx context.Context, tenantID, eventID string) (created bool, err error)
}

// NotificationRepository reads notification templates.
// Both accessors return (nil, nil) when the template does not exist.
type NotificationRepository interface {
	GetPublished(ctx context.Context, tenantID, notificationID string) (*entity.Notification, error)
	GetLatestDraft(ctx context.Context, tenantID, notificationID string) (*entity.Notification, error)
}

// BrandRepository reads tenant brands.
type BrandRepository interface {
	// GetPublished returns the published version of a brand, or (nil, nil).
	GetPublished(ctx context.Context, tenantID, brandID string) (*entity.Brand, error)
	// GetLatest returns the latest version of a brand, published or not.
	GetLatest(ctx context.Context, tenantID, brandID string) (*entity.Brand, error)
	// GetDefaultID returns the id of the tenant's default brand, or "".
	GetDefaultID(ctx context.Context, tenantID string) (string, error)
}

// ConfigurationRepository reads provider configurations.
type ConfigurationRepository interface {
	// ListByIDs returns the configurations that exist among ids. Missing ids are
	// simply absent from the result.
	ListByIDs(ctx context.Context, tenantID string, ids []string) ([]*entity.Configuration, error)
}
