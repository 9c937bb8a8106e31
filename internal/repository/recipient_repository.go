package repository

import (
	"context"

	"notification-prep/internal/domain/entity"
)

// ProfileRepository reads stored recipient profiles.
type ProfileRepository interface {
	// Get returns the stored profile, or (nil, nil) when the recipient has none.
	Get(ctx context.Context, tenantID, recipientID string) (entity.Document, error)
}

// PreferenceRepository reads stored recipient preferences.
type PreferenceRepository interface {
	// Get returns the stored preferences document, or (nil, nil).
	Get(ctx context.Context, tenantID, recipientID string) (entity.Document, error)
	// GetTemplateValue returns the recipient's value for a preference template,
	// or (nil, nil) when none is stored.
	GetTemplateValue(ctx context.Context, tenantID, recipientID, templateID string) (*entity.PreferenceValue, error)
}

// PreferenceTemplateRepository reads preference templates.
type PreferenceTemplateRepository interface {
	// Get returns the template, or (nil, nil) when it does not exist.
	Get(ctx context.Context, tenantID, templateID string) (*entity.PreferenceTemplate, error)
}
