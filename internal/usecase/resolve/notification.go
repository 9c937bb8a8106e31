package resolve

import (
	"context"
	"fmt"

	"notification-prep/internal/domain/entity"
	"notification-prep/internal/repository"
)

// NotificationResolver resolves notification templates for a lifecycle state.
type NotificationResolver struct {
	repo repository.NotificationRepository
}

// NewNotificationResolver creates a NotificationResolver backed by repo.
func NewNotificationResolver(repo repository.NotificationRepository) *NotificationResolver {
	return &NotificationResolver{repo: repo}
}

// ResolveNotification returns the template to use for state, or nil when there
// is none. See ForState for how the stored versions are chosen.
func (r *NotificationResolver) ResolveNotification(ctx context.Context, tenantID, notificationID string, state entity.TemplateState) (*entity.Notification, error) {
	var published, draft *entity.Notification
	var err error
	if state != entity.StateDraft {
		if published, err = r.Published(ctx, tenantID, notificationID); err != nil {
			return nil, err
		}
	}
	if state != entity.StatePublished {
		if draft, err = r.LatestDraft(ctx, tenantID, notificationID); err != nil {
			return nil, err
		}
	}
	return ForState(state, published, draft), nil
}

// Published returns the stored published version as is, archived or not.
func (r *NotificationResolver) Published(ctx context.Context, tenantID, notificationID string) (*entity.Notification, error) {
	n, err := r.repo.GetPublished(ctx, tenantID, notificationID)
	if err != nil {
		return nil, fmt.Errorf("ResolveNotification: published: %w", err)
	}
	return n, nil
}

// LatestDraft returns the stored latest draft as is, archived or not.
func (r *NotificationResolver) LatestDraft(ctx context.Context, tenantID, notificationID string) (*entity.Notification, error) {
	n, err := r.repo.GetLatestDraft(ctx, tenantID, notificationID)
	if err != nil {
		return nil, fmt.Errorf("ResolveNotification: draft: %w", err)
	}
	return n, nil
}

// ForState picks the template for state from the stored versions. Archived
// versions are treated as missing.
//
//   - published: the published version only.
//   - draft: the latest draft only.
//   - submitted: the latest draft when it was submitted more recently than the
//     submission was canceled, overlaid onto the published version; otherwise
//     the published version.
func ForState(state entity.TemplateState, published, draft *entity.Notification) *entity.Notification {
	published, draft = live(published), live(draft)
	switch state {
	case entity.StateDraft:
		return draft
	case entity.StateSubmitted:
		if draft == nil || !draft.CheckConfig.Submitted() {
			return published
		}
		return overlay(published, draft)
	default:
		return published
	}
}

// HasDraft reports whether a live draft exists for a notification that has no
// published version.
func (r *NotificationResolver) HasDraft(ctx context.Context, tenantID, notificationID string) (bool, error) {
	draft, err := r.repo.GetLatestDraft(ctx, tenantID, notificationID)
	if err != nil {
		return false, fmt.Errorf("HasDraft: %w", err)
	}
	return live(draft) != nil, nil
}

func live(n *entity.Notification) *entity.Notification {
	if n == nil || n.Archived {
		return nil
	}
	return n
}

// overlay lays draft content over the published version. The published
// identity is kept; fields the draft leaves empty fall back to published.
func overlay(published, draft *entity.Notification) *entity.Notification {
	out := *draft
	out.State = entity.StateSubmitted
	if published == nil {
		return &out
	}

	out.ID = published.ID
	out.TenantID = published.TenantID
	if out.Title == "" {
		out.Title = published.Title
	}
	if len(out.Channels.BestOf) == 0 && len(out.Channels.Always) == 0 {
		out.Channels = published.Channels
	}
	if out.BrandConfig == nil {
		out.BrandConfig = published.BrandConfig
	}
	if out.CategoryID == "" {
		out.CategoryID = published.CategoryID
	}
	if out.PreferenceTemplateID == "" {
		out.PreferenceTemplateID = published.PreferenceTemplateID
	}
	if len(out.Blocks) == 0 {
		out.Blocks = published.Blocks
	}
	return &out
}
