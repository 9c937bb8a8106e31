package resolve

import (
	"context"
	"encoding/json"
	"fmt"

	"notification-prep/internal/domain/entity"
	"notification-prep/internal/repository"
	"notification-prep/internal/usecase/merge"
)

// BrandRequest carries everything brand resolution depends on.
type BrandRequest struct {
	TenantID string
	Config   *entity.BrandConfig
	// RequestBrand is the explicit brand supplied on the request, if any.
	RequestBrand entity.Document
	// OverrideBrand is the override.brand fragment of the request, if any.
	OverrideBrand entity.Document
	State         entity.TemplateState
}

// BrandResolver resolves the effective brand of a notification.
type BrandResolver struct {
	repo repository.BrandRepository
}

// NewBrandResolver creates a BrandResolver backed by repo.
func NewBrandResolver(repo repository.BrandRepository) *BrandResolver {
	return &BrandResolver{repo: repo}
}

// ResolveBrand returns the brand to apply, or nil for none.
//
// Precedence:
//  1. brand config missing or disabled: no brand
//  2. request brand, with override.brand merged over it field by field
//  3. the configured default brand
//  4. the tenant's default brand
//
// Brands 3 and 4 are read through the published accessor for the published
// and submitted states and through the latest accessor for drafts. Published
// brands inherit unset settings and snippets from the tenant default brand.
func (r *BrandResolver) ResolveBrand(ctx context.Context, req BrandRequest) (*entity.Brand, error) {
	if req.Config == nil || !req.Config.Enabled {
		return nil, nil
	}

	if len(req.RequestBrand) > 0 {
		return brandFromDocument(req.TenantID, merge.Merge(req.RequestBrand, req.OverrideBrand))
	}

	if req.Config.DefaultBrandID != "" {
		b, err := r.scoped(ctx, req.TenantID, req.Config.DefaultBrandID, req.State)
		if err != nil {
			return nil, err
		}
		if b != nil {
			return b, nil
		}
	}

	defaultID, err := r.repo.GetDefaultID(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("ResolveBrand: default id: %w", err)
	}
	if defaultID == "" {
		return nil, nil
	}
	return r.scoped(ctx, req.TenantID, defaultID, req.State)
}

func (r *BrandResolver) scoped(ctx context.Context, tenantID, brandID string, state entity.TemplateState) (*entity.Brand, error) {
	if state == entity.StateDraft {
		b, err := r.repo.GetLatest(ctx, tenantID, brandID)
		if err != nil {
			return nil, fmt.Errorf("ResolveBrand: latest %s: %w", brandID, err)
		}
		return b, nil
	}

	b, err := r.repo.GetPublished(ctx, tenantID, brandID)
	if err != nil {
		return nil, fmt.Errorf("ResolveBrand: published %s: %w", brandID, err)
	}
	if b == nil || b.IsDefaultBrand {
		return b, nil
	}
	return r.extendWithDefault(ctx, tenantID, b)
}

// extendWithDefault fills settings and snippets the brand does not set from
// the tenant's published default brand.
func (r *BrandResolver) extendWithDefault(ctx context.Context, tenantID string, b *entity.Brand) (*entity.Brand, error) {
	defaultID, err := r.repo.GetDefaultID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("ResolveBrand: default id: %w", err)
	}
	if defaultID == "" || defaultID == b.ID {
		return b, nil
	}

	def, err := r.repo.GetPublished(ctx, tenantID, defaultID)
	if err != nil {
		return nil, fmt.Errorf("ResolveBrand: published default %s: %w", defaultID, err)
	}
	if def == nil {
		return b, nil
	}

	out := *b
	out.Settings = merge.Merge(def.Settings, b.Settings)
	out.Snippets = merge.Merge(def.Snippets, b.Snippets)
	return &out, nil
}

func brandFromDocument(tenantID string, doc entity.Document) (*entity.Brand, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBrand, err)
	}
	var b entity.Brand
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBrand, err)
	}
	if b.TenantID == "" {
		b.TenantID = tenantID
	}
	return &b, nil
}
