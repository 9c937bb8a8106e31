package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"notification-prep/internal/domain/entity"
	"notification-prep/internal/repository"
)

type ProfileRepo struct{ db DBTX }

func NewProfileRepo(db DBTX) repository.ProfileRepository {
	return &ProfileRepo{db: db}
}

func (repo *ProfileRepo) Get(ctx context.Context, tenantID, recipientID string) (entity.Document, error) {
	const query = `SELECT profile FROM profiles WHERE tenant_id = $1 AND recipient_id = $2`
	doc, err := getDocument(ctx, repo.db, query, tenantID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("Get profile: %w", err)
	}
	return doc, nil
}

type PreferenceRepo struct{ db DBTX }

func NewPreferenceRepo(db DBTX) repository.PreferenceRepository {
	return &PreferenceRepo{db: db}
}

func (repo *PreferenceRepo) Get(ctx context.Context, tenantID, recipientID string) (entity.Document, error) {
	const query = `SELECT preferences FROM preferences WHERE tenant_id = $1 AND recipient_id = $2`
	doc, err := getDocument(ctx, repo.db, query, tenantID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("Get preferences: %w", err)
	}
	return doc, nil
}

func (repo *PreferenceRepo) GetTemplateValue(ctx context.Context, tenantID, recipientID, templateID string) (*entity.PreferenceValue, error) {
	const query = `
SELECT value
FROM preference_template_values
WHERE tenant_id = $1 AND recipient_id = $2 AND template_id = $3`
	var raw []byte
	err := repo.db.QueryRowContext(ctx, query, tenantID, recipientID, templateID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetTemplateValue: %w", err)
	}
	var v entity.PreferenceValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("GetTemplateValue: unmarshal: %w", err)
	}
	return &v, nil
}

type PreferenceTemplateRepo struct{ db DBTX }

func NewPreferenceTemplateRepo(db DBTX) repository.PreferenceTemplateRepository {
	return &PreferenceTemplateRepo{db: db}
}

func (repo *PreferenceTemplateRepo) Get(ctx context.Context, tenantID, id string) (*entity.PreferenceTemplate, error) {
	const query = `
SELECT id, tenant_id, name, default_status
FROM preference_templates
WHERE tenant_id = $1 AND id = $2`
	var t entity.PreferenceTemplate
	var status string
	err := repo.db.QueryRowContext(ctx, query, tenantID, id).Scan(&t.ID, &t.TenantID, &t.Name, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get preference template: %w", err)
	}
	t.DefaultStatus = entity.PreferenceStatus(status)
	return &t, nil
}

// getDocument reads a single JSONB column. A missing row is (nil, nil).
func getDocument(ctx context.Context, db DBTX, query string, args ...interface{}) (entity.Document, error) {
	var raw []byte
	err := db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entity.ParseIfString(raw)
}
