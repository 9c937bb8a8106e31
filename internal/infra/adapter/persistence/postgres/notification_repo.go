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

/* ───────── event maps ───────── */

type EventMapRepo struct{ db DBTX }

func NewEventMapRepo(db DBTX) repository.EventMapRepository {
	return &EventMapRepo{db: db}
}

func (repo *EventMapRepo) Get(ctx context.Context, tenantID, eventID string) (*entity.EventMap, error) {
	const query = `
SELECT tenant_id, event_id, notification_ids, created_at
FROM event_maps
WHERE tenant_id = $1 AND event_id = $2`
	var m entity.EventMap
	var ids []byte
	err := repo.db.QueryRowContext(ctx, query, tenantID, eventID).Scan(&m.TenantID, &m.EventID, &ids, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	if len(ids) > 0 {
		if err := json.Unmarshal(ids, &m.NotificationIDs); err != nil {
			return nil, fmt.Errorf("Get: unmarshal notification_ids: %w", err)
		}
	}
	return &m, nil
}

func (repo *EventMapRepo) CreateStub(ctx context.Context, tenantID, eventID string) (bool, error) {
	const query = `
INSERT INTO event_maps (tenant_id, event_id, notification_ids)
VALUES ($1, $2, '[]'::jsonb)
ON CONFLICT (tenant_id, event_id) DO NOTHING`
	res, err := repo.db.ExecContext(ctx, query, tenantID, eventID)
	if err != nil {
		return false, fmt.Errorf("CreateStub: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("CreateStub: RowsAffected: %w", err)
	}
	return n == 1, nil
}

/* ───────── notifications ───────── */

type NotificationRepo struct{ db DBTX }

func NewNotificationRepo(db DBTX) repository.NotificationRepository {
	return &NotificationRepo{db: db}
}

func (repo *NotificationRepo) GetPublished(ctx context.Context, tenantID, id string) (*entity.Notification, error) {
	return repo.get(ctx, tenantID, id, entity.StatePublished)
}

func (repo *NotificationRepo) GetLatestDraft(ctx context.Context, tenantID, id string) (*entity.Notification, error) {
	return repo.get(ctx, tenantID, id, entity.StateDraft)
}

func (repo *NotificationRepo) get(ctx context.Context, tenantID, id string, state entity.TemplateState) (*entity.Notification, error) {
	const query = `
SELECT document, archived, updated_at
FROM notifications
WHERE tenant_id = $1 AND id = $2 AND state = $3
ORDER BY updated_at DESC
LIMIT 1`
	var doc []byte
	var n entity.Notification
	err := repo.db.QueryRowContext(ctx, query, tenantID, id, string(state)).Scan(&doc, &n.Archived, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s notification: %w", state, err)
	}

	archived, updatedAt := n.Archived, n.UpdatedAt
	if err := json.Unmarshal(doc, &n); err != nil {
		return nil, fmt.Errorf("get %s notification: unmarshal: %w", state, err)
	}
	n.ID, n.TenantID, n.State = id, tenantID, state
	n.Archived, n.UpdatedAt = archived, updatedAt
	return &n, nil
}

/* ───────── brands ───────── */

type BrandRepo struct{ db DBTX }

func NewBrandRepo(db DBTX) repository.BrandRepository {
	return &BrandRepo{db: db}
}

const brandColumns = `id, tenant_id, name, version, is_default, settings, snippets, published_at`

func (repo *BrandRepo) GetPublished(ctx context.Context, tenantID, id string) (*entity.Brand, error) {
	const query = `
SELECT ` + brandColumns + `
FROM brands
WHERE tenant_id = $1 AND id = $2 AND published_at IS NOT NULL
ORDER BY revision DESC
LIMIT 1`
	b, err := scanBrand(repo.db.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		return nil, fmt.Errorf("GetPublished: %w", err)
	}
	return b, nil
}

func (repo *BrandRepo) GetLatest(ctx context.Context, tenantID, id string) (*entity.Brand, error) {
	const query = `
SELECT ` + brandColumns + `
FROM brands
WHERE tenant_id = $1 AND id = $2
ORDER BY revision DESC
LIMIT 1`
	b, err := scanBrand(repo.db.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		return nil, fmt.Errorf("GetLatest: %w", err)
	}
	return b, nil
}

func (repo *BrandRepo) GetDefaultID(ctx context.Context, tenantID string) (string, error) {
	const query = `
SELECT id
FROM brands
WHERE tenant_id = $1 AND is_default = TRUE
ORDER BY revision DESC
LIMIT 1`
	var id string
	err := repo.db.QueryRowContext(ctx, query, tenantID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("GetDefaultID: %w", err)
	}
	return id, nil
}

// scanBrand returns (nil, nil) when the row does not exist.
func scanBrand(row *sql.Row) (*entity.Brand, error) {
	var b entity.Brand
	var settings, snippets []byte
	var publishedAt sql.NullTime
	err := row.Scan(&b.ID, &b.TenantID, &b.Name, &b.Version, &b.IsDefaultBrand, &settings, &snippets, &publishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if b.Settings, err = entity.ParseIfString(settings); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	if b.Snippets, err = entity.ParseIfString(snippets); err != nil {
		return nil, fmt.Errorf("snippets: %w", err)
	}
	if publishedAt.Valid {
		b.PublishedAt = &publishedAt.Time
	}
	return &b, nil
}

/* ───────── configurations ───────── */

type ConfigurationRepo struct{ db DBTX }

func NewConfigurationRepo(db DBTX) repository.ConfigurationRepository {
	return &ConfigurationRepo{db: db}
}

func (repo *ConfigurationRepo) ListByIDs(ctx context.Context, tenantID string, ids []string) ([]*entity.Configuration, error) {
	if len(ids) == 0 {
		return []*entity.Configuration{}, nil
	}

	query := `
SELECT id, tenant_id, provider, title, settings
FROM configurations
WHERE tenant_id = $1 AND id IN (` + placeholders(2, len(ids)) + `)`
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, tenantID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListByIDs: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	configs := make([]*entity.Configuration, 0, len(ids))
	for rows.Next() {
		var c entity.Configuration
		var settings []byte
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Provider, &c.Title, &settings); err != nil {
			return nil, fmt.Errorf("ListByIDs: Scan: %w", err)
		}
		if c.Settings, err = entity.ParseIfString(settings); err != nil {
			return nil, fmt.Errorf("ListByIDs: settings of %s: %w", c.ID, err)
		}
		configs = append(configs, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByIDs: rows.Err: %w", err)
	}
	return configs, nil
}
