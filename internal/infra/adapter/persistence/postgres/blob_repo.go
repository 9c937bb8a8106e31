package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"notification-prep/internal/domain/entity"
	"notification-prep/internal/repository"
)

// BlobRepo keeps message payloads and envelopes in the message_blobs table.
type BlobRepo struct{ db DBTX }

func NewBlobRepo(db DBTX) repository.BlobRepository {
	return &BlobRepo{db: db}
}

func (repo *BlobRepo) Put(ctx context.Context, key string, data []byte) error {
	const query = `
INSERT INTO message_blobs (key, body, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`
	if _, err := repo.db.ExecContext(ctx, query, key, data); err != nil {
		return fmt.Errorf("Put %s: %w", key, err)
	}
	return nil
}

func (repo *BlobRepo) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT body FROM message_blobs WHERE key = $1`
	var body []byte
	err := repo.db.QueryRowContext(ctx, query, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("Get %s: %w", key, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get %s: %w", key, err)
	}
	return body, nil
}
