package repository

import "context"

// BlobRepository stores message payloads and envelopes by key.
type BlobRepository interface {
	// Put writes data under key, replacing any previous content.
	Put(ctx context.Context, key string, data []byte) error
	// Get returns the content under key. Returns entity.ErrNotFound when absent.
	Get(ctx context.Context, key string) ([]byte, error)
}
