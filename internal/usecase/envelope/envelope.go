// Package envelope writes prepared message envelopes to blob storage and
// enqueues a pointer to each one for the route stage.
package envelope

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"notification-prep/internal/domain/entity"
	"notification-prep/internal/observability/logging"
	"notification-prep/internal/observability/metrics"
	"notification-prep/internal/observability/tracing"
	"notification-prep/internal/repository"
	"notification-prep/internal/resilience/retry"
)

// Publisher enqueues route messages for the next stage.
type Publisher interface {
	Publish(ctx context.Context, msg entity.RouteMessage) error
}

// Persister stores envelopes and publishes their pointers.
type Persister struct {
	blobs        repository.BlobRepository
	publisher    Publisher
	writeRetry   retry.Config
	publishRetry retry.Config
	now          func() time.Time
}

// NewPersister creates a Persister with the default retry policies.
func NewPersister(blobs repository.BlobRepository, publisher Publisher) *Persister {
	return &Persister{
		blobs:        blobs,
		publisher:    publisher,
		writeRetry:   retry.BlobWriteConfig(),
		publishRetry: retry.PublishConfig(),
		now:          time.Now,
	}
}

// WithRetry overrides the blob write and publish retry policies.
func (p *Persister) WithRetry(write, publish retry.Config) *Persister {
	p.writeRetry = write
	p.publishRetry = publish
	return p
}

// Path returns the blob key of an envelope. The suffix is appended only when
// the message produced more than one envelope.
func Path(tenantID, messageID, suffix string, multiple bool) string {
	if multiple && suffix != "" {
		return fmt.Sprintf("%s/prepare_%s_%s.json", tenantID, messageID, suffix)
	}
	return fmt.Sprintf("%s/prepare_%s.json", tenantID, messageID)
}

// Keys returns one distinct blob key per envelope of a message. A channel id
// that occurs once is used as the suffix; missing or repeated ids fall back
// to the channel name and the envelope's position.
func Keys(envs []*entity.Envelope) []string {
	keys := make([]string, len(envs))
	if len(envs) == 1 {
		keys[0] = Path(envs[0].TenantID, envs[0].MessageID, "", false)
		return keys
	}

	ids := make(map[string]int, len(envs))
	for _, env := range envs {
		ids[env.ChannelID]++
	}
	used := make(map[string]bool, len(envs))
	for i, env := range envs {
		suffix := env.ChannelID
		if suffix == "" || ids[suffix] > 1 {
			name := env.ChannelID
			if name == "" {
				name = env.Channel
			}
			suffix = fmt.Sprintf("%s_%d", name, i)
		}
		for used[suffix] {
			suffix = fmt.Sprintf("%s_%d", suffix, i)
		}
		used[suffix] = true
		keys[i] = Path(env.TenantID, env.MessageID, suffix, true)
	}
	return keys
}

// Persist writes env under key and publishes a route pointer to it.
// Writes to the same key overwrite, so a retried message is safe.
func (p *Persister) Persist(ctx context.Context, env *entity.Envelope, key string) error {
	if env.PreparedAt.IsZero() {
		env.PreparedAt = p.now().UTC()
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("Persist: marshal envelope: %w", err)
	}

	err = retry.WithBackoff(ctx, p.writeRetry, func() error {
		return p.blobs.Put(ctx, key, body)
	})
	if err != nil {
		return fmt.Errorf("Persist: write blob %s: %w", key, err)
	}

	msg := entity.RouteMessage{
		MessageID:       env.MessageID,
		MessageLocation: entity.BlobLocation(key),
		TenantID:        env.TenantID,
		Type:            entity.RouteMessageType,
	}
	err = retry.WithBackoff(ctx, p.publishRetry, func() error {
		return p.publisher.Publish(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("Persist: publish route message: %w", err)
	}
	return nil
}

// PersistAll persists every envelope of one message concurrently. A failing
// envelope does not stop the others; failures are reported together in a
// *PartialFailureError once all writes are done.
func (p *Persister) PersistAll(ctx context.Context, envs []*entity.Envelope) ([]string, error) {
	if len(envs) == 0 {
		return nil, ErrNoEnvelopes
	}

	ctx, span := tracing.StartSpan(ctx, "envelope.PersistAll",
		attribute.Int("envelope.count", len(envs)))
	defer span.End()

	keys := Keys(envs)
	errs := make([]error, len(envs))

	var g errgroup.Group
	for i, env := range envs {
		g.Go(func() error {
			errs[i] = p.Persist(ctx, env, keys[i])
			metrics.RecordEnvelope(env.Channel, errs[i] == nil)
			return nil
		})
	}
	_ = g.Wait()

	var failed []ChannelFailure
	logger := logging.FromContext(ctx)
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed = append(failed, ChannelFailure{
			Channel:   envs[i].Channel,
			ChannelID: envs[i].ChannelID,
			Err:       err,
		})
		logger.WarnContext(ctx, "envelope persistence failed",
			slog.String("channel", envs[i].Channel),
			slog.String("path", keys[i]),
			slog.Any("error", err))
	}

	if len(failed) > 0 {
		perr := &PartialFailureError{Total: len(envs), Failed: failed}
		tracing.RecordError(span, perr)
		return keys, perr
	}
	return keys, nil
}
