package prepare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"notification-prep/internal/domain/entity"
	"notification-prep/internal/observability/logging"
	"notification-prep/internal/observability/metrics"
	"notification-prep/internal/usecase/routing"
)

// DefaultMaxAttempts is the retry budget used when Service.MaxAttempts is unset.
const DefaultMaxAttempts = 5

// Disposition tells the transport what to do with a delivery once handled.
type Disposition int

const (
	// Ack removes the delivery from the queue.
	Ack Disposition = iota
	// Requeued means a copy was republished with the next attempt number; the
	// original is acknowledged.
	Requeued
	// Reject sends the delivery to the dead-letter path.
	Reject
	// Retry returns the delivery to the queue through native redelivery.
	Retry
)

func (d Disposition) String() string {
	switch d {
	case Ack:
		return "ack"
	case Requeued:
		return "requeued"
	case Reject:
		return "reject"
	case Retry:
		return "retry"
	}
	return "unknown"
}

// Delivery is one inbound queue record.
type Delivery struct {
	Body []byte
	// Attempt is 1 on first delivery.
	Attempt int

	// Transport attributes, carried over when the record is requeued.
	Headers       map[string]any
	MessageID     string
	CorrelationID string
	Type          string
}

// Requeuer republishes a delivery to the queue it came from with its
// attributes intact and attempt as the new attempt number.
type Requeuer interface {
	Requeue(ctx context.Context, d Delivery, attempt int) error
}

// Handle processes one inbound queue record in deliver mode and classifies
// the result. The returned error, when not nil, is the failure behind the
// disposition.
func (s *Service) Handle(ctx context.Context, d Delivery) (Disposition, error) {
	req, err := s.decode(ctx, d.Body)
	if err != nil {
		if errors.Is(err, entity.ErrInvalidInput) {
			return s.invalid(ctx, err)
		}
		return s.transient(ctx, d, err)
	}

	logger := logging.WithMessage(logging.FromContext(ctx), req.TenantID, req.MessageID)
	ctx = logging.WithLogger(ctx, logger)

	_, err = s.Prepare(ctx, req, routing.ModeDeliver)
	if err == nil {
		return Ack, nil
	}

	var perr *PreparationError
	if errors.As(err, &perr) {
		logger.ErrorContext(ctx, "preparation failed permanently",
			slog.String("event", "preparation_error"),
			slog.String("code", perr.Code),
			slog.String("notification_id", perr.NotificationID),
			slog.Bool("willRetry", false))
		return Ack, err
	}
	if errors.Is(err, entity.ErrInvalidInput) {
		return s.invalid(ctx, err)
	}
	return s.transient(ctx, d, err)
}

// invalid acks a message that can never be prepared as given.
func (s *Service) invalid(ctx context.Context, cause error) (Disposition, error) {
	logging.FromContext(ctx).ErrorContext(ctx, "discarding invalid message",
		slog.String("event", "invalid_message"),
		slog.Bool("willRetry", false),
		slog.Any("error", cause))
	metrics.RecordPreparation(StatusInvalidMessage, metrics.ModeDeliver, 0)
	return Ack, cause
}

// transient requeues d with the next attempt number while budget remains and
// rejects it afterwards.
func (s *Service) transient(ctx context.Context, d Delivery, cause error) (Disposition, error) {
	logger := logging.FromContext(ctx)
	willRetry := d.Attempt < s.maxAttempts() && s.Requeuer != nil

	logger.ErrorContext(ctx, "preparation failed",
		slog.String("event", "transient_error"),
		slog.Int("attempt", d.Attempt),
		slog.Bool("willRetry", willRetry),
		slog.Any("error", cause))

	if !willRetry {
		metrics.RecordRequeue(false)
		return Reject, cause
	}

	if err := s.Requeuer.Requeue(ctx, d, d.Attempt+1); err != nil {
		logger.ErrorContext(ctx, "self-requeue failed, falling back to redelivery",
			slog.Any("error", err))
		return Retry, errors.Join(cause, err)
	}
	metrics.RecordRequeue(true)
	return Requeued, cause
}

func (s *Service) maxAttempts() int {
	if s.MaxAttempts > 0 {
		return s.MaxAttempts
	}
	return DefaultMaxAttempts
}

// decode parses the inbound record and loads its payload. Malformed input is
// reported wrapped in entity.ErrInvalidInput; anything else is a load failure.
func (s *Service) decode(ctx context.Context, body []byte) (Request, error) {
	var msg entity.InboundMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return Request{}, fmt.Errorf("%w: message: %v", entity.ErrInvalidInput, err)
	}
	if err := msg.Validate(); err != nil {
		return Request{}, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err)
	}

	payload, err := s.loadPayload(ctx, msg)
	if err != nil {
		return Request{}, err
	}
	if err := payload.Validate(); err != nil {
		return Request{}, fmt.Errorf("%w: payload: %v", entity.ErrInvalidInput, err)
	}

	rawScope := msg.Scope
	if rawScope == "" {
		rawScope = payload.Scope
	}
	scope, err := entity.ParseScope(rawScope)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err)
	}

	return Request{
		MessageID: msg.MessageID,
		TenantID:  msg.TenantID,
		Scope:     scope,
		Payload:   payload,
	}, nil
}

func (s *Service) loadPayload(ctx context.Context, msg entity.InboundMessage) (entity.MessagePayload, error) {
	var payload entity.MessagePayload

	raw := []byte(msg.MessageLocation.Path)
	if msg.MessageLocation.Type == entity.LocationInline && len(raw) > 0 && raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err == nil {
			raw = []byte(encoded)
		}
	}
	if msg.MessageLocation.Type == entity.LocationBlob {
		path, err := msg.MessageLocation.BlobPath()
		if err != nil {
			return payload, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err)
		}
		raw, err = s.Blobs.Get(ctx, path)
		if errors.Is(err, entity.ErrNotFound) {
			return payload, fmt.Errorf("%w: payload %s not found", entity.ErrInvalidInput, path)
		}
		if err != nil {
			return payload, fmt.Errorf("load payload %s: %w", path, err)
		}
	}

	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, fmt.Errorf("%w: payload: %v", entity.ErrInvalidInput, err)
	}
	return payload, nil
}
