// Package summary builds dry-run routing summaries for a list of recipients.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"notification-prep/internal/domain/entity"
	"notification-prep/internal/usecase/prepare"
	"notification-prep/internal/usecase/routing"
)

// DefaultParallelism bounds the recipients evaluated at once.
const DefaultParallelism = 8

// MaxRecipients is the largest recipient list accepted in one request.
const MaxRecipients = 100

// ErrTooManyRecipients is returned when a request exceeds MaxRecipients.
var ErrTooManyRecipients = fmt.Errorf("%w: more than %d recipients", entity.ErrInvalidInput, MaxRecipients)

// ErrNoRecipients is returned when a request names no recipients.
var ErrNoRecipients = fmt.Errorf("%w: recipients are required", entity.ErrInvalidInput)

// Preparer prepares one request. *prepare.Service satisfies it.
type Preparer interface {
	Prepare(ctx context.Context, req prepare.Request, mode routing.Mode) (*prepare.Outcome, error)
}

// Request asks for the routing of one event to several recipients.
type Request struct {
	TenantID   string
	Scope      entity.Scope
	EventID    string
	Recipients []Recipient
}

// Recipient is one entry of a summary request. Data, Profile and Preferences
// may be objects or string-encoded objects.
type Recipient struct {
	Recipient   string          `json:"recipient"`
	Data        json.RawMessage `json:"data,omitempty"`
	Profile     json.RawMessage `json:"profile,omitempty"`
	Preferences json.RawMessage `json:"preferences,omitempty"`
}

// RecipientError is reported in place of a summary for a recipient that could
// not be evaluated.
type RecipientError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// Routing is the overall decision for one recipient.
type Routing struct {
	Selected bool   `json:"selected"`
	Reason   string `json:"reason,omitempty"`
}

// Result is the summary of one recipient. Exactly one of Error or Routing is set.
type Result struct {
	Recipient       string                    `json:"recipient"`
	Error           *RecipientError           `json:"error,omitempty"`
	Routing         *Routing                  `json:"routing,omitempty"`
	ChannelsSummary []entity.RoutingCandidate `json:"channelsSummary,omitempty"`
	Preferences     entity.Document           `json:"preferences,omitempty"`
}

// Service evaluates summary requests.
type Service struct {
	preparer    Preparer
	parallelism int
}

// NewService creates a Service using preparer.
func NewService(preparer Preparer) *Service {
	return &Service{preparer: preparer, parallelism: DefaultParallelism}
}

// Summarize evaluates every recipient in summary mode. Per-recipient failures
// are reported in the result; only infrastructure failures abort the request.
// Results keep the order of req.Recipients.
func (s *Service) Summarize(ctx context.Context, req Request) ([]Result, error) {
	if strings.TrimSpace(req.EventID) == "" {
		return nil, &entity.ValidationError{Field: "eventId", Message: "is required"}
	}
	if len(req.Recipients) == 0 {
		return nil, ErrNoRecipients
	}
	if len(req.Recipients) > MaxRecipients {
		return nil, ErrTooManyRecipients
	}

	results := make([]Result, len(req.Recipients))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.parallelism)

	for i, r := range req.Recipients {
		eg.Go(func() error {
			res, err := s.summarize(egCtx, req, r)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("Summarize: %w", err)
	}
	return results, nil
}

func (s *Service) summarize(ctx context.Context, req Request, r Recipient) (Result, error) {
	res := Result{Recipient: r.Recipient}
	if strings.TrimSpace(r.Recipient) == "" {
		res.Error = &RecipientError{Message: "recipient is required", Status: http.StatusBadRequest}
		return res, nil
	}

	payload := entity.MessagePayload{EventID: req.EventID, RecipientID: r.Recipient}
	fields := []struct {
		name string
		raw  json.RawMessage
		dst  *entity.Document
	}{
		{"data", r.Data, &payload.EventData},
		{"profile", r.Profile, &payload.EventProfile},
		{"preferences", r.Preferences, &payload.EventPreferences},
	}
	for _, f := range fields {
		doc, err := entity.ParseIfString(f.raw)
		if err != nil {
			res.Error = &RecipientError{Message: fmt.Sprintf("invalid %s: %v", f.name, err), Status: http.StatusBadRequest}
			return res, nil
		}
		*f.dst = doc
	}

	out, err := s.preparer.Prepare(ctx, prepare.Request{
		TenantID: req.TenantID,
		Scope:    req.Scope,
		Payload:  payload,
	}, routing.ModeSummary)
	if err != nil {
		var perr *prepare.PreparationError
		if errors.As(err, &perr) {
			res.Error = &RecipientError{Message: perr.Error(), Status: http.StatusUnprocessableEntity}
			return res, nil
		}
		return res, err
	}

	switch out.Status {
	case prepare.StatusUnmapped:
		res.Error = &RecipientError{Message: fmt.Sprintf("event %s is not mapped to a notification", req.EventID), Status: http.StatusNotFound}
		return res, nil
	case prepare.StatusNotFound, prepare.StatusUnpublished:
		res.Error = &RecipientError{Message: fmt.Sprintf("notification %s is %s", out.NotificationID, strings.ToLower(out.Status)), Status: http.StatusNotFound}
		return res, nil
	}

	res.Routing = &Routing{Selected: out.Routing.Selected, Reason: out.Routing.Reason}
	res.ChannelsSummary = out.Routing.Candidates
	res.Preferences = out.Routing.Preferences
	return res, nil
}
