package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"notification-prep/internal/domain/entity"
	"notification-prep/internal/handler/http/respond"
	"notification-prep/internal/observability/logging"
	"notification-prep/internal/observability/tracing"
	"notification-prep/internal/usecase/summary"
)

// ScopeHeader selects the template state and environment, "<state>/<environment>".
const ScopeHeader = "X-Scope"

type summaryRequest struct {
	EventID    string              `json:"eventId"`
	Recipients []summary.Recipient `json:"recipients"`
}

// SummaryHandler answers POST /routing/summary with the channels each
// recipient would be routed to, without persisting or publishing anything.
//
// The response is a JSON array in request order. Each entry carries either
// {recipient, error: {message, status}} or
// {recipient, routing: {selected, reason}, channelsSummary, preferences}.
type SummaryHandler struct {
	Svc    Summarizer
	Logger *slog.Logger
}

func (h SummaryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tenantID := strings.TrimSpace(r.Header.Get(tracing.TenantHeader))
	if tenantID == "" {
		respond.SafeError(w, http.StatusBadRequest,
			fmt.Errorf("%s header is required", tracing.TenantHeader))
		return
	}

	scope, err := entity.ParseScope(r.Header.Get(ScopeHeader))
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	var body summaryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.JSON(w, http.StatusRequestEntityTooLarge,
				map[string]string{"error": "request body too large"})
			return
		}
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	results, err := h.Svc.Summarize(r.Context(), summary.Request{
		TenantID:   tenantID,
		Scope:      scope,
		EventID:    body.EventID,
		Recipients: body.Recipients,
	})
	if err != nil {
		h.writeError(w, r, tenantID, err)
		return
	}
	respond.JSON(w, http.StatusOK, results)
}

func (h SummaryHandler) writeError(w http.ResponseWriter, r *http.Request, tenantID string, err error) {
	var verr *entity.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, entity.ErrInvalidInput):
		respond.SafeError(w, http.StatusBadRequest, err)
	case errors.Is(err, context.DeadlineExceeded):
		respond.JSON(w, http.StatusGatewayTimeout, map[string]string{"error": "request timeout"})
	default:
		if h.Logger != nil {
			logging.WithRequestID(r.Context(), h.Logger).Error("routing summary failed",
				slog.String("tenant_id", tenantID),
				slog.String("error", respond.SanitizeError(err)))
		}
		respond.SafeError(w, http.StatusInternalServerError, err)
	}
}
