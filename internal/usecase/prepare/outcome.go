package prepare

import (
	"notification-prep/internal/usecase/routing"
)

// Outcome statuses.
const (
	StatusRouted            = "ROUTED"
	StatusNoChannelSelected = "NO_CHANNEL_SELECTED"
	StatusFiltered          = "FILTERED"
	StatusUnmapped          = "UNMAPPED"
	StatusUnpublished       = "UNPUBLISHED"
	StatusNotFound          = "NOT_FOUND"
	StatusPreparationError  = "PREPARATION_ERROR"
	StatusTransientError    = "TRANSIENT_ERROR"
	StatusInvalidMessage    = "INVALID_MESSAGE"
)

// Outcome is the result of preparing one message.
type Outcome struct {
	Status         string
	NotificationID string
	// Routing is nil when preparation stopped before routing.
	Routing *routing.Result
	// EnvelopeKeys lists the blob keys written in deliver mode.
	EnvelopeKeys []string
}

// Terminal reports whether the outcome needs no further processing.
func (o *Outcome) Terminal() bool {
	return o.Status != StatusTransientError
}
