// Package entity defines the domain model of the notification preparation
// pipeline: notification templates and their channel graph, brands, provider
// configurations, recipient documents, routing candidates and envelopes.
package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrNotFound is returned by blob stores for a missing key.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput marks a request that can never succeed as given.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidScope indicates a scope string that is not "<state>/<environment>".
	ErrInvalidScope = errors.New("invalid scope")

	// ErrInvalidDocument indicates a JSON document that is neither an object
	// nor a string containing an object.
	ErrInvalidDocument = errors.New("invalid JSON document")
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}
