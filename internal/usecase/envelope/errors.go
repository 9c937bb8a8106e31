package envelope

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoEnvelopes is returned by PersistAll when it is given nothing to write.
var ErrNoEnvelopes = errors.New("no envelopes to persist")

// ChannelFailure records one envelope that could not be persisted.
type ChannelFailure struct {
	Channel   string
	ChannelID string
	Err       error
}

// PartialFailureError reports the envelopes of a message that failed while the
// others were persisted.
type PartialFailureError struct {
	Total  int
	Failed []ChannelFailure
}

func (e *PartialFailureError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		names = append(names, fmt.Sprintf("%s: %v", f.Channel, f.Err))
	}
	return fmt.Sprintf("persisted %d of %d envelopes; failed [%s]",
		e.Total-len(e.Failed), e.Total, strings.Join(names, "; "))
}

// Unwrap exposes every channel error to errors.Is and errors.As.
func (e *PartialFailureError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}
