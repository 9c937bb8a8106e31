package routing

import "errors"

// ErrMissingNotification indicates Route was called without a notification.
var ErrMissingNotification = errors.New("routing input has no notification")
