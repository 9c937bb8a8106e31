package prepare

import "fmt"

// Preparation error codes.
const (
	CodeNoProviders           = "NO_PROVIDERS"
	CodeMissingConfigurations = "MISSING_CONFIGURATIONS"
)

// PreparationError is a terminal domain failure: retrying the message cannot
// change the result.
type PreparationError struct {
	Code           string
	TenantID       string
	NotificationID string
}

func (e *PreparationError) Error() string {
	return fmt.Sprintf("preparation error %s: tenant %s notification %s", e.Code, e.TenantID, e.NotificationID)
}
