package respond

import (
	"regexp"
)

var (
	// userinfo of postgres://, amqp:// and redis:// URLs
	urlPasswordPattern = regexp.MustCompile(`://([^:/@\s]*):([^@\s]+)@`)
	// key=value DSNs
	kvPasswordPattern = regexp.MustCompile(`(?i)(password=)(\S+)`)
	bearerPattern     = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9\-._~+/]+=*`)
)

// SanitizeError returns err's message with credentials masked.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	msg = urlPasswordPattern.ReplaceAllString(msg, "://$1:****@")
	msg = kvPasswordPattern.ReplaceAllString(msg, "${1}****")
	msg = bearerPattern.ReplaceAllString(msg, "${1}****")
	return msg
}
