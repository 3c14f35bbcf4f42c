package metrics

import "strings"

// Error messages produced by the request executor. The text before the first
// colon is the error class.
const (
	ErrTimeout    = "Request timeout"
	ErrTransport  = "Request error"
	ErrUnexpected = "Unexpected error"
)

// ErrorClass returns the classification of an error message: the substring
// before the first colon, trimmed. "Request error: refused" and
// "Request error: no such host" both classify as "Request error".
func ErrorClass(msg string) string {
	if idx := strings.Index(msg, ":"); idx != -1 {
		msg = msg[:idx]
	}
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "Unknown error"
	}
	return msg
}
