// Package reliability classifies upstream failures and spaces out retries.
package reliability

import (
	"net/http"
	"time"
)

// IsRetryableHTTPStatus reports whether a generation backend answered with a
// status worth retrying: throttling or a transient server fault.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// ExponentialBackoff doubles base once per prior attempt, never exceeding limit.
func ExponentialBackoff(attempt int, base, limit time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt && d < limit; i++ {
		d *= 2
	}
	return min(d, limit)
}
