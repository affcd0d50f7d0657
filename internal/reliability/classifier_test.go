package reliability

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{http.StatusOK, false},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusGatewayTimeout, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsRetryableHTTPStatus(tc.code), "status %d", tc.code)
	}
}

func TestExponentialBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	limit := 700 * time.Millisecond

	assert.Equal(t, base, ExponentialBackoff(0, base, limit))
	assert.Equal(t, 200*time.Millisecond, ExponentialBackoff(1, base, limit))
	assert.Equal(t, 400*time.Millisecond, ExponentialBackoff(2, base, limit))
	assert.Equal(t, limit, ExponentialBackoff(3, base, limit))
	assert.Equal(t, limit, ExponentialBackoff(10, base, limit))
}
