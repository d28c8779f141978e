package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(okHandler()).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestHostCheck(t *testing.T) {
	t.Run("allows matching host", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/", nil)
		r.Host = "api.rai.app:443"
		HostCheck("api.rai.app")(okHandler()).ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects foreign host", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/", nil)
		r.Host = "evil.example.com"
		HostCheck("api.rai.app")(okHandler()).ServeHTTP(rec, r)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("empty allowed host disables the check", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/", nil)
		r.Host = "anything.example.com"
		HostCheck("")(okHandler()).ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAuthRateLimitOnlyAppliesToSensitivePaths(t *testing.T) {
	handler := AuthRateLimit(okHandler())

	// Non-sensitive paths pass through regardless of volume.
	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/api/community", nil)
		r.RemoteAddr = "198.51.100.7:1234"
		handler.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	// A sensitive path trips the limiter after the burst.
	var tripped bool
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest("POST", "/api/auth/login", nil)
		r.RemoteAddr = "198.51.100.8:1234"
		handler.ServeHTTP(rec, r)
		if rec.Code == http.StatusTooManyRequests {
			tripped = true
			break
		}
	}
	assert.True(t, tripped, "login limiter never tripped")
}
