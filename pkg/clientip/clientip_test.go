package clientip

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRealClientIP(t *testing.T) {
	t.Run("uses first X-Forwarded-For hop", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1, 10.0.0.2")
		assert.Equal(t, "203.0.113.9", RealClientIP(r))
	})

	t.Run("trims whitespace", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("X-Forwarded-For", "  203.0.113.9  ")
		assert.Equal(t, "203.0.113.9", RealClientIP(r))
	})

	t.Run("falls back to RemoteAddr", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "192.0.2.1:54321"
		assert.Equal(t, "192.0.2.1", RealClientIP(r))
	})

	t.Run("handles RemoteAddr without port", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "192.0.2.1"
		assert.Equal(t, "192.0.2.1", RealClientIP(r))
	})
}
