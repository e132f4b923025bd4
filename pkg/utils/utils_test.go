package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetRealIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.7:51234"
	assert.Equal(t, "10.0.0.7", GetRealIP(r))

	r.Header.Set("X-Real-IP", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", GetRealIP(r))

	// X-Forwarded-For wins, first hop only.
	r.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
	assert.Equal(t, "198.51.100.4", GetRealIP(r))
}

func TestParseFloat(t *testing.T) {
	assert.Equal(t, 1.5, ParseFloat("1.5", 0))
	assert.Equal(t, -42.0, ParseFloat("-42", 0))
	assert.Equal(t, 99.0, ParseFloat("", 99))
	assert.Equal(t, 99.0, ParseFloat("abc", 99))
}

func TestIsAllowedOrigin(t *testing.T) {
	patterns := []string{"example.com", "*.maps.example.org"}

	assert.True(t, IsAllowedOrigin("https://example.com", patterns))
	assert.True(t, IsAllowedOrigin("https://example.com:8443", patterns))
	assert.True(t, IsAllowedOrigin("https://tiles.maps.example.org", patterns))
	assert.True(t, IsAllowedOrigin("https://maps.example.org", patterns))

	assert.False(t, IsAllowedOrigin("https://evil.com", patterns))
	assert.False(t, IsAllowedOrigin("https://notexample.com", patterns))
	assert.False(t, IsAllowedOrigin("", patterns))

	assert.True(t, IsAllowedOrigin("http://anything.test", []string{"*"}))
	assert.False(t, IsAllowedOrigin("http://anything.test", nil))
}
