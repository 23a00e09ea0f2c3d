package server

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeOrigin(t *testing.T) {
	req := require.New(t)

	normalized, ok := normalizeOrigin("HTTP://Example.COM")
	req.True(ok)
	req.Equal("http://example.com", normalized)

	_, ok = normalizeOrigin("not a url")
	req.False(ok)

	_, ok = normalizeOrigin("example.com")
	req.False(ok)
}

func TestCheckOriginAgainstAllowList(t *testing.T) {
	t.Cleanup(func() { SetConfig(defaultConfig()) })

	SetConfig(Config{AllowedOrigins: []string{"https://chat.example.com"}})

	allowed := httptest.NewRequest("GET", "/ws", nil)
	allowed.Header.Set("Origin", "https://chat.example.com")
	require.True(t, checkOrigin(allowed))

	blocked := httptest.NewRequest("GET", "/ws", nil)
	blocked.Header.Set("Origin", "https://evil.example.com")
	require.False(t, checkOrigin(blocked))

	missing := httptest.NewRequest("GET", "/ws", nil)
	require.False(t, checkOrigin(missing))
}

func TestCheckOriginWildcard(t *testing.T) {
	t.Cleanup(func() { SetConfig(defaultConfig()) })

	SetConfig(Config{AllowedOrigins: []string{"*"}})

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "https://anywhere.example.com")
	require.True(t, checkOrigin(r))
}
