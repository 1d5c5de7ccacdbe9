package providers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("success - full config", func(t *testing.T) {
		registry, err := Parse([]byte(`
providers:
  - provider: careem
    secret: careem-secret
    rate_limit: 120
    rate_window_secs: 60
    allowed_ips:
      - 10.0.0.0/8
      - 192.168.1.5
  - provider: talabat
    secret: talabat-secret
`))
		require.NoError(t, err)
		assert.Equal(t, []string{"careem", "talabat"}, registry.Names())

		adapter, settings, err := registry.Get("careem")
		require.NoError(t, err)
		assert.Equal(t, "careem", adapter.Name())
		assert.Equal(t, "careem-secret", settings.Secret)
		assert.Equal(t, 120, settings.RateLimit)
		assert.Equal(t, time.Minute, settings.RateWindow)
		assert.Len(t, settings.AllowedIPs, 2)
	})

	t.Run("error - unknown provider in config", func(t *testing.T) {
		_, err := Parse([]byte(`
providers:
  - provider: zomato
    secret: s
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no adapter available")
	})

	t.Run("error - missing secret", func(t *testing.T) {
		_, err := Parse([]byte(`
providers:
  - provider: careem
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret cannot be empty")
	})

	t.Run("error - bad CIDR", func(t *testing.T) {
		_, err := Parse([]byte(`
providers:
  - provider: careem
    secret: s
    allowed_ips: ["not-an-ip"]
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "allowed_ips")
	})

	t.Run("error - duplicate provider", func(t *testing.T) {
		_, err := Parse([]byte(`
providers:
  - provider: careem
    secret: a
  - provider: careem
    secret: b
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})
}

func TestRegistryGet(t *testing.T) {
	t.Run("error - unregistered provider", func(t *testing.T) {
		registry := NewRegistry()
		_, _, err := registry.Get("careem")
		require.ErrorIs(t, err, ErrUnsupportedProvider)
	})
}

func TestSettingsAllowsAddr(t *testing.T) {
	registry, err := Parse([]byte(`
providers:
  - provider: careem
    secret: s
    allowed_ips: ["10.0.0.0/8"]
  - provider: talabat
    secret: s
`))
	require.NoError(t, err)

	t.Run("allows address inside CIDR", func(t *testing.T) {
		_, settings, err := registry.Get("careem")
		require.NoError(t, err)
		assert.True(t, settings.AllowsAddr("10.1.2.3:51234"))
		assert.True(t, settings.AllowsAddr("10.255.0.1"))
	})

	t.Run("rejects address outside CIDR", func(t *testing.T) {
		_, settings, err := registry.Get("careem")
		require.NoError(t, err)
		assert.False(t, settings.AllowsAddr("172.16.0.1:4000"))
	})

	t.Run("rejects unparseable address when list configured", func(t *testing.T) {
		_, settings, err := registry.Get("careem")
		require.NoError(t, err)
		assert.False(t, settings.AllowsAddr("garbage"))
	})

	t.Run("empty allow-list permits everything", func(t *testing.T) {
		_, settings, err := registry.Get("talabat")
		require.NoError(t, err)
		assert.True(t, settings.AllowsAddr("203.0.113.9:9999"))
	})
}
