package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	v, err := New("")
	require.NoError(t, err)
	cfg, err := Decode(v)
	require.NoError(t, err)

	assert.Equal(t, DefaultRelays, cfg.Relays)
	assert.Equal(t, 100, cfg.Search.DefaultLimit)
	assert.Equal(t, 200, cfg.Search.MaxLimit)
	assert.Equal(t, 500*time.Millisecond, cfg.Search.GracePeriod)
	assert.False(t, cfg.Search.CapResults)
	assert.Equal(t, 10*time.Second, cfg.Relay.HandshakeTimeout)
	assert.Equal(t, DefaultTrackers, cfg.Transfer.Trackers)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nostr-torrent.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"relays": ["wss://one.example", "wss://two.example"],
		"search": {"default_limit": 25, "grace_period": "2s", "cap_results": true}
	}`), 0o644))

	t.Setenv("NOSTR_TORRENT_SERVER_PORT", "9999")

	v, err := New(path)
	require.NoError(t, err)
	cfg, err := Decode(v)
	require.NoError(t, err)

	assert.Equal(t, []string{"wss://one.example", "wss://two.example"}, cfg.Relays)
	assert.Equal(t, 25, cfg.Search.DefaultLimit)
	assert.Equal(t, 2*time.Second, cfg.Search.GracePeriod)
	assert.True(t, cfg.Search.CapResults)
	assert.Equal(t, "9999", cfg.Server.Port)
}

func TestSanitize(t *testing.T) {
	cfg := &Config{Search: SearchConfig{DefaultLimit: 500, MaxLimit: 0, GracePeriod: -time.Second}}
	cfg.sanitize()

	assert.Equal(t, DefaultRelays, cfg.Relays)
	assert.Equal(t, 200, cfg.Search.MaxLimit)
	assert.Equal(t, 200, cfg.Search.DefaultLimit)
	assert.Zero(t, cfg.Search.GracePeriod)
	assert.Equal(t, "memory", cfg.Cache.Backend)
}

func TestMissingExplicitFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
