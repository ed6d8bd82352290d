package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.tatikoma.dev/corpix/keel/errors"
	"git.tatikoma.dev/corpix/keel/log"
)

const sampleConfig = `
server:
  url: http://www.example.com
  token: some-token
  reconnect-interval: 5
player:
  volume: 0.8
  fullscreen: true
loglevel: debug
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, sampleConfig), "EXAMPLE")
		require.NoError(t, err)
		assert.True(t, cfg.Has("server"))
		assert.True(t, cfg.Has("loglevel"))
		assert.False(t, cfg.Has("nope"))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "EXAMPLE")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.True(t, errors.IsKnown(err))
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "server: [unclosed"), "EXAMPLE")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrParse))
		assert.True(t, errors.IsKnown(err))
	})
}

func TestGet(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig), "EXAMPLE")
	require.NoError(t, err)
	server := cfg.Sub("server")
	player := cfg.Sub("player")

	t.Run("string", func(t *testing.T) {
		assert.Equal(t, "http://www.example.com", server.GetString("url"))
	})

	t.Run("int", func(t *testing.T) {
		assert.Equal(t, 5, server.GetInt("reconnect-interval"))
	})

	t.Run("float", func(t *testing.T) {
		assert.InDelta(t, 0.8, player.GetFloat("volume"), 1e-9)
	})

	t.Run("bool", func(t *testing.T) {
		assert.True(t, player.GetBool("fullscreen"))
	})

	t.Run("missing key yields the zero value", func(t *testing.T) {
		assert.Equal(t, "", server.GetString("nope"))
		assert.Equal(t, 0, server.GetInt("nope"))
		assert.False(t, player.GetBool("nope"))
	})

	t.Run("missing section yields an empty config", func(t *testing.T) {
		sub := cfg.Sub("nope")
		require.NotNil(t, sub)
		assert.Equal(t, "", sub.GetString("url"))
	})
}

func TestEnvOverride(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig), "EXAMPLE")
	require.NoError(t, err)
	server := cfg.Sub("server")

	t.Run("string", func(t *testing.T) {
		t.Setenv("EXAMPLE_SERVER_URL", "http://other.example.com")
		assert.Equal(t, "http://other.example.com", server.GetString("url"))
	})

	t.Run("dashes map to underscores", func(t *testing.T) {
		t.Setenv("EXAMPLE_SERVER_RECONNECT_INTERVAL", "10")
		assert.Equal(t, 10, server.GetInt("reconnect-interval"))
	})

	t.Run("environment fills in a missing key", func(t *testing.T) {
		t.Setenv("EXAMPLE_SERVER_PASSWORD", "secret")
		assert.Equal(t, "secret", server.GetString("password"))
		assert.True(t, server.Has("password"))
	})

	t.Run("bool and float overrides", func(t *testing.T) {
		t.Setenv("EXAMPLE_PLAYER_FULLSCREEN", "false")
		t.Setenv("EXAMPLE_PLAYER_VOLUME", "0.5")

		player := cfg.Sub("player")
		assert.False(t, player.GetBool("fullscreen"))
		assert.InDelta(t, 0.5, player.GetFloat("volume"), 1e-9)
	})
}

func TestSetLogLevel(t *testing.T) {
	t.Run("from config", func(t *testing.T) {
		defer log.SetLevel(log.WarnLevel)

		cfg, err := Load(writeConfig(t, sampleConfig), "EXAMPLE")
		require.NoError(t, err)

		SetLogLevel(cfg, false)
		assert.Equal(t, log.DebugLevel, log.GetLevel())
	})

	t.Run("debug flag wins", func(t *testing.T) {
		defer log.SetLevel(log.WarnLevel)

		cfg, err := Load(writeConfig(t, "loglevel: error\n"), "EXAMPLE")
		require.NoError(t, err)

		SetLogLevel(cfg, true)
		assert.Equal(t, log.DebugLevel, log.GetLevel())
	})

	t.Run("absent key leaves the level alone", func(t *testing.T) {
		defer log.SetLevel(log.WarnLevel)

		log.SetLevel(log.WarnLevel)
		SetLogLevel(New("EXAMPLE", nil), false)
		assert.Equal(t, log.WarnLevel, log.GetLevel())
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		defer log.SetLevel(log.WarnLevel)

		cfg, err := Load(writeConfig(t, "loglevel: bogus\n"), "EXAMPLE")
		require.NoError(t, err)

		SetLogLevel(cfg, false)
		assert.Equal(t, log.InfoLevel, log.GetLevel())
	})
}
