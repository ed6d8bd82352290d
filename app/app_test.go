package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.tatikoma.dev/corpix/keel/config"
	"git.tatikoma.dev/corpix/keel/errors"
	"git.tatikoma.dev/corpix/keel/log"
)

func TestExit(t *testing.T) {
	a := New("example", "test application", nil)

	t.Run("nil is a clean exit", func(t *testing.T) {
		assert.Equal(t, 0, a.Exit(nil))
	})

	t.Run("known errors are operator problems", func(t *testing.T) {
		assert.Equal(t, 1, a.Exit(errors.Known(errors.New("bad config"))))
	})

	t.Run("anything else is a bug", func(t *testing.T) {
		assert.Equal(t, 2, a.Exit(errors.New("surprise")))
	})
}

func TestExec(t *testing.T) {
	t.Run("run receives the loaded config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  url: http://www.example.com\n"), 0o644))

		var got string
		a := New("example", "test application", func(ctx *Context, cfg *config.Config) error {
			got = cfg.Sub("server").GetString("url")
			return nil
		})

		code := a.Exec([]string{"example", "--config", path})
		assert.Equal(t, 0, code)
		assert.Equal(t, "http://www.example.com", got)
	})

	t.Run("missing default config file is tolerated", func(t *testing.T) {
		wd, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(t.TempDir()))
		defer func() { _ = os.Chdir(wd) }()

		var ran bool
		a := New("example", "test application", func(ctx *Context, cfg *config.Config) error {
			ran = true
			require.NotNil(t, cfg)
			return nil
		})

		assert.Equal(t, 0, a.Exec([]string{"example"}))
		assert.True(t, ran)
	})

	t.Run("missing explicit config file is fatal", func(t *testing.T) {
		a := New("example", "test application", func(ctx *Context, cfg *config.Config) error {
			t.Fatal("run must not be called")
			return nil
		})

		code := a.Exec([]string{"example", "--config", filepath.Join(t.TempDir(), "nope.yaml")})
		assert.Equal(t, 1, code)
	})

	t.Run("known failure from run exits 1", func(t *testing.T) {
		a := New("example", "test application", func(ctx *Context, cfg *config.Config) error {
			return errors.Known(errors.New("expected failure"))
		})
		assert.Equal(t, 1, a.Exec([]string{"example"}))
	})

	t.Run("unexpected failure from run exits 2", func(t *testing.T) {
		a := New("example", "test application", func(ctx *Context, cfg *config.Config) error {
			return errors.New("surprise")
		}, WithBugtracker("http://www.example.com/issues"))
		assert.Equal(t, 2, a.Exec([]string{"example"}))
	})

	t.Run("quiet by default", func(t *testing.T) {
		defer log.SetLevel(log.WarnLevel)
		log.SetLevel(log.InfoLevel)

		a := New("example", "test application", func(ctx *Context, cfg *config.Config) error {
			assert.Equal(t, log.WarnLevel, log.GetLevel())
			return nil
		})
		assert.Equal(t, 0, a.Exec([]string{"example"}))
	})

	t.Run("verbose flag raises the log level", func(t *testing.T) {
		defer log.SetLevel(log.WarnLevel)

		a := New("example", "test application", func(ctx *Context, cfg *config.Config) error {
			assert.Equal(t, log.InfoLevel, log.GetLevel())
			return nil
		})
		assert.Equal(t, 0, a.Exec([]string{"example", "--verbose"}))
	})

	t.Run("debug flag wins over the config", func(t *testing.T) {
		defer log.SetLevel(log.WarnLevel)

		a := New("example", "test application", func(ctx *Context, cfg *config.Config) error {
			assert.Equal(t, log.DebugLevel, log.GetLevel())
			return nil
		})
		assert.Equal(t, 0, a.Exec([]string{"example", "--debug"}))
	})
}
