// Package config loads application settings from a YAML file, with
// per-key override from environment variables. The variable looked up
// for a key is the accumulated section path, prefixed and upper-cased:
// with prefix EXAMPLE, key "url" of section "server" is overridden by
// EXAMPLE_SERVER_URL.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"git.tatikoma.dev/corpix/keel/errors"
	"git.tatikoma.dev/corpix/keel/log"
)

var (
	// ErrNotFound reports a missing config file.
	ErrNotFound = errors.New("config file not found")

	// ErrParse reports an unreadable config file.
	ErrParse = errors.New("failed to parse config file")
)

// Config is one section of the settings tree.
type Config struct {
	prefix string
	values map[string]any
}

// New wraps an already-decoded settings map. The prefix seeds the
// environment variable lookup.
func New(prefix string, values map[string]any) *Config {
	if values == nil {
		values = map[string]any{}
	}
	return &Config{prefix: prefix, values: values}
}

// Load reads the YAML file at path. A missing or malformed file is a
// known error: the operator fixes it, it is not a bug.
func Load(path string, prefix string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Known(errors.Wrapf(ErrNotFound, "no config file at %q", path))
		}
		return nil, errors.Wrapf(err, "failed to read config file %q", path)
	}

	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, errors.Known(errors.Chain(ErrParse, err))
	}

	log.Debug().Str("config", path).Msg("loaded config file")
	return New(prefix, values), nil
}

// Has reports whether the key is present in the file or overridden by
// the environment.
func (c *Config) Has(key string) bool {
	if _, ok := c.lookupEnv(key); ok {
		return true
	}
	_, ok := c.values[key]
	return ok
}

// Sub returns the named sub-section, with the section name accumulated
// into the environment prefix. A missing section yields an empty
// config, not nil.
func (c *Config) Sub(key string) *Config {
	prefix := c.prefix + "_" + key
	if values, ok := c.values[key].(map[string]any); ok {
		return New(prefix, values)
	}
	return New(prefix, nil)
}

func (c *Config) GetString(key string) string {
	if v, ok := c.lookupEnv(key); ok {
		return v
	}
	if v, ok := c.values[key].(string); ok {
		return v
	}
	return ""
}

func (c *Config) GetBool(key string) bool {
	if v, ok := c.lookupEnv(key); ok {
		b, err := strconv.ParseBool(v)
		errors.Log(err, "invalid boolean for config key %q", key)
		return err == nil && b
	}
	if v, ok := c.values[key].(bool); ok {
		return v
	}
	return false
}

func (c *Config) GetInt(key string) int {
	if v, ok := c.lookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		errors.Log(err, "invalid integer for config key %q", key)
		return n
	}
	switch v := c.values[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func (c *Config) GetFloat(key string) float64 {
	if v, ok := c.lookupEnv(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		errors.Log(err, "invalid float for config key %q", key)
		return f
	}
	switch v := c.values[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	}
	return 0
}

func (c *Config) lookupEnv(key string) (string, bool) {
	name := strings.ToUpper(c.prefix + "_" + key)
	name = strings.NewReplacer("-", "_", ".", "_").Replace(name)
	return os.LookupEnv(name)
}

// SetLogLevel applies the "loglevel" key to the global logger. The
// debug flag wins over the config value; without the key the level
// already set by the caller stands.
func SetLogLevel(c *Config, debug bool) {
	if debug {
		log.SetLevel(log.DebugLevel)
		return
	}
	if !c.Has("loglevel") {
		return
	}

	switch strings.ToLower(c.GetString("loglevel")) {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning", "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}
