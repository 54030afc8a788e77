package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var errNotInitialized = errors.New("configuration not initialized")

// value reads key with read, falling back to the first default (or the zero value) when
// the key is absent.
func value[T any](c *Config, key string, read func(string) T, defaults []T) T {
	if !c.Exists(key) {
		var zero T
		if len(defaults) > 0 {
			return defaults[0]
		}
		return zero
	}
	return read(key)
}

// GetString returns the string at key or the optional default.
func (c *Config) GetString(key string, defaultVal ...string) string {
	return value(c, key, func(k string) string { return c.k.String(k) }, defaultVal)
}

// GetInt returns the int at key or the optional default.
func (c *Config) GetInt(key string, defaultVal ...int) int {
	return value(c, key, func(k string) int { return c.k.Int(k) }, defaultVal)
}

// GetBool returns the bool at key or the optional default.
func (c *Config) GetBool(key string, defaultVal ...bool) bool {
	return value(c, key, func(k string) bool { return c.k.Bool(k) }, defaultVal)
}

// GetDuration accepts "250ms"-style strings or nanosecond integers.
func (c *Config) GetDuration(key string, defaultVal ...time.Duration) time.Duration {
	return value(c, key, func(k string) time.Duration { return c.k.Duration(k) }, defaultVal)
}

// GetRequiredString fails when key is absent or blank.
func (c *Config) GetRequiredString(key string) (string, error) {
	if !c.Exists(key) {
		return "", fmt.Errorf("required configuration key '%s' is missing", key)
	}
	v := strings.TrimSpace(c.k.String(key))
	if v == "" {
		return "", fmt.Errorf("required configuration key '%s' is empty", key)
	}
	return v, nil
}

// Unmarshal decodes the section at key into out. An empty key decodes everything.
func (c *Config) Unmarshal(key string, out any) error {
	if c == nil || c.k == nil {
		return errNotInitialized
	}
	return c.k.Unmarshal(key, out)
}

// Exists is false on a nil or zero Config.
func (c *Config) Exists(key string) bool {
	return c != nil && c.k != nil && c.k.Exists(key)
}

// All returns every key flattened to its dotted path.
func (c *Config) All() map[string]any {
	if c == nil || c.k == nil {
		return nil
	}
	return c.k.All()
}
