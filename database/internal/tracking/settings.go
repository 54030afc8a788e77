// Package tracking instruments gateways with structured query logging, slow request
// detection, OpenTelemetry spans and metrics. Every backend is wrapped the same way.
package tracking

import (
	"time"

	"github.com/gaborage/querybricks/config"
)

const (
	// DefaultSlowQueryThreshold defines the default threshold for slow query detection
	DefaultSlowQueryThreshold = 200 * time.Millisecond
	// DefaultMaxQueryLength defines the default maximum query length for logging
	DefaultMaxQueryLength = 1000
)

// Settings holds configuration for database query tracking and logging.
type Settings struct {
	slowQueryThreshold time.Duration
	slowQueryEnabled   bool
	maxQueryLength     int
	logQueryParameters bool
}

// NewSettings creates Settings populated from the provided database configuration.
// A nil cfg yields the defaults with slow request warnings enabled. Non-positive
// numeric fields fall back to DefaultSlowQueryThreshold and DefaultMaxQueryLength.
func NewSettings(cfg *config.DatabaseConfig) Settings {
	settings := Settings{
		slowQueryThreshold: DefaultSlowQueryThreshold,
		slowQueryEnabled:   true,
		maxQueryLength:     DefaultMaxQueryLength,
	}

	if cfg == nil {
		return settings
	}

	if cfg.Query.Slow.Threshold > 0 {
		settings.slowQueryThreshold = cfg.Query.Slow.Threshold
	}
	if cfg.Query.Log.MaxLength > 0 {
		settings.maxQueryLength = cfg.Query.Log.MaxLength
	}
	settings.slowQueryEnabled = cfg.Query.Slow.Enabled
	settings.logQueryParameters = cfg.Query.Log.Parameters

	return settings
}

// SlowQueryThreshold returns the threshold for slow query detection
func (s Settings) SlowQueryThreshold() time.Duration {
	return s.slowQueryThreshold
}

// SlowQueryEnabled reports whether slow requests are logged at warn level.
func (s Settings) SlowQueryEnabled() bool {
	return s.slowQueryEnabled
}

// MaxQueryLength returns the maximum query length for logging
func (s Settings) MaxQueryLength() int {
	return s.maxQueryLength
}

// LogQueryParameters returns whether query parameters should be logged
func (s Settings) LogQueryParameters() bool {
	return s.logQueryParameters
}

func (s Settings) isSlow(elapsed time.Duration) bool {
	return s.slowQueryEnabled && elapsed > s.slowQueryThreshold
}
