package logger

import (
	"time"

	"github.com/rs/zerolog"
)

// LogEventAdapter adapts zerolog events to the LogEvent interface.
type LogEventAdapter struct {
	event  *zerolog.Event
	filter *SensitiveDataFilter
}

func (l *ZeroLogger) newEvent(e *zerolog.Event) LogEvent {
	return &LogEventAdapter{event: e, filter: l.filter}
}

// Info creates an info-level log event
func (l *ZeroLogger) Info() LogEvent { return l.newEvent(l.zlog.Info()) }

// Error creates an error-level log event
func (l *ZeroLogger) Error() LogEvent { return l.newEvent(l.zlog.Error()) }

// Debug creates a debug-level log event
func (l *ZeroLogger) Debug() LogEvent { return l.newEvent(l.zlog.Debug()) }

// Warn creates a warning-level log event
func (l *ZeroLogger) Warn() LogEvent { return l.newEvent(l.zlog.Warn()) }

// Fatal creates a fatal-level log event
func (l *ZeroLogger) Fatal() LogEvent { return l.newEvent(l.zlog.Fatal()) }

// Msg logs the message
func (lea *LogEventAdapter) Msg(msg string) {
	lea.event.Msg(msg)
}

// Msgf logs a formatted message
func (lea *LogEventAdapter) Msgf(format string, args ...any) {
	lea.event.Msgf(format, args...)
}

// Err adds an error to the log event
func (lea *LogEventAdapter) Err(err error) LogEvent {
	lea.event = lea.event.Err(err)
	return lea
}

// Str adds a string field, masked when the key is sensitive
func (lea *LogEventAdapter) Str(key, value string) LogEvent {
	if lea.filter != nil {
		value = lea.filter.FilterString(key, value)
	}
	lea.event = lea.event.Str(key, value)
	return lea
}

func (lea *LogEventAdapter) Bool(key string, value bool) LogEvent {
	lea.event = lea.event.Bool(key, value)
	return lea
}

func (lea *LogEventAdapter) Int(key string, value int) LogEvent {
	lea.event = lea.event.Int(key, value)
	return lea
}

func (lea *LogEventAdapter) Int64(key string, value int64) LogEvent {
	lea.event = lea.event.Int64(key, value)
	return lea
}

func (lea *LogEventAdapter) Uint64(key string, value uint64) LogEvent {
	lea.event = lea.event.Uint64(key, value)
	return lea
}

func (lea *LogEventAdapter) Dur(key string, d time.Duration) LogEvent {
	lea.event = lea.event.Dur(key, d)
	return lea
}

// Interface adds an arbitrary field, filtering nested maps and slices
func (lea *LogEventAdapter) Interface(key string, i any) LogEvent {
	if lea.filter != nil {
		i = lea.filter.FilterValue(key, i)
	}
	lea.event = lea.event.Interface(key, i)
	return lea
}
