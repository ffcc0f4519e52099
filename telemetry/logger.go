// Package telemetry provides a thin structured-logging wrapper around
// zerolog. A zero-value Logger is a silent no-op: callers opt into
// logging by constructing one with New.
package telemetry

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger with handshake/session-shaped decorators.
// No cryptographic key material, plaintext, or signatures are ever
// logged by this package or its callers.
type Logger struct {
	log   zerolog.Logger
	valid bool
}

// New constructs a Logger writing to w at the given level.
func New(w io.Writer, level zerolog.Level) Logger {
	if w == nil {
		w = os.Stderr
	}
	return Logger{
		log:   zerolog.New(w).Level(level).With().Timestamp().Logger(),
		valid: true,
	}
}

// Nop returns a Logger that discards everything, equivalent to the zero
// value.
func Nop() Logger { return Logger{} }

// WithComponent returns a Logger tagged with the given component name.
func (l Logger) WithComponent(name string) Logger {
	if !l.valid {
		return l
	}
	l.log = l.log.With().Str("component", name).Logger()
	return l
}

// WithSession returns a Logger tagged with a handshake/session
// correlation id.
func (l Logger) WithSession(id string) Logger {
	if !l.valid {
		return l
	}
	l.log = l.log.With().Str("session_id", id).Logger()
	return l
}

// WithPeer returns a Logger tagged with a peer onion id.
func (l Logger) WithPeer(onionID string) Logger {
	if !l.valid {
		return l
	}
	l.log = l.log.With().Str("peer", onionID).Logger()
	return l
}

// Debug returns a debug-level event, or a disabled event if the logger is
// a no-op.
func (l Logger) Debug() *zerolog.Event {
	if !l.valid {
		return disabledEvent
	}
	return l.log.Debug()
}

// Warn returns a warn-level event, or a disabled event if the logger is a
// no-op.
func (l Logger) Warn() *zerolog.Event {
	if !l.valid {
		return disabledEvent
	}
	return l.log.Warn()
}

// Info returns an info-level event, or a disabled event if the logger is
// a no-op.
func (l Logger) Info() *zerolog.Event {
	if !l.valid {
		return disabledEvent
	}
	return l.log.Info()
}

var disabledEvent = zerolog.Nop().Debug()
