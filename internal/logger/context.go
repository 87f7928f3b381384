package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for a single dispatched
// packet or outgoing request.
type LogContext struct {
	TraceID   string    // correlation ID for an outer call chain, if any
	StreamID  uint32    // wire stream_id for this exchange
	Opcode    string    // opcode name: RequestInvoke, CapRevoke, etc.
	CapID     string    // capability ID involved, hex-formatted
	Peer      string    // remote address of the other end of the exchange
	StartTime time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext scoped to traffic from peer.
func NewLogContext(peer string) *LogContext {
	return &LogContext{
		Peer:      peer,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		StreamID:  lc.StreamID,
		Opcode:    lc.Opcode,
		CapID:     lc.CapID,
		Peer:      lc.Peer,
		StartTime: lc.StartTime,
	}
}

// WithOpcode returns a copy with the opcode set
func (lc *LogContext) WithOpcode(opcode string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Opcode = opcode
	}
	return clone
}

// WithStream returns a copy with the stream ID set
func (lc *LogContext) WithStream(streamID uint32) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.StreamID = streamID
	}
	return clone
}

// WithCapID returns a copy with the capability ID set
func (lc *LogContext) WithCapID(capID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.CapID = capID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
