package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging across the capability
// runtime. Use these keys consistently so log aggregation/querying stays
// uniform between the Service, Capability, and wire codec layers.
const (
	// ========================================================================
	// Correlation
	// ========================================================================
	KeyTraceID  = "trace_id"  // caller-supplied correlation ID, if any
	KeyStreamID = "stream_id" // wire stream_id for this exchange
	KeySequence = "sequence"  // memory-copy chunk sequence number

	// ========================================================================
	// Wire protocol
	// ========================================================================
	KeyOpcode = "opcode" // opcode name: RequestInvoke, CapRevoke, InsertCap, ...
	KeyCapID  = "cap_id" // capability ID, hex-formatted
	KeyPeer   = "peer"   // remote address.Address string of the other end

	// ========================================================================
	// Capability lifecycle
	// ========================================================================
	KeyCapType   = "cap_type"  // None, Request, Memory
	KeyOwner     = "owner"     // capability owner address
	KeyDelegatee = "delegatee" // delegation target address

	// ========================================================================
	// Invocation
	// ========================================================================
	KeyContinuation = "continuation" // continuation capability ID
	KeyResponseCode = "response_code"
	KeyRequireResp  = "require_response"

	// ========================================================================
	// Memory copy
	// ========================================================================
	KeyBufferSize = "buffer_size" // total memory object size
	KeyChunkSize  = "chunk_size"  // this chunk's payload length

	// ========================================================================
	// Operation metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)

// TraceID returns a slog.Attr for a caller-supplied correlation ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// StreamID returns a slog.Attr for the wire stream ID
func StreamID(id uint32) slog.Attr {
	return slog.Uint64(KeyStreamID, uint64(id))
}

// Sequence returns a slog.Attr for a memory-copy chunk sequence number
func Sequence(seq uint32) slog.Attr {
	return slog.Uint64(KeySequence, uint64(seq))
}

// Opcode returns a slog.Attr for the opcode name
func Opcode(name string) slog.Attr {
	return slog.String(KeyOpcode, name)
}

// CapID returns a slog.Attr for a capability ID already hex-formatted
func CapID(id string) slog.Attr {
	return slog.String(KeyCapID, id)
}

// Peer returns a slog.Attr for the remote address of an exchange
func Peer(addr string) slog.Attr {
	return slog.String(KeyPeer, addr)
}

// CapType returns a slog.Attr for a capability type name
func CapType(t string) slog.Attr {
	return slog.String(KeyCapType, t)
}

// Owner returns a slog.Attr for a capability owner address
func Owner(addr string) slog.Attr {
	return slog.String(KeyOwner, addr)
}

// Delegatee returns a slog.Attr for a delegation target address
func Delegatee(addr string) slog.Attr {
	return slog.String(KeyDelegatee, addr)
}

// ResponseCode returns a slog.Attr for a RequestResponse response_code
func ResponseCode(code uint64) slog.Attr {
	return slog.Uint64(KeyResponseCode, code)
}

// RequireResponse returns a slog.Attr for the REQUIRE_RESPONSE flag
func RequireResponse(require bool) slog.Attr {
	return slog.Bool(KeyRequireResp, require)
}

// BufferSize returns a slog.Attr for a memory object's total size
func BufferSize(size uint64) slog.Attr {
	return slog.Uint64(KeyBufferSize, size)
}

// ChunkSize returns a slog.Attr for a single chunk's payload length
func ChunkSize(size uint64) slog.Attr {
	return slog.Uint64(KeyChunkSize, size)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// fmtCapID is a convenience for hex-formatting a byte-slice capability ID.
func fmtCapID(id []byte) string {
	return fmt.Sprintf("%x", id)
}
