package tcap

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the capability runtime. Wrapped with
// fmt.Errorf("...: %w", ...) at layer boundaries and compared with
// errors.Is at call sites.
var (
	// ErrUnknownCapability identifies a capability ID with no entry in the
	// local table. No function in this package returns it: lookups report
	// absence through a bool, and remote callers see ErrInvokeRefused.
	ErrUnknownCapability = errors.New("tcap: unknown capability")

	// ErrCapabilityTypeMismatch is returned when an operation expects a
	// capability of a different type than the one bound (e.g. MemoryCopy
	// against a Request capability). It is returned to the caller; the
	// Service does not stop on it. A MemoryCopy for a non-memory
	// capability is logged at error level and dropped.
	ErrCapabilityTypeMismatch = errors.New("tcap: capability type mismatch")

	// ErrAlreadyBound is returned by bind_req/bind_mem when the
	// capability already carries a bound object.
	ErrAlreadyBound = errors.New("tcap: capability already bound")

	// ErrNotLocal is returned when BindReq or BindMem is attempted on a
	// remote capability.
	ErrNotLocal = errors.New("tcap: capability is not local")

	// ErrHandlerFailed wraps a RequestObject handler's own error when its
	// response_code is reported back to the caller.
	ErrHandlerFailed = errors.New("tcap: request handler failed")

	// ErrInvokeRefused is returned by request_invoke when the remote peer
	// replied CapInvalid instead of RequestResponse.
	ErrInvokeRefused = errors.New("tcap: remote invoke refused: capability invalid")

	// ErrUnexpectedOpcode is returned when a correlated response's opcode
	// does not match what the caller expected.
	ErrUnexpectedOpcode = errors.New("tcap: unexpected opcode in correlated response")

	// ErrTerminated is returned by operations attempted after Terminate
	// has revoked the table and begun shutting the Service down.
	ErrTerminated = errors.New("tcap: service is terminated")

	// ErrSendQueueFull is returned when the bounded outgoing send queue
	// is at capacity.
	ErrSendQueueFull = errors.New("tcap: send queue is full")
)

// fmtCapID hex-formats a capability ID's raw bytes for log fields.
func fmtCapID(id []byte) string {
	return fmt.Sprintf("%x", id)
}
