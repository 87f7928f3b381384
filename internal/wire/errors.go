package wire

import "errors"

// Sentinel errors for codec-level protocol violations. Callers wrap these
// with fmt.Errorf("...: %w", ErrX) and compare with errors.Is.
var (
	// ErrShortDatagram is returned when a datagram is smaller than the
	// structure being decoded from it.
	ErrShortDatagram = errors.New("wire: datagram shorter than declared structure")

	// ErrUnknownOpcode identifies a cmd value that matches none of this
	// package's opcodes. DecodeHeader does not check cmd and no decoder
	// here returns it; unknown opcodes must be logged and dropped, never
	// panicked on.
	ErrUnknownOpcode = errors.New("wire: unknown opcode")

	// ErrTooManyContinuations is returned when encoding a RequestInvoke
	// with more than four continuation capability IDs.
	ErrTooManyContinuations = errors.New("wire: at most four continuations are supported")

	// ErrChunkTooLarge is returned when encoding a MemoryCopyResponse chunk
	// whose buffer exceeds the 1024-byte wire limit.
	ErrChunkTooLarge = errors.New("wire: memory chunk exceeds 1024 bytes")
)
