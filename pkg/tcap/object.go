package tcap

import "sync"

// RequestHandler is invoked locally when a bound request capability is
// invoked, either from a local caller's short-circuit or from a dispatched
// RequestInvoke packet. conts holds one slot per continuation capability
// ID carried on the invocation; a nil entry means that slot was zero or
// referenced an unknown capability.
//
// Handlers must be safe for concurrent invocation: request_invoke imposes
// no serialization on the same local capability (see spec's open question
// on concurrent invocation).
type RequestHandler func(conts []*Capability) error

// RequestObject is a local function or remote stub bound to a Request
// capability.
type RequestObject struct {
	IsLocal bool
	cap     *Capability // back-reference installed at bind time
	Handler RequestHandler
}

// newLocalRequestObject returns a RequestObject wrapping handler, not yet
// bound to any capability.
func newLocalRequestObject(handler RequestHandler) *RequestObject {
	return &RequestObject{IsLocal: true, Handler: handler}
}

// Cap returns the capability this object is bound to, or nil if unbound.
func (o *RequestObject) Cap() *Capability {
	return o.cap
}

// MemoryObject is a byte buffer bound to a Memory capability. Remote
// memory objects are materialized incrementally as MemoryCopyResponse
// chunks arrive; IsLocal is set when the object is created from the first
// response chunk, before the later chunks are appended (see get_buffer in
// capability.go).
type MemoryObject struct {
	mu      sync.Mutex
	IsLocal bool
	cap     *Capability
	Size    uint64
	data    []byte
}

// newLocalMemoryObject wraps buf as a locally owned memory object.
func newLocalMemoryObject(buf []byte) *MemoryObject {
	return &MemoryObject{
		IsLocal: true,
		Size:    uint64(len(buf)),
		data:    buf,
	}
}

// Cap returns the capability this object is bound to, or nil if unbound.
func (o *MemoryObject) Cap() *Capability {
	return o.cap
}

// Bytes returns the object's current buffer. For a local object this is
// the full buffer immediately; for a remote object under construction it
// may be a partial view until assembly finishes.
func (o *MemoryObject) Bytes() []byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]byte, len(o.data))
	copy(out, o.data)
	return out
}

// appendChunk grows data to at least offset+len(chunk) and writes chunk at
// offset, tolerating out-of-order arrival (§4.4's get_buffer contract).
func (o *MemoryObject) appendChunk(offset uint64, chunk []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	need := offset + uint64(len(chunk))
	if uint64(len(o.data)) < need {
		grown := make([]byte, need)
		copy(grown, o.data)
		o.data = grown
	}
	copy(o.data[offset:], chunk)
}

// assembledLen returns how many bytes have been written so far.
func (o *MemoryObject) assembledLen() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return uint64(len(o.data))
}
