package tcap

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/capnode/tcapd/internal/address"
	"github.com/capnode/tcapd/internal/bytesize"
	"github.com/capnode/tcapd/internal/logger"
	"github.com/capnode/tcapd/internal/wire"
)

// Capability is an unforgeable handle referencing a local or remote
// object. Per §9's collapsed-lock design, a single mutex guards the three
// fields that change after construction (type, delegatees, bound object);
// id, owner, and service are set once at construction and never mutated.
type Capability struct {
	id      wire.CapabilityID
	owner   address.Address
	service *Service

	mu         sync.Mutex
	typ        wire.CapType
	delegatees []address.Address
	boundReq   *RequestObject
	boundMem   *MemoryObject
}

// newCapability constructs an unbound capability with the given owner.
// Callers are responsible for inserting it into the table.
func newCapability(svc *Service, id wire.CapabilityID, owner address.Address) *Capability {
	return &Capability{
		id:      id,
		owner:   owner,
		service: svc,
		typ:     wire.CapTypeNone,
	}
}

// ID returns the capability's 128-bit identifier. Constant over the
// capability's lifetime.
func (c *Capability) ID() wire.CapabilityID { return c.id }

// Owner returns the address hosting this capability's bound object.
func (c *Capability) Owner() address.Address { return c.owner }

// IsLocal reports whether this capability's owner is this node's own
// Service address. Only local capabilities may be bound.
func (c *Capability) IsLocal() bool {
	return c.owner.Equal(c.service.address)
}

// Type returns the capability's current binding type.
func (c *Capability) Type() wire.CapType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typ
}

// Delegatees returns a snapshot of the recorded delegatee set.
func (c *Capability) Delegatees() []address.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]address.Address, len(c.delegatees))
	copy(out, c.delegatees)
	return out
}

// BindReq attaches handler as this capability's request object. A
// capability may be bound at most once, and only a local capability may
// be bound at all.
func (c *Capability) BindReq(handler RequestHandler) error {
	if !c.IsLocal() {
		return fmt.Errorf("tcap: bind_req on %s: %w", c.id, ErrNotLocal)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.boundReq != nil || c.boundMem != nil {
		return fmt.Errorf("tcap: bind_req on %s: %w", c.id, ErrAlreadyBound)
	}

	obj := newLocalRequestObject(handler)
	obj.cap = c
	c.boundReq = obj
	c.typ = wire.CapTypeRequest
	return nil
}

// BindMem attaches buf as this capability's memory object.
func (c *Capability) BindMem(buf []byte) error {
	if !c.IsLocal() {
		return fmt.Errorf("tcap: bind_mem on %s: %w", c.id, ErrNotLocal)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.boundReq != nil || c.boundMem != nil {
		return fmt.Errorf("tcap: bind_mem on %s: %w", c.id, ErrAlreadyBound)
	}

	obj := newLocalMemoryObject(buf)
	obj.cap = c
	c.boundMem = obj
	c.typ = wire.CapTypeMemory
	return nil
}

// Delegate appends delegatee to this capability's delegatee set and
// sends InsertCap to it, optionally mirroring the packet to the switch
// when the service is configured for direct-control-plane-copies.
// Delegation of a non-owned capability is permitted by this spec: owner
// semantics always stay with the original owner, regardless of who calls
// delegate.
func (c *Capability) Delegate(ctx context.Context, delegatee address.Address) error {
	c.mu.Lock()
	c.delegatees = append(c.delegatees, delegatee)
	typ := c.typ
	c.mu.Unlock()

	payload := wire.InsertCapPayload{
		CapOwner:    delegatee,
		CapID:       c.id,
		CapType:     typ,
		ObjectOwner: c.owner,
	}
	header := wire.CommonHeader{StreamID: wire.NewStreamID(), Cmd: wire.OpInsertCap, CapID: c.id}

	if err := c.service.sendPacket(ctx, header, payload, delegatee); err != nil {
		return fmt.Errorf("tcap: delegate %s to %s: %w", c.id, delegatee, err)
	}
	if c.service.cfg.DirectControlPlaneCopies {
		if err := c.service.sendPacket(ctx, header, payload, c.service.switchAddr); err != nil {
			c.service.logSendFailure("delegate switch copy", err)
		}
	}
	return nil
}

// Revoke emits RevokeCap to every recorded delegatee (and the switch, if
// configured) and removes the capability from the local table. Calling
// revoke on a capability this node does not own is not prevented by this
// spec; the observed behavior (send revokes to this node's own recorded
// delegatees, then remove locally) is preserved unconditionally.
func (c *Capability) Revoke(ctx context.Context) error {
	c.mu.Lock()
	delegatees := make([]address.Address, len(c.delegatees))
	copy(delegatees, c.delegatees)
	c.mu.Unlock()

	payload := wire.CapRevokePayload{Owner: c.owner, CapID: c.id}
	header := wire.CommonHeader{StreamID: wire.NewStreamID(), Cmd: wire.OpCapRevoke, CapID: c.id}

	for _, d := range delegatees {
		if err := c.service.sendPacket(ctx, header, payload, d); err != nil {
			c.service.logSendFailure("revoke delegatee", err)
		}
	}
	if c.service.cfg.DirectControlPlaneCopies {
		if err := c.service.sendPacket(ctx, header, payload, c.service.switchAddr); err != nil {
			c.service.logSendFailure("revoke switch copy", err)
		}
	}

	c.service.table.Remove(c.id)
	return nil
}

// RevokeOnNode sends the CapRevoke packet only to the switch address,
// used by the controller-driven revoke variant.
func (c *Capability) RevokeOnNode(ctx context.Context) error {
	payload := wire.CapRevokePayload{Owner: c.owner, CapID: c.id}
	header := wire.CommonHeader{StreamID: wire.NewStreamID(), Cmd: wire.OpCapRevoke, CapID: c.id}
	if err := c.service.sendPacket(ctx, header, payload, c.service.switchAddr); err != nil {
		return fmt.Errorf("tcap: revoke_on_node %s: %w", c.id, err)
	}
	return nil
}

// onRevokeReceived handles an incoming CapRevoke for this capability: it
// propagates the revoke to this node's own delegatees (recursively) and
// removes the local table entry, per §4.3.2's CapRevoke dispatch rule.
func (c *Capability) onRevokeReceived(ctx context.Context) {
	c.mu.Lock()
	delegatees := make([]address.Address, len(c.delegatees))
	copy(delegatees, c.delegatees)
	c.mu.Unlock()

	payload := wire.CapRevokePayload{Owner: c.owner, CapID: c.id}
	header := wire.CommonHeader{StreamID: wire.NewStreamID(), Cmd: wire.OpCapRevoke, CapID: c.id}
	for _, d := range delegatees {
		if err := c.service.sendPacket(ctx, header, payload, d); err != nil {
			c.service.logSendFailure("propagate revoke", err)
		}
	}
	c.service.table.Remove(c.id)
}

// RequestInvoke builds a RequestInvoke packet carrying up to four
// continuation capability IDs and sends it to this capability's owner.
// Local owners are short-circuited: the bound handler runs directly
// without a wire round trip. If wait is true, the call blocks for a
// RequestResponse and returns its response_code (0 = success,
// ResponseCodeHandlerError on handler failure); ErrInvokeRefused is
// returned if the owner replied CapInvalid instead.
func (c *Capability) RequestInvoke(ctx context.Context, continuations []wire.CapabilityID, wait bool) (uint64, error) {
	if c.IsLocal() {
		conts, err := c.service.resolveContinuations(continuations)
		if err != nil {
			return 0, fmt.Errorf("tcap: request_invoke %s: %w", c.id, err)
		}
		return c.invokeLocalHandler(conts)
	}

	payload, err := wire.NewRequestInvokePayload(continuations, wait)
	if err != nil {
		return 0, fmt.Errorf("tcap: request_invoke %s: %w", c.id, err)
	}
	streamID := wire.NewStreamID()
	header := wire.CommonHeader{StreamID: streamID, Cmd: wire.OpRequestInvoke, CapID: c.id}

	if !wait {
		if err := c.service.sendPacket(ctx, header, payload, c.owner); err != nil {
			return 0, fmt.Errorf("tcap: request_invoke %s: %w", c.id, err)
		}
		return 0, nil
	}

	n, err := c.service.sendAndWait(ctx, header, payload, c.owner, streamID)
	if err != nil {
		return 0, fmt.Errorf("tcap: request_invoke %s: %w", c.id, err)
	}
	defer c.service.forgetNotifier(streamID)

	if err := n.Acquire(ctx, 1); err != nil {
		return 0, fmt.Errorf("tcap: request_invoke %s: await response: %w", c.id, err)
	}

	raw, ok := c.service.getResponse(streamID)
	if !ok {
		return 0, fmt.Errorf("tcap: request_invoke %s: no response recorded", c.id)
	}
	return c.interpretInvokeResponse(raw)
}

// invokeLocalHandler calls the bound request handler exactly once and
// maps its error (if any) to a response_code.
func (c *Capability) invokeLocalHandler(conts []*Capability) (uint64, error) {
	c.mu.Lock()
	obj := c.boundReq
	c.mu.Unlock()
	if obj == nil {
		return 0, fmt.Errorf("tcap: request_invoke %s: %w", c.id, ErrCapabilityTypeMismatch)
	}

	if err := obj.Handler(conts); err != nil {
		return wire.ResponseCodeHandlerError, fmt.Errorf("%w: %v", ErrHandlerFailed, err)
	}
	return wire.ResponseCodeSuccess, nil
}

// interpretInvokeResponse decodes raw bytes from either RequestResponse
// or CapInvalid, since either can legally arrive on this stream.
func (c *Capability) interpretInvokeResponse(raw dispatchedResponse) (uint64, error) {
	switch raw.header.Cmd {
	case wire.OpRequestResponse:
		resp, err := wire.DecodeRequestResponsePayload(raw.reader())
		if err != nil {
			return 0, err
		}
		if resp.ResponseCode != wire.ResponseCodeSuccess {
			return resp.ResponseCode, fmt.Errorf("%w: code %d", ErrHandlerFailed, resp.ResponseCode)
		}
		return resp.ResponseCode, nil
	case wire.OpCapInvalid:
		return 0, ErrInvokeRefused
	default:
		return 0, fmt.Errorf("tcap: request_invoke %s: %w: got %s", c.id, ErrUnexpectedOpcode, raw.header.Cmd)
	}
}

// GetBuffer returns this capability's memory contents. Valid only when
// Type() == Memory. A local, already-bound memory object is returned
// directly; a remote one is fetched via MemoryCopy, tolerating chunks
// that arrive out of order.
func (c *Capability) GetBuffer(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	typ := c.typ
	bound := c.boundMem
	c.mu.Unlock()

	if typ != wire.CapTypeMemory {
		return nil, fmt.Errorf("tcap: get_buffer %s: %w", c.id, ErrCapabilityTypeMismatch)
	}
	if bound != nil && bound.IsLocal {
		return bound.Bytes(), nil
	}

	streamID := wire.NewStreamID()
	header := wire.CommonHeader{StreamID: streamID, Cmd: wire.OpMemoryCopy, CapID: c.id}

	n, err := c.service.sendAndWait(ctx, header, nil, c.owner, streamID)
	if err != nil {
		return nil, fmt.Errorf("tcap: get_buffer %s: %w", c.id, err)
	}
	defer c.service.forgetNotifier(streamID)

	// The first permits may belong to any chunk; keep acquiring until
	// sequence 1, which is read first for buffer_size, has been stored.
	acquired := 0
	var first dispatchedResponse
	for {
		if err := n.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("tcap: get_buffer %s: await first chunk: %w", c.id, err)
		}
		acquired++
		if r, ok := c.service.getResponse(streamID + 1); ok {
			first = r
			break
		}
	}
	firstChunk, err := wire.DecodeMemoryCopyResponsePayload(first.reader())
	if err != nil {
		return nil, fmt.Errorf("tcap: get_buffer %s: %w", c.id, err)
	}

	obj := newLocalMemoryObject(nil)
	obj.Size = firstChunk.BufferSize
	obj.appendChunk(0, firstChunk.Buffer)

	logger.Debug("get_buffer: first chunk received",
		"cap_id", fmtCapID(c.id[:]),
		"size", bytesize.ByteSize(firstChunk.BufferSize).String())

	total := int(math.Ceil(float64(firstChunk.BufferSize) / float64(wire.MaxChunkSize)))
	if total > 1 {
		if remaining := total - acquired; remaining > 0 {
			if err := n.Acquire(ctx, remaining); err != nil {
				return nil, fmt.Errorf("tcap: get_buffer %s: await remaining chunks: %w", c.id, err)
			}
		}
		for i := 2; i <= total; i++ {
			raw, ok := c.service.getResponse(streamID + uint32(i))
			if !ok {
				continue
			}
			chunk, err := wire.DecodeMemoryCopyResponsePayload(raw.reader())
			if err != nil {
				return nil, fmt.Errorf("tcap: get_buffer %s: %w", c.id, err)
			}
			offset := (uint64(chunk.Sequence) - 1) * wire.MaxChunkSize
			obj.appendChunk(offset, chunk.Buffer)
		}
	}

	if obj.assembledLen() < obj.Size {
		return nil, fmt.Errorf("tcap: get_buffer %s: assembled %d of %d bytes", c.id, obj.assembledLen(), obj.Size)
	}

	return obj.Bytes()[:obj.Size], nil
}
