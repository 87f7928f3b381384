package wire

import (
	"bytes"
	"fmt"
	"io"
)

// RequestInvokePayload is the payload following a RequestInvoke (opcode 14)
// header. Sent by a caller to a request capability's owner.
type RequestInvokePayload struct {
	NumConts      uint8
	Continuations [MaxContinuations]CapabilityID
	Flags         uint8
}

// RequireResponse reports whether FlagRequireResponse is set.
func (p RequestInvokePayload) RequireResponse() bool {
	return p.Flags&FlagRequireResponse != 0
}

// Encode appends the payload's packed little-endian bytes to buf.
func (p RequestInvokePayload) Encode(buf *bytes.Buffer) error {
	buf.WriteByte(p.NumConts)
	for _, id := range p.Continuations {
		if _, err := buf.Write(id[:]); err != nil {
			return fmt.Errorf("wire: encode RequestInvoke continuation: %w", err)
		}
	}
	buf.WriteByte(p.Flags)
	return nil
}

// DecodeRequestInvokePayload reads a RequestInvokePayload from r.
func DecodeRequestInvokePayload(r io.Reader) (RequestInvokePayload, error) {
	var p RequestInvokePayload

	var numConts [1]byte
	if _, err := io.ReadFull(r, numConts[:]); err != nil {
		return p, fmt.Errorf("wire: decode RequestInvoke number_of_conts: %w", ErrShortDatagram)
	}
	p.NumConts = numConts[0]

	for i := range p.Continuations {
		if _, err := io.ReadFull(r, p.Continuations[i][:]); err != nil {
			return p, fmt.Errorf("wire: decode RequestInvoke continuation %d: %w", i, ErrShortDatagram)
		}
	}

	var flags [1]byte
	if _, err := io.ReadFull(r, flags[:]); err != nil {
		return p, fmt.Errorf("wire: decode RequestInvoke flags: %w", ErrShortDatagram)
	}
	p.Flags = flags[0]

	return p, nil
}

// NewRequestInvokePayload builds a payload from up to four continuation
// IDs; unused slots are left as NilCapabilityID per §4.4.
func NewRequestInvokePayload(continuations []CapabilityID, requireResponse bool) (RequestInvokePayload, error) {
	if len(continuations) > MaxContinuations {
		return RequestInvokePayload{}, ErrTooManyContinuations
	}

	p := RequestInvokePayload{NumConts: uint8(len(continuations))}
	copy(p.Continuations[:], continuations)
	if requireResponse {
		p.Flags |= FlagRequireResponse
	}
	return p, nil
}
