package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/capnode/tcapd/internal/address"
)

// CapInvalidPayload is the payload following a CapInvalid (opcode 7)
// header. Sent by a callee back to a caller (and optionally the switch)
// when the referenced capability is not present locally.
type CapInvalidPayload struct {
	Addr  address.Address
	CapID CapabilityID
}

// Encode appends the payload's packed little-endian bytes to buf.
func (p CapInvalidPayload) Encode(buf *bytes.Buffer) error {
	if err := encodeAddressShort(buf, p.Addr); err != nil {
		return fmt.Errorf("wire: encode CapInvalid address: %w", err)
	}
	if _, err := buf.Write(p.CapID[:]); err != nil {
		return fmt.Errorf("wire: encode CapInvalid cap_id: %w", err)
	}
	return nil
}

// DecodeCapInvalidPayload reads a CapInvalidPayload from r.
func DecodeCapInvalidPayload(r io.Reader) (CapInvalidPayload, error) {
	addr, err := decodeAddressShort(r)
	if err != nil {
		return CapInvalidPayload{}, err
	}
	var capID CapabilityID
	if _, err := io.ReadFull(r, capID[:]); err != nil {
		return CapInvalidPayload{}, fmt.Errorf("wire: decode CapInvalid cap_id: %w", ErrShortDatagram)
	}
	return CapInvalidPayload{Addr: addr, CapID: capID}, nil
}
