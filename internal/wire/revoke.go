package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/capnode/tcapd/internal/address"
)

// CapRevokePayload is the payload following a CapRevoke (opcode 6) header.
// Sent by an owner to every recorded delegatee (and optionally the switch)
// when a capability is revoked.
type CapRevokePayload struct {
	Owner address.Address
	CapID CapabilityID
}

// Encode appends the payload's packed little-endian bytes to buf.
func (p CapRevokePayload) Encode(buf *bytes.Buffer) error {
	if err := encodeAddressFull(buf, p.Owner); err != nil {
		return fmt.Errorf("wire: encode CapRevoke owner: %w", err)
	}
	if _, err := buf.Write(p.CapID[:]); err != nil {
		return fmt.Errorf("wire: encode CapRevoke cap_id: %w", err)
	}
	return nil
}

// DecodeCapRevokePayload reads a CapRevokePayload from r.
func DecodeCapRevokePayload(r io.Reader) (CapRevokePayload, error) {
	owner, err := decodeAddressFull(r)
	if err != nil {
		return CapRevokePayload{}, err
	}
	var capID CapabilityID
	if _, err := io.ReadFull(r, capID[:]); err != nil {
		return CapRevokePayload{}, fmt.Errorf("wire: decode CapRevoke cap_id: %w", ErrShortDatagram)
	}
	return CapRevokePayload{Owner: owner, CapID: capID}, nil
}
