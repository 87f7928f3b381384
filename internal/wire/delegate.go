package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/capnode/tcapd/internal/address"
)

// CapType classifies what a capability is bound to. Set on bind; zero
// value (CapTypeNone) means the capability is unbound.
type CapType uint8

const (
	CapTypeNone    CapType = 0
	CapTypeRequest CapType = 1
	CapTypeMemory  CapType = 2
)

func (t CapType) String() string {
	switch t {
	case CapTypeNone:
		return "None"
	case CapTypeRequest:
		return "Request"
	case CapTypeMemory:
		return "Memory"
	default:
		return "Unknown"
	}
}

// InsertCapPayload is the payload following an InsertCap (opcode 64)
// header. Sent by a delegator to a delegatee (and optionally the switch)
// to introduce a capability into the delegatee's table.
type InsertCapPayload struct {
	CapOwner    address.Address // the delegatee the capability is introduced to
	CapID       CapabilityID
	CapType     CapType
	ObjectOwner address.Address // the node hosting the bound object; the receiver records it as owner
}

// Encode appends the payload's packed little-endian bytes to buf.
func (p InsertCapPayload) Encode(buf *bytes.Buffer) error {
	if err := encodeAddressShort(buf, p.CapOwner); err != nil {
		return fmt.Errorf("wire: encode InsertCap cap_owner: %w", err)
	}
	if _, err := buf.Write(p.CapID[:]); err != nil {
		return fmt.Errorf("wire: encode InsertCap cap_id: %w", err)
	}
	buf.WriteByte(byte(p.CapType))
	if err := encodeAddressShort(buf, p.ObjectOwner); err != nil {
		return fmt.Errorf("wire: encode InsertCap object_owner: %w", err)
	}
	return nil
}

// DecodeInsertCapPayload reads an InsertCapPayload from r.
func DecodeInsertCapPayload(r io.Reader) (InsertCapPayload, error) {
	capOwner, err := decodeAddressShort(r)
	if err != nil {
		return InsertCapPayload{}, err
	}

	var capID CapabilityID
	if _, err := io.ReadFull(r, capID[:]); err != nil {
		return InsertCapPayload{}, fmt.Errorf("wire: decode InsertCap cap_id: %w", ErrShortDatagram)
	}

	var typeByte [1]byte
	if _, err := io.ReadFull(r, typeByte[:]); err != nil {
		return InsertCapPayload{}, fmt.Errorf("wire: decode InsertCap cap_type: %w", ErrShortDatagram)
	}

	objectOwner, err := decodeAddressShort(r)
	if err != nil {
		return InsertCapPayload{}, err
	}

	return InsertCapPayload{
		CapOwner:    capOwner,
		CapID:       capID,
		CapType:     CapType(typeByte[0]),
		ObjectOwner: objectOwner,
	}, nil
}
