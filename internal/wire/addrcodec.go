package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/capnode/tcapd/internal/address"
)

// encodeAddressFull writes the 10-byte (octets + netmask + port) form used
// by CapRevoke's owner_address field.
func encodeAddressFull(buf *bytes.Buffer, a address.Address) error {
	buf.Write(a.Octets[:])
	buf.Write(a.Netmask[:])
	return binary.Write(buf, binary.LittleEndian, a.Port)
}

// decodeAddressFull reads the 10-byte form written by encodeAddressFull.
func decodeAddressFull(r io.Reader) (address.Address, error) {
	raw := make([]byte, 10)
	if _, err := io.ReadFull(r, raw); err != nil {
		return address.Address{}, fmt.Errorf("wire: decode address: %w", ErrShortDatagram)
	}
	var a address.Address
	copy(a.Octets[:], raw[0:4])
	copy(a.Netmask[:], raw[4:8])
	a.Port = binary.LittleEndian.Uint16(raw[8:10])
	return a, nil
}

// encodeAddressShort writes the 6-byte (octets + port) form used by
// InsertCap and CapInvalid, which carry no netmask.
func encodeAddressShort(buf *bytes.Buffer, a address.Address) error {
	buf.Write(a.Octets[:])
	return binary.Write(buf, binary.LittleEndian, a.Port)
}

// decodeAddressShort reads the 6-byte form written by encodeAddressShort.
// The netmask defaults to /32 since it is not carried on the wire.
func decodeAddressShort(r io.Reader) (address.Address, error) {
	raw := make([]byte, 6)
	if _, err := io.ReadFull(r, raw); err != nil {
		return address.Address{}, fmt.Errorf("wire: decode address: %w", ErrShortDatagram)
	}
	var a address.Address
	copy(a.Octets[:], raw[0:4])
	a.Netmask = [4]byte{0xff, 0xff, 0xff, 0xff}
	a.Port = binary.LittleEndian.Uint16(raw[4:6])
	return a, nil
}
