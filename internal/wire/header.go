package wire

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// CapabilityID is the 128-bit unforgeable handle identifying a capability.
// It is transmitted as 16 raw bytes with no endianness interpretation — the
// value is opaque, chosen uniformly at random, and only ever compared for
// equality.
type CapabilityID = uuid.UUID

// NilCapabilityID is the all-zero capability ID, used in continuation slots
// to mean "no continuation" per §4.4.
var NilCapabilityID = CapabilityID{}

// NewCapabilityID returns a new, uniformly random capability ID.
func NewCapabilityID() CapabilityID {
	var id CapabilityID
	if _, err := rand.Read(id[:]); err != nil {
		// crypto/rand.Read only fails if the OS entropy source is broken;
		// there is no sane recovery, so fall back to uuid's own generator.
		return uuid.New()
	}
	return id
}

// NewStreamID returns a fresh random stream_id nonce for an outgoing
// request header.
func NewStreamID() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(buf[:])
}

// HeaderSize is the fixed, packed size of CommonHeader on the wire.
const HeaderSize = 8 + 4 + 4 + 16

// CommonHeader is the 32-byte header prefixing every packet.
type CommonHeader struct {
	Size     uint64
	StreamID uint32
	Cmd      Opcode
	CapID    CapabilityID
}

// Encode writes the header's packed little-endian representation to buf.
func (h CommonHeader) Encode(buf *bytes.Buffer) error {
	if err := binary.Write(buf, binary.LittleEndian, h.Size); err != nil {
		return fmt.Errorf("wire: encode header size: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, h.StreamID); err != nil {
		return fmt.Errorf("wire: encode header stream_id: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(h.Cmd)); err != nil {
		return fmt.Errorf("wire: encode header cmd: %w", err)
	}
	if _, err := buf.Write(h.CapID[:]); err != nil {
		return fmt.Errorf("wire: encode header cap_id: %w", err)
	}
	return nil
}

// DecodeHeader reads a CommonHeader from r. It returns ErrShortDatagram if
// fewer than HeaderSize bytes are available.
func DecodeHeader(r io.Reader) (CommonHeader, error) {
	raw := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return CommonHeader{}, fmt.Errorf("wire: decode header: %w", ErrShortDatagram)
	}

	var h CommonHeader
	h.Size = binary.LittleEndian.Uint64(raw[0:8])
	h.StreamID = binary.LittleEndian.Uint32(raw[8:12])
	h.Cmd = Opcode(binary.LittleEndian.Uint32(raw[12:16]))
	copy(h.CapID[:], raw[16:32])
	return h, nil
}
