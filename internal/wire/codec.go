package wire

import (
	"bytes"
	"fmt"
)

// Payload is implemented by every opcode-specific payload type.
type Payload interface {
	Encode(buf *bytes.Buffer) error
}

// EncodePacket serializes a header followed by an optional payload into a
// single datagram buffer. Pass a nil payload for opcodes that carry no
// payload beyond the common header (MemoryCopy, the Controller opcodes).
func EncodePacket(h CommonHeader, p Payload) ([]byte, error) {
	var buf bytes.Buffer
	if err := h.Encode(&buf); err != nil {
		return nil, fmt.Errorf("wire: encode packet header: %w", err)
	}
	if p != nil {
		if err := p.Encode(&buf); err != nil {
			return nil, fmt.Errorf("wire: encode packet payload: %w", err)
		}
	}
	return buf.Bytes(), nil
}
