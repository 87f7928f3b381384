package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Response codes carried by RequestResponsePayload.
const (
	ResponseCodeSuccess      uint64 = 0
	ResponseCodeHandlerError uint64 = 100
)

// RequestResponsePayload is the payload following a RequestResponse
// (opcode 17) header, sent by an owner back to a caller.
type RequestResponsePayload struct {
	ResponseCode uint64
}

// Encode appends the payload's packed little-endian bytes to buf.
func (p RequestResponsePayload) Encode(buf *bytes.Buffer) error {
	if err := binary.Write(buf, binary.LittleEndian, p.ResponseCode); err != nil {
		return fmt.Errorf("wire: encode RequestResponse response_code: %w", err)
	}
	return nil
}

// DecodeRequestResponsePayload reads a RequestResponsePayload from r.
func DecodeRequestResponsePayload(r io.Reader) (RequestResponsePayload, error) {
	raw := make([]byte, 8)
	if _, err := io.ReadFull(r, raw); err != nil {
		return RequestResponsePayload{}, fmt.Errorf("wire: decode RequestResponse response_code: %w", ErrShortDatagram)
	}
	return RequestResponsePayload{ResponseCode: binary.LittleEndian.Uint64(raw)}, nil
}
