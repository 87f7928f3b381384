package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// MemoryCopyResponsePayload is the payload following a MemoryCopyResponse
// (opcode 11) header. MemoryCopy (opcode 10) itself carries no payload
// beyond the common header — the cap_id in the header identifies the
// memory object to read.
type MemoryCopyResponsePayload struct {
	Size       uint64 // this chunk's payload length
	BufferSize uint64 // the total memory object size
	Sequence   uint32 // 1-based chunk sequence number
	Buffer     []byte // ≤ MaxChunkSize bytes
}

// Encode appends the payload's packed little-endian bytes to buf.
func (p MemoryCopyResponsePayload) Encode(buf *bytes.Buffer) error {
	if len(p.Buffer) > MaxChunkSize {
		return ErrChunkTooLarge
	}
	if err := binary.Write(buf, binary.LittleEndian, p.Size); err != nil {
		return fmt.Errorf("wire: encode MemoryCopyResponse size: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, p.BufferSize); err != nil {
		return fmt.Errorf("wire: encode MemoryCopyResponse buffer_size: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, p.Sequence); err != nil {
		return fmt.Errorf("wire: encode MemoryCopyResponse sequence: %w", err)
	}
	buf.Write(p.Buffer)
	return nil
}

// DecodeMemoryCopyResponsePayload reads a MemoryCopyResponsePayload from r.
// The buffer is read to the end of r (UDP datagrams carry no trailing
// data beyond the payload), then truncated to Size if Size is smaller.
func DecodeMemoryCopyResponsePayload(r io.Reader) (MemoryCopyResponsePayload, error) {
	header := make([]byte, 8+8+4)
	if _, err := io.ReadFull(r, header); err != nil {
		return MemoryCopyResponsePayload{}, fmt.Errorf("wire: decode MemoryCopyResponse header: %w", ErrShortDatagram)
	}

	p := MemoryCopyResponsePayload{
		Size:       binary.LittleEndian.Uint64(header[0:8]),
		BufferSize: binary.LittleEndian.Uint64(header[8:16]),
		Sequence:   binary.LittleEndian.Uint32(header[16:20]),
	}

	rest, err := io.ReadAll(r)
	if err != nil {
		return MemoryCopyResponsePayload{}, fmt.Errorf("wire: decode MemoryCopyResponse buffer: %w", err)
	}
	if uint64(len(rest)) < p.Size {
		return MemoryCopyResponsePayload{}, fmt.Errorf("wire: decode MemoryCopyResponse buffer: %w", ErrShortDatagram)
	}
	p.Buffer = rest[:p.Size]

	return p, nil
}

// ChunkMemory splits buf into ascending-sequence MemoryCopyResponse
// payloads of at most MaxChunkSize bytes each, per §4.3.2's MemoryCopy
// dispatch rule. Sequence numbers start at 1.
func ChunkMemory(buf []byte) []MemoryCopyResponsePayload {
	if len(buf) == 0 {
		return []MemoryCopyResponsePayload{{
			Size:       0,
			BufferSize: 0,
			Sequence:   1,
			Buffer:     nil,
		}}
	}

	total := uint64(len(buf))
	var chunks []MemoryCopyResponsePayload
	seq := uint32(1)
	for offset := 0; offset < len(buf); offset += MaxChunkSize {
		end := offset + MaxChunkSize
		if end > len(buf) {
			end = len(buf)
		}
		chunk := buf[offset:end]
		chunks = append(chunks, MemoryCopyResponsePayload{
			Size:       uint64(len(chunk)),
			BufferSize: total,
			Sequence:   seq,
			Buffer:     chunk,
		})
		seq++
	}
	return chunks
}
