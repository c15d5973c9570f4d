// Package frame implements Bolt's chunked message framing: a payload is
// split into length-prefixed chunks of at most 32767 bytes, terminated
// by a zero-length chunk. Framing is stateless between messages and
// does not interpret the bytes it carries.
package frame

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxChunkSize is the largest payload Write puts in a single chunk
// (0x7FFF). Read accepts any length the 16-bit header can carry.
const MaxChunkSize = 0x7FFF

// Error reports a framing failure, such as a short read mid-frame.
type Error struct {
	Message string
}

func (e *Error) Error() string { return "frame: " + e.Message }

// Write splits payload into chunks of at most MaxChunkSize bytes and
// writes them to w, followed by a zero-length terminator chunk. An
// empty payload is written as just the terminator.
func Write(w io.Writer, payload []byte) error {
	var header [2]byte
	for offset := 0; offset < len(payload); offset += MaxChunkSize {
		end := offset + MaxChunkSize
		if end > len(payload) {
			end = len(payload)
		}
		chunk := payload[offset:end]
		binary.BigEndian.PutUint16(header[:], uint16(len(chunk)))
		if _, err := w.Write(header[:]); err != nil {
			return &Error{Message: fmt.Sprintf("write chunk header: %v", err)}
		}
		if _, err := w.Write(chunk); err != nil {
			return &Error{Message: fmt.Sprintf("write chunk data: %v", err)}
		}
	}
	binary.BigEndian.PutUint16(header[:], 0)
	if _, err := w.Write(header[:]); err != nil {
		return &Error{Message: fmt.Sprintf("write terminator: %v", err)}
	}
	return nil
}

// Read accumulates chunks from r until a zero-length chunk terminates
// the frame, and returns the concatenated payload.
func Read(r io.Reader) ([]byte, error) {
	var payload []byte
	var header [2]byte
	for {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return nil, &Error{Message: fmt.Sprintf("Truncated: reading chunk header: %v", err)}
		}
		size := binary.BigEndian.Uint16(header[:])
		if size == 0 {
			return payload, nil
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, &Error{Message: fmt.Sprintf("Truncated: reading chunk data: %v", err)}
		}
		payload = append(payload, chunk...)
	}
}
