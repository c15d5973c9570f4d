// Package message packs and unpacks Bolt's (tag, fields) structure
// messages atop the packstream codec and frame chunking layer.
package message

import (
	"bytes"
	"fmt"
	"io"

	"github.com/neo4j-drivers/bolt-go/frame"
	"github.com/neo4j-drivers/bolt-go/packstream"
)

// MaxFields is the largest number of fields a structure header can
// declare (a 4-bit nibble).
const MaxFields = 15

// Error reports a message-layer violation, such as a field-count
// mismatch between the declared header and the bytes available.
type Error struct {
	Message string
}

func (e *Error) Error() string { return "message: " + e.Message }

// Write encodes (tag, fields) as a structure header followed by the
// packed fields, and hands the result to the chunked framer.
func Write(w interface{ Write([]byte) error }, tag byte, fields ...packstream.Value) error {
	if len(fields) > MaxFields {
		return &Error{Message: fmt.Sprintf("Malformed: %d fields exceeds max %d", len(fields), MaxFields)}
	}

	var buf bytes.Buffer
	buf.WriteByte(0xB0 + byte(len(fields)))
	buf.WriteByte(tag)
	packer := packstream.NewPacker(&buf)
	for _, f := range fields {
		if err := packer.Pack(f); err != nil {
			return err
		}
	}

	var framed bytes.Buffer
	if err := frame.Write(&framed, buf.Bytes()); err != nil {
		return err
	}
	return w.Write(framed.Bytes())
}

// ReadFrom reads one framed message from r and parses its structure
// header, tag and fields.
func ReadFrom(r io.Reader) (tag byte, fields []packstream.Value, err error) {
	payload, err := frame.Read(r)
	if err != nil {
		return 0, nil, err
	}
	return Decode(payload)
}

// Decode parses a single already-framed message payload into its tag
// and fields.
func Decode(payload []byte) (tag byte, fields []packstream.Value, err error) {
	if len(payload) < 2 {
		return 0, nil, &Error{Message: "Malformed: payload shorter than structure header"}
	}
	header := payload[0]
	if header&0xF0 != 0xB0 {
		return 0, nil, &Error{Message: fmt.Sprintf("Malformed: expected structure header, got 0x%02X", header)}
	}
	n := int(header & 0x0F)
	tag = payload[1]

	unpacker := packstream.NewUnpacker(bytes.NewReader(payload[2:]))
	fields = make([]packstream.Value, n)
	for i := 0; i < n; i++ {
		v, err := unpacker.Unpack()
		if err != nil {
			return 0, nil, &Error{Message: fmt.Sprintf("Malformed: field %d: %v", i, err)}
		}
		fields[i] = v
	}
	return tag, fields, nil
}
