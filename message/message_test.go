package message_test

import (
	"bytes"
	"testing"

	"github.com/neo4j-drivers/bolt-go/message"
	"github.com/neo4j-drivers/bolt-go/packstream"
)

type sink struct{ buf *bytes.Buffer }

func (s sink) Write(p []byte) error {
	_, err := s.buf.Write(p)
	return err
}

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := message.Write(sink{&buf}, 0x01, packstream.Str("a"), packstream.Int(2)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	tag, fields, err := message.ReadFrom(&buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if tag != 0x01 {
		t.Fatalf("tag = 0x%02X, want 0x01", tag)
	}
	if len(fields) != 2 || fields[0].Str != "a" || fields[1].Int != 2 {
		t.Fatalf("fields = %+v", fields)
	}
}

func TestZeroFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := message.Write(sink{&buf}, 0x02); err != nil {
		t.Fatalf("Write: %v", err)
	}
	tag, fields, err := message.ReadFrom(&buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if tag != 0x02 || len(fields) != 0 {
		t.Fatalf("tag=0x%02X fields=%+v, want tag 0x02, no fields", tag, fields)
	}
}

func TestMaxFields(t *testing.T) {
	t.Parallel()

	fields := make([]packstream.Value, message.MaxFields)
	for i := range fields {
		fields[i] = packstream.Int(int64(i))
	}

	var buf bytes.Buffer
	if err := message.Write(sink{&buf}, 0x10, fields...); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_, got, err := message.ReadFrom(&buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if len(got) != message.MaxFields {
		t.Fatalf("got %d fields, want %d", len(got), message.MaxFields)
	}
}

func TestFieldCountExceedsMax(t *testing.T) {
	t.Parallel()

	fields := make([]packstream.Value, message.MaxFields+1)
	for i := range fields {
		fields[i] = packstream.Int(int64(i))
	}

	var buf bytes.Buffer
	if err := message.Write(sink{&buf}, 0x10, fields...); err == nil {
		t.Fatal("expected error for field count exceeding MaxFields")
	}
}

func TestDecodeRejectsNonStructureHeader(t *testing.T) {
	t.Parallel()

	_, _, err := message.Decode([]byte{0x01, 0x02})
	if err == nil {
		t.Fatal("expected Malformed error for non-structure-header payload")
	}
}

func TestDecodeRejectsShortPayload(t *testing.T) {
	t.Parallel()

	_, _, err := message.Decode([]byte{0xB0})
	if err == nil {
		t.Fatal("expected Malformed error for payload shorter than header")
	}
}
