package frame_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/neo4j-drivers/bolt-go/frame"
)

func payload(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i)
	}
	return p
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	sizes := []int{0, 1, 100, frame.MaxChunkSize, frame.MaxChunkSize + 1, 65535, 40000}
	for _, n := range sizes {
		n := n
		t.Run("", func(t *testing.T) {
			t.Parallel()

			p := payload(n)
			var buf bytes.Buffer
			if err := frame.Write(&buf, p); err != nil {
				t.Fatalf("Write(%d bytes): %v", n, err)
			}
			got, err := frame.Read(&buf)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if !bytes.Equal(got, p) {
				t.Fatalf("round trip mismatch for %d-byte payload", n)
			}
		})
	}
}

func TestChunkLengthsCapped(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := frame.Write(&buf, payload(40000)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var lengths []int
	b := buf.Bytes()
	for len(b) > 0 {
		size := int(binary.BigEndian.Uint16(b[:2]))
		lengths = append(lengths, size)
		b = b[2+size:]
		if size == 0 {
			break
		}
	}

	want := []int{32767, 7233, 0}
	if len(lengths) != len(want) {
		t.Fatalf("chunk lengths = %v, want %v", lengths, want)
	}
	for i := range want {
		if lengths[i] != want[i] {
			t.Fatalf("chunk lengths = %v, want %v", lengths, want)
		}
		if lengths[i] > frame.MaxChunkSize {
			t.Fatalf("chunk %d exceeds MaxChunkSize: %d", i, lengths[i])
		}
	}
}

func TestReadTruncatedHeader(t *testing.T) {
	t.Parallel()

	buf := bytes.NewBuffer([]byte{0x00})
	if _, err := frame.Read(buf); err == nil {
		t.Fatal("expected Truncated error for short chunk header")
	}
}

func TestReadTruncatedBody(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x05})
	buf.Write([]byte{1, 2, 3})
	if _, err := frame.Read(&buf); err == nil {
		t.Fatal("expected Truncated error for short chunk body")
	}
}

func TestEmptyPayloadIsJustTerminator(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := frame.Write(&buf, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.Len() != 2 {
		t.Fatalf("empty payload should encode to a 2-byte terminator, got %d bytes", buf.Len())
	}
}
