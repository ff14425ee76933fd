package tag

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

func TestReadWriteRoundTrip(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		var buf bytes.Buffer
		if err := Write(&buf, "#FEDEM response data", 0xCAFE, order); err != nil {
			t.Fatalf("Write(%v) = %v", order, err)
		}
		if buf.Len() != DefaultLength+10 {
			t.Fatalf("Write(%v) produced %d bytes, wanted %d", order, buf.Len(), DefaultLength+10)
		}

		info, err := Read(&buf)
		if err != nil {
			t.Fatalf("Read(%v) = %v", order, err)
		}
		if !info.Binary {
			t.Fatalf("Read(%v): Binary = false, wanted true", order)
		}
		if info.Tag != "#FEDEM response data" {
			t.Errorf("Read(%v): Tag = %q", order, info.Tag)
		}
		if info.Order != order {
			t.Errorf("Read(%v): Order = %v", order, info.Order)
		}
		if info.Checksum != 0xCAFE {
			t.Errorf("Read(%v): Checksum = %#x, wanted 0xcafe", order, info.Checksum)
		}
	}
}

func TestReadTextFile(t *testing.T) {
	info, err := Read(strings.NewReader("#FEDEM model file\nrest of file"))
	if err != nil {
		t.Fatalf("Read = %v", err)
	}
	if info.Binary {
		t.Fatalf("Binary = true, wanted false")
	}
	if info.Tag != "#FEDEM model file" {
		t.Errorf("Tag = %q", info.Tag)
	}
}

func TestReadRejectsMissingHash(t *testing.T) {
	if _, err := Read(strings.NewReader("FEDEM response data")); err != ErrNoTag {
		t.Fatalf("Read = %v, wanted ErrNoTag", err)
	}
}

func TestChecksumStable(t *testing.T) {
	var a, b Checksum
	a.Write([]byte("hello "))
	a.Write([]byte("world"))
	b.Write([]byte("hello world"))
	// Chunked and whole-buffer feeding must agree.
	if a.Sum32() != b.Sum32() {
		t.Errorf("chunked sum %#x != whole sum %#x", a.Sum32(), b.Sum32())
	}
	if a.Sum32() == 0 {
		t.Errorf("Sum32 = 0 for non-empty input")
	}
	a.Reset()
	if a.Sum32() != 0 {
		t.Errorf("Sum32 after Reset = %#x, wanted 0", a.Sum32())
	}
}
