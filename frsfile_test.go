package rdb

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"math"
	"os"
	"testing"

	"github.com/openfedem/rdb/tag"
)

// writeFRS assembles a results file: tag line, headings, the given header
// sections (which must end with the DATA label) and the raw step records.
func writeFRS(t *testing.T, path string, order binary.ByteOrder, date, header string, steps ...[]byte) string {
	t.Helper()
	var buf bytes.Buffer
	if err := tag.Write(&buf, "#FEDEM response data", 0, order); err != nil {
		t.Fatal(err)
	}
	buf.WriteString("\nMODULE = response;\n")
	if date != "" {
		buf.WriteString("DATETIME = " + date + ";\n")
	}
	buf.WriteString(header)
	for _, rec := range steps {
		buf.Write(rec)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func rec64(order binary.ByteOrder, vals ...float64) []byte {
	out := make([]byte, 8*len(vals))
	for i, v := range vals {
		order.PutUint64(out[8*i:], math.Float64bits(v))
	}
	return out
}

func rec32(order binary.ByteOrder, vals ...float32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		order.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	ex, err := NewExtractor(t.Name(), Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ex.Close() })
	return ex
}

// triadHeader declares a Triad object with a position matrix and a velocity
// vector. One step record is 8 + 96 + 24 = 128 bytes.
const triadHeader = `
VARIABLES:
<1;"Physical time";"s";FLOAT;64;SCALAR>
<2;"Position matrix";"m";FLOAT;64;TMAT34;(3,4)>
<3;"Velocity";"m/s";FLOAT;64;VEC3;(3)>

DATABLOCKS:
<1>
{"Triad";17;2;"Right wheel";<2><3>}

DATA:`

// triadStep builds one 16-element record: time, an easily recognized
// position matrix, and a constant velocity.
func triadStep(order binary.ByteOrder, time, vel float64) []byte {
	vals := make([]float64, 0, 16)
	vals = append(vals, time)
	for i := 0; i < 12; i++ {
		vals = append(vals, float64(i))
	}
	vals = append(vals, vel, vel, vel)
	return rec64(order, vals...)
}
