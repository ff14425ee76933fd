package rdb

import (
	"encoding/binary"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/openfedem/rdb/algebra"
)

// mixedHeader exercises one variable of every data class the read operation
// factory decodes.
const mixedHeader = `
VARIABLES:
<1;"Physical time";"s";FLOAT;64;SCALAR>
<2;"Iterations";"";INT;32;NUMBER>
<3;"Angular velocity";"rad/s";FLOAT;64;ROT3;(3)>
<4;"Position matrix";"m";FLOAT;64;TMAT34;(3,4)>
<5;"Mode shape";"m";FLOAT;64;VECTOR;(5)>
<6;"Stress tensor";"Pa";FLOAT;64;TENSOR3;(6)>
<7;"Rotation";"";FLOAT;64;TMAT33;(3,3)>

DATABLOCKS:
<1>
<2>
<3>
<4>
<5>
<6>
<7>

DATA:`

func writeMixed(t *testing.T) (*Extractor, []float64) {
	t.Helper()
	le := binary.LittleEndian
	vals := []float64{
		1, 2, 3, // ROT3
		0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, // TMAT34
		0.5, 1.5, 2.5, 3.5, 4.5, // VECTOR
		10, 20, 30, 1, 2, 3, // TENSOR3
		1, 0, 0, 0, 1, 0, 0, 0, 1, // TMAT33
	}
	step := rec64(le, 0.25)
	step = le.AppendUint32(step, 42) // NUMBER
	step = append(step, rec64(le, vals...)...)

	ex := newTestExtractor(t)
	path := writeFRS(t, filepath.Join(t.TempDir(), "mixed.frs"), le, "", mixedHeader, step)
	if err := ex.AddFile(path); err != nil {
		t.Fatal(err)
	}
	if _, ok := ex.SetPosition(0.25, false); !ok {
		t.Fatal("SetPosition failed")
	}
	return ex, vals
}

func TestReadOpDecoding(t *testing.T) {
	ex, _ := writeMixed(t)

	cases := []struct {
		path string
		want any
	}{
		{"Iterations", 42},
		{"Physical time", 0.25},
		{"Angular velocity", algebra.Vec3{1, 2, 3}},
		{"Position matrix", algebra.Mat34FromSlice([]float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11})},
		{"Mode shape", []float64{0.5, 1.5, 2.5, 3.5, 4.5}},
		{"Stress tensor", algebra.Tensor3{10, 20, 30, 1, 2, 3}},
		{"Rotation", algebra.Mat33FromSlice([]float64{1, 0, 0, 0, 1, 0, 0, 0, 1})},
	}
	for _, tc := range cases {
		v, err := ex.Value(ResultDescription{Path: []string{tc.path}})
		if err != nil {
			t.Errorf("%s: %v", tc.path, err)
			continue
		}
		if !reflect.DeepEqual(v, tc.want) {
			t.Errorf("%s = %#v (%T), want %#v", tc.path, v, v, tc.want)
		}
	}
}

func TestReadOpUnknownClass(t *testing.T) {
	vr := newVarRef(&Variable{Name: "odd", DataType: TypeFloat, DataSize: 64, DataClass: "SPLINE"})
	if _, err := NewReadOp(vr); !errors.Is(err, ErrUnknownDataClass) {
		t.Errorf("NewReadOp error = %v, want ErrUnknownDataClass", err)
	}
}

func TestReadOpHasData(t *testing.T) {
	ex, _ := writeMixed(t)
	e := ex.Find(ResultDescription{Path: []string{"Mode shape"}})
	op, err := NewReadOp(e.(*VarRef))
	if err != nil {
		t.Fatal(err)
	}
	if !op.HasData() {
		t.Error("HasData() = false at an exact step")
	}
	if op.Var().Var.Name != "Mode shape" {
		t.Errorf("Var() = %q", op.Var().Var.Name)
	}
}

func TestValueBeforePositioning(t *testing.T) {
	ex := newTestExtractor(t)
	le := binary.LittleEndian
	path := writeTriadSeries(t, filepath.Join(t.TempDir(), "a.frs"), le, "", 0, 2, 1)
	if err := ex.AddFile(path); err != nil {
		t.Fatal(err)
	}
	_, err := ex.Value(TimeDescription())
	if !errors.Is(err, ErrNotPositioned) {
		t.Errorf("Value before SetPosition = %v, want ErrNotPositioned", err)
	}
}
