package rdb

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseSkipsMalformedRecords(t *testing.T) {
	const header = `
# Solver response output.
VARIABLES:
<1;"Physical time";"s";FLOAT;64;SCALAR>
<99;"Broken">
<2;"Velocity";"m/s";FLOAT;64;VEC3;(3)>

DATABLOCKS:
<1>
<7>
{"Triad";17;2;"Right wheel";<2>}

DATA:`
	le := binary.LittleEndian
	step := rec64(le, 0.0, 4, 5, 6)
	ex := newTestExtractor(t)
	path := writeFRS(t, filepath.Join(t.TempDir(), "bad.frs"), le, "", header, step)
	if err := ex.AddFile(path); err != nil {
		t.Fatalf("a malformed record must not fail the file: %v", err)
	}

	if e := ex.Find(ResultDescription{OGType: "Triad", BaseID: 17, Path: []string{"Velocity"}}); e == nil {
		t.Error("good records around a malformed one were lost")
	}
	if got := ex.Container(path).StepBytes(); got != 32 {
		t.Errorf("StepBytes() = %d, want 32 (skipped records must not affect the layout)", got)
	}
}

func TestParseHeaderOnlyFile(t *testing.T) {
	// A possibility catalog has a header but no step records.
	const header = `
VARIABLES:
<1;"Physical time";"s";FLOAT;64;SCALAR>

DATABLOCKS:
<1>

DATA:`
	ex := newTestExtractor(t)
	path := writeFRS(t, filepath.Join(t.TempDir(), "cat.frs"), binary.LittleEndian, "", header)
	if err := ex.AddFile(path); err != nil {
		t.Fatal(err)
	}
	if got := ex.Container(path).StepCount(); got != 0 {
		t.Errorf("StepCount() = %d, want 0", got)
	}
	if hits := ex.Search(TimeDescription()); len(hits) != 1 {
		t.Errorf("catalog entries of a header-only file missing: %d hits", len(hits))
	}
}

func TestParseMissingDataSection(t *testing.T) {
	const header = `
VARIABLES:
<1;"Physical time";"s";FLOAT;64;SCALAR>
`
	ex := newTestExtractor(t)
	path := writeFRS(t, filepath.Join(t.TempDir(), "trunc.frs"), binary.LittleEndian, "", header)
	err := ex.AddFile(path)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("AddFile = %v, want a ParseError for the missing DATA section", err)
	}
}

func TestParseRejectsTextFile(t *testing.T) {
	ex := newTestExtractor(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("#FEDEM model description\nnot a results file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ex.AddFile(path); err == nil {
		t.Error("AddFile accepted a text file")
	}
}

func TestParseNestedItemGroups(t *testing.T) {
	const header = `
VARIABLES:
<1;"Physical time";"s";FLOAT;64;SCALAR>
<5;"Angle";"rad";FLOAT;64;SCALAR>

DATABLOCKS:
<1>
{"Joint";33;4;"Revolute";[0;"Springs";[0;"Rotation";<5>]]}

DATA:`
	le := binary.LittleEndian
	ex := newTestExtractor(t)
	path := writeFRS(t, filepath.Join(t.TempDir(), "nest.frs"), le, "", header,
		rec64(le, 0.0, 1.25))
	if err := ex.AddFile(path); err != nil {
		t.Fatal(err)
	}

	d := ResultDescription{OGType: "Joint", BaseID: 33, Path: []string{"Springs", "Rotation", "Angle"}}
	e := ex.Find(d)
	if e == nil {
		t.Fatal("nested item group path not resolvable")
	}
	if _, ok := ex.SetPosition(0, false); !ok {
		t.Fatal("SetPosition failed")
	}
	v, err := ex.Value(d)
	if err != nil {
		t.Fatal(err)
	}
	if v.(float64) != 1.25 {
		t.Errorf("nested scalar = %v, want 1.25", v)
	}
}

func TestParseVariableBlockDescriptions(t *testing.T) {
	const header = `
VARIABLES:
<1;"Physical time";"s";FLOAT;64;SCALAR>
<2;"Force";"N";FLOAT;64;VECTOR;(3);("Fx","Fy","Fz")>

DATABLOCKS:
<1>
<2>

DATA:`
	le := binary.LittleEndian
	ex := newTestExtractor(t)
	path := writeFRS(t, filepath.Join(t.TempDir(), "descr.frs"), le, "", header,
		rec64(le, 0.0, 10, 20, 30))
	if err := ex.AddFile(path); err != nil {
		t.Fatal(err)
	}

	e := ex.Find(ResultDescription{Path: []string{"Force"}})
	if e == nil {
		t.Fatal("Force not found")
	}
	v := e.(*VarRef).Var
	if len(v.BlockDescr) != 3 || v.BlockDescr[0] != "Fx" || v.BlockDescr[2] != "Fz" {
		t.Errorf("BlockDescr = %q", v.BlockDescr)
	}
	if v.Repeats() != 3 {
		t.Errorf("Repeats() = %d, want 3", v.Repeats())
	}
}
