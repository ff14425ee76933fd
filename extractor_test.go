package rdb

import (
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"

	"github.com/openfedem/rdb/algebra"
)

func velocityOf(t *testing.T, ex *Extractor) float64 {
	t.Helper()
	v, err := ex.Value(ResultDescription{OGType: "Triad", BaseID: 17, Path: []string{"Velocity"}})
	if err != nil {
		t.Fatal(err)
	}
	return v.(algebra.Vec3).X()
}

func TestAddFileIdempotent(t *testing.T) {
	ex := newTestExtractor(t)
	path := writeTriadSeries(t, filepath.Join(t.TempDir(), "a.frs"), binary.LittleEndian, "", 0, 3, 1)
	if err := ex.AddFile(path); err != nil {
		t.Fatal(err)
	}
	if err := ex.AddFile(path); err != nil {
		t.Fatal(err)
	}

	if got := len(ex.Files()); got != 1 {
		t.Fatalf("Files() = %d, want 1", got)
	}
	entries := ex.Search(ResultDescription{OGType: "Triad", BaseID: 17, Path: []string{"Velocity"}})
	if len(entries) != 1 {
		t.Fatalf("Search returned %d entries, want 1", len(entries))
	}
	if refs := entries[0].(*VarRef).Refs; len(refs) != 1 {
		t.Errorf("re-added file duplicated container bindings: %d", len(refs))
	}
}

func TestMergeAcrossFiles(t *testing.T) {
	ex := newTestExtractor(t)
	dir := t.TempDir()
	le := binary.LittleEndian
	a := writeTriadSeries(t, filepath.Join(dir, "a.frs"), le, "", 0, 5, 1)
	b := writeTriadSeries(t, filepath.Join(dir, "b.frs"), le, "", 0.5, 5, 2)
	if err := ex.AddFiles([]string{a, b}); err != nil {
		t.Fatal(err)
	}

	entries := ex.Search(ResultDescription{OGType: "Triad", BaseID: 17, Path: []string{"Velocity"}})
	if len(entries) != 1 {
		t.Fatalf("Search returned %d entries, want 1 merged entry", len(entries))
	}
	if refs := entries[0].(*VarRef).Refs; len(refs) != 2 {
		t.Fatalf("merged entry has %d container bindings, want 2", len(refs))
	}

	if _, ok := ex.SetPosition(0.2, false); !ok {
		t.Fatal("SetPosition failed")
	}
	if got := velocityOf(t, ex); got != 1 {
		t.Errorf("velocity at 0.2 = %v, want file a's value 1", got)
	}
	if _, ok := ex.SetPosition(0.8, false); !ok {
		t.Fatal("SetPosition failed")
	}
	if got := velocityOf(t, ex); got != 2 {
		t.Errorf("velocity at 0.8 = %v, want file b's value 2", got)
	}
}

func TestRestartPrecedence(t *testing.T) {
	ex := newTestExtractor(t)
	dir := t.TempDir()
	le := binary.LittleEndian
	// The restarted run overlaps [0.3, 0.5] of the first run and carries a
	// later write date.
	a := writeTriadSeries(t, filepath.Join(dir, "run.frs"), le, "01 Jan 2026 10:00:00", 0, 6, 1)
	b := writeTriadSeries(t, filepath.Join(dir, "restart.frs"), le, "01 Jan 2026 11:00:00", 0.3, 6, 2)
	if err := ex.AddFiles([]string{a, b}); err != nil {
		t.Fatal(err)
	}

	if _, ok := ex.SetPosition(0.4, false); !ok {
		t.Fatal("SetPosition failed")
	}
	if got := velocityOf(t, ex); got != 2 {
		t.Errorf("overlapping step read %v, want the later-dated file's value 2", got)
	}

	if _, ok := ex.SetPosition(0.1, false); !ok {
		t.Fatal("SetPosition failed")
	}
	if got := velocityOf(t, ex); got != 1 {
		t.Errorf("pre-restart step read %v, want the first run's value 1", got)
	}

	if last, ok := ex.LastWrittenTime(); !ok || math.Abs(last-0.8) > timeEpsilon {
		t.Errorf("LastWrittenTime() = %g, %v, want 0.8 from the restart file", last, ok)
	}
}

func TestRemoveFilesKeepsAnchors(t *testing.T) {
	ex := newTestExtractor(t)
	dir := t.TempDir()
	le := binary.LittleEndian
	a := writeTriadSeries(t, filepath.Join(dir, "a.frs"), le, "", 0, 3, 1)
	b := writeTriadSeries(t, filepath.Join(dir, "b.frs"), le, "", 0.3, 3, 2)
	if err := ex.AddFiles([]string{a, b}); err != nil {
		t.Fatal(err)
	}

	if n := ex.RemoveFiles([]string{a, b}); n != 2 {
		t.Fatalf("RemoveFiles removed %d, want 2", n)
	}

	// The physical time anchor survives as an empty entry.
	timeHits := ex.Search(TimeDescription())
	if len(timeHits) != 1 {
		t.Fatalf("Search(time) after removal = %d entries, want 1 anchor", len(timeHits))
	}
	if !timeHits[0].IsEmpty() {
		t.Error("time anchor still claims data after all files were removed")
	}

	// Object-group results disappear entirely.
	objHits := ex.Search(ResultDescription{OGType: "Triad", BaseID: 17, Path: []string{"Velocity"}})
	if len(objHits) != 0 {
		t.Errorf("Search(Triad velocity) after removal = %d entries, want 0", len(objHits))
	}

	// Re-adding a file repopulates the hierarchy and data access.
	if err := ex.AddFile(a); err != nil {
		t.Fatal(err)
	}
	if _, ok := ex.SetPosition(0.1, false); !ok {
		t.Fatal("SetPosition after re-add failed")
	}
	if got := velocityOf(t, ex); got != 1 {
		t.Errorf("velocity after re-add = %v, want 1", got)
	}
}

func TestConflictingChildDefinitionsKeptSideBySide(t *testing.T) {
	const header32 = `
VARIABLES:
<1;"Physical time";"s";FLOAT;64;SCALAR>
<2;"Position matrix";"m";FLOAT;32;TMAT34;(3,4)>

DATABLOCKS:
<1>
{"Triad";17;2;"Right wheel";<2>}

DATA:`
	ex := newTestExtractor(t)
	dir := t.TempDir()
	le := binary.LittleEndian
	a := writeTriadSeries(t, filepath.Join(dir, "a.frs"), le, "", 0, 2, 1)

	step := append(rec64(le, 0.0), rec32(le, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12)...)
	b := writeFRS(t, filepath.Join(dir, "b.frs"), le, "", header32, step)
	if err := ex.AddFiles([]string{a, b}); err != nil {
		t.Fatal(err)
	}

	got := ex.Search(ResultDescription{OGType: "Triad", BaseID: 17, Path: []string{"Position matrix"}})
	if len(got) != 2 {
		t.Fatalf("Search returned %d entries, want the 32 and 64 bit variants side by side", len(got))
	}
	if got[0].(*VarRef).Var.Equal(got[1].(*VarRef).Var) {
		t.Error("the two variants share a variable descriptor")
	}
}

const nodesHeader = `
VARIABLES:
<1;"Physical time";"s";FLOAT;64;SCALAR>
<4;"Dynamic response";"m";FLOAT;64;SCALAR>
[11;5;<4>]
[12;9;<4>]
[13;2;<4>]

DATABLOCKS:
<1>
{"Part";40;1;"Blade";[20;"Nodes";[11][12][13]]}

DATA:`

func nodesStep(order binary.ByteOrder, time float64, base float64) []byte {
	// Declaration order: node 5, node 9, node 2.
	return rec64(order, time, base+5, base+9, base+2)
}

func TestWildcardSearch(t *testing.T) {
	ex := newTestExtractor(t)
	le := binary.LittleEndian
	path := writeFRS(t, filepath.Join(t.TempDir(), "nodes.frs"), le, "", nodesHeader,
		nodesStep(le, 0.0, 100))
	if err := ex.AddFile(path); err != nil {
		t.Fatal(err)
	}

	all := ex.Search(ResultDescription{OGType: "Part", BaseID: 40, Path: []string{"Nodes", "*", "*"}})
	if len(all) != 3 {
		t.Fatalf(`Search("Nodes","*","*") = %d entries, want 3`, len(all))
	}

	byName := ex.Search(ResultDescription{OGType: "Part", BaseID: 40, Path: []string{"Nodes", "*", "Dynamic response"}})
	if len(byName) != 3 {
		t.Fatalf(`Search("Nodes","*","Dynamic response") = %d entries, want 3`, len(byName))
	}

	one := ex.Search(ResultDescription{OGType: "Part", BaseID: 40, Path: []string{"Nodes", "5", "Dynamic response"}})
	if len(one) != 1 {
		t.Fatalf(`Search("Nodes","5",...) = %d entries, want 1`, len(one))
	}
	if _, ok := ex.SetPosition(0, false); !ok {
		t.Fatal("SetPosition failed")
	}
	var buf [1]float64
	if ex.ReadValues(one[0], buf[:]) != 1 {
		t.Fatal("ReadValues failed")
	}
	if buf[0] != 105 {
		t.Errorf("node 5 response = %v, want 105", buf[0])
	}
}

func TestNodeGroupsSortedByNumber(t *testing.T) {
	ex := newTestExtractor(t)
	le := binary.LittleEndian
	path := writeFRS(t, filepath.Join(t.TempDir(), "nodes.frs"), le, "", nodesHeader,
		nodesStep(le, 0.0, 0))
	if err := ex.AddFile(path); err != nil {
		t.Fatal(err)
	}

	nodes := ex.Find(ResultDescription{OGType: "Part", BaseID: 40, Path: []string{"Nodes"}})
	if nodes == nil {
		t.Fatal("Nodes group not found")
	}
	var ids []string
	for _, f := range childFields(nodes) {
		ids = append(ids, f.Description())
	}
	want := []string{"2", "5", "9"}
	if len(ids) != 3 || ids[0] != want[0] || ids[1] != want[1] || ids[2] != want[2] {
		t.Errorf("node order %v, want %v", ids, want)
	}
}

func TestEmptyExtractor(t *testing.T) {
	ex := newTestExtractor(t)
	if hits := ex.Search(TimeDescription()); len(hits) != 0 {
		t.Errorf("Search on empty extractor = %d entries", len(hits))
	}
	if _, ok := ex.SetPosition(0, false); ok {
		t.Error("SetPosition on empty extractor succeeded")
	}
	if ex.ResetPosition() {
		t.Error("ResetPosition on empty extractor succeeded")
	}
	if ex.Increment() {
		t.Error("Increment on empty extractor succeeded")
	}
}

func TestValidTimesUnion(t *testing.T) {
	ex := newTestExtractor(t)
	dir := t.TempDir()
	le := binary.LittleEndian
	a := writeTriadSeries(t, filepath.Join(dir, "a.frs"), le, "", 0, 3, 1)   // 0, 0.1, 0.2
	b := writeTriadSeries(t, filepath.Join(dir, "b.frs"), le, "", 0.2, 3, 2) // 0.2, 0.3, 0.4
	if err := ex.AddFiles([]string{a, b}); err != nil {
		t.Fatal(err)
	}

	// Both files hold a bit-identical 0.2 step, so the union collapses it.
	union := ex.ValidTimes(nil)
	if len(union) != 5 {
		t.Errorf("union = %v, want 5 distinct times", union)
	}
	only := ex.ValidTimes([]string{a})
	if len(only) != 3 {
		t.Errorf("ValidTimes(a) = %d values, want 3", len(only))
	}
	for i := 1; i < len(union); i++ {
		if union[i-1] >= union[i] {
			t.Fatalf("union not sorted: %v", union)
		}
	}
}
