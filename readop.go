package rdb

import (
	"fmt"

	"github.com/openfedem/rdb/algebra"
)

// ReadOp evaluates one variable reference into its typed Go value at the
// extractor's current position. The concrete type returned by Evaluate
// depends on the variable's data class:
//
//	NUMBER            int
//	SCALAR            float64
//	VEC3, ROT3        algebra.Vec3
//	TMAT33            algebra.Mat33
//	TMAT34            algebra.Mat34
//	VECTOR            []float64
//	TENSOR1           algebra.Tensor1
//	TENSOR2           algebra.Tensor2
//	TENSOR3           algebra.Tensor3
type ReadOp struct {
	vr   *VarRef
	eval func(*VarRef) (any, error)
}

type readOpKey struct {
	class string
	bits  int
}

var readOps = map[readOpKey]func(*VarRef) (any, error){
	{"NUMBER", 32}:  evalNumber,
	{"NUMBER", 64}:  evalNumber,
	{"SCALAR", 32}:  evalScalar,
	{"SCALAR", 64}:  evalScalar,
	{"VEC3", 32}:    evalVec3,
	{"VEC3", 64}:    evalVec3,
	{"ROT3", 32}:    evalVec3,
	{"ROT3", 64}:    evalVec3,
	{"TMAT33", 32}:  evalMat33,
	{"TMAT33", 64}:  evalMat33,
	{"TMAT34", 32}:  evalMat34,
	{"TMAT34", 64}:  evalMat34,
	{"VECTOR", 32}:  evalVector,
	{"VECTOR", 64}:  evalVector,
	{"TENSOR1", 32}: evalTensor1,
	{"TENSOR1", 64}: evalTensor1,
	{"TENSOR2", 32}: evalTensor2,
	{"TENSOR2", 64}: evalTensor2,
	{"TENSOR3", 32}: evalTensor3,
	{"TENSOR3", 64}: evalTensor3,
}

// NewReadOp builds the evaluator matching the variable's data class and
// element size. It returns ErrUnknownDataClass (wrapped) for classes without
// a registered decoder.
func NewReadOp(vr *VarRef) (*ReadOp, error) {
	eval, ok := readOps[readOpKey{vr.Var.DataClass, vr.Var.DataSize}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%d for variable %q",
			ErrUnknownDataClass, vr.Var.DataClass, vr.Var.DataSize, vr.Var.Name)
	}
	return &ReadOp{vr: vr, eval: eval}, nil
}

// Var returns the variable reference the operation reads.
func (op *ReadOp) Var() *VarRef { return op.vr }

// HasData reports whether some container holds data exactly at the current
// position.
func (op *ReadOp) HasData() bool { return op.vr.HasData() }

// Evaluate reads and decodes the value at the current position.
func (op *ReadOp) Evaluate() (any, error) {
	return op.eval(op.vr)
}

func readExactly(vr *VarRef, n int) ([]float64, error) {
	buf := make([]float64, n)
	got := vr.ReadFloats(buf)
	if got == 0 {
		return nil, ErrNoData
	}
	if got != n {
		return nil, fmt.Errorf("rdb: variable %q: got %d of %d elements", vr.Var.Name, got, n)
	}
	return buf, nil
}

func evalNumber(vr *VarRef) (any, error) {
	var buf [1]int32
	if vr.ReadInts(buf[:]) == 0 {
		return nil, ErrNoData
	}
	return int(buf[0]), nil
}

func evalScalar(vr *VarRef) (any, error) {
	v, err := readExactly(vr, 1)
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func evalVec3(vr *VarRef) (any, error) {
	v, err := readExactly(vr, 3)
	if err != nil {
		return nil, err
	}
	return algebra.Vec3{v[0], v[1], v[2]}, nil
}

func evalMat33(vr *VarRef) (any, error) {
	v, err := readExactly(vr, 9)
	if err != nil {
		return nil, err
	}
	return algebra.Mat33FromSlice(v), nil
}

func evalMat34(vr *VarRef) (any, error) {
	v, err := readExactly(vr, 12)
	if err != nil {
		return nil, err
	}
	return algebra.Mat34FromSlice(v), nil
}

func evalVector(vr *VarRef) (any, error) {
	return readExactly(vr, vr.Var.Repeats())
}

func evalTensor1(vr *VarRef) (any, error) {
	v, err := readExactly(vr, 1)
	if err != nil {
		return nil, err
	}
	return algebra.Tensor1(v[0]), nil
}

func evalTensor2(vr *VarRef) (any, error) {
	v, err := readExactly(vr, 3)
	if err != nil {
		return nil, err
	}
	return algebra.Tensor2{v[0], v[1], v[2]}, nil
}

func evalTensor3(vr *VarRef) (any, error) {
	v, err := readExactly(vr, 6)
	if err != nil {
		return nil, err
	}
	return algebra.Tensor3{v[0], v[1], v[2], v[3], v[4], v[5]}, nil
}
