// Package algebra holds the plain value types that result variables decode
// into: 3-component vectors, 3x3 and 3x4 matrices, and symmetric tensors of
// dimension 1 to 3. They are carried through the results database as values;
// no geometry is computed here beyond what consumers commonly need.
package algebra

import "math"

// Vec3 is a 3-component vector.
type Vec3 [3]float64

func (v Vec3) X() float64 { return v[0] }
func (v Vec3) Y() float64 { return v[1] }
func (v Vec3) Z() float64 { return v[2] }

func (v Vec3) Length() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func (v Vec3) Add(w Vec3) Vec3 {
	return Vec3{v[0] + w[0], v[1] + w[1], v[2] + w[2]}
}

func (v Vec3) Sub(w Vec3) Vec3 {
	return Vec3{v[0] - w[0], v[1] - w[1], v[2] - w[2]}
}

func (v Vec3) Dot(w Vec3) float64 {
	return v[0]*w[0] + v[1]*w[1] + v[2]*w[2]
}

// Mat33 is a 3x3 matrix stored as three column vectors, matching the
// on-disk layout of TMAT33 variables.
type Mat33 [3]Vec3

// Mat33FromSlice fills a matrix from 9 values in column order.
func Mat33FromSlice(a []float64) Mat33 {
	var m Mat33
	for c := 0; c < 3; c++ {
		copy(m[c][:], a[3*c:3*c+3])
	}
	return m
}

func (m Mat33) Col(i int) Vec3 { return m[i] }

func (m Mat33) At(row, col int) float64 { return m[col][row] }

// Mat34 is a position matrix: three direction columns followed by a
// translation column, matching the on-disk layout of TMAT34 variables.
type Mat34 [4]Vec3

// Mat34FromSlice fills a matrix from 12 values in column order.
func Mat34FromSlice(a []float64) Mat34 {
	var m Mat34
	for c := 0; c < 4; c++ {
		copy(m[c][:], a[3*c:3*c+3])
	}
	return m
}

func (m Mat34) Col(i int) Vec3 { return m[i] }

func (m Mat34) At(row, col int) float64 { return m[col][row] }

// Translation returns the position part of the matrix.
func (m Mat34) Translation() Vec3 { return m[3] }

// Tensor1 is a 1-dimensional symmetric tensor (a single value).
type Tensor1 float64

// Tensor2 is a 2-dimensional symmetric tensor: xx, yy, xy.
type Tensor2 [3]float64

// Tensor3 is a 3-dimensional symmetric tensor: xx, yy, zz, xy, xz, yz.
type Tensor3 [6]float64

// VonMises returns the von Mises equivalent value of the tensor.
func (t Tensor3) VonMises() float64 {
	s := t[0]*t[0] + t[1]*t[1] + t[2]*t[2]
	s -= t[0]*t[1] + t[1]*t[2] + t[2]*t[0]
	s += 3.0 * (t[3]*t[3] + t[4]*t[4] + t[5]*t[5])
	if s < 0.0 {
		return 0.0
	}
	return math.Sqrt(s)
}

// VonMises returns the von Mises equivalent value of the tensor.
func (t Tensor2) VonMises() float64 {
	s := t[0]*t[0] + t[1]*t[1] - t[0]*t[1] + 3.0*t[2]*t[2]
	if s < 0.0 {
		return 0.0
	}
	return math.Sqrt(s)
}
