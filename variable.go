package rdb

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// DataType is the element type tag of a variable.
type DataType int

const (
	TypeNone DataType = iota
	TypeInt
	TypeFloat
)

func parseDataType(tok string) (DataType, error) {
	switch strings.ToUpper(tok) {
	case "INT", "INTEGER", "NUMBER":
		return TypeInt, nil
	case "FLOAT", "DOUBLE", "REAL":
		return TypeFloat, nil
	case "NONE", "":
		return TypeNone, nil
	}
	// Older writers emit the numeric enum value instead of the name.
	if n, err := strconv.Atoi(tok); err == nil && n >= 0 && n <= int(TypeFloat) {
		return DataType(n), nil
	}
	return TypeNone, fmt.Errorf("invalid data type %q", tok)
}

func (t DataType) String() string {
	switch t {
	case TypeInt:
		return "INT"
	case TypeFloat:
		return "FLOAT"
	}
	return "NONE"
}

// Variable is the immutable descriptor of one result quantity. Many variable
// references across the catalog share a single Variable; the per-extractor
// registry deduplicates them on insert.
type Variable struct {
	Name       string
	Unit       string
	DataType   DataType
	DataSize   int // element size in bits, 32 or 64
	DataClass  string
	BlockSizes []int
	BlockDescr []string

	repeats int
}

// Repeats returns the number of elements encoded per time step: the product
// of the block-dimension sizes, or 1 for plain variables.
func (v *Variable) Repeats() int {
	if v.repeats == 0 {
		v.repeats = 1
		for _, n := range v.BlockSizes {
			v.repeats *= n
		}
	}
	return v.repeats
}

// TotalBytes returns the encoded size of the variable in one record.
func (v *Variable) TotalBytes() int {
	return v.Repeats() * v.DataSize / 8
}

// Equal reports field-wise equality of the two descriptors.
func (v *Variable) Equal(o *Variable) bool {
	return v.Name == o.Name &&
		v.Unit == o.Unit &&
		v.DataType == o.DataType &&
		v.DataSize == o.DataSize &&
		v.DataClass == o.DataClass &&
		slices.Equal(v.BlockSizes, o.BlockSizes) &&
		slices.Equal(v.BlockDescr, o.BlockDescr)
}

// Less is a field-wise lexicographic order over the same fields Equal
// compares; it keeps the registry canonical.
func (v *Variable) Less(o *Variable) bool {
	if v.Name != o.Name {
		return v.Name < o.Name
	}
	if v.Unit != o.Unit {
		return v.Unit < o.Unit
	}
	if v.DataType != o.DataType {
		return v.DataType < o.DataType
	}
	if v.DataSize != o.DataSize {
		return v.DataSize < o.DataSize
	}
	if v.DataClass != o.DataClass {
		return v.DataClass < o.DataClass
	}
	if c := slices.Compare(v.BlockSizes, o.BlockSizes); c != 0 {
		return c < 0
	}
	return slices.Compare(v.BlockDescr, o.BlockDescr) < 0
}

func (v *Variable) String() string {
	s := fmt.Sprintf("%s [%s] %s/%d", v.Name, v.Unit, v.DataClass, v.DataSize)
	if len(v.BlockSizes) > 0 {
		s += fmt.Sprintf(" %v", v.BlockSizes)
	}
	return s
}

// variableSet is the extractor-scoped deduplication registry, kept sorted
// by Less.
type variableSet struct {
	vars []*Variable
}

// intern returns the canonical instance equal to v, inserting v if none
// exists yet.
func (s *variableSet) intern(v *Variable) *Variable {
	i, found := slices.BinarySearchFunc(s.vars, v, func(a, b *Variable) int {
		if a.Equal(b) {
			return 0
		}
		if a.Less(b) {
			return -1
		}
		return 1
	})
	if found {
		return s.vars[i]
	}
	s.vars = slices.Insert(s.vars, i, v)
	return v
}

func (s *variableSet) len() int { return len(s.vars) }

// stringDict interns type-name strings so that every object group of the
// same type shares one instance.
type stringDict map[string]string

func (d stringDict) intern(s string) string {
	if v, ok := d[s]; ok {
		return v
	}
	d[s] = s
	return s
}
