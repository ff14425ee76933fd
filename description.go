package rdb

import (
	"fmt"
	"strconv"
	"strings"
)

// ResultDescription identifies a result quantity by the object it belongs to
// and the path of group and variable names leading down to it.
type ResultDescription struct {
	// OGType is the object group type name, e.g. "Triad". Empty for
	// results that live outside any object group.
	OGType string
	// BaseID is the unique object id. A negative BaseID together with a
	// non-empty OGType addresses the whole group of objects of that type.
	BaseID int
	// UserID is the user-assigned object id. It is informational only and
	// does not take part in identity comparisons.
	UserID int
	// Path holds the group and variable names from the object down to the
	// addressed entry. A "*" element matches every child on that level.
	Path []string
	// VarRefType names the data class of the addressed variable, e.g.
	// "SCALAR" or "TMAT34". Informational only.
	VarRefType string
}

// TimeDescription returns the description of the physical time variable.
func TimeDescription() ResultDescription {
	return ResultDescription{Path: []string{"Physical time"}, VarRefType: "SCALAR"}
}

// IsTime reports whether d describes the physical time variable.
func (d ResultDescription) IsTime() bool {
	return d.OGType == "" && len(d.Path) == 1 && d.Path[0] == "Physical time"
}

// Equal reports whether d and o address the same result. UserID and
// VarRefType are ignored since they do not contribute to identity.
func (d ResultDescription) Equal(o ResultDescription) bool {
	if d.OGType != o.OGType || d.BaseID != o.BaseID || len(d.Path) != len(o.Path) {
		return false
	}
	for i, p := range d.Path {
		if p != o.Path[i] {
			return false
		}
	}
	return true
}

// Empty reports whether d addresses nothing at all.
func (d ResultDescription) Empty() bool {
	return d.OGType == "" && len(d.Path) == 0
}

// Text returns a short human-readable form, e.g.
// "Triad [3], Position matrix".
func (d ResultDescription) Text() string {
	var sb strings.Builder
	if d.OGType != "" {
		sb.WriteString(d.OGType)
		if d.BaseID >= 0 {
			fmt.Fprintf(&sb, " [%d]", d.UserID)
		}
	}
	for i, p := range d.Path {
		if i > 0 || d.OGType != "" {
			sb.WriteString(", ")
		}
		sb.WriteString(p)
	}
	return sb.String()
}

// String returns the parseable angle-bracket form of d.
func (d ResultDescription) String() string {
	var sb strings.Builder
	sb.WriteByte('<')
	if d.OGType != "" {
		fmt.Fprintf(&sb, "%q,%d,%d,", d.OGType, d.BaseID, d.UserID)
	}
	fmt.Fprintf(&sb, "%q", d.VarRefType)
	for _, p := range d.Path {
		fmt.Fprintf(&sb, ",%q", p)
	}
	sb.WriteByte('>')
	return sb.String()
}

// ParseResultDescription parses the angle-bracket form produced by String.
// Both the object-anchored form <"OGType",baseId,userId,"refType","path",...>
// and the short form <"refType","path",...> are accepted.
func ParseResultDescription(s string) (ResultDescription, error) {
	var d ResultDescription
	toks, err := tokenizeString(strings.TrimSpace(s), '<', '>', ',')
	if err != nil {
		return d, err
	}
	if len(toks) == 0 {
		return d, fmt.Errorf("empty result description %q", s)
	}
	if len(toks) > 1 && isNumeric(toks[1]) {
		if len(toks) < 4 {
			return d, fmt.Errorf("truncated result description %q", s)
		}
		d.OGType = toks[0]
		d.BaseID, _ = strconv.Atoi(toks[1])
		d.UserID, _ = strconv.Atoi(toks[2])
		d.VarRefType = toks[3]
		d.Path = append(d.Path, toks[4:]...)
	} else {
		d.VarRefType = toks[0]
		d.Path = append(d.Path, toks[1:]...)
	}
	return d, nil
}

func isNumeric(s string) bool {
	if strings.HasPrefix(s, "-") {
		s = s[1:]
	}
	return isDigits(s)
}

// composeDescription builds the full description of an entry by walking its
// owner chain up to the enclosing object group, if any.
func composeDescription(e Entry) ResultDescription {
	var d ResultDescription
	if vr, ok := e.(*VarRef); ok {
		d.VarRefType = vr.Var.DataClass
	}
	for cur := e; cur != nil; cur = cur.Owner() {
		switch x := cur.(type) {
		case *SuperGroup:
			d.OGType = x.ogType
			d.BaseID = -1
		case *ObjectGroup:
			d.OGType = x.ogType
			d.BaseID = x.baseID
			d.UserID = x.uID
			return d
		default:
			d.Path = append([]string{cur.Description()}, d.Path...)
		}
	}
	return d
}
