package rdb

// Entry is one node of the catalog: a variable reference leaf or one of the
// group kinds. The set of implementations is closed; external packages
// inspect entries through type assertions on *VarRef, *ItemGroup,
// *ObjectGroup and *SuperGroup.
type Entry interface {
	// Description is the display name of the entry: the variable name for
	// references, the name or number for item groups, the user description
	// for object groups.
	Description() string

	// Type is the data class for references, the numeric ID or name for
	// item groups, and the object type for object groups.
	Type() string

	// Owner is the parent entry the node was attached to, or nil for
	// top-level entries. Used for provenance only; the parent owns the
	// child, not the reverse.
	Owner() Entry

	// IsEmpty reports whether no variable reference below this entry
	// retains a container. Empty entries survive as search anchors after
	// file removal but carry no data.
	IsEmpty() bool

	// EntryDescription composes the full result description of this entry
	// from its owner chain.
	EntryDescription() ResultDescription

	setOwner(Entry)

	// compare is the identity test used during merge: do this entry and
	// obj describe the same catalog slot?
	compare(obj Entry) bool

	// equalTo and lessThan define a strict weak order per concrete kind,
	// comparing content recursively.
	equalTo(obj Entry) bool
	lessThan(obj Entry) bool

	// merge folds obj (an entry from a newly parsed file, identical per
	// compare) into this one. Returns false when the kinds are
	// incompatible and obj must be kept separately.
	merge(obj Entry) bool

	// traverse assigns record positions for container c, accumulating the
	// byte offset. It returns the entry to put in this node's place
	// (groups and references are copied per container add) and the offset
	// following this entry's data.
	traverse(c *Container, owner Entry, pos int) (Entry, int)

	// removeContainers detaches references into the given containers from
	// the whole subtree.
	removeContainers(gone map[*Container]bool)

	// readFloats appends this subtree's values at the current position to
	// dst starting at index got, widening 32-bit elements. It returns the
	// new fill count.
	readFloats(dst []float64, got int) int

	// isFloat32 reports whether the entry's data is stored as 32-bit
	// floats. For groups this assumes homogeneous fields.
	isFloat32() bool

	userID() (int, bool)
}

type entryBase struct {
	owner Entry
}

func (b *entryBase) Owner() Entry     { return b.owner }
func (b *entryBase) setOwner(e Entry) { b.owner = e }

func (b *entryBase) userID() (int, bool) { return 0, false }

// groupBase carries the ordered child list shared by ItemGroup, ObjectGroup
// and SuperGroup.
type groupBase struct {
	entryBase
	fields []Entry
}

// Fields returns the ordered children of the group. The slice is owned by
// the entry; callers must not modify it.
func (g *groupBase) Fields() []Entry { return g.fields }

func (g *groupBase) IsEmpty() bool {
	for _, f := range g.fields {
		if !f.IsEmpty() {
			return false
		}
	}
	return true
}

func (g *groupBase) isFloat32() bool {
	if len(g.fields) > 0 {
		return g.fields[0].isFloat32()
	}
	return false
}

func (g *groupBase) readFloats(dst []float64, got int) int {
	for _, f := range g.fields {
		got = f.readFloats(dst, got)
	}
	return got
}

func (g *groupBase) equalFields(o *groupBase) bool {
	if len(g.fields) != len(o.fields) {
		return false
	}
	for i, f := range g.fields {
		if !f.equalTo(o.fields[i]) {
			return false
		}
	}
	return true
}

func (g *groupBase) lessFields(o *groupBase) bool {
	for i, f := range g.fields {
		if i == len(o.fields) {
			return false
		}
		if !f.equalTo(o.fields[i]) {
			return f.lessThan(o.fields[i])
		}
	}
	return len(g.fields) < len(o.fields)
}

// mergeFields folds the children of from into this group's children. self is
// the concrete entry adopted children get as owner. Children that are
// numerically keyed and pre-sorted (nodes, elements, element nodes) are
// merged by a linear walk over both sorted sequences instead of a pairwise
// scan; FE models reach 1e6 such children.
func (g *groupBase) mergeFields(self Entry, from *groupBase) {
	sortedByID := false
	if _, isIG := self.(*ItemGroup); isIG && len(g.fields) > 0 {
		if _, hasID := g.fields[0].userID(); hasID {
			_, sortedByID = g.fields[0].(*ItemGroup)
		}
	}

	var added []Entry
	i := 0
	for _, inc := range from.fields {
		if !sortedByID {
			i = 0
		}
		found := false
		for ; i < len(g.fields); i++ {
			if g.fields[i].compare(inc) {
				found = true
				break
			}
			if sortedByID {
				a, _ := g.fields[i].userID()
				b, _ := inc.userID()
				if a > b {
					break
				}
			}
		}
		if found {
			g.fields[i].merge(inc)
		} else {
			added = append(added, inc)
			inc.setOwner(self)
		}
	}

	if len(added) > 0 {
		g.fields = append(g.fields, added...)
		if sortedByID {
			g.sortFieldsByUserID()
		}
	}
}

func (g *groupBase) sortFieldsByUserID() {
	// Stable keeps declaration order for entries without a numeric ID.
	stableSortByUserID(g.fields)
}

// removeFromFields detaches containers below every child and drops children
// whose subtree became empty, unless the child is shared (owned elsewhere).
func (g *groupBase) removeFromFields(self Entry, gone map[*Container]bool) {
	kept := g.fields[:0]
	for _, f := range g.fields {
		f.removeContainers(gone)
		if f.IsEmpty() && f.Owner() == self {
			continue
		}
		kept = append(kept, f)
	}
	g.fields = kept
}
