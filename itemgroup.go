package rdb

import (
	"sort"
	"strconv"
)

// ItemGroup is a numbered or named group of result fields, e.g. one node's
// components, one element, or a named grouping such as "Elements". Numbered
// item groups declared in the VARIABLES section are shared across the file
// (and across files through the extractor's registry); anonymous groups
// inlined in a data block belong to their declaration site only.
type ItemGroup struct {
	groupBase

	// id >= 0 for numerically keyed groups (the node/element number);
	// -1 for named groups.
	id      int
	name    string
	inlined bool
}

func newItemGroup(inlined bool) *ItemGroup {
	return &ItemGroup{id: -1, name: "(undefined)", inlined: inlined}
}

func (ig *ItemGroup) Description() string { return ig.Type() }

func (ig *ItemGroup) Type() string {
	if ig.id < 0 {
		return ig.name
	}
	return strconv.Itoa(ig.id)
}

// UserID returns the numeric key of the group, valid only for numbered
// groups.
func (ig *ItemGroup) UserID() (int, bool) { return ig.userID() }

func (ig *ItemGroup) userID() (int, bool) {
	if ig.id < 0 {
		return 0, false
	}
	return ig.id, true
}

func (ig *ItemGroup) EntryDescription() ResultDescription {
	return composeDescription(ig)
}

func (ig *ItemGroup) compare(obj Entry) bool {
	that, ok := obj.(*ItemGroup)
	if !ok {
		return false
	}
	if ig.id < 0 && that.id < 0 {
		return ig.name == that.name
	}
	return ig.id == that.id
}

func (ig *ItemGroup) equalTo(obj Entry) bool {
	that, ok := obj.(*ItemGroup)
	return ok && ig.compare(that) && ig.equalFields(&that.groupBase)
}

func (ig *ItemGroup) lessThan(obj Entry) bool {
	that, ok := obj.(*ItemGroup)
	if !ok {
		return false
	}
	// Numbered groups order before named ones; equal keys fall back to
	// the recursive field comparison.
	switch {
	case ig.id < 0 && that.id < 0:
		if ig.name != that.name {
			return ig.name < that.name
		}
	case ig.id < 0:
		return false
	case that.id < 0:
		return true
	case ig.id != that.id:
		return ig.id < that.id
	}
	return ig.lessFields(&that.groupBase)
}

func (ig *ItemGroup) merge(obj Entry) bool {
	that, ok := obj.(*ItemGroup)
	if !ok {
		return false
	}
	ig.mergeFields(ig, &that.groupBase)
	return true
}

// traverse copies the group for this container add, so that shared numbered
// groups get distinct per-use offsets, and recurses into the children.
func (ig *ItemGroup) traverse(c *Container, owner Entry, pos int) (Entry, int) {
	cp := &ItemGroup{id: ig.id, name: ig.name}
	cp.setOwner(owner)
	cp.fields = make([]Entry, len(ig.fields))
	for i, f := range ig.fields {
		cp.fields[i], pos = f.traverse(c, cp, pos)
	}
	return cp, pos
}

func (ig *ItemGroup) removeContainers(gone map[*Container]bool) {
	ig.removeFromFields(ig, gone)
}

// itemGroupSet is the extractor-scoped registry sharing numbered item groups
// across files, ordered by lessThan.
type itemGroupSet struct {
	groups []*ItemGroup
}

func (s *itemGroupSet) intern(ig *ItemGroup) *ItemGroup {
	i := sort.Search(len(s.groups), func(i int) bool {
		return !s.groups[i].lessThan(ig)
	})
	if i < len(s.groups) && s.groups[i].equalTo(ig) {
		return s.groups[i]
	}
	s.groups = append(s.groups, nil)
	copy(s.groups[i+1:], s.groups[i:])
	s.groups[i] = ig
	return ig
}

func (s *itemGroupSet) len() int { return len(s.groups) }

func stableSortByUserID(fields []Entry) {
	sort.SliceStable(fields, func(i, j int) bool {
		a, aok := fields[i].userID()
		b, bok := fields[j].userID()
		if aok && bok {
			return a < b
		}
		return !aok && bok
	})
}
