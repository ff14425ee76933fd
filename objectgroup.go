package rdb

// ObjectGroup is a named, typed, ID'd group of result fields describing one
// mechanism object, e.g. Triad {114}. Object groups appear only at the top
// level of a file's data blocks.
type ObjectGroup struct {
	groupBase

	ogType      string // interned through the extractor's dictionary
	baseID      int
	uID         int
	description string
}

func (og *ObjectGroup) Description() string { return og.description }
func (og *ObjectGroup) Type() string        { return og.ogType }

// BaseID returns the model-wide object identifier.
func (og *ObjectGroup) BaseID() int { return og.baseID }

// UserID returns the user-visible object number.
func (og *ObjectGroup) UserID() (int, bool) { return og.userID() }

func (og *ObjectGroup) userID() (int, bool) {
	if og.uID == 0 {
		return 0, false
	}
	return og.uID, true
}

func (og *ObjectGroup) hasIdentity() bool {
	return og.baseID != 0 || og.uID != 0 || og.description != ""
}

func (og *ObjectGroup) EntryDescription() ResultDescription {
	return composeDescription(og)
}

func (og *ObjectGroup) compare(obj Entry) bool {
	that, ok := obj.(*ObjectGroup)
	return ok && og.ogType == that.ogType && og.baseID == that.baseID
}

func (og *ObjectGroup) equalTo(obj Entry) bool {
	that, ok := obj.(*ObjectGroup)
	return ok && og.compare(that) && og.equalFields(&that.groupBase)
}

func (og *ObjectGroup) lessThan(obj Entry) bool {
	that, ok := obj.(*ObjectGroup)
	if !ok {
		return false
	}
	if og.ogType != that.ogType {
		return og.ogType < that.ogType
	}
	if og.baseID != that.baseID {
		return og.baseID < that.baseID
	}
	return og.lessFields(&that.groupBase)
}

func (og *ObjectGroup) merge(obj Entry) bool {
	that, ok := obj.(*ObjectGroup)
	if !ok {
		return false
	}
	og.mergeFields(og, &that.groupBase)
	return true
}

// traverse recurses in place: an object group belongs to exactly one file's
// parse tree before merging, so no copy is needed.
func (og *ObjectGroup) traverse(c *Container, owner Entry, pos int) (Entry, int) {
	for i, f := range og.fields {
		og.fields[i], pos = f.traverse(c, og, pos)
	}
	return og, pos
}

func (og *ObjectGroup) removeContainers(gone map[*Container]bool) {
	og.removeFromFields(og, gone)
}

// SuperGroup collects every object group of one type under a single
// top-level entry, e.g. "Triad(s)". Super groups are created by the
// extractor, never parsed from a file.
type SuperGroup struct {
	groupBase

	ogType string
}

func (sg *SuperGroup) Description() string { return sg.ogType + "(s)" }
func (sg *SuperGroup) Type() string        { return sg.ogType }

func (sg *SuperGroup) EntryDescription() ResultDescription {
	return ResultDescription{OGType: sg.ogType, BaseID: -1}
}

func (sg *SuperGroup) compare(obj Entry) bool {
	that, ok := obj.(*SuperGroup)
	return ok && sg.ogType == that.ogType
}

func (sg *SuperGroup) equalTo(obj Entry) bool {
	that, ok := obj.(*SuperGroup)
	return ok && sg.ogType == that.ogType && sg.equalFields(&that.groupBase)
}

func (sg *SuperGroup) lessThan(obj Entry) bool {
	that, ok := obj.(*SuperGroup)
	if !ok {
		return false
	}
	if sg.ogType != that.ogType {
		return sg.ogType < that.ogType
	}
	return sg.lessFields(&that.groupBase)
}

func (sg *SuperGroup) merge(obj Entry) bool {
	that, ok := obj.(*SuperGroup)
	if !ok {
		return false
	}
	sg.mergeFields(sg, &that.groupBase)
	return true
}

func (sg *SuperGroup) traverse(c *Container, owner Entry, pos int) (Entry, int) {
	return sg, pos
}

func (sg *SuperGroup) removeContainers(gone map[*Container]bool) {
	sg.removeFromFields(sg, gone)
}
