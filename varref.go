package rdb

import (
	"math"
	"time"
)

// ContainerRef binds a variable reference to one file: the container and the
// byte offset of the variable within that container's per-step record.
type ContainerRef struct {
	Container *Container
	Offset    int
}

// VarRef is a leaf catalog entry: one use of a Variable, present in one or
// more containers. References found identical across files are merged, so
// after loading a restart sequence one VarRef typically points into several
// containers with overlapping time windows.
type VarRef struct {
	entryBase

	// Var is the shared descriptor; owned by the extractor's registry.
	Var *Variable

	// Refs holds at most one entry per distinct container.
	Refs []ContainerRef
}

func newVarRef(v *Variable) *VarRef {
	return &VarRef{Var: v}
}

func (vr *VarRef) Description() string { return vr.Var.Name }
func (vr *VarRef) Type() string        { return vr.Var.DataClass }

func (vr *VarRef) IsEmpty() bool { return len(vr.Refs) == 0 }

func (vr *VarRef) isFloat32() bool {
	return vr.Var.DataType == TypeFloat && vr.Var.DataSize == 32
}

func (vr *VarRef) EntryDescription() ResultDescription {
	return composeDescription(vr)
}

func (vr *VarRef) compare(obj Entry) bool { return vr.equalTo(obj) }

func (vr *VarRef) equalTo(obj Entry) bool {
	that, ok := obj.(*VarRef)
	return ok && vr.Var.Equal(that.Var)
}

func (vr *VarRef) lessThan(obj Entry) bool {
	that, ok := obj.(*VarRef)
	return ok && vr.Var.Less(that.Var)
}

// merge adopts the incoming reference's container binding. The incoming
// entry comes from a single freshly traversed file and holds exactly one
// binding.
func (vr *VarRef) merge(obj Entry) bool {
	that, ok := obj.(*VarRef)
	if !ok || !vr.Var.Equal(that.Var) {
		return false
	}
	for _, ref := range that.Refs {
		vr.addRef(ref)
	}
	return true
}

func (vr *VarRef) addRef(ref ContainerRef) {
	for i, r := range vr.Refs {
		if r.Container == ref.Container {
			vr.Refs[i] = ref
			return
		}
	}
	vr.Refs = append(vr.Refs, ref)
}

// traverse emits a fresh reference bound to this container at the running
// offset; the prototype parsed from the header carries no bindings itself.
func (vr *VarRef) traverse(c *Container, owner Entry, pos int) (Entry, int) {
	cp := newVarRef(vr.Var)
	cp.setOwner(owner)
	cp.Refs = []ContainerRef{{c, pos}}
	return cp, pos + vr.Var.TotalBytes()
}

func (vr *VarRef) removeContainers(gone map[*Container]bool) {
	kept := vr.Refs[:0]
	for _, r := range vr.Refs {
		if !gone[r.Container] {
			kept = append(kept, r)
		}
	}
	vr.Refs = kept
}

// nearestContainer picks the container to read from at the extractor's
// current position. A container whose current step matches the position
// exactly wins; among several exact matches the one with the latest write
// date wins (a restarted run supersedes the truncated one it overlaps).
// With no exact match the geometrically nearest container is used.
func (vr *VarRef) nearestContainer() *Container {
	var match, closest *Container
	var matchDate time.Time
	closestDist := math.MaxFloat64
	for _, r := range vr.Refs {
		dist := r.Container.distanceFromPosKey()
		if math.Abs(dist) < timeEpsilon {
			if match == nil || r.Container.date.After(matchDate) {
				match = r.Container
				matchDate = r.Container.date
			}
		} else if match == nil {
			if d, ok := r.Container.distanceToNextKey(); ok && d < closestDist {
				closestDist = d
				closest = r.Container
			}
		}
	}
	if match != nil {
		return match
	}
	return closest
}

func (vr *VarRef) refFor(c *Container) (ContainerRef, bool) {
	for _, r := range vr.Refs {
		if r.Container == c {
			return r, true
		}
	}
	return ContainerRef{}, false
}

// HasData reports whether some container holds data exactly at the current
// position.
func (vr *VarRef) HasData() bool {
	dist := math.MaxFloat64
	for _, r := range vr.Refs {
		if d := r.Container.distanceFromPosKey(); math.Abs(d) < math.Abs(dist) {
			dist = d
		}
	}
	return math.Abs(dist) < timeEpsilon
}

// Timestamp returns the latest write date of the containers backing this
// reference.
func (vr *VarRef) Timestamp() time.Time {
	var latest time.Time
	for _, r := range vr.Refs {
		if r.Container.date.After(latest) {
			latest = r.Container.date
		}
	}
	return latest
}

// ValidTimes appends every time step available for this reference to the
// given sorted set.
func (vr *VarRef) ValidTimes(times map[float64]bool) {
	for _, r := range vr.Refs {
		for _, k := range r.Container.times {
			times[k.t] = true
		}
	}
}

// ReadFloats decodes up to len(dst) elements of the variable at the current
// position, widening 32-bit floats. It returns the number of elements read;
// zero means no container has data here.
func (vr *VarRef) ReadFloats(dst []float64) int {
	return vr.readFloats(dst, 0)
}

func (vr *VarRef) readFloats(dst []float64, got int) int {
	c, ref := vr.pickContainer()
	if c == nil {
		return got
	}
	n, err := c.readFloats(dst[got:], ref.Offset, vr.Var.DataSize, vr.Var.Repeats())
	if err != nil {
		c.logger().Warn("rdb: read failed", "file", c.fileName, "variable", vr.Var.Name, "err", err)
		return got
	}
	return got + n
}

// ReadInts decodes integer elements at the current position.
func (vr *VarRef) ReadInts(dst []int32) int {
	c, ref := vr.pickContainer()
	if c == nil {
		return 0
	}
	n, err := c.readInts(dst, ref.Offset, vr.Var.DataSize, vr.Var.Repeats())
	if err != nil {
		c.logger().Warn("rdb: read failed", "file", c.fileName, "variable", vr.Var.Name, "err", err)
		return 0
	}
	return n
}

func (vr *VarRef) pickContainer() (*Container, ContainerRef) {
	switch len(vr.Refs) {
	case 0:
		return nil, ContainerRef{}
	case 1:
		return vr.Refs[0].Container, vr.Refs[0]
	default:
		c := vr.nearestContainer()
		if c == nil {
			return nil, ContainerRef{}
		}
		ref, _ := vr.refFor(c)
		return c, ref
	}
}
