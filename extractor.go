package rdb

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
)

// Options configures a new Extractor.
type Options struct {
	// Logger receives parse diagnostics and read warnings. Defaults to
	// slog.Default.
	Logger *slog.Logger

	// CachePath, when non-empty, names a bolt database file used to
	// persist per-file time step indexes between sessions. Files whose
	// header fingerprint matches a cached entry skip the time scan.
	CachePath string

	// PreReadSteps > 0 enables a per-container LRU cache of that many
	// whole step records, so that reading many variables of the same step
	// costs one file read.
	PreReadSteps int
}

// Extractor is a read-only view over a set of results files, merging their
// catalogs into one hierarchy and their time step indexes into one
// navigable timeline.
//
// An Extractor must be used from a single goroutine.
type Extractor struct {
	name string
	log  *slog.Logger

	containers map[string]*Container

	superGroups  map[string]*SuperGroup
	objectGroups map[int]*ObjectGroup
	topVars      map[string]Entry

	varSet variableSet
	igSet  itemGroupSet
	dict   stringDict

	cache        *indexCache
	preReadSteps int

	curTime    float64
	positioned bool
}

// NewExtractor creates an empty extractor. name labels the extractor in log
// output only.
func NewExtractor(name string, opt Options) (*Extractor, error) {
	log := opt.Logger
	if log == nil {
		log = slog.Default()
	}
	ex := &Extractor{
		name:         name,
		log:          log,
		containers:   make(map[string]*Container),
		superGroups:  make(map[string]*SuperGroup),
		objectGroups: make(map[int]*ObjectGroup),
		topVars:      make(map[string]Entry),
		dict:         make(stringDict),
		preReadSteps: opt.PreReadSteps,
	}
	if opt.CachePath != "" {
		cache, err := openIndexCache(opt.CachePath)
		if err != nil {
			return nil, fmt.Errorf("rdb: opening index cache: %w", err)
		}
		ex.cache = cache
	}
	return ex, nil
}

// Name returns the label given to NewExtractor.
func (ex *Extractor) Name() string { return ex.name }

// Close closes every container and the index cache.
func (ex *Extractor) Close() error {
	var firstErr error
	for _, c := range ex.containers {
		if err := c.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	ex.containers = make(map[string]*Container)
	if ex.cache != nil {
		if err := ex.cache.close(); err != nil && firstErr == nil {
			firstErr = err
		}
		ex.cache = nil
	}
	return firstErr
}

// AddFiles opens and merges the given results files in order. The first
// failure stops the loop and is returned; files opened before it stay
// loaded.
func (ex *Extractor) AddFiles(fileNames []string) error {
	for _, fn := range fileNames {
		if err := ex.AddFile(fn); err != nil {
			return err
		}
	}
	return nil
}

// AddFile opens one results file, parses its catalog and merges it into the
// extractor's hierarchy. Adding an already loaded path is a no-op.
func (ex *Extractor) AddFile(fileName string) error {
	if _, dup := ex.containers[fileName]; dup {
		return nil
	}
	c, err := newContainer(ex, fileName)
	if err != nil {
		return err
	}
	ex.containers[fileName] = c
	ex.mergeHeader(c)
	ex.log.Debug("rdb: loaded results file",
		"file", fileName, "steps", c.StepCount(), "recordBytes", c.StepBytes())
	return nil
}

// mergeHeader folds one container's top-level entries into the extractor's
// catalog. Object groups merge by (type, base id); everything else merges by
// description. A top-level entry whose description matches an earlier one
// but whose definition conflicts is dropped with a warning.
func (ex *Extractor) mergeHeader(c *Container) {
	for _, e := range c.topLevel {
		if og, ok := e.(*ObjectGroup); ok {
			ex.mergeObjectGroup(og)
			continue
		}
		key := e.Description()
		old := ex.topVars[key]
		if old == nil {
			ex.topVars[key] = e
			continue
		}
		if !old.merge(e) {
			ex.log.Warn("rdb: conflicting definitions for top-level result, keeping the first",
				"file", c.fileName, "result", key)
		}
	}
}

func (ex *Extractor) mergeObjectGroup(og *ObjectGroup) {
	adopt := og
	if og.hasIdentity() {
		if exist := ex.objectGroups[og.baseID]; exist == nil {
			ex.objectGroups[og.baseID] = og
		} else if exist.merge(og) {
			adopt = nil
		}
	}
	if adopt == nil {
		return
	}
	sog := ex.superGroups[og.ogType]
	switch {
	case sog == nil:
		sog = &SuperGroup{ogType: og.ogType}
		ex.superGroups[og.ogType] = sog
		adopt.setOwner(sog)
		sog.fields = append(sog.fields, adopt)
	case og.hasIdentity():
		adopt.setOwner(sog)
		sog.fields = append(sog.fields, adopt)
	default:
		// Anonymous group of an already known type, merge into the
		// type's first object.
		sog.fields[0].merge(adopt)
	}
}

// RemoveFiles detaches the named files from the catalog and closes them.
// Entries left without data stay in the hierarchy as empty search anchors.
// It returns the number of files actually removed.
func (ex *Extractor) RemoveFiles(fileNames []string) int {
	gone := make(map[*Container]bool, len(fileNames))
	for _, fn := range fileNames {
		if c := ex.containers[fn]; c != nil {
			gone[c] = true
		}
	}
	if len(gone) == 0 {
		return 0
	}

	for _, e := range ex.topVars {
		e.removeContainers(gone)
	}
	for id := range ex.objectGroups {
		delete(ex.objectGroups, id)
	}
	for _, sog := range ex.superGroups {
		sog.removeContainers(gone)
		for _, f := range sog.fields {
			if og, ok := f.(*ObjectGroup); ok && og.hasIdentity() {
				ex.objectGroups[og.baseID] = og
			}
		}
	}

	for _, fn := range fileNames {
		if c := ex.containers[fn]; c != nil {
			c.close()
			delete(ex.containers, fn)
		}
	}
	return len(gone)
}

// Update re-scans all containers for steps appended since loading, so a
// running solver's output can be followed. It reports whether any container
// grew.
func (ex *Extractor) Update() (bool, error) {
	grew := false
	for _, c := range ex.containers {
		added, err := c.update()
		if err != nil {
			return grew, err
		}
		grew = grew || added
	}
	return grew, nil
}

// Files returns the paths of the loaded containers in sorted order.
func (ex *Extractor) Files() []string {
	out := make([]string, 0, len(ex.containers))
	for fn := range ex.containers {
		out = append(out, fn)
	}
	sort.Strings(out)
	return out
}

// Container returns the loaded container for the given path, or nil.
func (ex *Extractor) Container(fileName string) *Container {
	return ex.containers[fileName]
}

// TopLevelVar returns the top-level entry with the given description, or
// nil.
func (ex *Extractor) TopLevelVar(name string) Entry {
	e, ok := ex.topVars[name]
	if !ok {
		return nil
	}
	return e
}

// SuperGroups returns the top-level object type groups, sorted by type.
func (ex *Extractor) SuperGroups() []*SuperGroup {
	out := make([]*SuperGroup, 0, len(ex.superGroups))
	for _, sog := range ex.superGroups {
		out = append(out, sog)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ogType < out[j].ogType })
	return out
}

// TopLevelVars returns the top-level entries outside any object group,
// sorted by description.
func (ex *Extractor) TopLevelVars() []Entry {
	out := make([]Entry, 0, len(ex.topVars))
	for _, e := range ex.topVars {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Description() < out[j].Description() })
	return out
}

// Find returns the single entry addressed by d, or nil. Empty entries are
// skipped while walking the path so that a re-created result is preferred
// over a removed one, but the returned top-level anchor itself may be empty.
func (ex *Extractor) Find(d ResultDescription) Entry {
	switch {
	case d.OGType != "" && d.BaseID < 0:
		if sog := ex.superGroups[d.OGType]; sog != nil {
			return sog
		}
		return nil
	case d.OGType != "":
		var start Entry
		if d.BaseID > 0 {
			if og := ex.objectGroups[d.BaseID]; og != nil {
				start = og
			}
		} else if sog := ex.superGroups[d.OGType]; sog != nil && len(sog.fields) > 0 {
			start = sog.fields[0]
		}
		if start == nil {
			return nil
		}
		return findPath(start, d.Path, 0)
	case len(d.Path) > 0:
		e, ok := ex.topVars[d.Path[0]]
		if !ok {
			return nil
		}
		return findPath(e, d.Path, 1)
	}
	return nil
}

func findPath(e Entry, path []string, from int) Entry {
	for i := from; i < len(path) && e != nil; i++ {
		fields := childFields(e)
		if fields == nil {
			return nil
		}
		e = nil
		for _, f := range fields {
			if f.Description() == path[i] && !f.IsEmpty() {
				e = f
				break
			}
		}
	}
	return e
}

func childFields(e Entry) []Entry {
	type fielder interface{ Fields() []Entry }
	if g, ok := e.(fielder); ok {
		return g.Fields()
	}
	return nil
}

// Search returns every entry matching d. A "*" path element matches every
// child on its level, and a description with only an object type collects
// matches from every object of that type.
func (ex *Extractor) Search(d ResultDescription) []Entry {
	var out []Entry
	switch {
	case d.OGType == "" || d.BaseID < 0:
		if e := ex.Find(d); e != nil {
			out = append(out, e)
		}
	case d.BaseID > 0:
		if og := ex.objectGroups[d.BaseID]; og != nil {
			out = searchPath(out, og, d.Path, 0)
		}
	default:
		if sog := ex.superGroups[d.OGType]; sog != nil {
			for _, f := range sog.fields {
				out = searchPath(out, f, d.Path, 0)
			}
		}
	}
	return out
}

func searchPath(out []Entry, e Entry, path []string, from int) []Entry {
	if from >= len(path) {
		return append(out, e)
	}
	for i := from; i < len(path) && e != nil; i++ {
		fields := childFields(e)
		if fields == nil {
			return out
		}
		name := path[i]
		leaf := i+1 == len(path)
		e = nil
		for _, f := range fields {
			switch {
			case leaf && (name == "*" || name == f.Description()):
				out = append(out, f)
			case !leaf && name == "*":
				out = searchPath(out, f, path, i+1)
			case !leaf && name == f.Description():
				e = f
			}
		}
		if !leaf && name == "*" {
			return out
		}
	}
	return out
}

// SetPosition positions every container at the time closest to wanted and
// returns the time actually found. With nextHigher, times at or above wanted
// are preferred when the wanted time falls between two steps. It reports
// false when no loaded container holds any step.
func (ex *Extractor) SetPosition(wanted float64, nextHigher bool) (float64, bool) {
	found := math.MaxFloat64
	for _, c := range ex.containers {
		switch c.positionAtKey(wanted, nextHigher) {
		case posNotSet, posAfterEnd, posBeforeStart:
			continue
		}
		if t, ok := c.currentKey(); ok && math.Abs(t-wanted) < math.Abs(found-wanted) {
			found = t
		}
	}
	if found == math.MaxFloat64 {
		// The wanted time is outside every container's range; fall back
		// to the nearest range end.
		for _, c := range ex.containers {
			if t, ok := c.currentKey(); ok && math.Abs(t-wanted) < math.Abs(found-wanted) {
				found = t
			}
		}
	}
	if found == math.MaxFloat64 {
		return 0, false
	}
	// Reposition the stragglers at the time actually found, so that exact
	// match detection during reads agrees across containers.
	if found != wanted {
		for _, c := range ex.containers {
			c.positionAtKey(found, nextHigher)
		}
	}
	ex.curTime = found
	ex.positioned = true
	return found, true
}

// Increment advances to the next time present in any container and reports
// whether there was one.
func (ex *Extractor) Increment() bool {
	next := math.MaxFloat64
	for _, c := range ex.containers {
		if t, ok := c.nextKeyAfter(ex.curTime); ok && t < next {
			next = t
		}
	}
	if next == math.MaxFloat64 {
		return false
	}
	_, ok := ex.SetPosition(next, true)
	return ok
}

// ResetPosition rewinds to the earliest time of any container. It reports
// false when no container holds steps.
func (ex *Extractor) ResetPosition() bool {
	first := math.MaxFloat64
	for _, c := range ex.containers {
		if t, ok := c.firstKey(); ok && t < first {
			first = t
		}
	}
	if first == math.MaxFloat64 {
		return false
	}
	_, ok := ex.SetPosition(first, true)
	return ok
}

// CurrentTime returns the physical time of the current position.
func (ex *Extractor) CurrentTime() float64 { return ex.curTime }

// FirstTime returns the earliest time step of the loaded files.
func (ex *Extractor) FirstTime() (float64, bool) {
	first := math.MaxFloat64
	for _, c := range ex.containers {
		if t, ok := c.firstKey(); ok && t < first {
			first = t
		}
	}
	return first, first != math.MaxFloat64
}

// LastTime returns the latest time step of the loaded files.
func (ex *Extractor) LastTime() (float64, bool) {
	last := -math.MaxFloat64
	for _, c := range ex.containers {
		if t, ok := c.lastKey(); ok && t > last {
			last = t
		}
	}
	return last, last != -math.MaxFloat64
}

// LastWrittenTime returns the latest time step among the files with the most
// recent write date, i.e. the end of the run that was restarted last.
func (ex *Extractor) LastWrittenTime() (float64, bool) {
	var latest *Container
	for _, c := range ex.containers {
		if len(c.times) == 0 {
			continue
		}
		if latest == nil || c.date.After(latest.date) {
			latest = c
		}
	}
	if latest == nil {
		return 0, false
	}
	return latest.lastKey()
}

// ValidTimes returns the sorted union of the time steps of the named files,
// or of all loaded files when fileNames is empty.
func (ex *Extractor) ValidTimes(fileNames []string) []float64 {
	set := make(map[float64]bool)
	add := func(c *Container) {
		for _, k := range c.times {
			set[k.t] = true
		}
	}
	if len(fileNames) == 0 {
		for _, c := range ex.containers {
			add(c)
		}
	} else {
		for _, fn := range fileNames {
			if c := ex.containers[fn]; c != nil {
				add(c)
			}
		}
	}
	out := make([]float64, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Float64s(out)
	return out
}

// ReadValues decodes the values below e at the current position into dst,
// widening 32-bit elements. It returns the number of elements filled; zero
// means e holds no data at this position.
func (ex *Extractor) ReadValues(e Entry, dst []float64) int {
	if e == nil || !ex.positioned {
		return 0
	}
	return e.readFloats(dst, 0)
}

// Value finds the entry addressed by d and evaluates it into its typed Go
// representation at the current position.
func (ex *Extractor) Value(d ResultDescription) (any, error) {
	if !ex.positioned {
		return nil, ErrNotPositioned
	}
	e := ex.Find(d)
	if e == nil {
		return nil, fmt.Errorf("rdb: no entry matching %s", d)
	}
	vr, ok := e.(*VarRef)
	if !ok {
		return nil, fmt.Errorf("rdb: %s is a group, not a variable", d)
	}
	op, err := NewReadOp(vr)
	if err != nil {
		return nil, err
	}
	return op.Evaluate()
}
