package rdb

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/openfedem/rdb/tag"
)

// timeEpsilon is the absolute tolerance for treating two physical time
// values as the same step.
const timeEpsilon = 1.1920929e-7

// posStatus tells where the wanted position key fell relative to the
// container's time range.
type posStatus int

const (
	posNotSet posStatus = iota
	posBeforeStart
	posInside
	posAfterEnd
)

// timeKey pairs a physical time value with the zero-based index of the step
// record holding it. Steps rewritten with the same time keep the first index.
type timeKey struct {
	t    float64
	step int
}

// Container is one open results file: its parsed catalog, its per-step
// record layout and its time step index. Containers are created and owned by
// an Extractor.
type Container struct {
	ex       *Extractor
	fileName string
	f        *os.File
	order    binary.ByteOrder
	module   string
	date     time.Time

	headerSize int64
	stepSize   int // bytes per time step record

	topLevel []Entry
	physTime *VarRef

	times     []timeKey
	nextStep  int // first step record not yet indexed
	cur       int
	wantedKey float64
	status    posStatus

	preRead *lru.Cache[int, []byte]
}

// newContainer opens and fully parses one results file, indexing its time
// steps. The caller merges the container's entries into the extractor's
// catalog afterwards.
func newContainer(ex *Extractor, fileName string) (*Container, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("rdb: %w", err)
	}
	c := &Container{ex: ex, fileName: fileName, f: f, cur: -1}
	if err := c.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	if err := c.indexTimeSteps(); err != nil {
		f.Close()
		return nil, err
	}
	if n := ex.preReadSteps; n > 0 {
		c.preRead, _ = lru.New[int, []byte](n)
	}
	return c, nil
}

func (c *Container) readHeader() error {
	info, err := tag.Read(c.f)
	if err != nil {
		return parseErrf(c.fileName, "", err, "cannot read file tag")
	}
	if !info.Binary {
		return parseErrf(c.fileName, info.Tag, nil, "not a binary results file")
	}
	c.order = info.Order

	tagBytes, err := c.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("rdb: %s: %w", c.fileName, err)
	}

	cd := newCreatorData(c.fileName, c.logger(), &c.ex.varSet, &c.ex.igSet, c.ex.dict)
	hi, err := parseHeader(newHeaderScanner(c.f, tagBytes), cd)
	if err != nil {
		return err
	}
	c.module = hi.module
	c.date = hi.date
	c.headerSize = hi.headerSize
	c.topLevel = cd.topLevel

	c.buildLayout()
	c.findPhysTime()
	return nil
}

// buildLayout walks the parsed entries in declaration order, assigning each
// variable reference its byte offset within the per-step record. The
// accumulated offset is the record size.
func (c *Container) buildLayout() {
	pos := 0
	for i, e := range c.topLevel {
		c.topLevel[i], pos = e.traverse(c, nil, pos)
	}
	c.stepSize = pos
	c.sortElementGroups()
}

// sortElementGroups orders the element groups below each Part by their
// numeric id. The solver writes them in assembly order, which is not sorted,
// and the sorted-merge optimization in mergeFields needs sorted children.
func (c *Container) sortElementGroups() {
	for _, e := range c.topLevel {
		og, ok := e.(*ObjectGroup)
		if !ok || og.ogType != "Part" {
			continue
		}
		for _, f := range og.fields {
			if ig, ok := f.(*ItemGroup); ok {
				stableSortByUserID(ig.fields)
			}
		}
	}
}

func (c *Container) findPhysTime() {
	for _, e := range c.topLevel {
		if vr, ok := e.(*VarRef); ok && vr.Var.Name == "Physical time" {
			c.physTime = vr
			return
		}
	}
}

// indexTimeSteps scans the physical time value of every step record not yet
// indexed and inserts it into the sorted time index. On the first call it
// consults the extractor's index cache, if one is configured, to skip the
// scan for files already seen.
func (c *Container) indexTimeSteps() error {
	if c.nextStep == 0 && c.ex.cache != nil {
		c.loadCachedIndex()
	}
	added, err := c.scanTimeSteps()
	if err != nil {
		return err
	}
	if added && c.ex.cache != nil {
		c.storeCachedIndex()
	}
	return nil
}

// scanTimeSteps indexes the steps appended since the last scan. It reports
// whether any new steps were found, so that a caller watching a growing file
// knows to refresh.
func (c *Container) scanTimeSteps() (bool, error) {
	fi, err := c.f.Stat()
	if err != nil {
		return false, fmt.Errorf("rdb: %s: %w", c.fileName, err)
	}
	if c.stepSize == 0 {
		// Header-only file, e.g. a possibility catalog.
		return false, nil
	}
	steps := int((fi.Size() - c.headerSize) / int64(c.stepSize))
	if steps <= c.nextStep {
		return false, nil
	}
	if c.physTime == nil {
		return false, parseErrf(c.fileName, "", nil, "file has step data but no physical time variable")
	}
	off := int64(c.physTime.Refs[0].Offset)

	var buf [8]byte
	elem := buf[:c.physTime.Var.DataSize/8]
	for step := c.nextStep; step < steps; step++ {
		at := c.headerSize + int64(step)*int64(c.stepSize) + off
		if _, err := c.f.ReadAt(elem, at); err != nil {
			return false, fmt.Errorf("rdb: %s: reading time of step %d: %w", c.fileName, step, err)
		}
		c.insertTime(decodeFloat(elem, c.order), step)
	}
	c.nextStep = steps
	return true, nil
}

func decodeFloat(b []byte, order binary.ByteOrder) float64 {
	if len(b) == 4 {
		return float64(math.Float32frombits(order.Uint32(b)))
	}
	return math.Float64frombits(order.Uint64(b))
}

func (c *Container) insertTime(t float64, step int) {
	i := sort.Search(len(c.times), func(i int) bool { return c.times[i].t >= t })
	if i < len(c.times) && c.times[i].t == t {
		return
	}
	c.times = append(c.times, timeKey{})
	copy(c.times[i+1:], c.times[i:])
	c.times[i] = timeKey{t, step}
}

// update re-scans a growing file for newly appended steps. It reports
// whether new steps appeared.
func (c *Container) update() (bool, error) {
	added, err := c.scanTimeSteps()
	if err != nil {
		return false, err
	}
	if added && c.ex.cache != nil {
		c.storeCachedIndex()
	}
	return added, nil
}

func (c *Container) close() error {
	if c.preRead != nil {
		c.preRead.Purge()
	}
	return c.f.Close()
}

func (c *Container) logger() *slog.Logger {
	return c.ex.log
}

// FileName returns the path the container was opened from.
func (c *Container) FileName() string { return c.fileName }

// Module returns the value of the MODULE heading.
func (c *Container) Module() string { return c.module }

// Date returns the value of the DATETIME heading.
func (c *Container) Date() time.Time { return c.date }

// StepCount returns the number of distinct time steps indexed.
func (c *Container) StepCount() int { return len(c.times) }

// StepBytes returns the size of one time step record.
func (c *Container) StepBytes() int { return c.stepSize }

// HeaderBytes returns the size of the text header preceding the records.
func (c *Container) HeaderBytes() int64 { return c.headerSize }

// ByteOrder returns the byte order of the binary records.
func (c *Container) ByteOrder() binary.ByteOrder { return c.order }

// TopLevel returns the container's top-level catalog entries in declaration
// order.
func (c *Container) TopLevel() []Entry { return c.topLevel }

// TimeRange returns the first and last indexed step time.
func (c *Container) TimeRange() (first, last float64, ok bool) {
	if len(c.times) == 0 {
		return 0, 0, false
	}
	return c.times[0].t, c.times[len(c.times)-1].t, true
}

func (c *Container) firstKey() (float64, bool) {
	if len(c.times) == 0 {
		return 0, false
	}
	return c.times[0].t, true
}

func (c *Container) lastKey() (float64, bool) {
	if len(c.times) == 0 {
		return 0, false
	}
	return c.times[len(c.times)-1].t, true
}

func (c *Container) currentKey() (float64, bool) {
	if c.status == posNotSet || c.cur < 0 || c.cur >= len(c.times) {
		return 0, false
	}
	return c.times[c.cur].t, true
}

// positionAtKey positions the container at the step closest to key. With
// nextHigher the first step at or above key is chosen, otherwise the last
// step at or below it.
func (c *Container) positionAtKey(key float64, nextHigher bool) posStatus {
	c.wantedKey = key
	switch {
	case len(c.times) == 0:
		c.status = posNotSet
	case c.times[0].t > key+timeEpsilon:
		c.cur = 0
		c.status = posBeforeStart
	case key-timeEpsilon > c.times[len(c.times)-1].t:
		c.cur = len(c.times) - 1
		c.status = posAfterEnd
	default:
		if nextHigher {
			c.cur = c.upperBound(key - timeEpsilon)
		} else {
			c.cur = c.upperBound(key+timeEpsilon) - 1
		}
		if c.cur < 0 {
			c.cur = 0
		}
		if c.cur >= len(c.times) {
			c.cur = len(c.times) - 1
		}
		c.status = posInside
	}
	return c.status
}

// upperBound returns the index of the first step strictly above key.
func (c *Container) upperBound(key float64) int {
	return sort.Search(len(c.times), func(i int) bool { return c.times[i].t > key })
}

// nextKeyAfter returns the smallest step time strictly above t.
func (c *Container) nextKeyAfter(t float64) (float64, bool) {
	i := c.upperBound(t + timeEpsilon)
	if i >= len(c.times) {
		return 0, false
	}
	return c.times[i].t, true
}

// distanceFromPosKey returns the signed distance from the wanted key to the
// positioned step's time. Near zero means the container holds data exactly
// at the wanted position.
func (c *Container) distanceFromPosKey() float64 {
	if c.status == posNotSet || c.cur < 0 || c.cur >= len(c.times) {
		return math.MaxFloat64
	}
	return c.times[c.cur].t - c.wantedKey
}

// distanceToNextKey returns the distance from the wanted key to the next
// step at or after it. Equal times compare with a tolerance relative to the
// container's time range, so long simulations with fine steps still resolve
// adjacent steps.
func (c *Container) distanceToNextKey() (float64, bool) {
	if c.status == posNotSet || c.status == posAfterEnd || len(c.times) == 0 {
		return 0, false
	}
	eps := (c.times[len(c.times)-1].t - c.times[0].t) * 1e-12
	i := c.cur
	if c.status == posBeforeStart {
		i = 0
	}
	for i < len(c.times) && c.times[i].t < c.wantedKey+eps {
		i++
	}
	if i >= len(c.times) {
		return 0, false
	}
	return c.times[i].t - c.wantedKey, true
}

// record returns the raw bytes of the current step, either the slice of the
// record covering [offset, offset+n) when reading directly, or the whole
// pre-read record when the step cache is enabled.
func (c *Container) record(offset, n int) ([]byte, error) {
	step := c.times[c.cur].step
	base := c.headerSize + int64(step)*int64(c.stepSize)
	if c.preRead == nil {
		buf := make([]byte, n)
		if _, err := c.f.ReadAt(buf, base+int64(offset)); err != nil {
			return nil, err
		}
		return buf, nil
	}
	if rec, ok := c.preRead.Get(step); ok {
		return rec[offset : offset+n], nil
	}
	rec := make([]byte, c.stepSize)
	if _, err := c.f.ReadAt(rec, base); err != nil {
		return nil, err
	}
	c.preRead.Add(step, rec)
	return rec[offset : offset+n], nil
}

// readFloats decodes up to len(dst) elements of a variable stored at the
// given record offset, widening 32-bit floats to float64. It returns the
// number of elements decoded; zero without error when the container is not
// positioned.
func (c *Container) readFloats(dst []float64, offset, elemBits, repeats int) (int, error) {
	n := repeats
	if len(dst) < n {
		n = len(dst)
	}
	if n < 1 || c.status == posNotSet || c.cur < 0 || c.cur >= len(c.times) {
		return 0, nil
	}
	bpe := elemBits / 8
	raw, err := c.record(offset, n*bpe)
	if err != nil {
		return 0, err
	}
	if elemBits == 32 {
		for i := 0; i < n; i++ {
			dst[i] = float64(math.Float32frombits(c.order.Uint32(raw[i*4:])))
		}
	} else {
		for i := 0; i < n; i++ {
			dst[i] = math.Float64frombits(c.order.Uint64(raw[i*8:]))
		}
	}
	return n, nil
}

// readInts decodes up to len(dst) integer elements stored at the given
// record offset.
func (c *Container) readInts(dst []int32, offset, elemBits, repeats int) (int, error) {
	n := repeats
	if len(dst) < n {
		n = len(dst)
	}
	if n < 1 || c.status == posNotSet || c.cur < 0 || c.cur >= len(c.times) {
		return 0, nil
	}
	bpe := elemBits / 8
	raw, err := c.record(offset, n*bpe)
	if err != nil {
		return 0, err
	}
	if elemBits == 32 {
		for i := 0; i < n; i++ {
			dst[i] = int32(c.order.Uint32(raw[i*4:]))
		}
	} else {
		for i := 0; i < n; i++ {
			dst[i] = int32(c.order.Uint64(raw[i*8:]))
		}
	}
	return n, nil
}
