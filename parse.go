package rdb

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// creatorData carries the state shared by all record parsers while one
// file's header is read: the extractor-wide registries plus the per-file
// variable and item group reference tables.
type creatorData struct {
	file   string
	log    *slog.Logger
	varSet *variableSet
	igSet  *itemGroupSet
	dict   stringDict

	vars map[int]*Variable
	igs  map[int]*ItemGroup

	topLevel []Entry
}

func newCreatorData(file string, log *slog.Logger, vs *variableSet, is *itemGroupSet, d stringDict) *creatorData {
	return &creatorData{
		file:   file,
		log:    log,
		varSet: vs,
		igSet:  is,
		dict:   d,
		vars:   make(map[int]*Variable),
		igs:    make(map[int]*ItemGroup),
	}
}

// headerScanner is a buffered byte reader that tracks the absolute file
// offset of the next unread byte. The offset at the end of the DATA label
// is the size of the text header, which the binary records follow directly.
type headerScanner struct {
	r   *bufio.Reader
	off int64
}

func newHeaderScanner(r io.Reader, off int64) *headerScanner {
	return &headerScanner{r: bufio.NewReader(r), off: off}
}

func (s *headerScanner) ReadByte() (byte, error) {
	b, err := s.r.ReadByte()
	if err == nil {
		s.off++
	}
	return b, err
}

func (s *headerScanner) UnreadByte() error {
	err := s.r.UnreadByte()
	if err == nil {
		s.off--
	}
	return err
}

func (s *headerScanner) skipLine() {
	for {
		c, err := s.ReadByte()
		if err != nil || c == '\n' {
			return
		}
	}
}

// skipSpace returns the first non-space byte.
func (s *headerScanner) skipSpace() (byte, error) {
	for {
		c, err := s.ReadByte()
		if err != nil || !isSpace(c) {
			return c, err
		}
	}
}

// headerInfo is the outcome of parsing one file's text header.
type headerInfo struct {
	module     string
	date       time.Time
	headerSize int64
}

const dateLayout = "02 Jan 2006 15:04:05"

// parseHeader reads the text header of a results file: MODULE and DATETIME
// headings, the VARIABLES and DATABLOCKS record sections, and the DATA label
// that terminates the header. Record syntax errors are logged and the record
// skipped; a missing DATA section fails the whole file.
func parseHeader(s *headerScanner, cd *creatorData) (headerInfo, error) {
	var hi headerInfo
	for {
		c, err := s.skipSpace()
		if err != nil {
			return hi, parseErrf(cd.file, "", err, "no DATA section in file header")
		}
		if c == '#' {
			s.skipLine()
			continue
		}

		var label []byte
		for isAlnum(c) {
			if c >= 'a' && c <= 'z' {
				c -= 'a' - 'A'
			}
			label = append(label, c)
			if c, err = s.ReadByte(); err != nil {
				return hi, parseErrf(cd.file, "", err, "no DATA section in file header")
			}
		}
		for isSpace(c) {
			if c, err = s.ReadByte(); err != nil {
				return hi, parseErrf(cd.file, "", err, "no DATA section in file header")
			}
		}
		if c == '#' {
			s.skipLine()
			c = ':'
		}

		switch c {
		case ':':
			switch string(label) {
			case "VARIABLES":
				if err := parseRecords(s, cd, false); err != nil {
					return hi, err
				}
			case "DATABLOCKS":
				if err := parseRecords(s, cd, true); err != nil {
					return hi, err
				}
			case "DATA":
				hi.headerSize = s.off
				return hi, nil
			default:
				cd.log.Warn("rdb: ignoring unknown section", "file", cd.file, "section", string(label))
			}
		case '=':
			value, err := readHeadingValue(s)
			if err != nil {
				return hi, parseErrf(cd.file, "", err, "no DATA section in file header")
			}
			switch string(label) {
			case "MODULE":
				hi.module = value
			case "DATETIME":
				if t, err := time.Parse(dateLayout, value); err == nil {
					hi.date = t
				} else {
					cd.log.Warn("rdb: malformed DATETIME heading", "file", cd.file, "value", value)
				}
			}
		default:
			cd.log.Warn("rdb: malformed header line", "file", cd.file, "label", string(label))
			s.skipLine()
		}
	}
}

func readHeadingValue(s *headerScanner) (string, error) {
	var v []byte
	for {
		c, err := s.ReadByte()
		if err != nil {
			return "", err
		}
		if c == ';' || c == '\n' {
			return strings.TrimSpace(string(v)), nil
		}
		v = append(v, c)
	}
}

// parseRecords consumes one record section. In the VARIABLES section records
// define reusable variables and item groups; in the DATABLOCKS section they
// additionally contribute top-level entries making up the per-step record
// layout.
func parseRecords(s *headerScanner, cd *creatorData, dataBlocks bool) error {
	for {
		c, err := s.skipSpace()
		if err != nil {
			return nil
		}
		switch c {
		case '#':
			s.skipLine()
		case '<':
			parseVariableRecord(s, cd, dataBlocks)
		case '[':
			parseItemGroupRecord(s, cd, dataBlocks)
		case '{':
			if dataBlocks {
				parseObjectGroupRecord(s, cd)
			} else {
				cd.log.Warn("rdb: object group outside DATABLOCKS section", "file", cd.file)
				skipRecord(s, '{', '}')
			}
		default:
			s.UnreadByte()
			return nil
		}
	}
}

func skipRecord(s *headerScanner, open, close byte) {
	tokenize(s, open, close, ';')
}

func parseVariableRecord(s *headerScanner, cd *creatorData, dataBlocks bool) {
	toks, err := tokenize(s, '<', '>', ';')
	if err != nil {
		cd.log.Warn("rdb: unterminated variable record", "file", cd.file, "err", err)
		return
	}

	if len(toks) == 1 {
		if !dataBlocks {
			cd.log.Warn("rdb: dangling variable reference in VARIABLES section", "file", cd.file, "record", toks[0])
			return
		}
		id, _ := strconv.Atoi(toks[0])
		v := cd.vars[id]
		if v == nil {
			cd.log.Warn("rdb: reference to undefined variable", "file", cd.file, "id", id)
			return
		}
		cd.topLevel = append(cd.topLevel, newVarRef(v))
		return
	}

	v, id, err := fillVariable(toks, cd)
	if err != nil {
		cd.log.Warn("rdb: skipping malformed variable record", "file", cd.file, "record", strings.Join(toks, ";"), "err", err)
		return
	}
	if id == 0 && !dataBlocks {
		cd.log.Warn("rdb: variable without id in VARIABLES section", "file", cd.file, "variable", v.Name)
		return
	}
	v = cd.varSet.intern(v)
	if id > 0 {
		cd.vars[id] = v
	}
	if dataBlocks {
		cd.topLevel = append(cd.topLevel, newVarRef(v))
	}
}

// fillVariable builds a Variable from the record fields
// id;name;unit;dataType;dataSize;dataClass[;(sizes)[;(descriptions)]].
func fillVariable(toks []string, cd *creatorData) (*Variable, int, error) {
	if len(toks) < 6 {
		return nil, 0, fmt.Errorf("%d fields, want at least 6", len(toks))
	}
	id, _ := strconv.Atoi(toks[0])
	dt, err := parseDataType(toks[3])
	if err != nil {
		return nil, id, err
	}
	bits, err := strconv.Atoi(toks[4])
	if err != nil || (bits != 32 && bits != 64) {
		return nil, id, fmt.Errorf("invalid data size %q", toks[4])
	}
	v := &Variable{
		Name:      toks[1],
		Unit:      toks[2],
		DataType:  dt,
		DataSize:  bits,
		DataClass: cd.dict.intern(strings.ToUpper(toks[5])),
	}
	if len(toks) > 6 && toks[6] != "" {
		sizes, err := tokenizeString(toks[6], '(', ')', ',')
		if err != nil {
			return nil, id, err
		}
		for _, s := range sizes {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				return nil, id, fmt.Errorf("invalid block size %q", s)
			}
			v.BlockSizes = append(v.BlockSizes, n)
		}
	}
	if len(toks) > 7 && toks[7] != "" {
		descr, err := tokenizeString(toks[7], '(', ')', ',')
		if err != nil {
			return nil, id, err
		}
		v.BlockDescr = descr
	}
	return v, id, nil
}

func parseItemGroupRecord(s *headerScanner, cd *creatorData, dataBlocks bool) {
	toks, err := tokenize(s, '[', ']', ';')
	if err != nil {
		cd.log.Warn("rdb: unterminated item group record", "file", cd.file, "err", err)
		return
	}

	if len(toks) == 1 {
		if !dataBlocks {
			cd.log.Warn("rdb: dangling item group reference in VARIABLES section", "file", cd.file, "record", toks[0])
			return
		}
		id, _ := strconv.Atoi(toks[0])
		ig := cd.igs[id]
		if ig == nil {
			cd.log.Warn("rdb: reference to undefined item group", "file", cd.file, "id", id)
			return
		}
		cd.topLevel = append(cd.topLevel, ig)
		return
	}

	ig := newItemGroup(dataBlocks)
	id, err := fillItemGroup(ig, toks, cd)
	if err != nil {
		cd.log.Warn("rdb: skipping malformed item group record", "file", cd.file, "record", strings.Join(toks, ";"), "err", err)
		return
	}
	if id == 0 && !dataBlocks {
		cd.log.Warn("rdb: item group without id in VARIABLES section", "file", cd.file)
		return
	}
	if id > 0 {
		shared := cd.igSet.intern(ig)
		cd.igs[id] = shared
		if dataBlocks {
			cd.topLevel = append(cd.topLevel, shared)
		}
	} else if dataBlocks {
		cd.topLevel = append(cd.topLevel, ig)
	}
}

// fillItemGroup populates ig from the record fields id;name-or-number;refs.
// It returns the declaration id, zero for anonymous inline groups.
func fillItemGroup(ig *ItemGroup, toks []string, cd *creatorData) (int, error) {
	if len(toks) < 3 {
		return 0, fmt.Errorf("%d fields, want 3", len(toks))
	}
	id, _ := strconv.Atoi(toks[0])
	if isDigits(toks[1]) {
		ig.id, _ = strconv.Atoi(toks[1])
		ig.name = ""
	} else {
		ig.id = -1
		ig.name = cd.dict.intern(toks[1])
	}
	if err := resolveRefs(&ig.groupBase, ig, toks[2], cd, ig.inlined); err != nil {
		return id, err
	}
	return id, nil
}

func parseObjectGroupRecord(s *headerScanner, cd *creatorData) {
	toks, err := tokenize(s, '{', '}', ';')
	if err != nil {
		cd.log.Warn("rdb: unterminated object group record", "file", cd.file, "err", err)
		return
	}
	if len(toks) < 5 {
		cd.log.Warn("rdb: skipping malformed object group record", "file", cd.file, "record", strings.Join(toks, ";"))
		return
	}
	og := &ObjectGroup{
		ogType:      cd.dict.intern(toks[0]),
		description: toks[3],
	}
	og.baseID, _ = strconv.Atoi(toks[1])
	og.uID, _ = strconv.Atoi(toks[2])
	if err := resolveRefs(&og.groupBase, og, toks[4], cd, false); err != nil {
		cd.log.Warn("rdb: skipping object group with bad references", "file", cd.file, "object", og.description, "err", err)
		return
	}
	cd.topLevel = append(cd.topLevel, og)
}

// resolveRefs expands a reference list string into child entries of g:
// <id> and [id] pull definitions from the per-file tables, while full
// inline <...> and [...] records declare anonymous children in place.
// Dangling references are logged and dropped without failing the record.
func resolveRefs(g *groupBase, self Entry, refs string, cd *creatorData, inlined bool) error {
	r := strings.NewReader(refs)
	for {
		c, err := r.ReadByte()
		if err != nil {
			return nil
		}
		switch c {
		case '<':
			toks, err := tokenize(r, '<', '>', ';')
			if err != nil {
				return err
			}
			if len(toks) == 1 {
				id, _ := strconv.Atoi(toks[0])
				v := cd.vars[id]
				if v == nil {
					cd.log.Warn("rdb: reference to undefined variable", "file", cd.file, "id", id)
					continue
				}
				vr := newVarRef(v)
				vr.setOwner(self)
				g.fields = append(g.fields, vr)
				continue
			}
			v, _, err := fillVariable(toks, cd)
			if err != nil {
				return err
			}
			vr := newVarRef(cd.varSet.intern(v))
			vr.setOwner(self)
			g.fields = append(g.fields, vr)
		case '[':
			toks, err := tokenize(r, '[', ']', ';')
			if err != nil {
				return err
			}
			if len(toks) == 1 {
				id, _ := strconv.Atoi(toks[0])
				ig := cd.igs[id]
				if ig == nil {
					cd.log.Warn("rdb: reference to undefined item group", "file", cd.file, "id", id)
					continue
				}
				// Shared group: no owner, several parents may use it.
				g.fields = append(g.fields, ig)
				continue
			}
			child := newItemGroup(inlined)
			if _, err := fillItemGroup(child, toks, cd); err != nil {
				return err
			}
			child.setOwner(self)
			g.fields = append(g.fields, child)
		}
	}
}
