// Package tag reads and writes the identification line that starts every
// results database file.
//
// The line is a '#'-prefixed tag string padded to a fixed width, followed by
// a 16-bit endian marker and an 8-byte checksum field (the first four bytes
// of which are always zero). The marker tells the reader which byte order
// the rest of the file is written in.
package tag

import (
	"encoding/binary"
	"fmt"
	"io"
)

// DefaultLength is the on-disk width of the tag string, including the
// leading '#'.
const DefaultLength = 30

const (
	markerHi = 0x12
	markerLo = 0x34
)

var (
	ErrNoTag     = fmt.Errorf("tag: first character is not '#'")
	ErrBadEndian = fmt.Errorf("tag: invalid endian marker")
)

// Info is the decoded identification line of a binary results file.
type Info struct {
	Tag      string
	Order    binary.ByteOrder
	Checksum uint32

	// Binary is false when a newline was found inside the tag field,
	// meaning the file is plain text and carries no endian marker
	// or checksum.
	Binary bool
}

// Read decodes the identification line from r. For text files it returns
// Info with Binary == false and only the Tag field set. Read consumes
// exactly the tag line: DefaultLength bytes plus the marker and checksum
// fields for binary files, or up to and including the first newline for
// text files.
func Read(r io.Reader) (Info, error) {
	var info Info
	var one [1]byte

	if _, err := io.ReadFull(r, one[:]); err != nil {
		return info, fmt.Errorf("tag: %w", err)
	}
	if one[0] != '#' {
		return info, ErrNoTag
	}

	tag := make([]byte, 1, DefaultLength)
	tag[0] = '#'
	binaryFile := false
	for len(tag) < DefaultLength {
		if _, err := io.ReadFull(r, one[:]); err != nil {
			return info, fmt.Errorf("tag: reading tag field: %w", err)
		}
		c := one[0]
		if !binaryFile && (c == '\n' || c == '\r') {
			info.Tag = string(tag)
			return info, nil
		}
		if c < 32 || c > 126 {
			binaryFile = true
		}
		tag = append(tag, c)
	}
	info.Tag = trimPadding(string(tag))
	info.Binary = true

	var marker [2]byte
	if _, err := io.ReadFull(r, marker[:]); err != nil {
		return info, fmt.Errorf("tag: reading endian marker: %w", err)
	}
	switch marker[0] {
	case markerHi:
		info.Order = binary.BigEndian
	case markerLo:
		info.Order = binary.LittleEndian
	default:
		return info, ErrBadEndian
	}

	var cs [8]byte
	if _, err := io.ReadFull(r, cs[:]); err != nil {
		return info, fmt.Errorf("tag: reading checksum field: %w", err)
	}
	info.Checksum = info.Order.Uint32(cs[4:])
	return info, nil
}

// Write encodes the identification line for a binary file in the given byte
// order. The tag is truncated or blank-padded to DefaultLength.
func Write(w io.Writer, tag string, checksum uint32, order binary.ByteOrder) error {
	buf := make([]byte, 0, DefaultLength+10)
	if len(tag) == 0 || tag[0] != '#' {
		buf = append(buf, '#')
	}
	buf = append(buf, tag...)
	if len(buf) > DefaultLength {
		buf = buf[:DefaultLength]
	}
	for len(buf) < DefaultLength {
		buf = append(buf, ' ')
	}

	var tail [10]byte
	order.PutUint16(tail[0:2], 0x1234)
	order.PutUint32(tail[2:6], 0)
	order.PutUint32(tail[6:10], checksum)
	buf = append(buf, tail[:]...)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("tag: %w", err)
	}
	return nil
}

func trimPadding(s string) string {
	end := len(s)
	for end > 0 && s[end-1] == ' ' {
		end--
	}
	return s[:end]
}
