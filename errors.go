package rdb

import (
	"fmt"
)

var (
	// ErrNotPositioned is returned by read operations invoked before
	// SetPosition has succeeded on the owning Extractor.
	ErrNotPositioned = fmt.Errorf("rdb: extractor is not positioned")

	// ErrNoData is returned when a variable reference has no container
	// holding data at the current position.
	ErrNoData = fmt.Errorf("rdb: no data for current position")

	// ErrUnknownDataClass is returned by NewReadOp when no decoder is
	// registered for the variable's (data class, element size) pair.
	ErrUnknownDataClass = fmt.Errorf("rdb: unknown data class")
)

// ParseError describes a malformed record in the header of a results file.
// Individual malformed records are skipped and logged, not returned; a
// ParseError surfaces only when the file as a whole cannot be used (missing
// tag line, no DATA section, unresolvable layout).
type ParseError struct {
	File   string
	Record string
	Msg    string
	Err    error
}

func parseErrf(file, record string, err error, format string, args ...any) error {
	return &ParseError{file, record, fmt.Sprintf(format, args...), err}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Error() string {
	s := fmt.Sprintf("rdb: %s: %s", e.File, e.Msg)
	if e.Record != "" {
		s += fmt.Sprintf(" (record %q)", e.Record)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
