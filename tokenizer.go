package rdb

import (
	"fmt"
	"io"
	"strings"
)

// tokenize splits one bracketed record into its separator-delimited fields,
// reading from r with the opening bracket already consumed. Nested
// sub-records (any of <>, [], {}) are kept verbatim inside their containing
// field so that they can be tokenized again during resolution. At the top
// level, quotes are stripped and whitespace outside quoted text is dropped.
func tokenize(r io.ByteReader, open, close, sep byte) ([]string, error) {
	var tokens []string
	var tok []byte
	depth := 1
	inText := false

	for {
		c, err := r.ReadByte()
		if err != nil {
			return tokens, fmt.Errorf("unterminated %c...%c record: %w", open, close, err)
		}

		if !inText && (c == '<' || c == '[' || c == '{') {
			depth++
		}
		if c == '"' {
			inText = !inText
		}

		switch {
		case inText && c != '"':
			tok = append(tok, c)
		case depth > 1:
			tok = append(tok, c)
		case c != sep && c != close && c != open && c != '"':
			if !isSpace(c) {
				tok = append(tok, c)
			}
		}

		if !inText && depth == 1 && (c == sep || c == close) {
			tokens = append(tokens, string(tok))
			tok = tok[:0]
		}

		if !inText && (c == '>' || c == ']' || c == '}') {
			depth--
			if depth == 0 {
				return tokens, nil
			}
		}
	}
}

// tokenizeString tokenizes a complete bracketed record held in a string,
// e.g. a "(3,4)" block-size tuple.
func tokenizeString(s string, open, close, sep byte) ([]string, error) {
	r := strings.NewReader(s)
	c, err := r.ReadByte()
	if err != nil || c != open {
		return nil, fmt.Errorf("record %q does not start with %c", s, open)
	}
	return tokenize(r, open, close, sep)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isAlnum(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
