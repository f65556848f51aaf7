package tle

import "fmt"

// ParseErrorKind identifies the structural defect found in a TLE.
type ParseErrorKind string

const (
	WrongLineCount        ParseErrorKind = "WrongLineCount"
	BadLineMarker         ParseErrorKind = "BadLineMarker"
	ChecksumMismatch      ParseErrorKind = "ChecksumMismatch"
	CatalogNumberMismatch ParseErrorKind = "CatalogNumberMismatch"
	FieldOutOfRange       ParseErrorKind = "FieldOutOfRange"
	MalformedField        ParseErrorKind = "MalformedField"
)

// ParseError describes why a pair of lines is not a valid element set.
// Line is 1 or 2 when the defect is tied to a single line, 0 otherwise.
type ParseError struct {
	Kind  ParseErrorKind
	Line  int
	Field string
	Msg   string
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0 && e.Field != "":
		return fmt.Sprintf("%s on line %d (%s): %s", e.Kind, e.Line, e.Field, e.Msg)
	case e.Line > 0:
		return fmt.Sprintf("%s on line %d: %s", e.Kind, e.Line, e.Msg)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
}

func malformed(line int, field, format string, args ...any) *ParseError {
	return &ParseError{Kind: MalformedField, Line: line, Field: field, Msg: fmt.Sprintf(format, args...)}
}

func outOfRange(line int, field, format string, args ...any) *ParseError {
	return &ParseError{Kind: FieldOutOfRange, Line: line, Field: field, Msg: fmt.Sprintf(format, args...)}
}
