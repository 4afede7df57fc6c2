package dataset

import (
	"errors"
	"fmt"
)

// ErrEmptyFile is wrapped by a ParseError when an upload has no data rows.
var ErrEmptyFile = errors.New("empty file")

// ErrFileTooLarge is wrapped by a ParseError when an upload exceeds the size cap.
var ErrFileTooLarge = errors.New("file too large")

// ErrUnsupportedFormat is wrapped by a ParseError for unknown file extensions.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ParseError reports a malformed upload. Line is 1-based and zero when the
// problem is not tied to a particular line.
type ParseError struct {
	File   string
	Line   int
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := "parse " + e.File
	if e.Line > 0 {
		msg += fmt.Sprintf(" line %d", e.Line)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErr(file string, line int, reason string, err error) *ParseError {
	return &ParseError{File: file, Line: line, Reason: reason, Err: err}
}
