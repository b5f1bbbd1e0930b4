package geojson

import (
	"fmt"
)

// ReadError means input could not be read at all.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("unable to read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// ParseError means input is not a JSON object with "features" array.
type ParseError struct {
	Name   string
	Line   int
	Column int
	// Lines is total number of lines read from the source.
	Lines int
	Msg   string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse %s at line %d, column %d (%d lines read): %s", e.Name, e.Line, e.Column, e.Lines, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// MalformedFeatureError means feature lacks mandatory members or has
// coordinates which do not match its geometry type.
type MalformedFeatureError struct {
	Index  int
	Reason string
	Err    error
}

func (e *MalformedFeatureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feature %d: %s: %v", e.Index, e.Reason, e.Err)
	}
	return fmt.Sprintf("feature %d: %s", e.Index, e.Reason)
}

func (e *MalformedFeatureError) Unwrap() error {
	return e.Err
}
