package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/hsds-validator/internal/resources"
)

var (
	// ErrUnsupportedResourceType is returned by New for a type outside the catalog.
	ErrUnsupportedResourceType = errors.New("unsupported resource type")

	// ErrSchemaMissing is returned by Validate when no schema is bound.
	ErrSchemaMissing = errors.New("validator has no schema")

	// ErrInvalidInput is returned by Validate when the source is nil or the
	// options are out of range.
	ErrInvalidInput = errors.New("invalid input")
)

// PositionedError is one validation failure in source coordinates.
//
// Row is the 1-based record number in the source, header row included. For
// CSV input a record is what encoding/csv yields: completely empty lines are
// not records and do not advance Row, and a quoted field spanning several
// lines is still one record. Row therefore matches the line number only for
// files without empty lines or embedded newlines. A line holding just
// delimiters (",,") is a record and is counted, though it is never checked.
//
// Col is the 1-based column, or 0 when the whole row is at fault.
type PositionedError struct {
	Row         int    `json:"row"`
	Col         int    `json:"col"`
	Description string `json:"description"`
}

func (e PositionedError) String() string {
	return fmt.Sprintf("row %d, col %d: %s", e.Row, e.Col, e.Description)
}

// SchemaResolutionError means the type is known but its schema could not be loaded.
type SchemaResolutionError struct {
	Type resources.Type
	Err  error
}

func (e *SchemaResolutionError) Error() string {
	return fmt.Sprintf("resolve schema for %q: %v", e.Type, e.Err)
}

func (e *SchemaResolutionError) Unwrap() error { return e.Err }

// ValidationFailed carries every positioned error found in a source, in
// increasing row order.
type ValidationFailed struct {
	Errors []PositionedError
}

func (e *ValidationFailed) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0].String()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "validation failed with %d errors", len(e.Errors))
	for i, pe := range e.Errors {
		if i == 3 {
			fmt.Fprintf(&b, "; and %d more", len(e.Errors)-i)
			break
		}
		b.WriteString("; ")
		b.WriteString(pe.String())
	}
	return b.String()
}

// ScannerError is a failure the scanner could not attribute to a cell.
// It aborts the whole validation. Row and Col are 0 when unknown.
type ScannerError struct {
	Message string
	Row     int
	Col     int
	Err     error
}

func (e *ScannerError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("scanner error at row %d, col %d: %s", e.Row, e.Col, e.Message)
	}
	return "scanner error: " + e.Message
}

func (e *ScannerError) Unwrap() error { return e.Err }
