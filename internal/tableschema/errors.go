package tableschema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSourceExhausted is returned by Load when a scan that skips a header it
// already consumed is positioned past the last row of the source.
var ErrSourceExhausted = errors.New("tableschema: start row is past the end of the source")

// ErrSourceTooLarge is returned when a remote source is bigger than its
// URLSource.MaxBytes.
var ErrSourceTooLarge = errors.New("tableschema: source too large")

// ErrForbiddenAddress is returned when a fetch client built by NewFetchClient
// is asked to connect to an address that is not publicly routable.
var ErrForbiddenAddress = errors.New("tableschema: address is not publicly routable")

// CastError reports an invalid cell. ColumnNumber is 0 when the row as a whole
// is malformed (for example a wrong number of columns).
type CastError struct {
	RowNumber    int
	ColumnNumber int
	Field        string
	Value        string
	Message      string
}

func (e *CastError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// MultipleErrors groups every invalid cell of one row.
type MultipleErrors struct {
	Errors []*CastError
}

func (e *MultipleErrors) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ce := range e.Errors {
		msgs[i] = ce.Error()
	}
	return fmt.Sprintf("%d cast errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// HeaderError reports a header row that cannot be matched to the schema.
type HeaderError struct {
	Row     int
	Missing []string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ReadError reports a source that could not be read or tokenised.
// Line and Column are 1-based positions in the raw source when known.
type ReadError struct {
	Line   int
	Column int
	Err    error
}

func (e *ReadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("read line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("read: %v", e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
