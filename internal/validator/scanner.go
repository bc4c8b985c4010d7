package validator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/hsds-validator/internal/tableschema"
)

// headerMode says whether an attempt parses a header row.
type headerMode int

const (
	headerNone     headerMode = iota // the source has no header row
	headerParse                      // the attempt reads the header at headerRow
	headerConsumed                   // an earlier attempt already read it
)

// cursor positions one scan attempt.
type cursor struct {
	startRow  int
	mode      headerMode
	headerRow int
}

func (c cursor) loadOptions() tableschema.LoadOptions {
	opts := tableschema.LoadOptions{From: c.startRow, Trim: true}
	if c.mode == headerParse {
		opts.HeaderRow = c.headerRow
	}
	return opts
}

// failureKind is the closed set of ways an attempt can end badly.
type failureKind int

const (
	failSingle    failureKind = iota + 1 // one cell or row
	failAggregate                        // several cells of one row
	failExhausted                        // resumed past the last row
	failFatal
)

// failure is a classified attempt error.
type failure struct {
	kind  failureKind
	cells []*tableschema.CastError
	err   error
}

func classify(err error) failure {
	var ce *tableschema.CastError
	var me *tableschema.MultipleErrors
	switch {
	case errors.Is(err, tableschema.ErrSourceExhausted):
		return failure{kind: failExhausted}
	case errors.As(err, &me) && len(me.Errors) > 0:
		return failure{kind: failAggregate, cells: me.Errors}
	case errors.As(err, &ce):
		return failure{kind: failSingle, cells: []*tableschema.CastError{ce}}
	default:
		return failure{kind: failFatal, err: err}
	}
}

// scanner drives attempts over one source until it is exhausted or a
// fatal failure stops it.
type scanner struct {
	schema *tableschema.Schema
	logger *slog.Logger
}

// scan validates src from the given cursor. errs is the caller's
// accumulator; scan only appends to it.
//
// The source is opened once. After a row-level failure the table is left
// positioned just past the failing row, so a resumed attempt reads on from
// there and every raw row is read at most once per scan.
func (s *scanner) scan(ctx context.Context, src tableschema.Source, cur cursor, errs []PositionedError) ([]PositionedError, error) {
	tbl, err := tableschema.Load(ctx, src, s.schema, cur.loadOptions())
	if err != nil {
		if classify(err).kind == failExhausted {
			return errs, nil
		}
		return errs, fatal(err)
	}
	defer tbl.Close()

	for attempt := 1; ; attempt++ {
		s.logger.Debug("scan attempt", "attempt", attempt, "start_row", cur.startRow, "header_mode", cur.mode)

		_, err := tbl.Read(ctx)
		if err == nil {
			return errs, nil
		}

		f := classify(err)
		switch f.kind {
		case failExhausted:
			s.logger.Debug("source exhausted", "start_row", cur.startRow)
			return errs, nil
		case failFatal:
			return errs, fatal(err)
		}

		line := cur.startRow
		for _, ce := range f.cells {
			var row int
			row, line = positionFor(cur.startRow, ce.RowNumber)
			errs = append(errs, PositionedError{Row: row, Col: ce.ColumnNumber, Description: ce.Message})
		}

		if !src.Seekable() {
			s.logger.Debug("fixed sequence cannot resume", "errors", len(errs))
			return errs, nil
		}
		if line <= cur.startRow {
			return errs, &ScannerError{
				Message: fmt.Sprintf("scan did not advance past row %d", cur.startRow),
				Row:     cur.startRow,
			}
		}

		if cur.mode != headerNone {
			cur.mode = headerConsumed
		}
		cur.startRow = line
	}
}

// fatal wraps an unclassified failure, keeping any position the engine knew.
func fatal(err error) *ScannerError {
	se := &ScannerError{Message: err.Error(), Err: err}

	var re *tableschema.ReadError
	var he *tableschema.HeaderError
	switch {
	case errors.As(err, &re):
		se.Row, se.Col = re.Line, re.Column
	case errors.As(err, &he):
		se.Row = he.Row
	}
	return se
}
