package tableschema

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ContextCheckInterval is how often (in rows) Read checks for cancellation.
var ContextCheckInterval = 100

// LoadOptions positions a scan attempt.
type LoadOptions struct {
	// HeaderRow is the 1-based raw row holding column labels; 0 means the
	// source has no header row (or it was consumed by an earlier attempt).
	HeaderRow int

	// Headers are labels known ahead of time, such as those read by an
	// earlier table over the same source. They are used when HeaderRow is 0.
	Headers []string

	// From is the 1-based raw row where data starts. Values below 1 mean 1.
	From int

	// Trim strips surrounding whitespace and Excel text-formula wrappers.
	Trim bool
}

// Row is one cast record, values in schema field order.
type Row []any

// Table is a schema bound to an open source, positioned at a start row.
type Table struct {
	schema  *Schema
	reader  RowReader
	headers []string

	// columns[i] is the 0-based raw column for schema field i, or -1.
	columns []int
	width   int
	trim    bool

	// first data row, read ahead by Load
	peeked []string
	done   bool

	// rows taken from the reader across every Read, for cancellation checks
	scanned int
}

// Load opens src, consumes the header row if requested, skips to opts.From
// and returns a table ready to Read.
//
// When the header has already been consumed (HeaderRow is 0) and no row
// exists at From > 1, Load returns ErrSourceExhausted.
func Load(ctx context.Context, src Source, schema *Schema, opts LoadOptions) (*Table, error) {
	if src == nil {
		return nil, errors.New("tableschema: nil source")
	}
	if schema == nil {
		return nil, &SchemaError{Message: "no schema"}
	}
	if err := schema.Compile(); err != nil {
		return nil, err
	}

	from := opts.From
	if from < 1 {
		from = 1
	}
	if opts.HeaderRow >= from {
		return nil, fmt.Errorf("tableschema: header row %d must precede data start row %d", opts.HeaderRow, from)
	}

	reader, err := src.Open(ctx, schema)
	if err != nil {
		return nil, err
	}

	t := &Table{schema: schema, reader: reader, trim: opts.Trim}
	if err := t.position(opts, from); err != nil {
		reader.Close()
		return nil, err
	}
	if err := t.bind(opts.HeaderRow); err != nil {
		reader.Close()
		return nil, err
	}
	return t, nil
}

// position reads the header row (if any) and every row before from.
func (t *Table) position(opts LoadOptions, from int) error {
	for raw := 1; raw < from; raw++ {
		row, err := t.reader.Next()
		if err == io.EOF {
			if opts.HeaderRow > 0 && t.headers == nil {
				if req := t.schema.requiredFields(); len(req) > 0 {
					return &HeaderError{Row: opts.HeaderRow, Missing: req}
				}
			}
			if opts.HeaderRow == 0 {
				return ErrSourceExhausted
			}
			t.done = true
			return nil
		}
		if err != nil {
			return err
		}
		if raw == opts.HeaderRow {
			t.headers = cloneRow(row)
		}
	}

	if t.headers == nil {
		switch {
		case opts.Headers != nil:
			t.headers = opts.Headers
		default:
			if hp, ok := t.reader.(headerProvider); ok {
				t.headers = hp.Header()
			}
		}
	}

	row, err := t.reader.Next()
	switch {
	case err == io.EOF:
		if opts.HeaderRow == 0 && from > 1 {
			return ErrSourceExhausted
		}
		t.done = true
	case err != nil:
		return err
	default:
		t.peeked = row
	}
	return nil
}

// bind maps schema fields onto raw columns.
func (t *Table) bind(headerRow int) error {
	fields := t.schema.Fields
	t.columns = make([]int, len(fields))

	if t.headers == nil {
		for i := range fields {
			t.columns[i] = i
		}
		t.width = len(fields)
		return nil
	}

	idx := make(map[string]int, len(t.headers))
	for i, h := range t.headers {
		key := strings.ToLower(cleanCell(h))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}

	var missing []string
	for i, f := range fields {
		pos, ok := idx[strings.ToLower(f.Name)]
		if !ok {
			t.columns[i] = -1
			if f.Constraints.Required {
				missing = append(missing, f.Name)
			}
			continue
		}
		t.columns[i] = pos
	}
	if len(missing) > 0 {
		return &HeaderError{Row: headerRow, Missing: missing}
	}
	t.width = len(t.headers)
	return nil
}

// Headers returns the column labels in effect, or nil when columns are
// mapped by schema position.
func (t *Table) Headers() []string {
	return t.headers
}

// Read casts every remaining row. It stops at the first row that fails and
// returns a *CastError (one problem) or *MultipleErrors (several). Rows read
// before the failure are discarded.
//
// After a failure the table stays positioned just past the failing row, and
// the next Read continues from there. Row numbers in errors count from 1 at
// the first row each call reads.
func (t *Table) Read(ctx context.Context) ([]Row, error) {
	var rows []Row
	for n := 1; ; n++ {
		t.scanned++
		if t.scanned%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		raw, err := t.next()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		if blank(raw) {
			continue
		}

		row, errs := t.castRow(n, raw)
		switch len(errs) {
		case 0:
			rows = append(rows, row)
		case 1:
			return nil, errs[0]
		default:
			return nil, &MultipleErrors{Errors: errs}
		}
	}
}

// Close releases the underlying source.
func (t *Table) Close() error {
	if t.reader == nil {
		return nil
	}
	err := t.reader.Close()
	t.reader = nil
	return err
}

func (t *Table) next() ([]string, error) {
	if t.peeked != nil {
		row := t.peeked
		t.peeked = nil
		return row, nil
	}
	if t.done || t.reader == nil {
		return nil, io.EOF
	}
	return t.reader.Next()
}

func (t *Table) castRow(n int, raw []string) (Row, []*CastError) {
	if len(raw) != t.width {
		return nil, []*CastError{{
			RowNumber: n,
			Message:   fmt.Sprintf("row has %d columns, expected %d", len(raw), t.width),
		}}
	}

	var errs []*CastError
	row := make(Row, len(t.schema.Fields))
	for i := range t.schema.Fields {
		f := &t.schema.Fields[i]
		pos := t.columns[i]

		var cell string
		if pos >= 0 {
			cell = raw[pos]
		}
		if t.trim {
			cell = cleanCell(cell)
		}

		v, err := castField(f, cell, pos < 0 || t.schema.isMissing(cell))
		if err != nil {
			col := pos + 1
			if pos < 0 {
				col = 0
			}
			errs = append(errs, &CastError{
				RowNumber:    n,
				ColumnNumber: col,
				Field:        f.Name,
				Value:        cell,
				Message:      err.Error(),
			})
			continue
		}
		row[i] = v
	}
	return row, errs
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func cloneRow(row []string) []string {
	out := make([]string, len(row))
	copy(out, row)
	return out
}
