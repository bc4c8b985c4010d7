package tableschema

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
)

// Source is a tabular input the engine can open for one scan attempt.
type Source interface {
	// Seekable reports whether the source can be reopened and positioned at
	// an arbitrary row. Only seekable sources support row-accurate resumption.
	Seekable() bool

	// Open starts a fresh pass over the source. The schema lets record
	// sources lay out their columns; byte sources ignore it.
	Open(ctx context.Context, schema *Schema) (RowReader, error)
}

// RowReader yields raw rows. Next returns io.EOF after the last row.
type RowReader interface {
	Next() ([]string, error)
	Close() error
}

// headerProvider is implemented by readers that know their column labels
// without a header row in the data, such as keyed records.
type headerProvider interface {
	Header() []string
}

// FileSource reads a CSV file from the local file system.
type FileSource struct {
	Path  string
	Comma rune
}

func (FileSource) Seekable() bool { return true }

func (s FileSource) Open(ctx context.Context, _ *Schema) (RowReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	return newCSVReader(f, f, s.Comma), nil
}

func (s FileSource) String() string { return s.Path }

// URLSource fetches a CSV document over HTTP(S). Every Open issues a new GET;
// a scan opens its source once.
type URLSource struct {
	URL    string
	Client *http.Client
	Comma  rune

	// MaxBytes caps the response body. 0 means no limit.
	MaxBytes int64
}

func (URLSource) Seekable() bool { return true }

func (s URLSource) Open(ctx context.Context, _ *Schema) (RowReader, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", s.URL, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.URL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %s", s.URL, resp.Status)
	}

	var body io.Reader = resp.Body
	if s.MaxBytes > 0 {
		if resp.ContentLength > s.MaxBytes {
			resp.Body.Close()
			return nil, fmt.Errorf("fetch %s: %w: %d bytes, limit is %d", s.URL, ErrSourceTooLarge, resp.ContentLength, s.MaxBytes)
		}
		body = &sizeCap{r: resp.Body, max: s.MaxBytes}
	}
	return newCSVReader(body, resp.Body, s.Comma), nil
}

func (s URLSource) String() string { return s.URL }

// ReaderSource wraps a seekable stream, rewound to the start on every Open.
// The stream is owned by the caller and is not closed.
type ReaderSource struct {
	R     io.ReadSeeker
	Comma rune
}

func (ReaderSource) Seekable() bool { return true }

func (s ReaderSource) Open(ctx context.Context, _ *Schema) (RowReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.R == nil {
		return nil, errors.New("reader source has no stream")
	}
	if _, err := s.R.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind source: %w", err)
	}
	return newCSVReader(s.R, nil, s.Comma), nil
}

// RecordsSource is an already materialised sequence of records, either raw
// rows or keyed records. It is not seekable: From is only an initial skip.
type RecordsSource struct {
	Rows    [][]string
	Records []map[string]any
}

func (RecordsSource) Seekable() bool { return false }

func (s RecordsSource) Open(_ context.Context, schema *Schema) (RowReader, error) {
	if s.Records != nil {
		return newKeyedReader(s.Records, schema), nil
	}
	return &sliceReader{rows: s.Rows}, nil
}

// csvReader adapts encoding/csv to RowReader.
type csvReader struct {
	r      *csv.Reader
	closer io.Closer
}

func newCSVReader(r io.Reader, closer io.Closer, comma rune) *csvReader {
	cr := csv.NewReader(wrapForScanning(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if comma != 0 {
		cr.Comma = comma
	}
	return &csvReader{r: cr, closer: closer}
}

func (c *csvReader) Next() ([]string, error) {
	row, err := c.r.Read()
	if err == nil || err == io.EOF {
		return row, err
	}
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return nil, &ReadError{Line: pe.Line, Column: pe.Column, Err: pe.Err}
	}
	return nil, &ReadError{Err: err}
}

func (c *csvReader) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

type sliceReader struct {
	rows [][]string
	pos  int
}

func (s *sliceReader) Next() ([]string, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

func (s *sliceReader) Close() error { return nil }

// keyedReader projects keyed records onto a fixed column order: schema
// fields first, then any extra keys sorted by name.
type keyedReader struct {
	header  []string
	records []map[string]any
	pos     int
}

func newKeyedReader(records []map[string]any, schema *Schema) *keyedReader {
	var header []string
	known := make(map[string]bool)
	if schema != nil {
		for _, name := range schema.FieldNames() {
			header = append(header, name)
			known[name] = true
		}
	}

	var extra []string
	for _, rec := range records {
		for k := range rec {
			if !known[k] {
				known[k] = true
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)

	return &keyedReader{header: append(header, extra...), records: records}
}

func (k *keyedReader) Header() []string { return k.header }

func (k *keyedReader) Next() ([]string, error) {
	if k.pos >= len(k.records) {
		return nil, io.EOF
	}
	rec := k.records[k.pos]
	k.pos++

	row := make([]string, len(k.header))
	for i, name := range k.header {
		if v, ok := rec[name]; ok && v != nil {
			row[i] = fmt.Sprint(v)
		}
	}
	return row, nil
}

func (k *keyedReader) Close() error { return nil }
