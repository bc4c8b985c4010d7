package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/JonMunkholm/hsds-validator/internal/core"
	"github.com/JonMunkholm/hsds-validator/internal/tableschema"
	"github.com/JonMunkholm/hsds-validator/internal/validator"
)

// multipartMemory is the part of an upload kept in memory; the rest spills
// to a temp file.
const multipartMemory = 32 << 20

// input is a request body turned into a Source.
type input struct {
	src     tableschema.Source
	name    string
	keyed   bool // records carry their own column names
	cleanup func()
}

func (in input) close() {
	if in.cleanup != nil {
		in.cleanup()
	}
}

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", validator.ErrInvalidInput, msg)
}

// readInput builds a Source from ?url=, a multipart "file" field, a JSON
// array of records or rows, or a raw CSV body.
func (s *Server) readInput(w http.ResponseWriter, r *http.Request) (input, error) {
	comma, err := delimiter(r.URL.Query().Get("delimiter"))
	if err != nil {
		return input{}, err
	}

	if raw := r.URL.Query().Get("url"); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return input{}, invalidInput("url must be an absolute http or https URL")
		}
		return input{
			src: tableschema.URLSource{
				URL:      u.String(),
				Client:   s.fetch,
				Comma:    comma,
				MaxBytes: s.cfg.Validation.MaxUploadSize,
			},
			name: u.Redacted(),
		}, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Validation.MaxUploadSize)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		return readMultipart(r, comma)
	case "application/json":
		return readJSON(r.Body)
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return input{}, bodyError(err)
	}
	if len(data) == 0 {
		return input{}, invalidInput("empty request body")
	}
	return input{
		src:  tableschema.ReaderSource{R: bytes.NewReader(data), Comma: comma},
		name: "request body",
	}, nil
}

func readMultipart(r *http.Request, comma rune) (input, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return input{}, bodyError(err)
	}
	cleanup := func() { _ = r.MultipartForm.RemoveAll() }

	file, header, err := r.FormFile("file")
	if err != nil {
		cleanup()
		return input{}, invalidInput("no file provided")
	}
	return input{
		src:  tableschema.ReaderSource{R: file, Comma: comma},
		name: header.Filename,
		cleanup: func() {
			file.Close()
			cleanup()
		},
	}, nil
}

// readJSON accepts [{"id": ...}, ...] or [["id", ...], ...]. Numbers keep
// their literal text.
func readJSON(body io.Reader) (input, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return input{}, bodyError(err)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return input{}, invalidInput("body must be a JSON array")
	}

	if len(items) == 0 || firstByte(items[0]) != '[' {
		records := make([]map[string]any, 0, len(items))
		for i, item := range items {
			var rec map[string]any
			if err := decodeNumbers(item, &rec); err != nil || rec == nil {
				return input{}, invalidInput(fmt.Sprintf("record %d is not an object", i+1))
			}
			records = append(records, rec)
		}
		return input{src: tableschema.RecordsSource{Records: records}, name: "json records", keyed: true}, nil
	}

	rows := make([][]string, 0, len(items))
	for i, item := range items {
		var cells []any
		if err := decodeNumbers(item, &cells); err != nil {
			return input{}, invalidInput(fmt.Sprintf("row %d is not an array", i+1))
		}
		row := make([]string, len(cells))
		for j, c := range cells {
			if c != nil {
				row[j] = fmt.Sprint(c)
			}
		}
		rows = append(rows, row)
	}
	return input{src: tableschema.RecordsSource{Rows: rows}, name: "json rows"}, nil
}

func decodeNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func firstByte(b []byte) byte {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

// bodyError maps an oversized body to core.ErrFileTooLarge.
func bodyError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return fmt.Errorf("%w: limit is %d bytes", core.ErrFileTooLarge, tooBig.Limit)
	}
	// multipart flattens the reader error to text
	if strings.Contains(err.Error(), "request body too large") {
		return fmt.Errorf("%w: %v", core.ErrFileTooLarge, err)
	}
	return invalidInput(err.Error())
}

// delimiter parses ?delimiter=. "tab" and "\t" both mean a tab.
func delimiter(v string) (rune, error) {
	switch v {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(v)
	if size != len(v) || r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, invalidInput("delimiter must be a single character")
	}
	return r, nil
}
