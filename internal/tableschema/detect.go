package tableschema

import (
	"context"
	"io"
	"strings"
)

// MaxHeaderSearchRows is how many leading rows DetectHeaderRow inspects.
var MaxHeaderSearchRows = 20

// DetectHeaderRow looks for the row that labels the schema's columns. A row
// qualifies when it names every required field and more than half of its
// non-empty cells are field names. It returns the 1-based row, or 0 when
// no leading row qualifies.
func DetectHeaderRow(ctx context.Context, src Source, schema *Schema) (int, error) {
	if err := schema.Compile(); err != nil {
		return 0, err
	}
	reader, err := src.Open(ctx, schema)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	names := make(map[string]bool, len(schema.Fields))
	for _, f := range schema.Fields {
		names[strings.ToLower(f.Name)] = true
	}
	required := schema.requiredFields()

	for raw := 1; raw <= MaxHeaderSearchRows; raw++ {
		row, err := reader.Next()
		if err == io.EOF {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		if looksLikeHeader(row, names, required) {
			return raw, nil
		}
	}
	return 0, nil
}

func looksLikeHeader(row []string, names map[string]bool, required []string) bool {
	seen := make(map[string]bool, len(row))
	filled, matched := 0, 0
	for _, cell := range row {
		key := strings.ToLower(cleanCell(cell))
		if key == "" {
			continue
		}
		filled++
		if names[key] {
			matched++
			seen[key] = true
		}
	}
	if matched == 0 || matched*2 <= filled {
		return false
	}
	for _, r := range required {
		if !seen[strings.ToLower(r)] {
			return false
		}
	}
	return true
}
