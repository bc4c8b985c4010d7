package tableschema

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// FieldType is the logical type of a column.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeInteger  FieldType = "integer"
	TypeNumber   FieldType = "number"
	TypeBoolean  FieldType = "boolean"
	TypeDate     FieldType = "date"
	TypeDateTime FieldType = "datetime"
)

// Format refines a string field.
type Format string

const (
	FormatDefault Format = ""
	FormatEmail   Format = "email"
	FormatURI     Format = "uri"
	FormatUUID    Format = "uuid"
)

// Constraints restrict the values a field accepts.
type Constraints struct {
	Required  bool     `yaml:"required" json:"required,omitempty"`
	Pattern   string   `yaml:"pattern" json:"pattern,omitempty"`
	Enum      []string `yaml:"enum" json:"enum,omitempty"`
	MinLength *int     `yaml:"minLength" json:"minLength,omitempty"`
	MaxLength *int     `yaml:"maxLength" json:"maxLength,omitempty"`
	Minimum   *float64 `yaml:"minimum" json:"minimum,omitempty"`
	Maximum   *float64 `yaml:"maximum" json:"maximum,omitempty"`
}

// Field describes a single column.
type Field struct {
	Name        string      `yaml:"name" json:"name"`
	Title       string      `yaml:"title" json:"title,omitempty"`
	Description string      `yaml:"description" json:"description,omitempty"`
	Type        FieldType   `yaml:"type" json:"type"`
	Format      Format      `yaml:"format" json:"format,omitempty"`
	Constraints Constraints `yaml:"constraints" json:"constraints"`

	pattern *regexp.Regexp
}

// Schema is the validation ruleset for one tabular resource.
// A Schema must not be modified once it has been passed to Load.
type Schema struct {
	Fields        []Field  `yaml:"fields" json:"fields"`
	MissingValues []string `yaml:"missingValues" json:"missingValues,omitempty"`
	PrimaryKey    []string `yaml:"primaryKey" json:"primaryKey,omitempty"`

	once       sync.Once
	compileErr error
}

// SchemaError reports a schema that cannot be used for scanning.
type SchemaError struct {
	Field   string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema field %q: %s", e.Field, e.Message)
	}
	return "schema: " + e.Message
}

// ParseSchema decodes a YAML (or JSON) table schema and compiles it.
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if err := s.Compile(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Compile checks field definitions and compiles patterns.
// It is safe to call more than once; the first result is remembered.
func (s *Schema) Compile() error {
	s.once.Do(func() {
		s.compileErr = s.compile()
	})
	return s.compileErr
}

func (s *Schema) compile() error {
	if len(s.Fields) == 0 {
		return &SchemaError{Message: "no fields defined"}
	}
	if len(s.MissingValues) == 0 {
		s.MissingValues = []string{""}
	}

	seen := make(map[string]bool, len(s.Fields))
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Name == "" {
			return &SchemaError{Message: fmt.Sprintf("field %d has no name", i+1)}
		}
		key := strings.ToLower(f.Name)
		if seen[key] {
			return &SchemaError{Field: f.Name, Message: "duplicate field name"}
		}
		seen[key] = true

		if f.Type == "" {
			f.Type = TypeString
		}
		switch f.Type {
		case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeDate, TypeDateTime:
		default:
			return &SchemaError{Field: f.Name, Message: fmt.Sprintf("unknown type %q", f.Type)}
		}

		switch f.Format {
		case FormatDefault:
		case FormatEmail, FormatURI, FormatUUID:
			if f.Type != TypeString {
				return &SchemaError{Field: f.Name, Message: fmt.Sprintf("format %q requires type string", f.Format)}
			}
		default:
			return &SchemaError{Field: f.Name, Message: fmt.Sprintf("unknown format %q", f.Format)}
		}

		if p := f.Constraints.Pattern; p != "" {
			re, err := regexp.Compile("^(?:" + p + ")$")
			if err != nil {
				return &SchemaError{Field: f.Name, Message: fmt.Sprintf("invalid pattern: %v", err)}
			}
			f.pattern = re
		}
	}

	for _, k := range s.PrimaryKey {
		if !seen[strings.ToLower(k)] {
			return &SchemaError{Message: fmt.Sprintf("primary key %q is not a field", k)}
		}
	}
	return nil
}

// FieldNames returns the field names in schema order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// FieldIndex returns the 1-based position of the named field, or 0.
func (s *Schema) FieldIndex(name string) int {
	for i, f := range s.Fields {
		if strings.EqualFold(f.Name, name) {
			return i + 1
		}
	}
	return 0
}

func (s *Schema) requiredFields() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Constraints.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// isMissing reports whether a trimmed cell counts as a missing value.
func (s *Schema) isMissing(v string) bool {
	for _, m := range s.MissingValues {
		if v == m {
			return true
		}
	}
	return false
}
