package tableschema

// cast.go converts raw cell text into typed values.
//
// These functions handle the messy reality of exported spreadsheets:
//   - ISO dates, US month-first numeric dates and spelled-out months
//     ("Jan 2, 2006", "2 Jan 2006"); numeric dates are always read month
//     first, so day-first input such as 31/01/2024 is rejected
//   - Currency symbols and thousand separators in numbers
//   - Various boolean representations (yes/no, true/false, 1/0)
//   - Excel formula prefixes (="value")
//
// Cast values are pgtype values so a scanned table can be handed straight to
// a COPY or INSERT; missing cells come back with Valid=false.

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// emailRegex is deliberately loose: one @, no spaces, a dot in the domain.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future are
// assumed to be in the previous century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
	}
	dateTimeLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
)

// castField validates raw against field and returns the typed value.
// raw must already be trimmed and cleaned; missing reports a missing value.
func castField(f *Field, raw string, missing bool) (any, error) {
	if missing {
		if f.Constraints.Required {
			return nil, fmt.Errorf("field is required")
		}
		return nullFor(f.Type), nil
	}

	if f.pattern != nil && !f.pattern.MatchString(raw) {
		return nil, fmt.Errorf("value %q does not match pattern %q", raw, f.Constraints.Pattern)
	}
	if len(f.Constraints.Enum) > 0 && !inEnum(raw, f.Constraints.Enum) {
		return nil, fmt.Errorf("value %q must be one of: %s", raw, strings.Join(f.Constraints.Enum, ", "))
	}

	switch f.Type {
	case TypeString:
		return castString(f, raw)
	case TypeInteger:
		n, err := strconv.ParseInt(strings.ReplaceAll(raw, ",", ""), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("value %q is not a valid integer", raw)
		}
		if err := checkRange(f, float64(n)); err != nil {
			return nil, err
		}
		return pgtype.Int8{Int64: n, Valid: true}, nil
	case TypeNumber:
		n := ToPgNumeric(raw)
		if !n.Valid {
			return nil, fmt.Errorf("value %q is not a valid number", raw)
		}
		fv, err := n.Float64Value()
		if err != nil {
			return nil, fmt.Errorf("value %q is not a valid number", raw)
		}
		if err := checkRange(f, fv.Float64); err != nil {
			return nil, err
		}
		return n, nil
	case TypeBoolean:
		b := ToPgBool(raw)
		if !b.Valid {
			return nil, fmt.Errorf("value %q must be yes/no, true/false, or 1/0", raw)
		}
		return b, nil
	case TypeDate:
		d := ToPgDate(raw)
		if !d.Valid {
			return nil, fmt.Errorf("value %q is not a valid date (use YYYY-MM-DD or similar)", raw)
		}
		return d, nil
	case TypeDateTime:
		ts, ok := parseDateTime(raw)
		if !ok {
			return nil, fmt.Errorf("value %q is not a valid datetime (use RFC 3339)", raw)
		}
		return ts, nil
	}
	return nil, fmt.Errorf("unsupported type %q", f.Type)
}

func castString(f *Field, raw string) (any, error) {
	n := utf8.RuneCountInString(raw)
	if c := f.Constraints.MinLength; c != nil && n < *c {
		return nil, fmt.Errorf("value is shorter than %d characters", *c)
	}
	if c := f.Constraints.MaxLength; c != nil && n > *c {
		return nil, fmt.Errorf("value is longer than %d characters", *c)
	}

	switch f.Format {
	case FormatEmail:
		if !emailRegex.MatchString(raw) {
			return nil, fmt.Errorf("value %q is not a valid email address", raw)
		}
	case FormatURI:
		u, err := url.ParseRequestURI(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("value %q is not a valid URI", raw)
		}
	case FormatUUID:
		id := ToPgUUID(raw)
		if !id.Valid {
			return nil, fmt.Errorf("value %q is not a valid UUID", raw)
		}
		return id, nil
	}
	return pgtype.Text{String: raw, Valid: true}, nil
}

func checkRange(f *Field, v float64) error {
	if c := f.Constraints.Minimum; c != nil && v < *c {
		return fmt.Errorf("value %s is less than minimum %s", formatFloat(v), formatFloat(*c))
	}
	if c := f.Constraints.Maximum; c != nil && v > *c {
		return fmt.Errorf("value %s is greater than maximum %s", formatFloat(v), formatFloat(*c))
	}
	return nil
}

func formatFloat(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func inEnum(v string, values []string) bool {
	for _, ev := range values {
		if strings.EqualFold(ev, v) {
			return true
		}
	}
	return false
}

func nullFor(t FieldType) any {
	switch t {
	case TypeInteger:
		return pgtype.Int8{}
	case TypeNumber:
		return pgtype.Numeric{}
	case TypeBoolean:
		return pgtype.Bool{}
	case TypeDate:
		return pgtype.Date{}
	case TypeDateTime:
		return pgtype.Timestamptz{}
	default:
		return pgtype.Text{}
	}
}

// ToPgDate converts a string to pgtype.Date.
// Supports multiple date formats and handles 2-digit years with pivot.
// Numeric day/month forms are read month first.
func ToPgDate(s string) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{Valid: false}
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	return pgtype.Date{Valid: false}
}

// ToPgNumeric converts a string to pgtype.Numeric.
// Handles currency symbols, thousands separators, and accounting format (parentheses for negative).
func ToPgNumeric(s string) pgtype.Numeric {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Numeric{Valid: false}
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "").Replace(s)
	s = strings.TrimSpace(s)
	if negative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return pgtype.Numeric{Valid: false}
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

// ToPgBool converts a string to pgtype.Bool.
// Accepts true/false, yes/no, t/f, y/n, 1/0.
func ToPgBool(s string) pgtype.Bool {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "true", "t", "yes", "y", "1":
		return pgtype.Bool{Bool: true, Valid: true}
	case "false", "f", "no", "n", "0":
		return pgtype.Bool{Bool: false, Valid: true}
	default:
		return pgtype.Bool{Valid: false}
	}
}

// ToPgUUID converts a string to pgtype.UUID.
// Returns invalid if the string is empty or not a valid UUID.
func ToPgUUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{Valid: false}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

func parseDateTime(s string) (pgtype.Timestamptz, bool) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pgtype.Timestamptz{Time: t, Valid: true}, true
		}
	}
	return pgtype.Timestamptz{}, false
}

// cleanCell trims whitespace and unwraps Excel text formulas (="value").
func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return s
}
