// Package validator checks tabular HSDS resources against their schema and
// reports every malformed row, not just the first.
//
// A Validator is bound to one resource type. Validate scans the source with
// the tableschema engine; when a row fails, the failure is recorded in
// source coordinates and the scan resumes on the next row (seekable sources
// only). Errors that cannot be pinned to a row abort the validation with a
// *ScannerError.
package validator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/hsds-validator/internal/resources"
	"github.com/JonMunkholm/hsds-validator/internal/tableschema"
)

// Catalog resolves resource types to schemas.
type Catalog interface {
	IsKnown(t resources.Type) bool
	ResolveSchema(t resources.Type) (*tableschema.Schema, error)
}

// Options control a single Validate call.
type Options struct {
	// HeadersRow is the 1-based raw row holding column labels. Data starts
	// on the row after it. 0 means the source has no header row.
	HeadersRow int
}

// Validator validates sources of one resource type. It is safe for
// concurrent use; each Validate call keeps its own state.
type Validator struct {
	resourceType resources.Type
	schema       *tableschema.Schema
	logger       *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger used for scan tracing.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// New resolves the schema for t.
func New(catalog Catalog, t resources.Type, opts ...Option) (*Validator, error) {
	if catalog == nil || !catalog.IsKnown(t) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedResourceType, t)
	}

	schema, err := catalog.ResolveSchema(t)
	if err != nil {
		return nil, &SchemaResolutionError{Type: t, Err: err}
	}
	if schema == nil {
		return nil, &SchemaResolutionError{Type: t, Err: errors.New("catalog returned no schema")}
	}

	v := &Validator{resourceType: t, schema: schema, logger: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = v.logger.With("resource_type", string(t))
	return v, nil
}

// Type returns the resource type the validator checks.
func (v *Validator) Type() resources.Type { return v.resourceType }

// Schema returns the bound schema. Callers must not modify it.
func (v *Validator) Schema() *tableschema.Schema { return v.schema }

// Validate scans src. It returns nil for a clean source, *ValidationFailed
// with every positioned error otherwise, or a fatal error (ErrInvalidInput,
// ErrSchemaMissing, *ScannerError) with no partial results.
func (v *Validator) Validate(ctx context.Context, src tableschema.Source, opts Options) error {
	if src == nil {
		return ErrInvalidInput
	}
	if v.schema == nil {
		return ErrSchemaMissing
	}
	if opts.HeadersRow < 0 {
		return fmt.Errorf("%w: negative header row %d", ErrInvalidInput, opts.HeadersRow)
	}

	cur := cursor{startRow: 1, mode: headerNone}
	if opts.HeadersRow > 0 {
		cur = cursor{startRow: opts.HeadersRow + 1, mode: headerParse, headerRow: opts.HeadersRow}
	}

	s := &scanner{schema: v.schema, logger: v.logger}
	errs, err := s.scan(ctx, src, cur, nil)
	if err != nil {
		v.logger.Debug("validation aborted", "error", err, "discarded", len(errs))
		return err
	}
	if len(errs) > 0 {
		return &ValidationFailed{Errors: errs}
	}
	return nil
}
