package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/hsds-validator/internal/resources"
	"github.com/JonMunkholm/hsds-validator/internal/tableschema"
	"github.com/JonMunkholm/hsds-validator/internal/validator"
	"github.com/google/uuid"
)

// DefaultValidationTimeout bounds a single run when no timeout is configured.
var DefaultValidationTimeout = 5 * time.Minute

// ErrHistoryDisabled is returned by History when no store is configured.
var ErrHistoryDisabled = errors.New("validation history is not enabled")

// historyWriteTimeout bounds the history insert after a run.
const historyWriteTimeout = 5 * time.Second

// Service runs validations for any catalog type.
type Service struct {
	catalog *resources.Catalog
	limiter *ValidationLimiter
	metrics Metrics
	history HistoryStore
	timeout time.Duration
	logger  *slog.Logger

	mu         sync.RWMutex
	validators map[resources.Type]*validator.Validator
	// generation counts invalidations; a validator built across one is not cached
	generation uint64
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLimiter sets the concurrency limiter.
func WithLimiter(l *ValidationLimiter) ServiceOption {
	return func(s *Service) { s.limiter = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithHistory enables run history.
func WithHistory(h HistoryStore) ServiceOption {
	return func(s *Service) { s.history = h }
}

// WithTimeout sets the per-run timeout. Zero keeps the default.
func WithTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service over catalog.
func NewService(catalog *resources.Catalog, opts ...ServiceOption) *Service {
	s := &Service{
		catalog:    catalog,
		metrics:    nopMetrics{},
		timeout:    DefaultValidationTimeout,
		logger:     slog.Default(),
		validators: make(map[resources.Type]*validator.Validator),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = NewValidationLimiter(DefaultMaxConcurrentValidations, DefaultMaxWaitTime)
	}

	catalog.OnChange(s.forget)
	return s
}

// forget drops cached validators after a schema change.
func (s *Service) forget(t resources.Type) {
	s.mu.Lock()
	s.generation++
	if t == "" {
		s.validators = make(map[resources.Type]*validator.Validator)
	} else {
		delete(s.validators, t)
	}
	s.mu.Unlock()

	s.metrics.SchemaReloaded(t)
	s.logger.Info("validator cache invalidated", "type", t)
}

// validatorFor returns the cached validator for t, building it on first use.
// A validator whose build overlapped a schema change serves the current call
// but is not cached, so the next call picks up the new schema.
func (s *Service) validatorFor(t resources.Type) (*validator.Validator, error) {
	s.mu.RLock()
	v, ok := s.validators[t]
	gen := s.generation
	s.mu.RUnlock()
	if ok {
		return v, nil
	}

	v, err := validator.New(s.catalog, t, validator.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		s.logger.Debug("schema changed during build, not caching validator", "type", t)
		return v, nil
	}
	if cached, ok := s.validators[t]; ok {
		return cached, nil
	}
	s.validators[t] = v
	return v, nil
}

// Types lists resource types that have a schema.
func (s *Service) Types() []resources.Type {
	return s.catalog.Types()
}

// Schema returns the schema used to validate t.
func (s *Service) Schema(t resources.Type) (*tableschema.Schema, error) {
	v, err := s.validatorFor(t)
	if err != nil {
		return nil, err
	}
	return v.Schema(), nil
}

// Limiter exposes the concurrency limiter for status and shutdown.
func (s *Service) Limiter() *ValidationLimiter {
	return s.limiter
}

// ValidateRequest describes one run.
type ValidateRequest struct {
	Type       resources.Type
	Source     tableschema.Source
	SourceName string
	HeadersRow int
}

// Validate runs one validation and returns its result envelope. The error
// is non-nil only for failures that prevent a result; invalid data is
// reported in the Result.
func (s *Service) Validate(ctx context.Context, req ValidateRequest) (validator.Result, Run, error) {
	run := Run{
		ID:           uuid.New(),
		ResourceType: req.Type,
		Source:       req.SourceName,
		HeadersRow:   req.HeadersRow,
		ClientIP:     GetIPAddressFromContext(ctx),
		UserAgent:    GetUserAgentFromContext(ctx),
		StartedAt:    time.Now().UTC(),
	}
	logger := s.logger.With("run_id", run.ID.String(), "type", req.Type, "source", req.SourceName)

	res, err := s.validate(ctx, req)

	elapsed := time.Since(run.StartedAt)
	run.DurationMs = elapsed.Milliseconds()
	switch {
	case err != nil:
		run.Outcome = OutcomeError
		run.ErrorCode = MapError(err).Code
		logger.Warn("validation error", "error", err, "code", run.ErrorCode)
	case res.Valid:
		run.Outcome = OutcomeValid
		logger.Info("validation passed", "duration", elapsed)
	default:
		run.Outcome = OutcomeInvalid
		run.ErrorCount = len(res.Errors)
		logger.Info("validation failed", "errors", run.ErrorCount, "duration", elapsed)
	}

	s.metrics.ObserveRun(req.Type, run.Outcome, elapsed, run.ErrorCount)
	s.record(ctx, logger, run)
	return res, run, err
}

func (s *Service) validate(ctx context.Context, req ValidateRequest) (validator.Result, error) {
	v, err := s.validatorFor(req.Type)
	if err != nil {
		return validator.Result{}, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return validator.Result{}, err
	}
	defer func() {
		s.limiter.Release()
		s.metrics.SetInFlight(s.limiter.ActiveCount())
	}()
	s.metrics.SetInFlight(s.limiter.ActiveCount())

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err = v.Validate(ctx, req.Source, validator.Options{HeadersRow: req.HeadersRow})
	return validator.ResultFrom(err)
}

// record stores run in history. A failed insert is logged, never returned.
func (s *Service) record(ctx context.Context, logger *slog.Logger, run Run) {
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyWriteTimeout)
	defer cancel()

	if err := s.history.Record(ctx, run); err != nil {
		logger.Error("record validation run", "error", err)
	}
}

// History returns the most recent runs for t, newest first.
func (s *Service) History(ctx context.Context, t resources.Type, limit int) ([]Run, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	if !s.catalog.IsKnown(t) {
		return nil, fmt.Errorf("%w: %q", validator.ErrUnsupportedResourceType, t)
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.history.Recent(ctx, t, limit)
}

// DetectHeaderRow finds the header row of src for type t, or 0 when the
// source has none.
func (s *Service) DetectHeaderRow(ctx context.Context, t resources.Type, src tableschema.Source) (int, error) {
	if src == nil {
		return 0, validator.ErrInvalidInput
	}
	schema, err := s.Schema(t)
	if err != nil {
		return 0, err
	}
	return tableschema.DetectHeaderRow(ctx, src, schema)
}
