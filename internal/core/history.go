package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/hsds-validator/internal/resources"
	"github.com/google/uuid"
)

// Outcome classifies a finished run.
type Outcome string

const (
	OutcomeValid   Outcome = "valid"
	OutcomeInvalid Outcome = "invalid"
	OutcomeError   Outcome = "error"
)

// Run is the record of one validation.
type Run struct {
	ID           uuid.UUID      `json:"id"`
	ResourceType resources.Type `json:"resourceType"`
	Source       string         `json:"source"`
	HeadersRow   int            `json:"headersRow"`
	Outcome      Outcome        `json:"outcome"`
	ErrorCount   int            `json:"errorCount"`
	ErrorCode    string         `json:"errorCode,omitempty"`
	DurationMs   int64          `json:"durationMs"`
	ClientIP     string         `json:"clientIp,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	StartedAt    time.Time      `json:"startedAt"`
}

// HistoryStore persists runs.
type HistoryStore interface {
	Record(ctx context.Context, run Run) error
	Recent(ctx context.Context, t resources.Type, limit int) ([]Run, error)
}

// Metrics receives run measurements.
type Metrics interface {
	ObserveRun(t resources.Type, outcome Outcome, d time.Duration, errorCount int)
	SetInFlight(n int)
	SchemaReloaded(t resources.Type)
}

type nopMetrics struct{}

func (nopMetrics) ObserveRun(resources.Type, Outcome, time.Duration, int) {}
func (nopMetrics) SetInFlight(int)                                       {}
func (nopMetrics) SchemaReloaded(resources.Type)                         {}
