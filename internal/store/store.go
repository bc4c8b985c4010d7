// Package store persists validation run history in PostgreSQL.
package store

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/JonMunkholm/hsds-validator/internal/config"
	"github.com/JonMunkholm/hsds-validator/internal/core"
	"github.com/JonMunkholm/hsds-validator/internal/resources"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// History implements core.HistoryStore.
type History struct {
	pool *pgxpool.Pool
}

var _ core.HistoryStore = (*History)(nil)

// PoolConfig turns database settings into a pgxpool config.
func PoolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	return poolCfg, nil
}

// Open connects, pings and migrates.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*History, error) {
	poolCfg, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	h := New(pool)
	if err := h.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return h, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *History {
	return &History{pool: pool}
}

// Migrate creates the history table if needed.
func (h *History) Migrate(ctx context.Context) error {
	if _, err := h.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate validation_runs: %w", err)
	}
	return nil
}

// Close releases the pool.
func (h *History) Close() {
	h.pool.Close()
}

// Ping checks the connection for health output.
func (h *History) Ping(ctx context.Context) error {
	return h.pool.Ping(ctx)
}

// Record inserts one run.
func (h *History) Record(ctx context.Context, run core.Run) error {
	_, err := h.pool.Exec(ctx, `
		INSERT INTO validation_runs
			(id, resource_type, source, headers_row, outcome, error_count,
			 error_code, duration_ms, client_ip, user_agent, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		pgtype.UUID{Bytes: run.ID, Valid: true},
		string(run.ResourceType),
		run.Source,
		run.HeadersRow,
		string(run.Outcome),
		run.ErrorCount,
		optionalText(run.ErrorCode),
		run.DurationMs,
		optionalText(run.ClientIP),
		optionalText(run.UserAgent),
		pgtype.Timestamptz{Time: run.StartedAt, Valid: true},
	)
	if err != nil {
		return fmt.Errorf("insert validation run: %w", err)
	}
	return nil
}

// Recent returns the newest runs for t.
func (h *History) Recent(ctx context.Context, t resources.Type, limit int) ([]core.Run, error) {
	rows, err := h.pool.Query(ctx, `
		SELECT id, resource_type, source, headers_row, outcome, error_count,
		       error_code, duration_ms, client_ip, user_agent, started_at
		FROM validation_runs
		WHERE resource_type = $1
		ORDER BY started_at DESC
		LIMIT $2`, string(t), limit)
	if err != nil {
		return nil, fmt.Errorf("query validation runs: %w", err)
	}
	defer rows.Close()

	runs := make([]core.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

func scanRun(rows pgx.Rows) (core.Run, error) {
	var (
		id           pgtype.UUID
		resourceType string
		outcome      string
		errorCode    pgtype.Text
		clientIP     pgtype.Text
		userAgent    pgtype.Text
		startedAt    pgtype.Timestamptz
		run          core.Run
	)

	err := rows.Scan(
		&id, &resourceType, &run.Source, &run.HeadersRow, &outcome, &run.ErrorCount,
		&errorCode, &run.DurationMs, &clientIP, &userAgent, &startedAt,
	)
	if err != nil {
		return core.Run{}, fmt.Errorf("scan validation run: %w", err)
	}

	run.ID = uuid.UUID(id.Bytes)
	run.ResourceType = resources.Type(resourceType)
	run.Outcome = core.Outcome(outcome)
	run.ErrorCode = errorCode.String
	run.ClientIP = clientIP.String
	run.UserAgent = userAgent.String
	run.StartedAt = startedAt.Time
	return run, nil
}

func optionalText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
