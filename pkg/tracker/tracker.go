package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/causerie-app/causerie/pkg/models"
)

// Tracker records and queries provider attempts.
type Tracker interface {
	// Record stores one provider attempt.
	Record(ctx context.Context, rec models.AttemptRecord) error
	// Trace returns the attempts of one generation in order.
	Trace(ctx context.Context, traceID string) ([]models.AttemptRecord, error)
	// Recent returns attempts made since a given time, newest first.
	Recent(ctx context.Context, since time.Time, limit int) ([]models.AttemptRecord, error)
	// Summary aggregates attempts per feature, provider and outcome.
	Summary(ctx context.Context, since time.Time) ([]models.AttemptSummary, error)
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Tracker with a SQLite database.
type SQLiteTracker struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS provider_attempts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	trace_id TEXT NOT NULL,
	feature TEXT NOT NULL,
	provider TEXT NOT NULL,
	attempt INTEGER NOT NULL,
	outcome TEXT NOT NULL,
	latency_ms INTEGER NOT NULL,
	tokens INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_attempts_trace ON provider_attempts(trace_id);
CREATE INDEX IF NOT EXISTS idx_attempts_time ON provider_attempts(created_at);
`

// New creates a SQLiteTracker and runs auto-migration.
func New(dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tracker db: %w", err)
	}

	return &SQLiteTracker{db: db}, nil
}

// Record stores one provider attempt.
func (t *SQLiteTracker) Record(ctx context.Context, rec models.AttemptRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO provider_attempts (trace_id, feature, provider, attempt, outcome, latency_ms, tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TraceID, rec.Feature, rec.Provider, rec.Attempt, rec.Outcome, rec.LatencyMs, rec.Tokens, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

const selectAttempts = `SELECT id, trace_id, feature, provider, attempt, outcome, latency_ms, tokens, created_at FROM provider_attempts`

func scanAttempts(rows *sql.Rows) ([]models.AttemptRecord, error) {
	defer rows.Close()
	var records []models.AttemptRecord
	for rows.Next() {
		var r models.AttemptRecord
		if err := rows.Scan(&r.ID, &r.TraceID, &r.Feature, &r.Provider, &r.Attempt, &r.Outcome, &r.LatencyMs, &r.Tokens, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Trace returns the attempts of one generation in order.
func (t *SQLiteTracker) Trace(ctx context.Context, traceID string) ([]models.AttemptRecord, error) {
	rows, err := t.db.QueryContext(ctx, selectAttempts+` WHERE trace_id = ? ORDER BY id ASC`, traceID)
	if err != nil {
		return nil, fmt.Errorf("query trace: %w", err)
	}
	return scanAttempts(rows)
}

// Recent returns attempts made since a given time, newest first. A limit
// of zero or less returns every match.
func (t *SQLiteTracker) Recent(ctx context.Context, since time.Time, limit int) ([]models.AttemptRecord, error) {
	query := selectAttempts + ` WHERE created_at >= ? ORDER BY created_at DESC, id DESC`
	args := []any{since}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	return scanAttempts(rows)
}

// Summary aggregates attempts per feature, provider and outcome.
func (t *SQLiteTracker) Summary(ctx context.Context, since time.Time) ([]models.AttemptSummary, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT feature, provider, outcome, COUNT(*), CAST(AVG(latency_ms) AS INTEGER), SUM(tokens)
		 FROM provider_attempts WHERE created_at >= ?
		 GROUP BY feature, provider, outcome ORDER BY feature, provider, outcome`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.AttemptSummary
	for rows.Next() {
		var s models.AttemptSummary
		if err := rows.Scan(&s.Feature, &s.Provider, &s.Outcome, &s.Count, &s.AvgLatencyMs, &s.TotalTokens); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}
