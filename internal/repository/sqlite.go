package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/xiaot623/gogo/await/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			agent_name TEXT NOT NULL,
			status TEXT NOT NULL,
			input TEXT NOT NULL,
			output TEXT NOT NULL DEFAULT '[]',
			await TEXT,
			error TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			finished_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status_created ON runs(status, created_at)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			payload TEXT,
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_events_run_seq ON events(run_id, seq)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts or replaces the snapshot of a run.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.Run) error {
	input, err := json.Marshal(run.Input)
	if err != nil {
		return fmt.Errorf("failed to marshal input: %w", err)
	}
	outputMsgs := run.Output
	if outputMsgs == nil {
		outputMsgs = []domain.Message{}
	}
	output, err := json.Marshal(outputMsgs)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	awaitData, err := marshalOptional(run.Await)
	if err != nil {
		return fmt.Errorf("failed to marshal await: %w", err)
	}
	errData, err := marshalOptional(run.Error)
	if err != nil {
		return fmt.Errorf("failed to marshal error: %w", err)
	}

	var finishedAt sql.NullTime
	if run.FinishedAt != nil {
		finishedAt = sql.NullTime{Time: *run.FinishedAt, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, agent_name, status, input, output, await, error, created_at, updated_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			output = excluded.output,
			await = excluded.await,
			error = excluded.error,
			updated_at = excluded.updated_at,
			finished_at = excluded.finished_at`,
		run.RunID, run.AgentName, run.Status, string(input), string(output),
		nullStringBytes(awaitData), nullStringBytes(errData),
		run.CreatedAt, run.UpdatedAt, finishedAt)
	return err
}

const runColumns = `run_id, agent_name, status, input, output, await, error, created_at, updated_at, finished_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var run domain.Run
	var input, output string
	var awaitData, errData sql.NullString
	var finishedAt sql.NullTime
	if err := row.Scan(&run.RunID, &run.AgentName, &run.Status, &input, &output,
		&awaitData, &errData, &run.CreatedAt, &run.UpdatedAt, &finishedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(input), &run.Input); err != nil {
		return nil, fmt.Errorf("failed to decode input of run %s: %w", run.RunID, err)
	}
	if err := json.Unmarshal([]byte(output), &run.Output); err != nil {
		return nil, fmt.Errorf("failed to decode output of run %s: %w", run.RunID, err)
	}
	if run.Output == nil {
		run.Output = []domain.Message{}
	}
	if awaitData.Valid {
		run.Await = &domain.AwaitSignal{}
		if err := json.Unmarshal([]byte(awaitData.String), run.Await); err != nil {
			return nil, fmt.Errorf("failed to decode await of run %s: %w", run.RunID, err)
		}
	}
	if errData.Valid {
		run.Error = &domain.RunError{}
		if err := json.Unmarshal([]byte(errData.String), run.Error); err != nil {
			return nil, fmt.Errorf("failed to decode error of run %s: %w", run.RunID, err)
		}
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return &run, nil
}

// GetRun retrieves a run by ID. It returns nil when the run does not exist.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns runs ordered by creation time. An empty status matches
// every run; a non-positive limit returns all of them.
func (s *SQLiteStore) ListRuns(ctx context.Context, status domain.RunStatus, limit int) ([]*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC, run_id ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []*domain.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CreateEvent appends an event to a run's log.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_id, run_id, seq, ts, type, status, payload) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.EventID, event.RunID, event.Seq, event.Ts, event.Type, event.Status, nullStringBytes(event.Payload))
	return err
}

const eventColumns = `event_id, run_id, seq, ts, type, status, payload`

func scanEvent(row rowScanner) (domain.Event, error) {
	var event domain.Event
	var payload sql.NullString
	if err := row.Scan(&event.EventID, &event.RunID, &event.Seq, &event.Ts, &event.Type, &event.Status, &payload); err != nil {
		return event, err
	}
	if payload.Valid {
		event.Payload = json.RawMessage(payload.String)
	}
	return event, nil
}

// GetEvents retrieves events for a run in sequence order.
func (s *SQLiteStore) GetEvents(ctx context.Context, runID string, afterSeq int64, types []string, limit int) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE run_id = ?`
	args := []interface{}{runID}

	if afterSeq > 0 {
		query += ` AND seq > ?`
		args = append(args, afterSeq)
	}

	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		query += fmt.Sprintf(" AND type IN (%s)", strings.Join(placeholders, ","))
	}

	query += ` ORDER BY seq ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// GetLastEvent returns the most recent event of a run, or nil if none.
func (s *SQLiteStore) GetLastEvent(ctx context.Context, runID string) (*domain.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE run_id = ? ORDER BY seq DESC LIMIT 1`, runID)
	event, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func marshalOptional(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case *domain.AwaitSignal:
		if t == nil {
			return nil, nil
		}
	case *domain.RunError:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
