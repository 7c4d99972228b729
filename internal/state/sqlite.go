// Package state keeps a local history of synchronization passes in SQLite,
// so past runs can be reviewed without querying the lineage store.
package state

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

//go:embed schema.sql
var schemaSQL string

// RunStatus is the lifecycle status of a recorded run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one recorded synchronization pass.
type Run struct {
	ID           string
	Namespace    string
	Status       RunStatus
	DryRun       bool
	StartedAt    time.Time
	CompletedAt  time.Time
	ModelsSynced int
	ModelsFailed int
	Error        string
}

// ModelSync is the recorded outcome of one model within a run.
type ModelSync struct {
	ID       string
	RunID    string
	Model    string
	Dataset  string
	RunUUID  string
	Edges    int
	Warnings int
	Status   string
	Error    string
}

// Store is the SQLite-backed run history.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates an unopened store.
func NewStore() *Store {
	return &Store{}
}

// Open opens the database at path. Use ":memory:" for tests.
func (s *Store) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping history database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitSchema creates the tables when they do not exist.
func (s *Store) InitSchema() error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// BeginRun records the start of a synchronization pass.
func (s *Store) BeginRun(namespace string, dryRun bool) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{
		ID:        uuid.NewString(),
		Namespace: namespace,
		Status:    RunStatusRunning,
		DryRun:    dryRun,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO sync_runs (id, namespace, status, dry_run, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Namespace, run.Status, run.DryRun, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	return run, nil
}

// CompleteRun finalizes a run with its outcome counts.
func (s *Store) CompleteRun(id string, status RunStatus, synced, failed int, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	res, err := s.db.Exec(
		`UPDATE sync_runs SET status = ?, completed_at = ?, models_synced = ?, models_failed = ?, error = ? WHERE id = ?`,
		status, time.Now().UTC(), synced, failed, nullable(errMsg), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// RecordModel records one model's outcome under a run.
func (s *Store) RecordModel(runID string, m ModelSync) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	_, err := s.db.Exec(
		`INSERT INTO model_syncs (id, run_id, model, dataset, run_uuid, edges, warnings, status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), runID, m.Model, m.Dataset, m.RunUUID, m.Edges, m.Warnings, m.Status, nullable(m.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to record model sync: %w", err)
	}
	return nil
}

// GetRun retrieves a run by id.
func (s *Store) GetRun(id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRow(
		`SELECT id, namespace, status, dry_run, started_at, completed_at, models_synced, models_failed, error
		 FROM sync_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, namespace, status, dry_run, started_at, completed_at, models_synced, models_failed, error
		 FROM sync_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListModelSyncs returns the per-model outcomes of a run, ordered by model.
func (s *Store) ListModelSyncs(runID string) ([]*ModelSync, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, model, dataset, run_uuid, edges, warnings, status, error
		 FROM model_syncs WHERE run_id = ? ORDER BY model`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list model syncs: %w", err)
	}
	defer rows.Close()

	var syncs []*ModelSync
	for rows.Next() {
		m := &ModelSync{}
		var errMsg sql.NullString
		if err := rows.Scan(&m.ID, &m.RunID, &m.Model, &m.Dataset, &m.RunUUID, &m.Edges, &m.Warnings, &m.Status, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan model sync: %w", err)
		}
		m.Error = errMsg.String
		syncs = append(syncs, m)
	}
	return syncs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var completedAt sql.NullTime
	var errMsg sql.NullString
	err := row.Scan(&run.ID, &run.Namespace, &run.Status, &run.DryRun,
		&run.StartedAt, &completedAt, &run.ModelsSynced, &run.ModelsFailed, &errMsg)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		run.CompletedAt = completedAt.Time
	}
	run.Error = errMsg.String
	return run, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
