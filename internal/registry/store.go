package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"gantry/internal/config"
)

// Store manages run records persisted in SQLite. Records survive process
// restarts, so terminal outcomes keep answering "already processed" queries
// and in-flight dedup is preserved across daemon restarts on one host.
//
// All state transitions for a given item pass through the store's mutex, so
// concurrent triggers for the same item never both proceed to submission.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open initializes or connects to the run database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.WorkDir, "runs.db"))
}

// OpenPath opens a run database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Trigger performs the idempotent trigger protocol for an item:
//
//   - an in-flight run exists: the existing record is returned unchanged with
//     DispositionInProgress, no new run is created;
//   - a prior run succeeded and force is false: DispositionAlreadyDone, no
//     new run;
//   - otherwise a fresh record is created in StateTriggered. force clears any
//     prior records for the item first.
//
// The check-and-create is atomic under the store mutex: at most one in-flight
// run per item exists at any time.
func (s *Store) Trigger(ctx context.Context, itemID string, force bool) (Disposition, *Record, error) {
	if itemID == "" {
		return "", nil, errors.New("item id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.latestByItem(ctx, itemID)
	if err != nil {
		return "", nil, err
	}
	if existing != nil {
		switch {
		case existing.State.InFlight():
			return DispositionInProgress, existing, nil
		case existing.State == StateSucceeded && !force:
			return DispositionAlreadyDone, existing, nil
		}
	}

	if force {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE item_id = ?`, itemID); err != nil {
			return "", nil, fmt.Errorf("clear prior runs: %w", err)
		}
	}

	now := time.Now().UTC()
	record := &Record{
		RunID:     uuid.NewString(),
		ItemID:    itemID,
		State:     StateTriggered,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, item_id, state, progress_percent, created_at, updated_at)
         VALUES (?, ?, ?, 0, ?, ?)`,
		record.RunID, record.ItemID, record.State,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", nil, fmt.Errorf("insert run: %w", err)
	}
	return DispositionStarted, record, nil
}

// MarkRunning transitions a run from triggered to running and records the
// orchestrator job assignment.
func (s *Store) MarkRunning(ctx context.Context, runID, jobID, dagID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(ctx, runID, StateRunning,
		`UPDATE runs SET state = ?, job_id = ?, dag_id = ?, updated_at = ? WHERE run_id = ? AND state = ?`,
		StateRunning, jobID, dagID, now(), runID, StateTriggered)
}

// MarkTerminal transitions a running run to a terminal outcome. Transitions
// from a terminal state are programming errors and are rejected.
func (s *Store) MarkTerminal(ctx context.Context, runID string, outcome State, message string) error {
	if !outcome.Terminal() {
		return fmt.Errorf("%w: %q is not terminal", ErrIllegalTransition, outcome)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(ctx, runID, outcome,
		`UPDATE runs SET state = ?, error_message = ?, progress_percent = ?, updated_at = ? WHERE run_id = ? AND state = ?`,
		outcome, nullableString(message), terminalPercent(outcome), now(), runID, StateRunning)
}

// UpdateProgress records the last observed orchestrator progress.
func (s *Store) UpdateProgress(ctx context.Context, runID string, percent float64, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET progress_percent = ?, progress_label = ?, updated_at = ? WHERE run_id = ?`,
		percent, nullableString(label), now(), runID)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// Get fetches a run record by run identifier.
func (s *Store) Get(ctx context.Context, runID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM runs WHERE run_id = ?`, runID)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return record, nil
}

// GetByItem fetches the most recent run record for a dataset item.
func (s *Store) GetByItem(ctx context.Context, itemID string) (*Record, error) {
	return s.latestByItem(ctx, itemID)
}

// List returns all run records ordered by creation time.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM runs ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Clear removes all records for an item, allowing a fresh trigger.
func (s *Store) Clear(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE item_id = ?`, itemID); err != nil {
		return fmt.Errorf("clear runs: %w", err)
	}
	return nil
}

func (s *Store) transition(ctx context.Context, runID string, target State, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition to %s: %w", target, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition to %s: %w", target, err)
	}
	if affected == 0 {
		current, getErr := s.Get(ctx, runID)
		if getErr != nil {
			return getErr
		}
		if current == nil {
			return fmt.Errorf("%w: run %s not found", ErrIllegalTransition, runID)
		}
		return fmt.Errorf("%w: %s -> %s for run %s", ErrIllegalTransition, current.State, target, runID)
	}
	return nil
}

func (s *Store) latestByItem(ctx context.Context, itemID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM runs WHERE item_id = ? ORDER BY created_at DESC, run_id DESC LIMIT 1`,
		itemID)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run by item: %w", err)
	}
	return record, nil
}

const recordColumns = `run_id, item_id, job_id, dag_id, state, progress_percent, progress_label, error_message, created_at, updated_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*Record, error) {
	var (
		record                      Record
		jobID, dagID, label, errMsg sql.NullString
		state, createdAt, updatedAt string
	)
	if err := row.Scan(&record.RunID, &record.ItemID, &jobID, &dagID, &state,
		&record.ProgressPercent, &label, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	record.JobID = jobID.String
	record.DAGID = dagID.String
	record.ProgressLabel = label.String
	record.ErrorMessage = errMsg.String

	parsed, ok := ParseState(state)
	if !ok {
		return nil, fmt.Errorf("unknown run state %q", state)
	}
	record.State = parsed

	var err error
	if record.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if record.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &record, nil
}

func terminalPercent(outcome State) float64 {
	if outcome == StateSucceeded {
		return 100
	}
	return 0
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
