package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/stockflow/internal/logging"
	"github.com/nvandessel/stockflow/internal/model"
	"github.com/nvandessel/stockflow/internal/sanitize"
	"github.com/nvandessel/stockflow/internal/trajectory"
)

// ErrRunNotFound is returned when no run matches an id.
var ErrRunNotFound = errors.New("run not found")

// RunsFile is the database file name inside the store directory.
const RunsFile = "runs.db"

// timeLayout sorts lexically in time order, unlike RFC3339Nano.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RunMeta describes a stored run.
type RunMeta struct {
	ID        string     `json:"id"`
	Model     string     `json:"model"`
	Source    string     `json:"source"`
	Span      model.Span `json:"span"`
	Points    int        `json:"points"`
	Note      string     `json:"note,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Run is a stored run. It satisfies trajectory.Solution.
type Run struct {
	RunMeta
	*trajectory.Memory
}

// RunStore keeps solved runs in SQLite.
type RunStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
	logger *slog.Logger
}

// OpenRunStore opens or creates dir/runs.db.
func OpenRunStore(dir string, logger *slog.Logger) (*RunStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	dbPath := filepath.Join(dir, RunsFile)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &RunStore{db: db, dbPath: dbPath, logger: logging.OrDiscard(logger)}, nil
}

// Path returns the database file path.
func (s *RunStore) Path() string { return s.dbPath }

// SaveRun stores sol and returns the new run id. meta.ID and meta.CreatedAt
// are assigned when empty; meta.Points is taken from sol. The note is
// reduced to a single clean line.
func (s *RunStore) SaveRun(ctx context.Context, meta RunMeta, sol trajectory.Solution) (string, error) {
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	meta.Points = len(sol.Times())
	meta.Note = sanitize.Note(meta.Note)

	data, err := encodeSeries(sol)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, model, source, start_time, stop_time, step, points, note, created_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.Model, meta.Source, meta.Span.Start, meta.Span.Stop, meta.Span.Step,
		meta.Points, nullString(meta.Note), meta.CreatedAt.UTC().Format(timeLayout), data)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	insert := func(names []string, role string) error {
		for _, name := range names {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO run_variables (run_id, name, role) VALUES (?, ?, ?)`,
				meta.ID, name, role); err != nil {
				return fmt.Errorf("failed to insert variable %s: %w", name, err)
			}
		}
		return nil
	}
	if err := insert(sol.States(), roleState); err != nil {
		return "", err
	}
	if err := insert(sol.Observed(), roleObserved); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	s.logger.Debug("run saved", "id", meta.ID, "model", meta.Model, "points", meta.Points, "bytes", len(data))
	return meta.ID, nil
}

// LoadRun returns the run with the given id. A unique id prefix is accepted.
func (s *RunStore) LoadRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	full, err := s.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, model, source, start_time, stop_time, step, points, note, created_at, data
		FROM runs WHERE id = ?`, full)
	meta, data, err := scanRun(row)
	if err != nil {
		return nil, err
	}
	mem, err := decodeSeries(data)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", meta.ID, err)
	}
	return &Run{RunMeta: meta, Memory: mem}, nil
}

// LatestRun returns the most recently created run.
func (s *RunStore) LatestRun(ctx context.Context) (*Run, error) {
	s.mu.RLock()
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY created_at DESC, rowid DESC LIMIT 1`).Scan(&id)
	s.mu.RUnlock()
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}
	return s.LoadRun(ctx, id)
}

// ListRuns returns run metadata, newest first.
func (s *RunStore) ListRuns(ctx context.Context) ([]RunMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, model, source, start_time, stop_time, step, points, note, created_at
		FROM runs ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunMeta
	for rows.Next() {
		var (
			m       RunMeta
			note    sql.NullString
			created string
		)
		if err := rows.Scan(&m.ID, &m.Model, &m.Source, &m.Span.Start, &m.Span.Stop, &m.Span.Step,
			&m.Points, &note, &created); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		m.Note = note.String
		m.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, m)
	}
	return out, rows.Err()
}

// RunVariables returns the recorded variable names of a run by role
// without decoding its series.
func (s *RunStore) RunVariables(ctx context.Context, id string) (states, observed []string, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	full, err := s.resolveID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, role FROM run_variables WHERE run_id = ? ORDER BY name`, full)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query run variables: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, role string
		if err := rows.Scan(&name, &role); err != nil {
			return nil, nil, fmt.Errorf("failed to scan run variable: %w", err)
		}
		if role == roleObserved {
			observed = append(observed, name)
		} else {
			states = append(states, name)
		}
	}
	return states, observed, rows.Err()
}

// DeleteRun removes a run and its variables.
func (s *RunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	full, err := s.resolveID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, full); err != nil {
		return fmt.Errorf("failed to delete run %s: %w", full, err)
	}
	s.logger.Debug("run deleted", "id", full)
	return nil
}

// Close closes the database.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// resolveID expands a unique id prefix. Callers hold s.mu.
func (s *RunStore) resolveID(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", ErrRunNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM runs WHERE substr(id, 1, ?) = ? LIMIT 2`, len(id), id)
	if err != nil {
		return "", fmt.Errorf("failed to look up run: %w", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return "", fmt.Errorf("failed to scan run id: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("run id prefix %q matches more than one run", id)
}

func scanRun(row *sql.Row) (RunMeta, []byte, error) {
	var (
		m       RunMeta
		note    sql.NullString
		created string
		data    []byte
	)
	err := row.Scan(&m.ID, &m.Model, &m.Source, &m.Span.Start, &m.Span.Stop, &m.Span.Step,
		&m.Points, &note, &created, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return RunMeta{}, nil, ErrRunNotFound
	}
	if err != nil {
		return RunMeta{}, nil, fmt.Errorf("failed to scan run: %w", err)
	}
	m.Note = note.String
	m.CreatedAt, _ = time.Parse(timeLayout, created)
	return m, data, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
