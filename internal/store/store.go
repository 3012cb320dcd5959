// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/keyopt/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

var (
	// ErrRunNotFound is returned when no run matches an id.
	ErrRunNotFound = errors.New("run not found")
	// ErrAmbiguousID is returned when an id prefix matches several runs.
	ErrAmbiguousID = errors.New("run id prefix is ambiguous")
)

// Store wraps SQLite access for optimisation runs.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			layout TEXT NOT NULL,
			corpus TEXT NOT NULL,
			corpus_chars INTEGER NOT NULL,
			key_presses INTEGER NOT NULL,
			baseline TEXT NOT NULL,
			baseline_score REAL NOT NULL,
			temperature REAL NOT NULL,
			epoch INTEGER NOT NULL,
			cooling_rate REAL NOT NULL,
			max_iterations INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			chains INTEGER NOT NULL,
			initial_genome TEXT NOT NULL DEFAULT '',
			initial_score REAL NOT NULL DEFAULT 0,
			best_genome TEXT NOT NULL DEFAULT '',
			best_score REAL NOT NULL DEFAULT 0,
			iterations INTEGER NOT NULL DEFAULT 0,
			final_temperature REAL NOT NULL DEFAULT 0,
			accepted INTEGER NOT NULL DEFAULT 0,
			improvements INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS run_updates (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			chain INTEGER NOT NULL,
			iteration INTEGER NOT NULL,
			temperature REAL NOT NULL,
			best_score REAL NOT NULL,
			candidate_score REAL NOT NULL,
			genome TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_layout ON runs(layout);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// CreateRun stores a new running run and returns its id.
func (s *Store) CreateRun(ctx context.Context, startedAt time.Time, cfg model.RunConfig) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, status, layout, corpus, corpus_chars, key_presses, baseline, baseline_score,
			temperature, epoch, cooling_rate, max_iterations, seed, chains)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		startedAt.Format(time.RFC3339Nano),
		model.StatusRunning,
		cfg.Layout,
		cfg.Corpus,
		cfg.CorpusChars,
		cfg.KeyPresses,
		cfg.Baseline,
		cfg.BaselineScore,
		cfg.Temperature,
		cfg.Epoch,
		cfg.CoolingRate,
		cfg.Iterations,
		cfg.Seed,
		cfg.Chains,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// AddUpdates appends score updates to a run, after any stored ones.
func (s *Store) AddUpdates(ctx context.Context, runID string, updates []model.ScoreUpdate) (err error) {
	if len(updates) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	var next int
	if err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq) + 1, 0) FROM run_updates WHERE run_id = ?`, runID).Scan(&next); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_updates (run_id, seq, chain, iteration, temperature, best_score, candidate_score, genome)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()
	for i, u := range updates {
		if _, err = stmt.ExecContext(ctx, runID, next+i, u.Chain, u.Iteration, u.Temperature, u.BestScore, u.CandidateScore, u.Genome); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// FinishRun records the outcome of a run.
func (s *Store) FinishRun(ctx context.Context, run model.Run) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET ended_at = ?, status = ?, initial_genome = ?, initial_score = ?, best_genome = ?, best_score = ?,
			iterations = ?, final_temperature = ?, accepted = ?, improvements = ?, duration_ms = ?
		 WHERE id = ?`,
		run.EndedAt.Format(time.RFC3339Nano),
		model.StatusFinished,
		run.InitialGenome,
		run.InitialScore,
		run.BestGenome,
		run.BestScore,
		run.Iterations,
		run.FinalTemperature,
		run.Accepted,
		run.Improvements,
		run.DurationMs,
		run.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

const runColumns = `id, started_at, ended_at, status, layout, corpus, corpus_chars, key_presses, baseline, baseline_score,
	temperature, epoch, cooling_rate, max_iterations, seed, chains, initial_genome, initial_score, best_genome, best_score,
	iterations, final_temperature, accepted, improvements, duration_ms`

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, filter model.RunsFilter) ([]model.Run, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.Layout != "" {
		clauses = append(clauses, "layout = ?")
		args = append(args, filter.Layout)
	}
	if filter.Since != nil {
		clauses = append(clauses, "started_at >= ?")
		args = append(args, filter.Since.Format(time.RFC3339Nano))
	}
	query := fmt.Sprintf(`SELECT %s FROM runs WHERE %s ORDER BY started_at DESC`, runColumns, strings.Join(clauses, " AND "))
	if filter.Last > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Last)
	}
	return s.queryRuns(ctx, query, args...)
}

// GetRun finds a run by id or unique id prefix.
func (s *Store) GetRun(ctx context.Context, idPrefix string) (model.Run, error) {
	idPrefix = strings.TrimSpace(idPrefix)
	if idPrefix == "" {
		return model.Run{}, ErrRunNotFound
	}
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(idPrefix)
	query := fmt.Sprintf(`SELECT %s FROM runs WHERE id LIKE ? ESCAPE '\' ORDER BY started_at DESC LIMIT 2`, runColumns)
	runs, err := s.queryRuns(ctx, query, escaped+"%")
	if err != nil {
		return model.Run{}, err
	}
	switch len(runs) {
	case 0:
		return model.Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, idPrefix)
	case 1:
		return runs[0], nil
	default:
		return model.Run{}, fmt.Errorf("%w: %s", ErrAmbiguousID, idPrefix)
	}
}

// ListUpdates returns a run's score updates in the order they were added.
func (s *Store) ListUpdates(ctx context.Context, runID string) ([]model.ScoreUpdate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chain, iteration, temperature, best_score, candidate_score, genome
		 FROM run_updates WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var updates []model.ScoreUpdate
	for rows.Next() {
		var u model.ScoreUpdate
		if err := rows.Scan(&u.Chain, &u.Iteration, &u.Temperature, &u.BestScore, &u.CandidateScore, &u.Genome); err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return updates, nil
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]model.Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var startedAt, endedAt string
		if err := rows.Scan(
			&r.ID, &startedAt, &endedAt, &r.Status,
			&r.Config.Layout, &r.Config.Corpus, &r.Config.CorpusChars, &r.Config.KeyPresses,
			&r.Config.Baseline, &r.Config.BaselineScore, &r.Config.Temperature, &r.Config.Epoch,
			&r.Config.CoolingRate, &r.Config.Iterations, &r.Config.Seed, &r.Config.Chains,
			&r.InitialGenome, &r.InitialScore, &r.BestGenome, &r.BestScore,
			&r.Iterations, &r.FinalTemperature, &r.Accepted, &r.Improvements, &r.DurationMs,
		); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, err
		}
		r.StartedAt = parsed
		if endedAt != "" {
			parsed, err := time.Parse(time.RFC3339Nano, endedAt)
			if err != nil {
				return nil, err
			}
			r.EndedAt = parsed
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}
