package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xkilldash9x/playcheck-cli/api/schemas"
	"go.uber.org/zap"
)

// ErrRunNotFound is returned when a run ID has no persisted result.
var ErrRunNotFound = errors.New("run not found")

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store provides a PostgreSQL implementation of the Repository interface.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.Repository = (*Store)(nil)

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS runs (
        id TEXT PRIMARY KEY,
        game_url TEXT NOT NULL,
        outcome TEXT NOT NULL,
        failure_reason TEXT NOT NULL DEFAULT '',
        evaluation JSONB,
        oracle_analyses JSONB,
        started_at TIMESTAMPTZ NOT NULL,
        finished_at TIMESTAMPTZ NOT NULL,
        duration_ms BIGINT NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS run_snapshots (
        id TEXT PRIMARY KEY,
        run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
        label TEXT NOT NULL,
        visual_data BYTEA,
        dom_text TEXT NOT NULL DEFAULT '',
        captured_at TIMESTAMPTZ NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS run_actions (
        run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
        seq INT NOT NULL,
        iteration INT NOT NULL,
        verb TEXT NOT NULL,
        target TEXT NOT NULL,
        rationale TEXT NOT NULL DEFAULT '',
        succeeded BOOLEAN NOT NULL,
        caused_state_change BOOLEAN NOT NULL,
        PRIMARY KEY (run_id, seq)
    );`,
}

// EnsureSchema creates the result tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// SaveResult persists one finished run inside a single transaction.
func (s *Store) SaveResult(ctx context.Context, res *schemas.RunResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit reports ErrTxClosed; that is the
		// expected path, not an error worth logging.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if err := s.insertRun(ctx, tx, res); err != nil {
		return err
	}
	if len(res.Snapshots) > 0 {
		if err := s.copySnapshots(ctx, tx, res.RunID, res.Snapshots); err != nil {
			return err
		}
	}
	if len(res.ActionLog) > 0 {
		if err := s.copyActions(ctx, tx, res.RunID, res.ActionLog); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) insertRun(ctx context.Context, tx pgx.Tx, res *schemas.RunResult) error {
	evaluation, err := marshalEvaluation(res.Evaluation)
	if err != nil {
		return fmt.Errorf("failed to marshal evaluation: %w", err)
	}
	analyses, err := marshalAnalyses(res.OracleAnalyses)
	if err != nil {
		return fmt.Errorf("failed to marshal oracle analyses: %w", err)
	}

	sql := `
        INSERT INTO runs (id, game_url, outcome, failure_reason, evaluation, oracle_analyses, started_at, finished_at, duration_ms)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
    `
	// Timestamps go in as UTC so replays of the same result row are stable.
	_, err = tx.Exec(ctx, sql,
		res.RunID, res.GameURL,
		string(res.Outcome), res.FailureReason,
		evaluation, analyses,
		res.StartedAt.UTC(), res.FinishedAt.UTC(),
		res.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", res.RunID, err)
	}
	return nil
}

func (s *Store) copySnapshots(ctx context.Context, tx pgx.Tx, runID string, snaps []schemas.Snapshot) error {
	rows := make([][]interface{}, len(snaps))
	for i, snap := range snaps {
		rows[i] = []interface{}{
			snap.ID, runID, snap.Label,
			snap.VisualData, snap.DOMText,
			snap.CapturedAt.UTC(),
		}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"run_snapshots"},
		[]string{"id", "run_id", "label", "visual_data", "dom_text", "captured_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy snapshots: %w", err)
	}
	if int(copyCount) != len(snaps) {
		return fmt.Errorf("mismatch in copied snapshot count: expected %d, got %d", len(snaps), copyCount)
	}
	return nil
}

func (s *Store) copyActions(ctx context.Context, tx pgx.Tx, runID string, log []schemas.ActionRecord) error {
	rows := make([][]interface{}, len(log))
	for i, rec := range log {
		rows[i] = []interface{}{
			runID, i,
			rec.Iteration, string(rec.Verb), rec.Target, rec.Rationale,
			rec.Succeeded, rec.CausedStateChange,
		}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"run_actions"},
		[]string{"run_id", "seq", "iteration", "verb", "target", "rationale", "succeeded", "caused_state_change"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy actions: %w", err)
	}
	if int(copyCount) != len(log) {
		return fmt.Errorf("mismatch in copied action count: expected %d, got %d", len(log), copyCount)
	}
	return nil
}

// GetResult loads one persisted run, including its snapshots and action log.
func (s *Store) GetResult(ctx context.Context, runID string) (*schemas.RunResult, error) {
	sql := `
        SELECT game_url, outcome, failure_reason, evaluation, oracle_analyses, started_at, finished_at, duration_ms
        FROM runs
        WHERE id = $1;
    `
	res := &schemas.RunResult{RunID: runID}
	var (
		outcome    string
		evaluation []byte
		analyses   []byte
		durationMS int64
	)
	err := s.pool.QueryRow(ctx, sql, runID).Scan(
		&res.GameURL, &outcome, &res.FailureReason,
		&evaluation, &analyses,
		&res.StartedAt, &res.FinishedAt, &durationMS,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	res.Outcome = schemas.Outcome(outcome)
	res.Duration = time.Duration(durationMS) * time.Millisecond

	if len(evaluation) > 0 {
		if err := json.Unmarshal(evaluation, &res.Evaluation); err != nil {
			return nil, fmt.Errorf("failed to decode evaluation: %w", err)
		}
	}
	if len(analyses) > 0 {
		if err := json.Unmarshal(analyses, &res.OracleAnalyses); err != nil {
			return nil, fmt.Errorf("failed to decode oracle analyses: %w", err)
		}
	}

	if res.Snapshots, err = s.getSnapshots(ctx, runID); err != nil {
		return nil, err
	}
	if res.ActionLog, err = s.getActions(ctx, runID); err != nil {
		return nil, err
	}
	return res, nil
}

// ListResults returns summaries of the most recent runs, newest first.
func (s *Store) ListResults(ctx context.Context, limit int) ([]schemas.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	sql := `
        SELECT id, game_url, outcome, started_at, duration_ms
        FROM runs
        ORDER BY started_at DESC
        LIMIT $1;
    `
	rows, err := s.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var summaries []schemas.RunSummary
	for rows.Next() {
		var (
			sum        schemas.RunSummary
			outcome    string
			durationMS int64
		)
		if err := rows.Scan(&sum.RunID, &sum.GameURL, &outcome, &sum.StartedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan run summary row: %w", err)
		}
		sum.Outcome = schemas.Outcome(outcome)
		sum.Duration = time.Duration(durationMS) * time.Millisecond
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during run iteration: %w", err)
	}
	return summaries, nil
}

func (s *Store) getSnapshots(ctx context.Context, runID string) ([]schemas.Snapshot, error) {
	sql := `
        SELECT id, label, visual_data, dom_text, captured_at
        FROM run_snapshots
        WHERE run_id = $1
        ORDER BY captured_at ASC;
    `
	rows, err := s.pool.Query(ctx, sql, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []schemas.Snapshot
	for rows.Next() {
		var snap schemas.Snapshot
		if err := rows.Scan(&snap.ID, &snap.Label, &snap.VisualData, &snap.DOMText, &snap.CapturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during snapshot iteration: %w", err)
	}
	return snaps, nil
}

func (s *Store) getActions(ctx context.Context, runID string) ([]schemas.ActionRecord, error) {
	sql := `
        SELECT iteration, verb, target, rationale, succeeded, caused_state_change
        FROM run_actions
        WHERE run_id = $1
        ORDER BY seq ASC;
    `
	rows, err := s.pool.Query(ctx, sql, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	var log []schemas.ActionRecord
	for rows.Next() {
		var (
			rec  schemas.ActionRecord
			verb string
		)
		if err := rows.Scan(&rec.Iteration, &verb, &rec.Target, &rec.Rationale, &rec.Succeeded, &rec.CausedStateChange); err != nil {
			return nil, fmt.Errorf("failed to scan action row: %w", err)
		}
		rec.Verb = schemas.ActionVerb(verb)
		log = append(log, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during action iteration: %w", err)
	}
	return log, nil
}

// marshalEvaluation keeps an absent evaluation as SQL NULL rather than the
// JSON literal "null".
func marshalEvaluation(eval *schemas.GameEvaluation) ([]byte, error) {
	if eval == nil {
		return nil, nil
	}
	return json.Marshal(eval)
}

func marshalAnalyses(analyses []schemas.GameAnalysis) ([]byte, error) {
	if len(analyses) == 0 {
		return nil, nil
	}
	return json.Marshal(analyses)
}
