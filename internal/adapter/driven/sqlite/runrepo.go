package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/basicci/internal/domain/model"
	"github.com/ericfisherdev/basicci/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ResultStore = (*RunRepo)(nil)

// timeLayout is fixed-width so that started_at sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RunRepo is the SQLite implementation of the ResultStore port interface.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a new RunRepo backed by the given DB.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// Save writes the run and its stage results in a single transaction. Saving an
// existing run id replaces the earlier record.
func (r *RunRepo) Save(ctx context.Context, result model.RunResult) error {
	if result.RunID == "" {
		return fmt.Errorf("save run: empty run id")
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	const upsertQuery = `
		INSERT INTO runs (id, repo_url, branch, commit_sha, status, started_at, finished_at, summary, details_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			repo_url = excluded.repo_url,
			branch = excluded.branch,
			commit_sha = excluded.commit_sha,
			status = excluded.status,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			summary = excluded.summary,
			details_url = excluded.details_url
	`
	if _, err := tx.ExecContext(ctx, upsertQuery,
		result.RunID, result.RepositoryURL, result.Branch, result.CommitSHA, string(result.Status),
		formatTime(result.StartedAt), formatTime(result.FinishedAt), result.Summary, result.DetailsURL,
	); err != nil {
		return fmt.Errorf("upsert run %s: %w", result.RunID, err)
	}

	const deleteStages = `DELETE FROM stage_results WHERE run_id = ?`
	if _, err := tx.ExecContext(ctx, deleteStages, result.RunID); err != nil {
		return fmt.Errorf("delete stages for run %s: %w", result.RunID, err)
	}

	const insertStage = `
		INSERT INTO stage_results (run_id, position, name, command, success, output, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for i, s := range result.Stages {
		success := 0
		if s.Success {
			success = 1
		}
		if _, err := tx.ExecContext(ctx, insertStage,
			result.RunID, i, s.Name, s.Command, success, s.Output, s.Duration.Nanoseconds(),
		); err != nil {
			return fmt.Errorf("insert stage %q for run %s: %w", s.Name, result.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", result.RunID, err)
	}

	return nil
}

// Get returns the run with the given id, or driven.ErrRunNotFound.
func (r *RunRepo) Get(ctx context.Context, runID string) (model.RunResult, error) {
	const query = `
		SELECT id, repo_url, branch, commit_sha, status, started_at, finished_at, summary, details_url
		FROM runs
		WHERE id = ?
	`

	result, err := scanRun(r.db.Reader.QueryRowContext(ctx, query, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunResult{}, driven.ErrRunNotFound
	}
	if err != nil {
		return model.RunResult{}, fmt.Errorf("get run %s: %w", runID, err)
	}

	stages, err := r.stagesByRun(ctx, []string{runID})
	if err != nil {
		return model.RunResult{}, err
	}
	result.Stages = stages[runID]
	if result.Stages == nil {
		result.Stages = []model.StageResult{}
	}

	return *result, nil
}

// ListAll returns every run ordered by started_at descending.
func (r *RunRepo) ListAll(ctx context.Context) ([]model.RunResult, error) {
	const query = `
		SELECT id, repo_url, branch, commit_sha, status, started_at, finished_at, summary, details_url
		FROM runs
		ORDER BY started_at DESC, id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	results := []model.RunResult{}
	var ids []string
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		results = append(results, *run)
		ids = append(ids, run.RunID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	if len(results) == 0 {
		return results, nil
	}

	stages, err := r.stagesByRun(ctx, nil)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Stages = stages[results[i].RunID]
		if results[i].Stages == nil {
			results[i].Stages = []model.StageResult{}
		}
	}

	return results, nil
}

// stagesByRun loads stage results grouped by run id, in stage order. A nil
// runIDs loads every stage.
func (r *RunRepo) stagesByRun(ctx context.Context, runIDs []string) (map[string][]model.StageResult, error) {
	if runIDs != nil && len(runIDs) == 0 {
		return map[string][]model.StageResult{}, nil
	}

	query := `SELECT run_id, name, command, success, output, duration_ns FROM stage_results`
	var args []any
	if runIDs != nil {
		query += ` WHERE run_id IN (?` + repeatPlaceholders(len(runIDs)-1) + `)`
		for _, id := range runIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY run_id, position`

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stage results: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]model.StageResult)
	for rows.Next() {
		var (
			runID      string
			s          model.StageResult
			success    int
			durationNS int64
		)
		if err := rows.Scan(&runID, &s.Name, &s.Command, &success, &s.Output, &durationNS); err != nil {
			return nil, fmt.Errorf("scan stage result: %w", err)
		}
		s.Success = success != 0
		s.Duration = time.Duration(durationNS)
		out[runID] = append(out[runID], s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stage results: %w", err)
	}

	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*model.RunResult, error) {
	var run model.RunResult
	var status, startedAt, finishedAt string

	err := s.Scan(
		&run.RunID, &run.RepositoryURL, &run.Branch, &run.CommitSHA, &status,
		&startedAt, &finishedAt, &run.Summary, &run.DetailsURL,
	)
	if err != nil {
		return nil, err
	}

	var ok bool
	if run.Status, ok = model.ParseRunStatus(status); !ok {
		return nil, fmt.Errorf("unknown status %q", status)
	}
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = parseTime(finishedAt); err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}

	return &run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		timeLayout,
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}

func repeatPlaceholders(n int) string {
	out := make([]byte, 0, n*3)
	for range n {
		out = append(out, ", ?"...)
	}
	return string(out)
}
