package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/reviewnudge/internal/domain/model"
	"github.com/ericfisherdev/reviewnudge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RunStore = (*RunRepo)(nil)

// RunRepo is the SQLite implementation of the RunStore port interface.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a new RunRepo backed by the given DB.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// SaveRun records a finished run and its team outcomes in one transaction.
func (r *RunRepo) SaveRun(ctx context.Context, run model.RunResult) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	const insertRun = `
		INSERT INTO runs (id, logical_date, started_at, finished_at, suppressed, dry_run, team_count, failed_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, insertRun,
		run.ID,
		formatTime(run.Now),
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
		run.Suppressed,
		run.DryRun,
		len(run.Teams),
		run.FailedTeams(),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	const insertOutcome = `
		INSERT INTO team_outcomes (run_id, position, team, status, stale_count, error, project_failures)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	for i, o := range run.Teams {
		failures := o.ProjectFailures
		if failures == nil {
			failures = []model.ProjectFailure{}
		}
		failuresJSON, err := json.Marshal(failures)
		if err != nil {
			return fmt.Errorf("encode project failures for %s: %w", o.Team, err)
		}

		if _, err := tx.ExecContext(ctx, insertOutcome,
			run.ID, i, o.Team, string(o.Status), o.Report.Summary.Total, o.Error, string(failuresJSON),
		); err != nil {
			return fmt.Errorf("insert outcome for team %s: %w", o.Team, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}

	return nil
}

// ListRuns returns up to limit runs, most recently started first.
func (r *RunRepo) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	const query = `
		SELECT id, logical_date, started_at, finished_at, suppressed, dry_run, team_count, failed_count
		FROM runs
		ORDER BY started_at DESC, id
		LIMIT ?`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []model.RunSummary{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// GetRun returns the run with the given ID and its outcomes in team order.
// Returns nil, nil when the run does not exist.
func (r *RunRepo) GetRun(ctx context.Context, id string) (*model.RunRecord, error) {
	const runQuery = `
		SELECT id, logical_date, started_at, finished_at, suppressed, dry_run, team_count, failed_count
		FROM runs WHERE id = ?`

	summary, err := scanRun(r.db.Reader.QueryRowContext(ctx, runQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	const outcomeQuery = `
		SELECT team, status, stale_count, error, project_failures
		FROM team_outcomes WHERE run_id = ? ORDER BY position`

	rows, err := r.db.Reader.QueryContext(ctx, outcomeQuery, id)
	if err != nil {
		return nil, fmt.Errorf("get outcomes for run %s: %w", id, err)
	}
	defer rows.Close()

	record := &model.RunRecord{RunSummary: *summary, Outcomes: []model.OutcomeRecord{}}
	for rows.Next() {
		var o model.OutcomeRecord
		var status, failuresJSON string

		if err := rows.Scan(&o.Team, &status, &o.StaleCount, &o.Error, &failuresJSON); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Status = model.OutcomeStatus(status)

		if err := json.Unmarshal([]byte(failuresJSON), &o.ProjectFailures); err != nil {
			return nil, fmt.Errorf("decode project failures for %s: %w", o.Team, err)
		}

		record.Outcomes = append(record.Outcomes, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}

	return record, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*model.RunSummary, error) {
	var run model.RunSummary
	var logicalDate, startedAt, finishedAt string

	err := s.Scan(&run.ID, &logicalDate, &startedAt, &finishedAt,
		&run.Suppressed, &run.DryRun, &run.TeamCount, &run.FailedCount)
	if err != nil {
		return nil, err
	}

	if run.LogicalDate, err = parseTime(logicalDate); err != nil {
		return nil, fmt.Errorf("parse logical_date: %w", err)
	}
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = parseTime(finishedAt); err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}

	return &run, nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		timeLayout,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
