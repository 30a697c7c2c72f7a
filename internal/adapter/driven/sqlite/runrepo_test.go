package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/reviewnudge/internal/domain/model"
)

func sampleRun(id string, started time.Time) model.RunResult {
	return model.RunResult{
		ID:         id,
		Now:        time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC),
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		DryRun:     true,
		Teams: []model.TeamOutcome{
			{
				Team:   "backend",
				Status: model.OutcomeDelivered,
				Report: model.TeamReport{Team: "backend", Summary: model.ReportSummary{Total: 3}},
			},
			{
				Team:   "frontend",
				Status: model.OutcomeFailed,
				Error:  "all projects failed",
				ProjectFailures: []model.ProjectFailure{
					{Project: "athena", Kind: model.FailureUnauthorized, Error: "401"},
				},
			},
		},
	}
}

func TestRunRepo_SaveAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRunRepo(db)
	ctx := context.Background()

	started := time.Date(2024, 3, 13, 9, 0, 1, 123456789, time.UTC)
	require.NoError(t, repo.SaveRun(ctx, sampleRun("run-1", started)))

	record, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, "run-1", record.ID)
	assert.True(t, record.StartedAt.Equal(started))
	assert.True(t, record.DryRun)
	assert.False(t, record.Suppressed)
	assert.Equal(t, 2, record.TeamCount)
	assert.Equal(t, 1, record.FailedCount)

	require.Len(t, record.Outcomes, 2)
	assert.Equal(t, "backend", record.Outcomes[0].Team)
	assert.Equal(t, model.OutcomeDelivered, record.Outcomes[0].Status)
	assert.Equal(t, 3, record.Outcomes[0].StaleCount)
	assert.Empty(t, record.Outcomes[0].ProjectFailures)

	assert.Equal(t, "frontend", record.Outcomes[1].Team)
	assert.Equal(t, "all projects failed", record.Outcomes[1].Error)
	assert.Equal(t, []model.ProjectFailure{{Project: "athena", Kind: model.FailureUnauthorized, Error: "401"}},
		record.Outcomes[1].ProjectFailures)
}

func TestRunRepo_GetUnknown(t *testing.T) {
	repo := NewRunRepo(setupTestDB(t))

	record, err := repo.GetRun(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestRunRepo_ListRunsNewestFirst(t *testing.T) {
	repo := NewRunRepo(setupTestDB(t))
	ctx := context.Background()

	base := time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveRun(ctx, sampleRun("a", base)))
	require.NoError(t, repo.SaveRun(ctx, sampleRun("b", base.Add(500*time.Millisecond))))
	require.NoError(t, repo.SaveRun(ctx, sampleRun("c", base.Add(time.Second))))

	runs, err := repo.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)

	all, err := repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRunRepo_ListRunsEmpty(t *testing.T) {
	repo := NewRunRepo(setupTestDB(t))

	runs, err := repo.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestRunRepo_DuplicateIDRejected(t *testing.T) {
	repo := NewRunRepo(setupTestDB(t))
	ctx := context.Background()

	run := sampleRun("dup", time.Now())
	require.NoError(t, repo.SaveRun(ctx, run))
	assert.Error(t, repo.SaveRun(ctx, run))

	record, err := repo.GetRun(ctx, "dup")
	require.NoError(t, err)
	assert.Len(t, record.Outcomes, 2, "failed save must not leave partial outcomes")
}

func TestOpen_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	db, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.Equal(t, path, db.Path())
	require.NoError(t, NewRunRepo(db).SaveRun(context.Background(), sampleRun("file-run", time.Now())))

	// Reopening applies no further migrations and keeps the data.
	require.NoError(t, db.Close())
	db, err = Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	record, err := NewRunRepo(db).GetRun(context.Background(), "file-run")
	require.NoError(t, err)
	require.NotNil(t, record)
}
