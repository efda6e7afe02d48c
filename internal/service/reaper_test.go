package service

import (
	"testing"
	"time"

	"buscatalog/media-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReapOrphanedJobs(t *testing.T) {
	db := newTestDB(t)
	jobs := NewJobStore(db)

	require.NoError(t, db.Create(&model.Content{
		ID: "alive", Title: "x", Type: model.TypeMovie,
		FilePath: "a.mp4", State: model.StateActive,
	}).Error)

	require.NoError(t, jobs.Enqueue(&model.TranscodeJob{ContentID: "alive"}))
	require.NoError(t, jobs.Enqueue(&model.TranscodeJob{ContentID: "deleted-long-ago"}))

	reapOrphanedJobs(db)

	orphaned, err := jobs.ForContent("deleted-long-ago")
	require.NoError(t, err)
	assert.Empty(t, orphaned)

	kept, err := jobs.ForContent("alive")
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestReapStaleRunning(t *testing.T) {
	db := newTestDB(t)
	jobs := NewJobStore(db)

	require.NoError(t, jobs.Enqueue(&model.TranscodeJob{ContentID: "c1"}))

	claimed, err := jobs.Claim()
	require.NoError(t, err)
	require.NotNil(t, claimed)

	// Backdate the claim so it looks abandoned by a dead process
	stale := time.Now().Add(-2 * staleRunningCutoff).UnixMilli()
	require.NoError(t, db.
		Model(model.TranscodeJob{}).
		Where("id = ?", claimed.ID).
		UpdateColumn("updated_at", stale).
		Error)

	reapStaleRunning(jobs)

	after, err := jobs.ForContent("c1")
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, model.JobFailed, after[0].Status)
	assert.NotEmpty(t, after[0].Error)
}

func TestReapStaleRunningLeavesFreshJobsAlone(t *testing.T) {
	db := newTestDB(t)
	jobs := NewJobStore(db)

	require.NoError(t, jobs.Enqueue(&model.TranscodeJob{ContentID: "c1"}))

	claimed, err := jobs.Claim()
	require.NoError(t, err)
	require.NotNil(t, claimed)

	reapStaleRunning(jobs)

	after, err := jobs.ForContent("c1")
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, model.JobRunning, after[0].Status)
}
