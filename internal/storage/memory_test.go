package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tethercam/camera-server/internal/models"
)

func TestMemoryStoreCaptures(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		record := &models.CaptureRecord{
			FilePath:   "shot.jpg",
			Downloaded: true,
			Source:     models.CaptureSourceSingle,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.RecordCapture(ctx, record))
		assert.NotEqual(t, uuid.Nil, record.ID, "an ID is assigned on insert")
	}

	records, total, err := store.ListCaptures(ctx, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, records, 3)
	assert.True(t, records[0].CreatedAt.After(records[2].CreatedAt), "newest first")

	// Paging
	records, total, err = store.ListCaptures(ctx, 2, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, records, 1)

	got, err := store.GetCapture(ctx, records[0].ID)
	require.NoError(t, err)
	assert.Equal(t, records[0].ID, got.ID)

	_, err = store.GetCapture(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreTimelapseRuns(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	run := &models.TimelapseRun{
		Folder:   "20240501_120000_timelapse_3x5s",
		Total:    3,
		Interval: 5,
		State:    models.RunStateRunning,
	}
	require.NoError(t, store.CreateTimelapseRun(ctx, run))

	run.State = models.RunStateCompleted
	run.Captured = 3
	now := time.Now()
	run.FinishedAt = &now
	require.NoError(t, store.UpdateTimelapseRun(ctx, run))

	got, err := store.GetTimelapseRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStateCompleted, got.State)
	assert.Equal(t, 3, got.Captured)

	runs, total, err := store.ListTimelapseRuns(ctx, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, runs, 1)

	unknown := &models.TimelapseRun{ID: uuid.New()}
	assert.ErrorIs(t, store.UpdateTimelapseRun(ctx, unknown), ErrNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	run := &models.TimelapseRun{Folder: "a", State: models.RunStateRunning}
	require.NoError(t, store.CreateTimelapseRun(ctx, run))

	got, err := store.GetTimelapseRun(ctx, run.ID)
	require.NoError(t, err)
	got.State = models.RunStateError

	again, err := store.GetTimelapseRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStateRunning, again.State, "mutating a result must not affect the store")
}
