package status

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_AcquireCollection_LocksOut(t *testing.T) {
	// Given: a collection locked by job-1
	s := NewMemoryStore(0)
	ctx := context.Background()

	holder, err := s.AcquireCollection(ctx, "PL1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", holder)

	// When: a second job tries the same collection
	holder, err = s.AcquireCollection(ctx, "PL1", "job-2")

	// Then: conflict naming the current holder
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "job-1", holder)

	// And: a different collection is unaffected
	_, err = s.AcquireCollection(ctx, "PL2", "job-2")
	assert.NoError(t, err)
}

func TestMemoryStore_ReleaseCollection_OnlyByHolder(t *testing.T) {
	// Given: a collection locked by job-1
	s := NewMemoryStore(0)
	ctx := context.Background()
	_, err := s.AcquireCollection(ctx, "PL1", "job-1")
	require.NoError(t, err)

	// When: a non-holder releases
	require.NoError(t, s.ReleaseCollection(ctx, "PL1", "job-2"))

	// Then: the lock is still held
	holder, err := s.JobForCollection(ctx, "PL1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", holder)

	// When: the holder releases
	require.NoError(t, s.ReleaseCollection(ctx, "PL1", "job-1"))

	// Then: the collection is free again
	holder, err = s.JobForCollection(ctx, "PL1")
	require.NoError(t, err)
	assert.Empty(t, holder)

	_, err = s.AcquireCollection(ctx, "PL1", "job-3")
	assert.NoError(t, err)
}

func TestMemoryStore_JobRoundTrip(t *testing.T) {
	// Given: a saved running job
	s := NewMemoryStore(0)
	ctx := context.Background()

	job := &Job{
		ID:           "job-1",
		CollectionID: "PL1",
		State:        StateRunning,
		Total:        10,
		Progress:     4,
		Skipped:      2,
		UpdatedAt:    time.Now(),
	}
	require.NoError(t, s.SaveJob(ctx, job))

	// When: loading it back
	got, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)

	// Then: the record round-trips
	assert.Equal(t, StateRunning, got.State)
	assert.Equal(t, 10, got.Total)
	assert.Equal(t, 4, got.Progress)

	// And: mutating the returned copy does not touch the stored record
	got.Progress = 99
	again, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 4, again.Progress)
}

func TestMemoryStore_GetJob_Unknown(t *testing.T) {
	s := NewMemoryStore(0)
	_, err := s.GetJob(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_GetJob_Expired(t *testing.T) {
	// Given: a job last updated beyond the TTL
	s := NewMemoryStore(time.Hour)
	base := time.Now()
	s.now = func() time.Time { return base.Add(2 * time.Hour) }

	ctx := context.Background()
	require.NoError(t, s.SaveJob(ctx, &Job{ID: "job-1", UpdatedAt: base}))

	// When: loading after expiry
	_, err := s.GetJob(ctx, "job-1")

	// Then: the record is gone
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_DeleteJob_Idempotent(t *testing.T) {
	// Given: a saved job
	s := NewMemoryStore(0)
	ctx := context.Background()
	require.NoError(t, s.SaveJob(ctx, &Job{ID: "job-1"}))

	// When: deleting twice
	require.NoError(t, s.DeleteJob(ctx, "job-1"))
	require.NoError(t, s.DeleteJob(ctx, "job-1"))

	// Then: the record is gone
	_, err := s.GetJob(ctx, "job-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJob_Terminal(t *testing.T) {
	tests := []struct {
		state    string
		terminal bool
	}{
		{StateQueued, false},
		{StateRunning, false},
		{StateCompleted, true},
		{StateFailed, true},
		{StateCancelled, true},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			j := &Job{State: tt.state}
			assert.Equal(t, tt.terminal, j.Terminal())
		})
	}
}
