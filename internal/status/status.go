// Package status tracks indexing jobs: their lifecycle state, progress
// counters, and the per-collection lock that keeps concurrent jobs for the
// same collection from racing each other.
//
// Two backends exist. The Redis backend survives process restarts and is
// shared across processes; the in-memory backend serves tests and the
// one-shot CLI commands.
package status

import (
	"context"
	"errors"
	"time"
)

// Job lifecycle states.
const (
	StateQueued    = "queued"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateFailed    = "failed"
	StateCancelled = "cancelled"
)

// ErrNotFound is returned when no job record exists for an id.
var ErrNotFound = errors.New("job not found")

// ErrConflict is returned when a collection already has an active job.
var ErrConflict = errors.New("collection already has an active job")

// Job is the persisted record of one indexing job.
type Job struct {
	ID           string    `json:"job_id"`
	CollectionID string    `json:"collection_id"`
	State        string    `json:"state"`
	Title        string    `json:"title,omitempty"`

	// Total is the number of items the run set out to process after the
	// incremental skip decision. Progress counts skipped plus finished
	// units and never decreases.
	Total    int `json:"total"`
	Progress int `json:"progress"`

	Skipped        int `json:"skipped"`
	NewItems       int `json:"new_item_count"`
	AlreadyIndexed int `json:"already_indexed_count"`
	IndexedItems   int `json:"indexed_item_count"`

	// GroupRef is the opaque id of the job's fan-out group, recorded so
	// the record shows which child units belong to this run.
	GroupRef string `json:"group_ref,omitempty"`

	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	switch j.State {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Store persists job records and per-collection locks.
type Store interface {
	// AcquireCollection claims the per-collection lock for a new job.
	// Returns ErrConflict, with the holding job's id, when another job
	// already owns the collection.
	AcquireCollection(ctx context.Context, collectionID, jobID string) (holder string, err error)

	// ReleaseCollection drops the lock if jobID still holds it.
	ReleaseCollection(ctx context.Context, collectionID, jobID string) error

	// SaveJob writes a job record, overwriting any previous version.
	SaveJob(ctx context.Context, job *Job) error

	// GetJob loads a job record. ErrNotFound when absent or expired.
	GetJob(ctx context.Context, jobID string) (*Job, error)

	// DeleteJob removes a job record. Deleting an absent job is a no-op.
	DeleteJob(ctx context.Context, jobID string) error

	// JobForCollection returns the id of the job holding a collection's
	// lock, or "" when the collection is free.
	JobForCollection(ctx context.Context, collectionID string) (string, error)

	Close() error
}
