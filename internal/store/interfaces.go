package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the job id is unknown.
	ErrNotFound = errors.New("job not found")

	// ErrDuplicateID is returned by Create when the id already exists.
	ErrDuplicateID = errors.New("duplicate job id")
)

// JobStore owns job records. Implementations must make every mutating
// operation atomic per id.
type JobStore interface {
	// Create inserts a new record. Fails with ErrDuplicateID if the id exists.
	Create(ctx context.Context, job *Job) error

	// Get returns a copy of the record or ErrNotFound.
	Get(ctx context.Context, id string) (*Job, error)

	// GetAll returns all records, newest first.
	GetAll(ctx context.Context) ([]*Job, error)

	// Update merges u into the record. Unknown ids are a no-op.
	Update(ctx context.Context, id string, u JobUpdate) error

	// AddLog appends a timestamp-prefixed entry. Unknown ids are a no-op.
	AddLog(ctx context.Context, id, text string) error

	// Delete removes the record. Unknown ids are a no-op.
	Delete(ctx context.Context, id string) error

	// Count returns the number of jobs per status.
	Count(ctx context.Context) (map[JobStatus]int64, error)

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error
}
