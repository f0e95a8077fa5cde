package job

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned when a job cannot be found by ID.
var ErrJobNotFound = errors.New("job not found")

// Repository defines the interface for the reframe job registry.
type Repository interface {
	// Save records a job, replacing any existing job with the same ID.
	Save(ctx context.Context, job *Job) error

	// FindByID retrieves a job by its remote identifier.
	// Returns ErrJobNotFound if the job does not exist.
	FindByID(ctx context.Context, id string) (*Job, error)

	// List returns all recorded jobs, newest first.
	List(ctx context.Context) ([]*Job, error)

	// Delete forgets a job.
	// Returns ErrJobNotFound if the job does not exist.
	Delete(ctx context.Context, id string) error
}
