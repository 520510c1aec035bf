package job

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned when a job cannot be found by ID.
var ErrJobNotFound = errors.New("job not found")

// Repository defines the interface for job persistence.
type Repository interface {
	// Save persists a job, replacing any stored version.
	Save(ctx context.Context, job *Job) error

	// FindByID retrieves a job by its unique identifier.
	// Returns ErrJobNotFound if the job does not exist.
	FindByID(ctx context.Context, id string) (*Job, error)

	// List returns all jobs, newest first.
	List(ctx context.Context) ([]*Job, error)
}
