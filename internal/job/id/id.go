// Package id provides unique identifier generation for jobs.
package id

import "github.com/google/uuid"

// Generate creates a new unique job ID.
// Format: job-<uuid>
// Example: job-0b8f1c9e-6d0e-4c59-9d7b-2f1a4e8c7a10
func Generate() string {
	return "job-" + uuid.NewString()
}
