// Package storage provides per-batch scratch space, asset downloads and
// object storage for finished videos.
package storage

import "context"

// Storage hands out scratch workspaces and output locations for batches.
type Storage interface {
	// NewWorkspace acquires a private directory for one batch. The caller
	// must Close it; Close removes everything beneath it.
	NewWorkspace(ctx context.Context, batchID string) (*Workspace, error)

	// OutputPath returns the location of a batch's final video. It lives
	// outside every workspace so that it survives workspace cleanup.
	OutputPath(batchID string) (string, error)
}
