// Package job provides the Job aggregate for movie assembly requests.
// It includes the Job entity with its state machine, the repository port
// and the service that runs the pipeline for a job.
package job

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/maauso/scenereel/internal/job/id"
	"github.com/maauso/scenereel/internal/scene"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusPending indicates the job was accepted and waits for processing.
	StatusPending Status = "PENDING"
	// StatusGenerating indicates scene audio and clips are being generated.
	StatusGenerating Status = "GENERATING"
	// StatusAssembling indicates scene clips are being concatenated.
	StatusAssembling Status = "ASSEMBLING"
	// StatusUploading indicates the movie is being published.
	StatusUploading Status = "UPLOADING"
	// StatusCompleted indicates the movie was published.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job ended with an error.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusGenerating, StatusFailed},
	StatusGenerating: {StatusAssembling, StatusFailed},
	StatusAssembling: {StatusUploading, StatusFailed},
	StatusUploading:  {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

func canTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// Progress bands, in percent. Generation fills the first band scene by
// scene and the upload fills the last one byte by byte.
const (
	generatingBand = 70
	assemblingMark = 75
	uploadingMark  = 80
)

// Job represents one movie assembly request.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job. It doubles as the batch ID.
	ID string
	// RequestID is the caller's idempotency key, if any.
	RequestID string
	// Status is the current job state.
	Status Status
	// Scenes is the input, in story order.
	Scenes []scene.Scene
	// ScenesDone counts scenes that finished, successfully or not.
	ScenesDone int
	// Dropped lists the indices of scenes left out of the movie.
	Dropped []int
	// Progress is the percentage of completion (0-100).
	Progress int
	// UploadSent and UploadTotal are the upload byte counts.
	UploadSent  int64
	UploadTotal int64
	// PlaybackURL is where the published movie can be watched.
	PlaybackURL string
	// OutputPath is the local movie file, set while it is kept on disk.
	OutputPath string
	// Duration is the movie length in seconds.
	Duration float64
	// Error contains any error message if the job failed.
	Error string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// New creates a new PENDING job for scenes with a generated ID.
func New(requestID string, scenes []scene.Scene) *Job {
	return NewWithID(id.Generate(), requestID, scenes)
}

// NewWithID creates a new PENDING job with the specified ID.
func NewWithID(jobID, requestID string, scenes []scene.Scene) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		RequestID: requestID,
		Status:    StatusPending,
		Scenes:    slices.Clone(scenes),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transition(status)
}

func (j *Job) transition(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusGenerating:
		j.StartedAt = j.UpdatedAt
	case StatusAssembling:
		j.Progress = max(j.Progress, assemblingMark)
	case StatusUploading:
		j.Progress = max(j.Progress, uploadingMark)
	case StatusCompleted:
		j.Progress = 100
		j.CompletedAt = j.UpdatedAt
	case StatusFailed:
		j.CompletedAt = j.UpdatedAt
	}
	return nil
}

// Fail transitions the job to FAILED with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transition(StatusFailed); err != nil {
		return err
	}
	j.Error = errMsg
	return nil
}

// Complete records the published movie and transitions to COMPLETED.
func (j *Job) Complete(playbackURL, outputPath string, duration float64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transition(StatusCompleted); err != nil {
		return err
	}
	j.PlaybackURL = playbackURL
	j.OutputPath = outputPath
	j.Duration = duration
	return nil
}

// SceneFinished records that the scene at index is done. Failed scenes are
// added to Dropped.
func (j *Job) SceneFinished(index int, failed bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ScenesDone++
	if failed {
		j.Dropped = append(j.Dropped, index)
		slices.Sort(j.Dropped)
	}
	if n := len(j.Scenes); n > 0 {
		j.Progress = max(j.Progress, min(j.ScenesDone, n)*generatingBand/n)
	}
	j.UpdatedAt = time.Now()
}

// SetUploadProgress records upload byte counts. It reports whether the
// visible percentage changed.
func (j *Job) SetUploadProgress(sent, total int64) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.UploadSent = sent
	j.UploadTotal = total

	progress := uploadingMark
	if total > 0 {
		progress += int(min(sent, total) * (100 - uploadingMark - 1) / total)
	}
	if progress <= j.Progress {
		return false
	}
	j.Progress = progress
	j.UpdatedAt = time.Now()
	return true
}

// SetOutputPath records where the movie file was kept.
func (j *Job) SetOutputPath(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputPath = path
	j.UpdatedAt = time.Now()
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:          j.ID,
		RequestID:   j.RequestID,
		Status:      j.Status,
		Scenes:      slices.Clone(j.Scenes),
		ScenesDone:  j.ScenesDone,
		Dropped:     slices.Clone(j.Dropped),
		Progress:    j.Progress,
		UploadSent:  j.UploadSent,
		UploadTotal: j.UploadTotal,
		PlaybackURL: j.PlaybackURL,
		OutputPath:  j.OutputPath,
		Duration:    j.Duration,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
