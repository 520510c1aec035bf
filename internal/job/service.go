package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/maauso/scenereel/internal/idempotency"
	"github.com/maauso/scenereel/internal/pipeline"
	"github.com/maauso/scenereel/internal/scene"
	"github.com/maauso/scenereel/internal/upload"
)

// ErrDuplicateRequest is returned when a request ID is already being or has
// been processed.
var ErrDuplicateRequest = errors.New("duplicate request")

// Assembler runs the pipeline for one batch of scenes.
type Assembler interface {
	Assemble(ctx context.Context, batchID string, scenes []scene.Scene, rep pipeline.Reporter) (pipeline.Result, error)
}

// MovieService turns submitted scenes into published movies, one job per
// request.
type MovieService struct {
	repo      Repository
	assembler Assembler
	requests  idempotency.Store
	notifier  Notifier
	timeout   time.Duration
	logger    *slog.Logger
}

// ServiceOption configures a MovieService.
type ServiceOption func(*MovieService)

// WithJobTimeout bounds a whole Process run. Zero means no bound.
func WithJobTimeout(d time.Duration) ServiceOption {
	return func(s *MovieService) {
		s.timeout = d
	}
}

// WithNotifier sets where completions are delivered. The default logs them.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *MovieService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// NewMovieService creates a MovieService. requests deduplicates submissions
// by request ID.
func NewMovieService(repo Repository, assembler Assembler, requests idempotency.Store, logger *slog.Logger, opts ...ServiceOption) *MovieService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MovieService{
		repo:      repo,
		assembler: assembler,
		requests:  requests,
		notifier:  NewLogNotifier(logger),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates scenes and creates a PENDING job for them. A non-empty
// requestID that was seen before yields ErrDuplicateRequest.
func (s *MovieService) Submit(ctx context.Context, requestID string, scenes []scene.Scene) (*Job, error) {
	if err := scene.Validate(scenes); err != nil {
		return nil, err
	}

	if requestID != "" {
		acquired, err := s.requests.Acquire(ctx, requestID)
		if err != nil {
			return nil, fmt.Errorf("check request %s: %w", requestID, err)
		}
		if !acquired {
			s.logger.Info("duplicate request ignored", slog.String("request_id", requestID))
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRequest, requestID)
		}
	}

	job := New(requestID, scenes)
	if err := s.repo.Save(ctx, job); err != nil {
		s.release(ctx, requestID)
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("job created",
		slog.String("job_id", job.ID),
		slog.String("request_id", requestID),
		slog.Int("scenes", len(scenes)),
	)
	return job, nil
}

// Process runs the pipeline for a PENDING job and records the outcome. The
// completion callback fires once the job is terminal. The returned error is
// the pipeline's, if any.
func (s *MovieService) Process(ctx context.Context, jobID string) error {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if status := job.GetStatus(); status != StatusPending {
		return fmt.Errorf("process job %s in status %s: %w", jobID, status, ErrInvalidTransition)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	logger := s.logger.With(slog.String("job_id", job.ID))
	rep := &jobReporter{ctx: ctx, job: job, repo: s.repo, logger: logger}
	rep.Stage(pipeline.StageGenerating)

	result, runErr := s.assembler.Assemble(ctx, job.ID, job.Scenes, rep)

	// Progress writes are done; the outcome is saved even if ctx expired.
	saveCtx := context.WithoutCancel(ctx)
	rep.mu.Lock()
	if runErr != nil {
		if result.OutputPath != "" {
			job.SetOutputPath(result.OutputPath)
		}
		_ = job.Fail(runErr.Error())
		logger.Error("job failed", slog.String("error", runErr.Error()))
	} else if err := s.complete(job, result); err != nil {
		runErr = err
	}
	saveErr := s.repo.Save(saveCtx, job)
	rep.mu.Unlock()
	if saveErr != nil {
		logger.Error("failed to save job", slog.String("error", saveErr.Error()))
	}

	s.finishRequest(saveCtx, job, runErr)
	return runErr
}

// complete walks any stages the pipeline did not report and marks the job
// COMPLETED.
func (s *MovieService) complete(job *Job, result pipeline.Result) error {
	if job.GetStatus() == StatusGenerating {
		_ = job.TransitionTo(StatusAssembling)
	}
	if job.GetStatus() == StatusAssembling {
		_ = job.TransitionTo(StatusUploading)
	}
	for _, i := range result.Dropped {
		if !slices.Contains(job.Clone().Dropped, i) {
			job.SceneFinished(i, true)
		}
	}
	if err := job.Complete(result.PlaybackURL, result.OutputPath, result.Duration); err != nil {
		return fmt.Errorf("complete job %s: %w", job.ID, err)
	}
	s.logger.Info("job completed",
		slog.String("job_id", job.ID),
		slog.String("playback_url", result.PlaybackURL),
		slog.Any("dropped", result.Dropped),
	)
	return nil
}

func (s *MovieService) finishRequest(ctx context.Context, job *Job, runErr error) {
	snap := job.Clone()
	c := Completion{
		RequestID:   snap.RequestID,
		JobID:       snap.ID,
		Status:      snap.Status,
		PlaybackURL: snap.PlaybackURL,
		Dropped:     snap.Dropped,
		Error:       snap.Error,
	}
	if err := s.notifier.NotifyComplete(ctx, c); err != nil {
		s.logger.Error("completion callback failed",
			slog.String("job_id", snap.ID),
			slog.String("error", err.Error()),
		)
	}

	if snap.RequestID == "" {
		return
	}
	if runErr != nil {
		s.release(ctx, snap.RequestID)
		return
	}
	if err := s.requests.Done(ctx, snap.RequestID); err != nil {
		s.logger.Error("failed to mark request done",
			slog.String("request_id", snap.RequestID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MovieService) release(ctx context.Context, requestID string) {
	if requestID == "" {
		return
	}
	if err := s.requests.Release(ctx, requestID); err != nil {
		s.logger.Error("failed to release request",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
	}
}

// GetJob retrieves a job by ID.
func (s *MovieService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns all jobs, newest first.
func (s *MovieService) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// jobReporter mirrors pipeline progress into the repository.
type jobReporter struct {
	mu     sync.Mutex
	ctx    context.Context
	job    *Job
	repo   Repository
	logger *slog.Logger
}

func (r *jobReporter) Stage(stage pipeline.Stage) {
	var status Status
	switch stage {
	case pipeline.StageGenerating:
		status = StatusGenerating
	case pipeline.StageAssembling:
		status = StatusAssembling
	case pipeline.StageUploading:
		status = StatusUploading
	default:
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.job.GetStatus() == status {
		return
	}
	if err := r.job.TransitionTo(status); err != nil {
		r.logger.Warn("unexpected stage",
			slog.String("from", string(r.job.GetStatus())),
			slog.String("to", string(status)),
		)
		return
	}
	r.save()
}

func (r *jobReporter) SceneDone(index int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.job.SceneFinished(index, err != nil)
	r.save()
}

func (r *jobReporter) UploadProgress(p upload.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.job.SetUploadProgress(p.Sent, p.Total) {
		r.save()
	}
}

// save must be called with mu held.
func (r *jobReporter) save() {
	if err := r.repo.Save(r.ctx, r.job); err != nil {
		r.logger.Warn("failed to save job progress", slog.String("error", err.Error()))
	}
}

var _ pipeline.Reporter = (*jobReporter)(nil)
