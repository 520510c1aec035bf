package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/scenereel/internal/job"
	"github.com/maauso/scenereel/internal/scene"
	"github.com/maauso/scenereel/internal/storyboard"
)

// Storyboard turns a prompt into scenes.
type Storyboard interface {
	Plan(ctx context.Context, prompt string) ([]scene.Scene, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.MovieService
	storyboard         Storyboard
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
	eventInterval      time.Duration
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateMovie only creates the job and returns immediately
// without starting the pipeline.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithEventInterval sets how often the events stream checks a job for
// changes.
func WithEventInterval(d time.Duration) HandlerOption {
	return func(h *Handlers) {
		if d > 0 {
			h.eventInterval = d
		}
	}
}

// WithStoryboard sets the planner used for prompt-only requests.
func WithStoryboard(sb Storyboard) HandlerOption {
	return func(h *Handlers) {
		if sb != nil {
			h.storyboard = sb
		}
	}
}

// NewHandlers creates a new Handlers instance. Without WithStoryboard a
// prompt becomes a single scene.
func NewHandlers(service *job.MovieService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		storyboard:         storyboard.NewPlanner(nil, logger),
		validator:          validator.New(),
		logger:             logger,
		enableAsyncProcess: true,
		eventInterval:      500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// IdempotencyKeyHeader may carry the request ID when the body has none.
const IdempotencyKeyHeader = "Idempotency-Key"

// CreateMovie handles POST /movies requests.
func (h *Handlers) CreateMovie(w http.ResponseWriter, r *http.Request) {
	var req CreateMovieRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	hasPrompt := strings.TrimSpace(req.Prompt) != ""
	switch {
	case hasPrompt && len(req.Scenes) > 0:
		writeError(w, http.StatusBadRequest, "scenes and prompt are mutually exclusive", "VALIDATION_ERROR")
		return
	case !hasPrompt && len(req.Scenes) == 0:
		writeError(w, http.StatusBadRequest, "scenes or prompt is required", "VALIDATION_ERROR")
		return
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = r.Header.Get(IdempotencyKeyHeader)
	}
	if len(requestID) > 128 {
		writeError(w, http.StatusBadRequest, "request ID exceeds 128 characters", "VALIDATION_ERROR")
		return
	}

	scenes := req.scenes()
	if hasPrompt {
		var err error
		scenes, err = h.storyboard.Plan(r.Context(), req.Prompt)
		if err != nil {
			h.logger.Error("failed to plan storyboard",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to plan storyboard", "STORYBOARD_FAILED")
			return
		}
	}

	created, err := h.service.Submit(r.Context(), requestID, scenes)
	if err != nil {
		if errors.Is(err, job.ErrDuplicateRequest) {
			writeError(w, http.StatusConflict, "request already submitted", "DUPLICATE_REQUEST")
			return
		}
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	// The pipeline outlives the request.
	if h.enableAsyncProcess {
		go func(ctx context.Context, jobID string) {
			if err := h.service.Process(ctx, jobID); err != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), created.ID)
	}

	writeJSON(w, http.StatusAccepted, CreateMovieResponse{
		ID:     created.ID,
		Status: string(created.Status),
	})
}

// GetMovie handles GET /movies/{id} requests.
func (h *Handlers) GetMovie(w http.ResponseWriter, r *http.Request) {
	found, ok := h.findJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newMovieResponse(found))
}

// ListMovies handles GET /movies requests.
func (h *Handlers) ListMovies(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_LIST_FAILED")
		return
	}

	resp := ListMoviesResponse{Movies: make([]MovieResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Movies = append(resp.Movies, newMovieResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// findJob loads the job named by the {id} path value and writes the error
// response when it cannot.
func (h *Handlers) findJob(w http.ResponseWriter, r *http.Request) (*job.Job, bool) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return nil, false
	}

	found, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return nil, false
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return nil, false
	}
	return found, true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
