package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	apperrors "github.com/lectureqa/backend/internal/errors"
	"github.com/lectureqa/backend/internal/logger"
	"github.com/lectureqa/backend/internal/pipeline"
	"github.com/lectureqa/backend/internal/registry"
	"github.com/lectureqa/backend/internal/transcript"
)

// maxUploadBytes caps direct uploads. Lectures are duration-limited, so
// anything past this is rejected before it hits the data directory.
const maxUploadBytes = 2 << 30

// PipelineService is the slice of the pipeline the HTTP layer needs.
type PipelineService interface {
	SubmitURL(ctx context.Context, rawURL string) (*pipeline.Submission, error)
	SubmitUpload(ctx context.Context, filename string, src io.Reader) (*pipeline.Submission, error)
	Status(ctx context.Context, jobID string) (registry.StatusRecord, error)
	Transcript(ctx context.Context, jobID string) (*transcript.Transcript, error)
}

type VideoHandlers struct {
	service PipelineService
	log     *logger.Logger
}

func NewVideoHandlers(service PipelineService) *VideoHandlers {
	return &VideoHandlers{
		service: service,
		log:     logger.WithComponent("api"),
	}
}

// SubmitURLRequest represents the request body for a remote video submission
type SubmitURLRequest struct {
	URL string `json:"url"`
}

// SubmissionResponse represents the response for an accepted submission
type SubmissionResponse struct {
	JobID  string `json:"job_id"`
	Cached bool   `json:"cached"`
}

// JobResponse represents a job status response
type JobResponse struct {
	JobID       string `json:"job_id"`
	Stage       string `json:"stage"`
	Progress    int    `json:"progress"`
	Title       string `json:"title,omitempty"`
	ErrorCode   string `json:"error_code,omitempty"`
	ErrorDetail string `json:"error_detail,omitempty"`
	UpdatedAt   string `json:"updated_at"`
}

// SubmitURL handles POST /api/v1/videos/url
func (h *VideoHandlers) SubmitURL(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	var req SubmitURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid request body"))
		return
	}
	if req.URL == "" {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("url is required"))
		return
	}

	sub, err := h.service.SubmitURL(r.Context(), req.URL)
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}

	status := http.StatusAccepted
	if sub.Cached {
		status = http.StatusOK
	}
	apperrors.WriteJSON(w, requestID, status, SubmissionResponse{
		JobID:  sub.JobID,
		Cached: sub.Cached,
	})
}

// Upload handles POST /api/v1/videos (multipart upload)
func (h *VideoHandlers) Upload(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid multipart body"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("file field is required"))
		return
	}
	defer file.Close()

	sub, err := h.service.SubmitUpload(r.Context(), header.Filename, file)
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}

	apperrors.WriteJSON(w, requestID, http.StatusAccepted, SubmissionResponse{
		JobID:  sub.JobID,
		Cached: sub.Cached,
	})
}

// GetJob handles GET /api/v1/jobs/{job_id}
func (h *VideoHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	jobID := r.PathValue("job_id")
	if jobID == "" {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("job_id is required"))
		return
	}

	record, err := h.service.Status(r.Context(), jobID)
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}

	apperrors.WriteJSON(w, requestID, http.StatusOK, JobResponse{
		JobID:       record.JobID,
		Stage:       string(record.Stage),
		Progress:    record.Progress,
		Title:       record.Title,
		ErrorCode:   record.ErrorCode,
		ErrorDetail: record.ErrorDetail,
		UpdatedAt:   record.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

// GetTranscript handles GET /api/v1/videos/{job_id}/transcript
func (h *VideoHandlers) GetTranscript(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	jobID := r.PathValue("job_id")
	if jobID == "" {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("job_id is required"))
		return
	}

	t, err := h.service.Transcript(r.Context(), jobID)
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}

	apperrors.WriteJSON(w, requestID, http.StatusOK, t)
}
