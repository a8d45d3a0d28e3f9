package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	apperrors "github.com/lectureqa/backend/internal/errors"
	"github.com/lectureqa/backend/internal/logger"
	"github.com/lectureqa/backend/internal/registry"
	"github.com/lectureqa/backend/internal/transcript"
	"github.com/lectureqa/backend/internal/validators"
)

// Submission is the immediate answer to a video submission; the pipeline
// continues in the background.
type Submission struct {
	JobID  string `json:"job_id"`
	Cached bool   `json:"cached"`
}

// Service is the public face of the pipeline: submissions in, status and
// transcripts out.
type Service struct {
	reg        registry.Registry
	store      transcript.Store
	orch       *Orchestrator
	pool       *WorkerPool
	validators *validators.Registry
	log        *logger.Logger

	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewService creates the pipeline service facade
func NewService(reg registry.Registry, store transcript.Store, orch *Orchestrator, pool *WorkerPool, vals *validators.Registry) *Service {
	return &Service{
		reg:        reg,
		store:      store,
		orch:       orch,
		pool:       pool,
		validators: vals,
		log:        logger.WithComponent("pipeline"),
		jobs:       make(map[string]*Job),
	}
}

func (s *Service) uploadDir() string {
	return filepath.Join(s.orch.cfg.DataDir, "uploads")
}

// SubmitURL validates a remote URL and starts (or short-circuits) its
// pipeline run. Repeated submissions of the same video are cache hits
// once the first run completed.
func (s *Service) SubmitURL(ctx context.Context, rawURL string) (*Submission, error) {
	result := s.validators.Validate(rawURL)
	if !result.Valid {
		if result.ErrorCode == "PLAYLIST_NOT_SUPPORTED" {
			return nil, apperrors.PlaylistNotSupported()
		}
		return nil, apperrors.InvalidURL(result.Error)
	}

	jobID := RemoteJobID(result.Canonical)

	if s.isCompleted(ctx, jobID) {
		s.log.Info(ctx, "cache hit for resubmitted URL", map[string]interface{}{
			"job_id": jobID,
		})
		return &Submission{JobID: jobID, Cached: true}, nil
	}

	meta, err := s.orch.Preflight(ctx, result.Canonical)
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:              jobID,
		Source:          SourceRemote,
		URL:             result.Canonical,
		Title:           meta.Title,
		DurationSeconds: meta.Duration,
		Preflighted:     true,
		SubmittedAt:     time.Now().UTC(),
	}

	if err := s.start(ctx, job); err != nil {
		return nil, err
	}

	return &Submission{JobID: jobID, Cached: false}, nil
}

// SubmitUpload stores an uploaded video and starts its pipeline run.
func (s *Service) SubmitUpload(ctx context.Context, filename string, src io.Reader) (*Submission, error) {
	if filename == "" {
		return nil, apperrors.ValidationError("missing filename")
	}

	jobID := UploadJobID()

	if err := os.MkdirAll(s.uploadDir(), 0755); err != nil {
		return nil, apperrors.StorageError("failed to create upload directory").WithCause(err)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".mp4"
	}
	mediaPath := filepath.Join(s.uploadDir(), jobID+ext)

	dst, err := os.Create(mediaPath)
	if err != nil {
		return nil, apperrors.StorageError("failed to store upload").WithCause(err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(mediaPath)
		return nil, apperrors.StorageError("failed to store upload").WithCause(err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(mediaPath)
		return nil, apperrors.StorageError("failed to store upload").WithCause(err)
	}

	job := &Job{
		ID:          jobID,
		Source:      SourceUpload,
		UploadName:  filepath.Base(filename),
		MediaPath:   mediaPath,
		SubmittedAt: time.Now().UTC(),
	}

	if err := s.start(ctx, job); err != nil {
		os.Remove(mediaPath)
		return nil, err
	}

	return &Submission{JobID: jobID, Cached: false}, nil
}

// start registers the queued record and hands the job to the pool. The
// record goes in first so a poll immediately after submission never sees
// not-found for a job that exists.
func (s *Service) start(ctx context.Context, job *Job) error {
	record := registry.StatusRecord{
		JobID:     job.ID,
		Stage:     registry.StageQueued,
		Progress:  0,
		Title:     job.Title,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.reg.Put(ctx, record); err != nil {
		return apperrors.StorageError("failed to register job").WithCause(err)
	}

	if err := s.pool.Enqueue(job); err != nil {
		s.reg.Delete(ctx, job.ID)
		if errors.Is(err, ErrQueueFull) {
			return apperrors.InternalError("the system is at capacity, try again shortly").WithCause(err)
		}
		return apperrors.InternalError("failed to schedule job").WithCause(err)
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	return nil
}

// isCompleted checks the registry, falling back to the transcript store:
// the registry is not durable, but a persisted transcript proves a
// completed run from a previous process lifetime.
func (s *Service) isCompleted(ctx context.Context, jobID string) bool {
	record, err := s.reg.Get(ctx, jobID)
	if err == nil {
		return record.Stage == registry.StageCompleted
	}
	if !errors.Is(err, registry.ErrNotFound) {
		return false
	}

	t, err := s.store.Load(ctx, jobID)
	if err != nil {
		return false
	}

	// Re-derive the completed record so subsequent polls see it.
	s.reg.Put(ctx, registry.StatusRecord{
		JobID:     jobID,
		Stage:     registry.StageCompleted,
		Progress:  100,
		Title:     t.Title,
		UpdatedAt: time.Now().UTC(),
	})
	return true
}

// Status returns the current status record for a job. The registry is not
// durable; a job whose record was lost across a restart but whose transcript
// artifact survived is reported as completed.
func (s *Service) Status(ctx context.Context, jobID string) (registry.StatusRecord, error) {
	record, err := s.reg.Get(ctx, jobID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, registry.ErrNotFound) {
		return registry.StatusRecord{}, apperrors.StorageError("failed to read job status").WithCause(err)
	}

	t, loadErr := s.store.Load(ctx, jobID)
	if loadErr != nil {
		return registry.StatusRecord{}, apperrors.JobNotFound()
	}
	record = registry.StatusRecord{
		JobID:     jobID,
		Stage:     registry.StageCompleted,
		Progress:  100,
		Title:     t.Title,
		UpdatedAt: time.Now().UTC(),
	}
	s.reg.Put(ctx, record)
	return record, nil
}

// Transcript returns the persisted transcript for a completed job.
// Jobs still in flight get TRANSCRIPT_NOT_READY so clients can keep
// polling instead of treating it as a dead end.
func (s *Service) Transcript(ctx context.Context, jobID string) (*transcript.Transcript, error) {
	t, err := s.store.Load(ctx, jobID)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, transcript.ErrNotFound) {
		return nil, apperrors.StorageError("failed to read transcript").WithCause(err)
	}

	record, regErr := s.reg.Get(ctx, jobID)
	if regErr == nil && !record.Stage.Terminal() {
		return nil, apperrors.TranscriptNotReady()
	}
	return nil, apperrors.TranscriptNotFound()
}

// MediaPath resolves the playable media file for a job, either from the
// live job table or from the media directory left by a previous run.
func (s *Service) MediaPath(jobID string) (string, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()

	if ok && job.MediaPath != "" {
		if _, err := os.Stat(job.MediaPath); err == nil {
			return job.MediaPath, nil
		}
	}

	for _, dir := range []string{s.orch.MediaDir(), s.uploadDir()} {
		matches, err := filepath.Glob(filepath.Join(dir, jobID+".*"))
		if err == nil && len(matches) > 0 {
			return matches[0], nil
		}
	}

	return "", apperrors.MediaNotFound()
}

// ValidateURL runs URL validation without submitting anything; used by
// clients that want to pre-check input.
func (s *Service) ValidateURL(rawURL string) validators.ValidationResult {
	return s.validators.Validate(rawURL)
}

// Shutdown drains the worker pool.
func (s *Service) Shutdown(ctx context.Context) error {
	if err := s.pool.Stop(ctx); err != nil {
		return fmt.Errorf("pipeline shutdown: %w", err)
	}
	return nil
}
