package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/lectureqa/backend/internal/errors"
	"github.com/lectureqa/backend/internal/logger"
	"github.com/lectureqa/backend/internal/media"
	"github.com/lectureqa/backend/internal/registry"
	"github.com/lectureqa/backend/internal/transcriber"
	"github.com/lectureqa/backend/internal/transcript"
	"github.com/lectureqa/backend/internal/ytdlp"
)

// Progress milestones per stage; derived from what a client watching the
// pipeline actually experiences (download dominates wall time up front,
// transcription at the back).
const (
	progressDownloadEnd   = 25
	progressExtractStart  = 30
	progressExtractEnd    = 50
	progressTranscribeEnd = 90
)

// Fetcher acquires remote media. Satisfied by *ytdlp.Service.
type Fetcher interface {
	Probe(ctx context.Context, url string) (*ytdlp.Metadata, error)
	Download(ctx context.Context, url string, outputID string, meta *ytdlp.Metadata, progress ytdlp.ProgressCallback) (*ytdlp.DownloadResult, error)
}

// AudioProcessor extracts and chunks audio. Satisfied by *media.Processor.
type AudioProcessor interface {
	ExtractAudio(ctx context.Context, videoPath, audioPath string) error
	Duration(ctx context.Context, path string) (float64, error)
	ChunkAudio(ctx context.Context, audioPath, workDir string, thresholdBytes int64) ([]media.Chunk, error)
}

// TranscriptionDriver turns chunks into merged segments. Satisfied by
// *transcriber.Driver.
type TranscriptionDriver interface {
	Transcribe(ctx context.Context, chunks []media.Chunk, progress transcriber.ProgressFunc) ([]transcript.Segment, error)
}

// ArtifactMirror copies completed artifacts into durable object storage.
// Satisfied by *storage.Mirror. Mirroring is best-effort: failures are
// logged, never surfaced as job errors.
type ArtifactMirror interface {
	MirrorMedia(ctx context.Context, jobID, mediaPath string) error
	MirrorTranscript(ctx context.Context, t *transcript.Transcript) error
}

// OrchestratorConfig holds the pipeline policy tunables.
type OrchestratorConfig struct {
	DataDir             string
	MaxDurationSeconds  int
	ChunkThresholdBytes int64
	DownloadTimeout     time.Duration
}

// Orchestrator drives one job through the processing state machine:
// queued -> downloading -> extracting -> transcribing -> completed|error.
// It is the sole writer of the job's status record for the whole run.
type Orchestrator struct {
	cfg     OrchestratorConfig
	reg     registry.Registry
	store   transcript.Store
	fetcher Fetcher
	audio   AudioProcessor
	driver  TranscriptionDriver
	mirror  ArtifactMirror
	log     *logger.Logger
}

// NewOrchestrator wires the pipeline stages together
func NewOrchestrator(cfg OrchestratorConfig, reg registry.Registry, store transcript.Store, fetcher Fetcher, audio AudioProcessor, driver TranscriptionDriver) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		reg:     reg,
		store:   store,
		fetcher: fetcher,
		audio:   audio,
		driver:  driver,
		log:     logger.WithComponent("pipeline"),
	}
}

// SetMirror enables artifact mirroring for completed jobs.
func (o *Orchestrator) SetMirror(mirror ArtifactMirror) {
	o.mirror = mirror
}

// Preflight probes a remote URL's metadata and enforces the duration
// ceiling before any bytes move. Submission handlers call it so the
// caller gets DURATION_EXCEEDED on the request instead of from a poll.
func (o *Orchestrator) Preflight(ctx context.Context, url string) (*ytdlp.Metadata, error) {
	meta, err := o.fetcher.Probe(ctx, url)
	if err != nil {
		return nil, classifyFetchError(err)
	}
	if meta.Duration > 0 && meta.Duration > float64(o.cfg.MaxDurationSeconds) {
		return nil, apperrors.DurationExceeded(o.cfg.MaxDurationSeconds, int(meta.Duration))
	}
	return meta, nil
}

// MediaDir is where acquired media files live, one per job id.
func (o *Orchestrator) MediaDir() string {
	return filepath.Join(o.cfg.DataDir, "media")
}

func (o *Orchestrator) audioDir() string {
	return filepath.Join(o.cfg.DataDir, "audio")
}

func (o *Orchestrator) chunkDir(jobID string) string {
	return filepath.Join(o.cfg.DataDir, "chunks", jobID)
}

// Run executes the whole pipeline for one job. Status is observable only
// through the registry; the caller that submitted the job has already
// moved on.
func (o *Orchestrator) Run(ctx context.Context, job *Job) {
	r := &jobRun{o: o, job: job}

	o.log.Info(ctx, "pipeline started", map[string]interface{}{
		"job_id": job.ID,
		"source": string(job.Source),
	})

	if err := r.acquire(ctx); err != nil {
		r.fail(ctx, err)
		return
	}

	chunks, err := r.extract(ctx)
	if err != nil {
		r.fail(ctx, err)
		return
	}

	if err := r.transcribe(ctx, chunks); err != nil {
		r.fail(ctx, err)
		return
	}

	r.update(ctx, registry.StageCompleted, 100)
	o.log.Info(ctx, "pipeline completed", map[string]interface{}{
		"job_id":           job.ID,
		"duration_seconds": job.DurationSeconds,
	})
}

// jobRun carries the per-run progress watermark; progress never moves
// backwards within one submission.
type jobRun struct {
	o    *Orchestrator
	job  *Job
	last int
}

func (r *jobRun) update(ctx context.Context, stage registry.Stage, progress int) {
	if progress < r.last {
		progress = r.last
	}
	r.last = progress

	record := registry.StatusRecord{
		JobID:     r.job.ID,
		Stage:     stage,
		Progress:  progress,
		Title:     r.job.Title,
		UpdatedAt: time.Now().UTC(),
	}
	if err := r.o.reg.Put(ctx, record); err != nil {
		r.o.log.Error(ctx, "failed to write status record", err, map[string]interface{}{
			"job_id": r.job.ID,
			"stage":  string(stage),
		})
	}
}

func (r *jobRun) fail(ctx context.Context, err error) {
	r.o.log.Error(ctx, "pipeline failed", err, map[string]interface{}{
		"job_id": r.job.ID,
	})

	detail := err.Error()
	if appErr, ok := err.(*apperrors.AppError); ok {
		detail = appErr.Message
	}

	record := registry.StatusRecord{
		JobID:       r.job.ID,
		Stage:       registry.StageError,
		Progress:    r.last,
		Title:       r.job.Title,
		ErrorCode:   apperrors.Code(err),
		ErrorDetail: detail,
		UpdatedAt:   time.Now().UTC(),
	}
	if putErr := r.o.reg.Put(ctx, record); putErr != nil {
		r.o.log.Error(ctx, "failed to write error record", putErr, map[string]interface{}{
			"job_id": r.job.ID,
		})
	}
}

// acquire resolves the job's media file and enforces the duration ceiling.
func (r *jobRun) acquire(ctx context.Context) error {
	r.update(ctx, registry.StageDownloading, 0)

	switch r.job.Source {
	case SourceRemote:
		return r.acquireRemote(ctx)
	case SourceUpload:
		return r.acquireUpload(ctx)
	default:
		return apperrors.BadRequest(fmt.Sprintf("unknown job source %q", r.job.Source))
	}
}

func (r *jobRun) acquireRemote(ctx context.Context) error {
	dlCtx := ctx
	if r.o.cfg.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		dlCtx, cancel = context.WithTimeout(ctx, r.o.cfg.DownloadTimeout)
		defer cancel()
	}

	// Duration pre-check from metadata alone, before any bytes move.
	// The submission path's preflight probe is reused when it ran, so a
	// preflighted job never probes twice.
	var meta *ytdlp.Metadata
	if r.job.Preflighted {
		meta = &ytdlp.Metadata{Title: r.job.Title, Duration: r.job.DurationSeconds}
	} else {
		probed, err := r.o.fetcher.Probe(dlCtx, r.job.URL)
		if err != nil {
			return classifyFetchError(err)
		}
		r.job.Title = probed.Title
		if probed.Duration > 0 && probed.Duration > float64(r.o.cfg.MaxDurationSeconds) {
			return apperrors.DurationExceeded(r.o.cfg.MaxDurationSeconds, int(probed.Duration))
		}
		meta = probed
	}

	if err := os.MkdirAll(r.o.MediaDir(), 0755); err != nil {
		return apperrors.StorageError("failed to create media directory").WithCause(err)
	}

	result, err := r.o.fetcher.Download(dlCtx, r.job.URL, r.job.ID, meta, func(percent float64, status string) {
		r.update(ctx, registry.StageDownloading, int(percent*progressDownloadEnd/100))
	})
	if err != nil {
		return classifyFetchError(err)
	}

	r.job.MediaPath = result.FilePath
	r.job.DurationSeconds = result.Metadata.Duration

	// Sources that hide duration from the probe get checked against the
	// actual file; the downloaded media is discarded on violation.
	if r.job.DurationSeconds <= 0 {
		dur, err := r.o.audio.Duration(ctx, r.job.MediaPath)
		if err != nil {
			os.Remove(r.job.MediaPath)
			return apperrors.DownloadError("downloaded file is not playable").WithCause(err)
		}
		r.job.DurationSeconds = dur
	}
	if r.job.DurationSeconds > float64(r.o.cfg.MaxDurationSeconds) {
		os.Remove(r.job.MediaPath)
		return apperrors.DurationExceeded(r.o.cfg.MaxDurationSeconds, int(r.job.DurationSeconds))
	}

	r.update(ctx, registry.StageDownloading, progressDownloadEnd)
	return nil
}

func (r *jobRun) acquireUpload(ctx context.Context) error {
	if r.job.MediaPath == "" {
		return apperrors.BadRequest("upload job has no media file")
	}

	dur, err := r.o.audio.Duration(ctx, r.job.MediaPath)
	if err != nil {
		os.Remove(r.job.MediaPath)
		return apperrors.ValidationError("uploaded file is not a playable video").WithCause(err)
	}

	if dur > float64(r.o.cfg.MaxDurationSeconds) {
		os.Remove(r.job.MediaPath)
		return apperrors.DurationExceeded(r.o.cfg.MaxDurationSeconds, int(dur))
	}

	r.job.DurationSeconds = dur
	if r.job.Title == "" {
		r.job.Title = r.job.UploadName
	}

	r.update(ctx, registry.StageDownloading, progressDownloadEnd)
	return nil
}

// extract pulls the audio track and computes the chunk plan.
func (r *jobRun) extract(ctx context.Context) ([]media.Chunk, error) {
	r.update(ctx, registry.StageExtracting, progressExtractStart)

	if err := os.MkdirAll(r.o.audioDir(), 0755); err != nil {
		return nil, apperrors.StorageError("failed to create audio directory").WithCause(err)
	}

	audioPath := filepath.Join(r.o.audioDir(), r.job.ID+".mp3")
	if err := r.o.audio.ExtractAudio(ctx, r.job.MediaPath, audioPath); err != nil {
		return nil, apperrors.ExtractionError("failed to extract audio").WithCause(err)
	}
	r.job.AudioPath = audioPath

	chunks, err := r.o.audio.ChunkAudio(ctx, audioPath, r.o.chunkDir(r.job.ID), r.o.cfg.ChunkThresholdBytes)
	if err != nil {
		return nil, apperrors.ExtractionError("failed to chunk audio").WithCause(err)
	}

	r.update(ctx, registry.StageExtracting, progressExtractEnd)
	return chunks, nil
}

// transcribe runs the driver and persists the merged transcript.
func (r *jobRun) transcribe(ctx context.Context, chunks []media.Chunk) error {
	r.update(ctx, registry.StageTranscribing, progressExtractEnd)

	segments, err := r.o.driver.Transcribe(ctx, chunks, func(percent int) {
		span := progressTranscribeEnd - progressExtractEnd
		r.update(ctx, registry.StageTranscribing, progressExtractEnd+percent*span/100)
	})
	if err != nil {
		return err
	}

	t := &transcript.Transcript{
		JobID:           r.job.ID,
		Title:           r.job.Title,
		DurationSeconds: r.job.DurationSeconds,
		Segments:        segments,
		CreatedAt:       time.Now().UTC(),
	}
	t.Normalize()

	if err := r.o.store.Save(ctx, t); err != nil {
		return apperrors.StorageError("failed to persist transcript").WithCause(err)
	}

	if r.o.mirror != nil {
		if err := r.o.mirror.MirrorTranscript(ctx, t); err != nil {
			r.o.log.Warn(ctx, "transcript mirror upload failed", map[string]interface{}{
				"job_id": r.job.ID, "error": err.Error(),
			})
		}
		if r.job.MediaPath != "" {
			if err := r.o.mirror.MirrorMedia(ctx, r.job.ID, r.job.MediaPath); err != nil {
				r.o.log.Warn(ctx, "media mirror upload failed", map[string]interface{}{
					"job_id": r.job.ID, "error": err.Error(),
				})
			}
		}
	}

	// Chunk files and the intermediate audio are dead weight once the
	// transcript is durable.
	os.RemoveAll(r.o.chunkDir(r.job.ID))
	if r.job.AudioPath != "" && r.job.AudioPath != r.job.MediaPath {
		os.Remove(r.job.AudioPath)
	}

	r.update(ctx, registry.StageTranscribing, progressTranscribeEnd)
	return nil
}

// classifyFetchError maps downloader sentinels onto the error taxonomy.
func classifyFetchError(err error) error {
	if _, ok := err.(*apperrors.AppError); ok {
		return err
	}

	switch {
	case errors.Is(err, ytdlp.ErrPlaylistNotSupported):
		return apperrors.PlaylistNotSupported().WithCause(err)
	case errors.Is(err, ytdlp.ErrInvalidURL), errors.Is(err, ytdlp.ErrURLNotSupported):
		return apperrors.InvalidURL("the URL cannot be downloaded").WithCause(err)
	case errors.Is(err, ytdlp.ErrVideoUnavailable), errors.Is(err, ytdlp.ErrVideoPrivate), errors.Is(err, ytdlp.ErrSignInRequired):
		return apperrors.DownloadError("the video cannot be accessed").WithCause(err)
	default:
		return apperrors.DownloadError("download failed").WithCause(err)
	}
}
