package registry

import (
	"context"
	"errors"
	"time"
)

// Stage is a job's position in the processing pipeline.
type Stage string

const (
	StageQueued       Stage = "queued"
	StageDownloading  Stage = "downloading"
	StageExtracting   Stage = "extracting"
	StageTranscribing Stage = "transcribing"
	StageCompleted    Stage = "completed"
	StageError        Stage = "error"
)

// Terminal reports whether no further transitions can happen.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageError
}

// StatusRecord is the pollable snapshot of one job. The orchestrator is
// the sole writer per job id; everything else only reads.
type StatusRecord struct {
	JobID       string    `json:"job_id"`
	Stage       Stage     `json:"stage"`
	Progress    int       `json:"progress"`
	Title       string    `json:"title,omitempty"`
	ErrorCode   string    `json:"error_code,omitempty"`
	ErrorDetail string    `json:"error_detail,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ErrNotFound indicates no record exists for the given job id. Callers
// rely on this being distinguishable from a zero record: it covers the
// window between job creation and the first registry write.
var ErrNotFound = errors.New("job not found")

// Registry is the single channel of observation for pipeline progress.
// Implementations must be safe for one writer per job id and any number
// of concurrent readers.
type Registry interface {
	Put(ctx context.Context, record StatusRecord) error
	Get(ctx context.Context, jobID string) (StatusRecord, error)
	Delete(ctx context.Context, jobID string) error
}
