package pipeline

import (
	"crypto/md5"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// SourceType distinguishes how a job's media arrives.
type SourceType string

const (
	SourceUpload SourceType = "upload"
	SourceRemote SourceType = "remote"
)

// Job is one end-to-end processing run for a single video. Created on
// submission and mutated exclusively by the orchestrator run that owns it.
type Job struct {
	ID     string
	Source SourceType

	// URL is the canonical source URL for remote jobs.
	URL string
	// UploadName is the client-supplied filename for upload jobs.
	UploadName string

	// MediaPath is set once acquisition succeeds.
	MediaPath string
	// AudioPath is set once extraction succeeds.
	AudioPath string

	Title           string
	DurationSeconds float64

	// Preflighted marks that the submission path already probed metadata
	// and enforced the duration ceiling.
	Preflighted bool

	SubmittedAt time.Time
}

// RemoteJobID derives the deterministic job id for a canonical URL.
// Resubmitting the same URL maps to the same job, which is what makes
// cache hits recognizable.
func RemoteJobID(canonicalURL string) string {
	sum := md5.Sum([]byte(canonicalURL))
	return hex.EncodeToString(sum[:])
}

// UploadJobID generates a fresh id for an uploaded file.
func UploadJobID() string {
	return uuid.NewString()
}
