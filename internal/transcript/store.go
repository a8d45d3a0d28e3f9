package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound indicates no transcript exists for the given job
var ErrNotFound = errors.New("transcript not found")

// Store persists completed transcripts keyed by job ID
type Store interface {
	Save(ctx context.Context, t *Transcript) error
	Load(ctx context.Context, jobID string) (*Transcript, error)
	Delete(ctx context.Context, jobID string) error
}

// FileStore keeps one JSON file per transcript under a directory.
// Writes go through a temp file and rename so readers never observe a
// partially written transcript.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed transcript store rooted at dir
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("transcript store: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(jobID string) string {
	return filepath.Join(s.dir, jobID+".json")
}

// Save writes the transcript atomically
func (s *FileStore) Save(ctx context.Context, t *Transcript) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("transcript store: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, t.JobID+".tmp-*")
	if err != nil {
		return fmt.Errorf("transcript store: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("transcript store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("transcript store: close: %w", err)
	}

	if err := os.Rename(tmpName, s.path(t.JobID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("transcript store: rename: %w", err)
	}

	return nil
}

// Load reads the transcript for a job, or ErrNotFound
func (s *FileStore) Load(ctx context.Context, jobID string) (*Transcript, error) {
	data, err := os.ReadFile(s.path(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("transcript store: %w", err)
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("transcript store: unmarshal: %w", err)
	}

	return &t, nil
}

// Delete removes a stored transcript; missing files are not an error
func (s *FileStore) Delete(ctx context.Context, jobID string) error {
	if err := os.Remove(s.path(jobID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("transcript store: %w", err)
	}
	return nil
}
