package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lectureqa/backend/internal/transcript"
)

const transcriptTTL = 24 * time.Hour

// TranscriptStore is a read-through cache in front of a transcript store.
// Useful when the backing store is Postgres and the same lecture is queried
// repeatedly by students asking questions.
type TranscriptStore struct {
	inner transcript.Store
	cache *Cache
}

func NewTranscriptStore(inner transcript.Store, cache *Cache) *TranscriptStore {
	return &TranscriptStore{inner: inner, cache: cache}
}

func transcriptKey(jobID string) string {
	return "transcript:" + jobID
}

func (s *TranscriptStore) Save(ctx context.Context, t *transcript.Transcript) error {
	if err := s.inner.Save(ctx, t); err != nil {
		return err
	}
	if data, err := json.Marshal(t); err == nil {
		s.cache.Set(ctx, transcriptKey(t.JobID), string(data), transcriptTTL)
	}
	return nil
}

func (s *TranscriptStore) Load(ctx context.Context, jobID string) (*transcript.Transcript, error) {
	if raw, ok := s.cache.Get(ctx, transcriptKey(jobID)); ok {
		var t transcript.Transcript
		if err := json.Unmarshal([]byte(raw), &t); err == nil {
			return &t, nil
		}
		// Corrupt cache entry; fall through to the backing store.
		s.cache.Delete(ctx, transcriptKey(jobID))
	}

	t, err := s.inner.Load(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(t); err == nil {
		s.cache.Set(ctx, transcriptKey(jobID), string(data), transcriptTTL)
	}
	return t, nil
}

func (s *TranscriptStore) Delete(ctx context.Context, jobID string) error {
	s.cache.Delete(ctx, transcriptKey(jobID))
	return s.inner.Delete(ctx, jobID)
}
