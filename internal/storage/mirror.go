package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/lectureqa/backend/internal/transcript"
)

// Mirror copies completed pipeline artifacts into object storage so they
// survive data directory eviction.
type Mirror struct {
	client *Client
}

func NewMirror(client *Client) *Mirror {
	return &Mirror{client: client}
}

// MirrorMedia uploads a job's processed media file.
func (m *Mirror) MirrorMedia(ctx context.Context, jobID, mediaPath string) error {
	key := MediaKey(jobID, filepath.Ext(mediaPath))
	return m.client.UploadFile(ctx, key, mediaPath, ContentTypeFor(mediaPath))
}

// MirrorTranscript uploads a job's transcript as JSON.
func (m *Mirror) MirrorTranscript(ctx context.Context, t *transcript.Transcript) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode transcript %s: %w", t.JobID, err)
	}
	return m.client.PutObject(ctx, TranscriptKey(t.JobID), bytes.NewReader(data), int64(len(data)), "application/json")
}
