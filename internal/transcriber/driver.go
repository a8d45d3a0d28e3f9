package transcriber

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/lectureqa/backend/internal/errors"
	"github.com/lectureqa/backend/internal/logger"
	"github.com/lectureqa/backend/internal/media"
	"github.com/lectureqa/backend/internal/transcript"
)

// ProgressFunc receives the whole-percent completion of the transcription
// stage as chunks finish.
type ProgressFunc func(percent int)

// Driver walks audio chunks in order, transcribes each with a bounded
// retry budget, shifts the chunk-local timestamps by the chunk offset and
// merges everything into one ordered transcript.
type Driver struct {
	provider     Provider
	retry        *apperrors.RetryConfig
	chunkTimeout time.Duration
	log          *logger.Logger
}

// NewDriver creates a transcription driver
func NewDriver(provider Provider, retry *apperrors.RetryConfig, chunkTimeout time.Duration) *Driver {
	if retry == nil {
		retry = apperrors.TranscriptionRetryConfig()
	}
	if chunkTimeout <= 0 {
		chunkTimeout = 2 * time.Minute
	}
	return &Driver{
		provider:     provider,
		retry:        retry,
		chunkTimeout: chunkTimeout,
		log:          logger.WithComponent("transcriber"),
	}
}

// Transcribe runs all chunks and returns the merged transcript segments.
// A chunk that exhausts its retry budget fails the whole run; partial
// transcripts are never returned.
func (d *Driver) Transcribe(ctx context.Context, chunks []media.Chunk, progress ProgressFunc) ([]transcript.Segment, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("transcribe: no chunks")
	}

	merged := make([]transcript.Segment, 0)

	for i, chunk := range chunks {
		segments, attempts, err := d.transcribeChunk(ctx, chunk)
		if err != nil {
			d.log.Error(ctx, "chunk transcription failed", err, map[string]interface{}{
				"chunk_index": chunk.Index,
				"chunk_count": len(chunks),
				"attempts":    attempts,
			})
			if ctx.Err() != nil {
				return nil, err
			}
			// The status record surfaces the error message as-is, so the
			// failing chunk has to be named here.
			return nil, apperrors.TranscriptionError(
				fmt.Sprintf("chunk %d failed after %d attempts", chunk.Index, attempts)).
				WithDetails(map[string]any{"chunk_index": chunk.Index, "attempts": attempts}).
				WithCause(err)
		}

		for _, s := range segments {
			s.Start += chunk.OffsetSeconds
			s.End += chunk.OffsetSeconds
			merged = append(merged, s)
		}

		if progress != nil {
			progress((i + 1) * 100 / len(chunks))
		}
	}

	// Chunk boundaries do not guarantee monotonic timestamps across the
	// merge; re-sort and renumber before handing the result back.
	t := &transcript.Transcript{Segments: merged}
	t.Normalize()

	return t.Segments, nil
}

func (d *Driver) transcribeChunk(ctx context.Context, chunk media.Chunk) ([]transcript.Segment, int, error) {
	attempt := 0
	segments, err := apperrors.RetryWithResult(ctx, d.retry, func(ctx context.Context) ([]transcript.Segment, error) {
		attempt++
		if attempt > 1 {
			d.log.Warn(ctx, "retrying chunk transcription", map[string]interface{}{
				"chunk_index": chunk.Index,
				"attempt":     attempt,
			})
		}

		chunkCtx, cancel := context.WithTimeout(ctx, d.chunkTimeout)
		defer cancel()

		segments, err := d.provider.Transcribe(chunkCtx, chunk.Path)
		if err != nil {
			if chunkCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
				// A per-chunk timeout is an external failure that counts
				// toward the retry budget, not a caller cancellation.
				return nil, apperrors.ExternalTimeout("transcription").WithCause(err)
			}
			return nil, classifyProviderError(err)
		}
		return segments, nil
	})
	return segments, attempt, err
}

// classifyProviderError maps raw provider failures onto the error taxonomy
// so the retry layer can tell transient failures from permanent ones.
func classifyProviderError(err error) error {
	if _, ok := err.(*apperrors.AppError); ok {
		return err
	}
	return apperrors.TranscriptionError("transcription request failed").WithCause(err)
}
