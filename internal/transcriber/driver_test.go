package transcriber

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/lectureqa/backend/internal/errors"
	"github.com/lectureqa/backend/internal/media"
	"github.com/lectureqa/backend/internal/transcript"
)

func fastRetry() *apperrors.RetryConfig {
	return &apperrors.RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		BackoffFactor:  1,
	}
}

func TestDriver_OffsetsAndMergesChunks(t *testing.T) {
	provider := ProviderFunc(func(ctx context.Context, audioPath string) ([]transcript.Segment, error) {
		// every chunk reports the same local timestamps
		return []transcript.Segment{
			{Start: 0, End: 10, Text: "first " + audioPath},
			{Start: 10, End: 20, Text: "second " + audioPath},
		}, nil
	})

	d := NewDriver(provider, fastRetry(), time.Second)

	chunks := []media.Chunk{
		{Index: 0, Path: "a.mp3", OffsetSeconds: 0, LengthSeconds: 20},
		{Index: 1, Path: "b.mp3", OffsetSeconds: 20, LengthSeconds: 20},
	}

	segments, err := d.Transcribe(context.Background(), chunks, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(segments) != 4 {
		t.Fatalf("got %d segments, want 4", len(segments))
	}

	// merged order must be globally sorted by start
	wantStarts := []float64{0, 10, 20, 30}
	for i, s := range segments {
		if s.Start != wantStarts[i] {
			t.Errorf("segment %d start = %v, want %v", i, s.Start, wantStarts[i])
		}
		if s.ID != i {
			t.Errorf("segment %d ID = %d, want sequential", i, s.ID)
		}
	}
}

func TestDriver_RetriesTransientFailures(t *testing.T) {
	var calls int32
	provider := ProviderFunc(func(ctx context.Context, audioPath string) ([]transcript.Segment, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return nil, apperrors.TranscriptionError("rate limited")
		}
		return []transcript.Segment{{Start: 0, End: 5, Text: "ok"}}, nil
	})

	d := NewDriver(provider, fastRetry(), time.Second)

	segments, err := d.Transcribe(context.Background(), []media.Chunk{{Index: 0, Path: "a.mp3"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("provider called %d times, want 3 (initial + 2 retries)", got)
	}
	if len(segments) != 1 {
		t.Errorf("got %d segments, want 1", len(segments))
	}
}

func TestDriver_ExhaustedBudgetFailsRun(t *testing.T) {
	var calls int32
	provider := ProviderFunc(func(ctx context.Context, audioPath string) ([]transcript.Segment, error) {
		if audioPath == "b.mp3" {
			atomic.AddInt32(&calls, 1)
			return nil, apperrors.TranscriptionError("still failing")
		}
		return []transcript.Segment{{Start: 0, End: 5, Text: "ok"}}, nil
	})

	d := NewDriver(provider, fastRetry(), time.Second)

	chunks := []media.Chunk{
		{Index: 0, Path: "a.mp3"},
		{Index: 1, Path: "b.mp3", OffsetSeconds: 20},
	}
	_, err := d.Transcribe(context.Background(), chunks, nil)
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("provider called %d times, want 3", got)
	}
	if apperrors.Code(err) != apperrors.CodeTranscriptionError {
		t.Errorf("error code = %q, want %q", apperrors.Code(err), apperrors.CodeTranscriptionError)
	}

	// The message becomes the status record's error detail; it has to say
	// which chunk died and how hard we tried.
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		t.Fatalf("error type = %T, want *apperrors.AppError", err)
	}
	if appErr.Message != "chunk 1 failed after 3 attempts" {
		t.Errorf("message = %q, want chunk index and attempts named", appErr.Message)
	}
	if appErr.Details["chunk_index"] != 1 {
		t.Errorf("details chunk_index = %v, want 1", appErr.Details["chunk_index"])
	}
}

func TestDriver_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	provider := ProviderFunc(func(ctx context.Context, audioPath string) ([]transcript.Segment, error) {
		atomic.AddInt32(&calls, 1)
		return nil, apperrors.ValidationError("unsupported audio format")
	})

	d := NewDriver(provider, fastRetry(), time.Second)

	_, err := d.Transcribe(context.Background(), []media.Chunk{{Index: 0, Path: "a.mp3"}}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("provider called %d times, want 1", got)
	}
}

func TestDriver_ProgressPerChunk(t *testing.T) {
	provider := ProviderFunc(func(ctx context.Context, audioPath string) ([]transcript.Segment, error) {
		return []transcript.Segment{{Start: 0, End: 1, Text: "x"}}, nil
	})

	d := NewDriver(provider, fastRetry(), time.Second)

	chunks := []media.Chunk{
		{Index: 0, OffsetSeconds: 0},
		{Index: 1, OffsetSeconds: 10},
		{Index: 2, OffsetSeconds: 20},
	}

	var reported []int
	_, err := d.Transcribe(context.Background(), chunks, func(percent int) {
		reported = append(reported, percent)
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []int{33, 66, 100}
	if len(reported) != len(want) {
		t.Fatalf("reported %v, want %v", reported, want)
	}
	for i := range want {
		if reported[i] != want[i] {
			t.Errorf("progress[%d] = %d, want %d", i, reported[i], want[i])
		}
	}
}

func TestDriver_NoChunks(t *testing.T) {
	d := NewDriver(ProviderFunc(func(ctx context.Context, p string) ([]transcript.Segment, error) {
		return nil, nil
	}), fastRetry(), time.Second)

	if _, err := d.Transcribe(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for empty chunk list")
	}
}
