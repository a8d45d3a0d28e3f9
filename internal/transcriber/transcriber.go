package transcriber

import (
	"context"

	"github.com/lectureqa/backend/internal/transcript"
)

// Provider converts one audio file into timestamped segments. Segment
// times are local to the file handed in; the driver re-times them against
// the chunk's offset in the full recording.
type Provider interface {
	Transcribe(ctx context.Context, audioPath string) ([]transcript.Segment, error)
}

// ProviderFunc adapts a function to the Provider interface
type ProviderFunc func(ctx context.Context, audioPath string) ([]transcript.Segment, error)

func (f ProviderFunc) Transcribe(ctx context.Context, audioPath string) ([]transcript.Segment, error) {
	return f(ctx, audioPath)
}
