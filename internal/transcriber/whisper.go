package transcriber

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lectureqa/backend/internal/transcript"
)

// WhisperProvider transcribes audio through the OpenAI audio API.
type WhisperProvider struct {
	client *openai.Client
	model  string
}

// NewWhisperProvider creates a provider backed by the given client.
// model is typically "whisper-1".
func NewWhisperProvider(client *openai.Client, model string) *WhisperProvider {
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperProvider{client: client, model: model}
}

// Transcribe submits the audio file and returns its segments with
// file-local timestamps. verbose_json gives per-segment timing; a plain
// text response would lose it.
func (p *WhisperProvider) Transcribe(ctx context.Context, audioPath string) ([]transcript.Segment, error) {
	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    p.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("whisper transcription: %w", err)
	}

	if len(resp.Segments) == 0 {
		text := strings.TrimSpace(resp.Text)
		if text == "" {
			return nil, fmt.Errorf("whisper transcription: empty result")
		}
		// Some backends return plain text even for verbose_json;
		// fall back to one untimed segment spanning the reported duration.
		return []transcript.Segment{{Start: 0, End: float64(resp.Duration), Text: text}}, nil
	}

	segments := make([]transcript.Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, transcript.Segment{
			ID:    s.ID,
			Start: s.Start,
			End:   s.End,
			Text:  strings.TrimSpace(s.Text),
		})
	}

	return segments, nil
}
