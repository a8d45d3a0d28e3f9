package transcript

import (
	"sort"
	"strings"
	"time"
)

// Segment is one timestamped span of recognized speech.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the merged, ordered transcription of one video.
type Transcript struct {
	JobID           string    `json:"job_id"`
	Title           string    `json:"title,omitempty"`
	DurationSeconds float64   `json:"duration_seconds"`
	Language        string    `json:"language,omitempty"`
	FullText        string    `json:"full_text"`
	Segments        []Segment `json:"segments"`
	CreatedAt       time.Time `json:"created_at"`
}

// Normalize sorts segments by start time, renumbers IDs sequentially and
// rebuilds the full text. Called after chunk merge, where completion order
// does not match playback order.
func (t *Transcript) Normalize() {
	sort.SliceStable(t.Segments, func(i, j int) bool {
		return t.Segments[i].Start < t.Segments[j].Start
	})

	var sb strings.Builder
	for i := range t.Segments {
		t.Segments[i].ID = i
		text := strings.TrimSpace(t.Segments[i].Text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(text)
	}
	t.FullText = sb.String()
}

// End returns the end time of the last segment, or 0 for an empty transcript.
func (t *Transcript) End() float64 {
	if len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].End
}
