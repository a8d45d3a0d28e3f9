package transcript

import "strings"

// Selector picks the transcript text relevant to a playback position.
type Selector struct {
	// WindowSeconds is the half-width of the context window around the
	// playback timestamp.
	WindowSeconds float64
	// FullTranscriptSeconds is the total-duration cutoff below which the
	// whole transcript is used instead of a window.
	FullTranscriptSeconds float64
}

// NewSelector creates a selector with the given window tunables
func NewSelector(windowSeconds, fullTranscriptSeconds float64) *Selector {
	return &Selector{
		WindowSeconds:         windowSeconds,
		FullTranscriptSeconds: fullTranscriptSeconds,
	}
}

// Selection is the context chosen for one question.
type Selection struct {
	Segments    []Segment
	WindowStart float64
	WindowEnd   float64
	// Full reports that the whole transcript was used without windowing.
	Full bool
}

// Text joins the selected segments into prompt-ready context text.
func (sel *Selection) Text() string {
	parts := make([]string, 0, len(sel.Segments))
	for _, s := range sel.Segments {
		text := strings.TrimSpace(s.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// Select returns the segments around playbackTimestamp. Short transcripts
// are returned whole. The timestamp is clamped into the transcript's time
// range first, so positions before the first segment or past the last one
// still produce the nearest context instead of failing. The segment whose
// range covers the (clamped) timestamp is always included.
func (s *Selector) Select(t *Transcript, playbackTimestamp float64) Selection {
	if len(t.Segments) == 0 {
		return Selection{Full: true}
	}

	total := t.DurationSeconds
	if total == 0 {
		total = t.End()
	}
	if total <= s.FullTranscriptSeconds {
		return Selection{
			Segments:    t.Segments,
			WindowStart: t.Segments[0].Start,
			WindowEnd:   t.End(),
			Full:        true,
		}
	}

	ts := playbackTimestamp
	if first := t.Segments[0].Start; ts < first {
		ts = first
	}
	if last := t.End(); ts > last {
		ts = last
	}

	start := ts - s.WindowSeconds
	end := ts + s.WindowSeconds

	selected := make([]Segment, 0)
	for _, seg := range t.Segments {
		overlaps := seg.End > start && seg.Start < end
		covers := seg.Start <= ts && ts < seg.End
		if overlaps || covers {
			selected = append(selected, seg)
		}
	}

	// The clamped timestamp can land exactly on the last segment's end.
	if len(selected) == 0 {
		selected = append(selected, t.Segments[len(t.Segments)-1])
	}

	return Selection{
		Segments:    selected,
		WindowStart: start,
		WindowEnd:   end,
	}
}
