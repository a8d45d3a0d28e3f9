package answer

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/lectureqa/backend/internal/transcript"
)

// fakeStream replays scripted tokens, then a final error (io.EOF for a
// clean finish).
type fakeStream struct {
	tokens   []string
	finalErr error
	closed   bool
	pos      int
}

func (f *fakeStream) Recv() (string, error) {
	if f.pos < len(f.tokens) {
		tok := f.tokens[f.pos]
		f.pos++
		return tok, nil
	}
	return "", f.finalErr
}

func (f *fakeStream) Close() error {
	f.closed = true
	return nil
}

type fakeCompleter struct {
	stream  *fakeStream
	openErr error
	gotUser string
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (TokenStream, error) {
	f.gotUser = userPrompt
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.stream, nil
}

func testTranscript() *transcript.Transcript {
	return &transcript.Transcript{
		JobID:           "job1",
		DurationSeconds: 100,
		FullText:        "welcome to the lecture",
		Segments: []transcript.Segment{
			{Start: 0, End: 50, Text: "welcome to"},
			{Start: 50, End: 100, Text: "the lecture"},
		},
	}
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var all []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return all
			}
			all = append(all, e)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestStreamer_ContentThenDone(t *testing.T) {
	fc := &fakeCompleter{stream: &fakeStream{
		tokens:   []string{"Hel", "lo"},
		finalErr: io.EOF,
	}}
	s := NewStreamer(fc, transcript.NewSelector(120, 300))

	events := collect(t, s.Ask(context.Background(), testTranscript(), "what is this?", 10))

	if len(events) != 3 {
		t.Fatalf("got %d events, want 3: %+v", len(events), events)
	}
	if events[0].Content != "Hel" || events[1].Content != "lo" {
		t.Errorf("content events = %+v", events[:2])
	}
	if !events[2].Done || events[2].Err != nil {
		t.Errorf("terminal event = %+v, want done", events[2])
	}
	if !fc.stream.closed {
		t.Error("upstream stream not closed")
	}
}

func TestStreamer_MidStreamErrorEmitsTerminalError(t *testing.T) {
	fc := &fakeCompleter{stream: &fakeStream{
		tokens:   []string{"Par"},
		finalErr: errors.New("upstream reset"),
	}}
	s := NewStreamer(fc, transcript.NewSelector(120, 300))

	events := collect(t, s.Ask(context.Background(), testTranscript(), "q", 10))

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(events), events)
	}
	if events[0].Content != "Par" {
		t.Errorf("first event = %+v", events[0])
	}
	last := events[len(events)-1]
	if last.Err == nil || last.Done {
		t.Errorf("terminal event = %+v, want error", last)
	}

	// exactly one terminal event, and it is last
	terminals := 0
	for _, e := range events {
		if e.Terminal() {
			terminals++
		}
	}
	if terminals != 1 {
		t.Errorf("got %d terminal events, want exactly 1", terminals)
	}
}

func TestStreamer_OpenFailureEmitsSingleErrorEvent(t *testing.T) {
	fc := &fakeCompleter{openErr: errors.New("connection refused")}
	s := NewStreamer(fc, transcript.NewSelector(120, 300))

	events := collect(t, s.Ask(context.Background(), testTranscript(), "q", 10))

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1: %+v", len(events), events)
	}
	if events[0].Err == nil {
		t.Errorf("event = %+v, want error terminal", events[0])
	}
}

func TestStreamer_CancellationStopsStream(t *testing.T) {
	// Endless token supply; only cancellation can end this session.
	endless := &endlessStream{}
	s := NewStreamer(&staticCompleter{stream: endless}, transcript.NewSelector(120, 300))

	ctx, cancel := context.WithCancel(context.Background())
	events := s.Ask(ctx, testTranscript(), "q", 10)

	// read a couple of tokens, then walk away
	<-events
	<-events
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				if s.ActiveSessions() != 0 {
					t.Errorf("ActiveSessions = %d, want 0 after teardown", s.ActiveSessions())
				}
				return
			}
		case <-deadline:
			t.Fatal("stream did not terminate after cancellation")
		}
	}
}

type endlessStream struct{ closed bool }

func (e *endlessStream) Recv() (string, error) { return "tok", nil }
func (e *endlessStream) Close() error          { e.closed = true; return nil }

type staticCompleter struct{ stream TokenStream }

func (c *staticCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (TokenStream, error) {
	return c.stream, nil
}

func TestStreamer_PromptCarriesContextAndQuestion(t *testing.T) {
	fc := &fakeCompleter{stream: &fakeStream{finalErr: io.EOF}}
	s := NewStreamer(fc, transcript.NewSelector(120, 300))

	collect(t, s.Ask(context.Background(), testTranscript(), "why graphs?", 10))

	if !strings.Contains(fc.gotUser, "why graphs?") {
		t.Error("prompt missing question")
	}
	if !strings.Contains(fc.gotUser, "welcome to the lecture") {
		t.Error("prompt missing lecture text")
	}
}

func TestBuildUserPrompt_TruncatesLead(t *testing.T) {
	long := strings.Repeat("x", 5000)
	prompt := buildUserPrompt(long, "ctx", "q")

	if strings.Count(prompt, "x") != leadExcerptLimit {
		t.Errorf("lead excerpt length = %d, want %d", strings.Count(prompt, "x"), leadExcerptLimit)
	}
}
