package answer

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	apperrors "github.com/lectureqa/backend/internal/errors"
	"github.com/lectureqa/backend/internal/logger"
	"github.com/lectureqa/backend/internal/transcript"
)

// Event is one element of an answer stream: either partial content or
// exactly one terminal (Done or Err), always last.
type Event struct {
	Content string
	Done    bool
	Err     error
}

// Terminal reports whether this event closes the session.
func (e Event) Terminal() bool {
	return e.Done || e.Err != nil
}

// Streamer answers questions about a transcript, relaying upstream tokens
// as an ordered event stream.
type Streamer struct {
	completer Completer
	selector  *transcript.Selector
	log       *logger.Logger

	// active counts in-flight sessions; drains to zero when all streams
	// have terminated.
	active int64
}

// NewStreamer creates an answer streamer
func NewStreamer(completer Completer, selector *transcript.Selector) *Streamer {
	return &Streamer{
		completer: completer,
		selector:  selector,
		log:       logger.WithComponent("answer"),
	}
}

// ActiveSessions returns the number of in-flight answer streams.
func (s *Streamer) ActiveSessions() int64 {
	return atomic.LoadInt64(&s.active)
}

// Ask opens one answer session. The returned channel yields zero or more
// content events followed by exactly one terminal event, then closes.
// Cancelling ctx tears down the upstream stream promptly; the terminal
// event in that case is an error event.
func (s *Streamer) Ask(ctx context.Context, t *transcript.Transcript, question string, playbackTimestamp float64) <-chan Event {
	events := make(chan Event)

	atomic.AddInt64(&s.active, 1)

	go func() {
		defer close(events)
		defer atomic.AddInt64(&s.active, -1)

		sel := s.selector.Select(t, playbackTimestamp)
		userPrompt := buildUserPrompt(t.FullText, sel.Text(), question)

		stream, err := s.completer.Complete(ctx, systemPrompt, userPrompt)
		if err != nil {
			s.log.Error(ctx, "failed to open completion stream", err)
			s.emit(ctx, events, Event{Err: apperrors.CompletionError("failed to reach completion service").WithCause(err)})
			return
		}
		defer stream.Close()

		for {
			token, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				s.emit(ctx, events, Event{Done: true})
				return
			}
			if err != nil {
				// Mid-stream failure still closes with a terminal error;
				// the caller must never see a silent truncation.
				s.log.Error(ctx, "completion stream failed mid-answer", err)
				s.emit(ctx, events, Event{Err: apperrors.CompletionError("answer stream interrupted").WithCause(err)})
				return
			}

			if !s.emit(ctx, events, Event{Content: token}) {
				// Caller went away; upstream is torn down via ctx and
				// the deferred Close.
				return
			}
		}
	}()

	return events
}

// emit delivers an event unless the caller has gone away.
func (s *Streamer) emit(ctx context.Context, events chan<- Event, e Event) bool {
	select {
	case events <- e:
		return true
	case <-ctx.Done():
		return false
	}
}
