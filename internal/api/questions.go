package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lectureqa/backend/internal/answer"
	apperrors "github.com/lectureqa/backend/internal/errors"
	"github.com/lectureqa/backend/internal/logger"
	"github.com/lectureqa/backend/internal/transcript"
)

// AnswerStreamer produces an ordered answer event stream for a question.
type AnswerStreamer interface {
	Ask(ctx context.Context, t *transcript.Transcript, question string, playbackTimestamp float64) <-chan answer.Event
}

type QuestionHandler struct {
	service  PipelineService
	streamer AnswerStreamer
	log      *logger.Logger
}

func NewQuestionHandler(service PipelineService, streamer AnswerStreamer) *QuestionHandler {
	return &QuestionHandler{
		service:  service,
		streamer: streamer,
		log:      logger.WithComponent("api"),
	}
}

// QuestionRequest represents a student question at a playback position
type QuestionRequest struct {
	Question  string  `json:"question"`
	Timestamp float64 `json:"timestamp"`
}

// Ask handles POST /api/v1/videos/{job_id}/questions.
// The response is a server-sent event stream: zero or more content frames
// followed by exactly one done or error frame.
func (h *QuestionHandler) Ask(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	jobID := r.PathValue("job_id")
	if jobID == "" {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("job_id is required"))
		return
	}

	var req QuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid request body"))
		return
	}
	if req.Question == "" {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("question is required"))
		return
	}
	if req.Timestamp < 0 {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("timestamp must not be negative"))
		return
	}

	t, err := h.service.Transcript(r.Context(), jobID)
	if err != nil {
		apperrors.WriteError(w, requestID, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		apperrors.WriteError(w, requestID, apperrors.InternalError("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := h.streamer.Ask(r.Context(), t, req.Question, req.Timestamp)
	for ev := range events {
		switch {
		case ev.Err != nil:
			writeSSE(w, flusher, map[string]any{"error": userFacingError(ev.Err)})
		case ev.Done:
			writeSSE(w, flusher, map[string]any{"done": true})
		default:
			writeSSE(w, flusher, map[string]any{"content": ev.Content})
		}
	}
}

// userFacingError strips internal detail from terminal stream errors.
func userFacingError(err error) string {
	if appErr, ok := err.(*apperrors.AppError); ok {
		return appErr.Message
	}
	return "answer stream failed"
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
