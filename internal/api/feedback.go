package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/lectureqa/backend/internal/errors"
	"github.com/lectureqa/backend/internal/logger"
	"github.com/lectureqa/backend/internal/notify"
	"github.com/lectureqa/backend/internal/transcript"
)

type FeedbackHandler struct {
	service  PipelineService
	notifier notify.Notifier
	log      *logger.Logger
}

func NewFeedbackHandler(service PipelineService, notifier notify.Notifier) *FeedbackHandler {
	return &FeedbackHandler{
		service:  service,
		notifier: notifier,
		log:      logger.WithComponent("api"),
	}
}

// FeedbackRequest forwards an unresolved question to the instructor
type FeedbackRequest struct {
	JobID     string  `json:"job_id"`
	Question  string  `json:"question"`
	Answer    string  `json:"answer,omitempty"`
	Timestamp float64 `json:"timestamp"`
}

// Submit handles POST /api/v1/feedback
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid request body"))
		return
	}
	if req.JobID == "" {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("job_id is required"))
		return
	}
	if req.Question == "" {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("question is required"))
		return
	}

	fb := &notify.Feedback{
		JobID:        req.JobID,
		Question:     req.Question,
		Answer:       req.Answer,
		TimestampSec: req.Timestamp,
	}

	// Enrich with lecture context when the transcript is available; missing
	// transcripts don't block the escalation.
	if t, err := h.service.Transcript(r.Context(), req.JobID); err == nil {
		fb.LectureTitle = t.Title
		fb.ContextExcerpt = contextExcerpt(t, req.Timestamp)
	} else {
		switch apperrors.Code(err) {
		case apperrors.CodeTranscriptNotFound, apperrors.CodeTranscriptNotReady:
		default:
			h.log.Warn(r.Context(), "feedback submitted without transcript context", map[string]interface{}{
				"job_id": req.JobID,
			})
		}
	}

	if err := h.notifier.Notify(r.Context(), fb); err != nil {
		h.log.Error(r.Context(), "failed to deliver feedback", err, map[string]interface{}{
			"job_id": req.JobID,
		})
		apperrors.WriteError(w, requestID, apperrors.InternalError("failed to deliver feedback"))
		return
	}

	apperrors.WriteJSON(w, requestID, http.StatusAccepted, map[string]string{
		"status": "sent",
	})
}

// contextExcerpt pulls a short window of transcript text around the
// question's playback position.
func contextExcerpt(t *transcript.Transcript, timestamp float64) string {
	const excerptWindow = 60

	sel := transcript.NewSelector(excerptWindow, 0).Select(t, timestamp)
	text := sel.Text()
	if len(text) > 1000 {
		text = text[:1000]
	}
	return text
}
