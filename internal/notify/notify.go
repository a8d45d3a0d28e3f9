package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/lectureqa/backend/internal/logger"
)

// Feedback is a student escalation: a question the assistant could not
// answer well enough, forwarded to the course instructor.
type Feedback struct {
	JobID          string  `json:"job_id"`
	LectureTitle   string  `json:"lecture_title,omitempty"`
	Question       string  `json:"question"`
	Answer         string  `json:"answer,omitempty"`
	TimestampSec   float64 `json:"timestamp_seconds"`
	ContextExcerpt string  `json:"context_excerpt,omitempty"`
}

// Notifier delivers feedback to the instructor.
type Notifier interface {
	Notify(ctx context.Context, fb *Feedback) error
}

// Nop discards feedback. Used when no email provider is configured.
type Nop struct{}

func (Nop) Notify(context.Context, *Feedback) error { return nil }

const resendEndpoint = "https://api.resend.com/emails"

// Resend sends feedback emails through the Resend HTTP API.
type Resend struct {
	apiKey   string
	from     string
	to       string
	endpoint string
	client   *http.Client
	log      *logger.Logger
}

func NewResend(apiKey, from, to string) *Resend {
	return &Resend{
		apiKey:   apiKey,
		from:     from,
		to:       to,
		endpoint: resendEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      logger.WithComponent("notify"),
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (r *Resend) Notify(ctx context.Context, fb *Feedback) error {
	body, err := json.Marshal(resendRequest{
		From:    r.from,
		To:      []string{r.to},
		Subject: subjectFor(fb),
		HTML:    renderHTML(fb),
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification rejected with status %d", resp.StatusCode)
	}

	r.log.Info(ctx, "feedback forwarded to instructor", map[string]interface{}{
		"job_id": fb.JobID,
	})
	return nil
}

func subjectFor(fb *Feedback) string {
	title := fb.LectureTitle
	if title == "" {
		title = fb.JobID
	}
	return "Student question on " + title
}

func renderHTML(fb *Feedback) string {
	var sb strings.Builder
	sb.WriteString("<h2>Student question</h2>")
	sb.WriteString("<p><strong>Lecture:</strong> " + html.EscapeString(fb.LectureTitle) + "</p>")
	sb.WriteString(fmt.Sprintf("<p><strong>Timestamp:</strong> %s</p>", formatTimestamp(fb.TimestampSec)))
	sb.WriteString("<p><strong>Question:</strong> " + html.EscapeString(fb.Question) + "</p>")
	if fb.Answer != "" {
		sb.WriteString("<p><strong>Assistant answer:</strong> " + html.EscapeString(fb.Answer) + "</p>")
	}
	if fb.ContextExcerpt != "" {
		sb.WriteString("<p><strong>Lecture context:</strong></p><blockquote>" + html.EscapeString(fb.ContextExcerpt) + "</blockquote>")
	}
	return sb.String()
}

func formatTimestamp(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
