package api

import (
	"net/http"

	"github.com/lectureqa/backend/internal/health"
	"github.com/lectureqa/backend/internal/metrics"
)

// StreamHandler serves a job's media with range support.
type StreamHandler interface {
	Serve(w http.ResponseWriter, r *http.Request)
}

// ProgressHandler upgrades progress subscriptions to WebSocket.
type ProgressHandler interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

type Router struct {
	mux             *http.ServeMux
	videoHandlers   *VideoHandlers
	questionHandler *QuestionHandler
	feedbackHandler *FeedbackHandler
	streamHandler   StreamHandler
	progressHandler ProgressHandler
	healthHandler   *health.Handler
	metrics         *metrics.Metrics
}

func NewRouter(
	videoHandlers *VideoHandlers,
	questionHandler *QuestionHandler,
	feedbackHandler *FeedbackHandler,
	streamHandler StreamHandler,
	progressHandler ProgressHandler,
	healthHandler *health.Handler,
	m *metrics.Metrics,
) *Router {
	r := &Router{
		mux:             http.NewServeMux(),
		videoHandlers:   videoHandlers,
		questionHandler: questionHandler,
		feedbackHandler: feedbackHandler,
		streamHandler:   streamHandler,
		progressHandler: progressHandler,
		healthHandler:   healthHandler,
		metrics:         m,
	}
	r.setupRoutes()
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) setupRoutes() {
	// Health and metrics
	r.mux.HandleFunc("GET /health", r.healthHandler.HealthHandler)
	r.mux.HandleFunc("GET /health/live", r.healthHandler.LivenessHandler)
	r.mux.HandleFunc("GET /health/ready", r.healthHandler.ReadinessHandler)
	r.mux.HandleFunc("GET /metrics", r.metrics.Handler())

	// Ingestion
	r.mux.HandleFunc("POST /api/v1/videos", r.videoHandlers.Upload)
	r.mux.HandleFunc("POST /api/v1/videos/url", r.videoHandlers.SubmitURL)

	// Job observation
	r.mux.HandleFunc("GET /api/v1/jobs/{job_id}", r.videoHandlers.GetJob)
	r.mux.HandleFunc("GET /ws/progress", r.progressHandler.ServeWS)

	// Lecture content
	r.mux.HandleFunc("GET /api/v1/videos/{job_id}/transcript", r.videoHandlers.GetTranscript)
	r.mux.HandleFunc("GET /api/v1/videos/{job_id}/media", r.streamHandler.Serve)

	// Q&A
	r.mux.HandleFunc("POST /api/v1/videos/{job_id}/questions", r.questionHandler.Ask)
	r.mux.HandleFunc("POST /api/v1/feedback", r.feedbackHandler.Submit)
}
