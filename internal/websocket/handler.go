package websocket

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/lectureqa/backend/internal/logger"
	"github.com/lectureqa/backend/internal/registry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allowed origins are enforced by the CORS layer in front
		return true
	},
}

// Handler handles WebSocket connections for job progress.
type Handler struct {
	hub *Hub
	reg registry.Registry
	log *logger.Logger
}

// NewHandler creates a new WebSocket handler.
func NewHandler(hub *Hub, reg registry.Registry) *Handler {
	return &Handler{
		hub: hub,
		reg: reg,
		log: logger.WithComponent("websocket"),
	}
}

// ServeWS upgrades the connection and streams status records for one job.
// The job is selected via query parameter: ?job_id=<id>
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		http.Error(w, `{"code":"INVALID_REQUEST","message":"missing job_id parameter"}`, http.StatusBadRequest)
		return
	}

	// Reject before upgrading so unknown jobs get a proper HTTP status
	current, err := h.reg.Get(r.Context(), jobID)
	if err != nil {
		http.Error(w, `{"code":"JOB_NOT_FOUND","message":"job not found"}`, http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	client := NewClient(h.hub, conn, jobID)

	// Seed the stream with the current state so the client does not have
	// to wait for the next transition. This must happen before the pumps
	// start: once ReadPump runs, a disconnect can unregister the client
	// and the hub closes send.
	client.send <- current

	h.hub.register <- client
	go client.WritePump()
	go client.ReadPump()
}

// GetHub returns the hub instance for external access.
func (h *Handler) GetHub() *Hub {
	return h.hub
}

// NotifyingRegistry decorates a Registry so every Put is also pushed to
// websocket watchers. The underlying registry stays the source of truth;
// push delivery is best effort on top of it.
type NotifyingRegistry struct {
	registry.Registry
	hub *Hub
}

// NewNotifyingRegistry wraps a registry with hub notifications.
func NewNotifyingRegistry(inner registry.Registry, hub *Hub) *NotifyingRegistry {
	return &NotifyingRegistry{Registry: inner, hub: hub}
}

// Put stores the record and broadcasts it.
func (n *NotifyingRegistry) Put(ctx context.Context, record registry.StatusRecord) error {
	if err := n.Registry.Put(ctx, record); err != nil {
		return err
	}
	n.hub.Broadcast(record)
	return nil
}
