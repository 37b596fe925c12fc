package handler

import (
	"net/http"
	"time"
)

// HealthStatus is the body of GET /health and GET /ready.
type HealthStatus struct {
	Status    string `json:"status"`
	Time      string `json:"time"`
	Actors    int    `json:"actors,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *Handler) healthStatus(r *http.Request, status string) HealthStatus {
	return HealthStatus{
		Status:    status,
		Time:      time.Now().UTC().Format(time.RFC3339),
		RequestID: getRequestID(r),
	}
}

// handleHealth handles GET /health.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := h.healthStatus(r, "healthy")
	if h.actorCount != nil {
		status.Actors = h.actorCount()
	}
	h.writeJSON(w, r, http.StatusOK, status)
}

// handleReady handles GET /ready.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil && !h.ready() {
		h.writeJSON(w, r, http.StatusServiceUnavailable, h.healthStatus(r, "not ready"))
		return
	}
	h.writeJSON(w, r, http.StatusOK, h.healthStatus(r, "ready"))
}
