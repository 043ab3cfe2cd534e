package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-prep/internal/startup"
)

const statusHealthy = "healthy"

// QueueHealth summarizes the preparation queue.
type QueueHealth struct {
	Pending int  `json:"pending"`
	Running bool `json:"running"`
	Tracked int  `json:"tracked"`
}

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string      `json:"status"`
	Version string      `json:"version"`
	Uptime  string      `json:"uptime"`
	Queue   QueueHealth `json:"queue"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	tracked := len(h.pending)
	h.mu.Unlock()

	response := HealthResponse{
		Status:  statusHealthy,
		Version: startup.Version,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
		Queue: QueueHealth{
			Pending: h.queue.Len(),
			Running: h.queue.Running(),
			Tracked: tracked,
		},
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		writeJSON(w, response)
	}
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}
