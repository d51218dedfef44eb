package server

import "net/http"

// HealthResponse is the JSON response for GET /healthz.
type HealthResponse struct {
	Status    string `json:"status"` // "ok" or "stopping"
	Scheduler string `json:"scheduler"`
	Jobs      int    `json:"jobs"`
}

// handleHealth reports liveness and scheduler state. Returns 200 while
// the scheduler runs, 503 once it stopped.
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status:    "ok",
			Scheduler: "running",
			Jobs:      len(s.daemon.Jobs()),
		}
		code := http.StatusOK
		if !s.daemon.Running() {
			resp.Status = "stopping"
			resp.Scheduler = "stopped"
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}
