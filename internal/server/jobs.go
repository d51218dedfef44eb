package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/cronus/internal/config"
	"github.com/flemzord/cronus/internal/daemon"
	"github.com/flemzord/cronus/internal/journal"
)

const (
	upcomingCount       = 3
	jobHistoryLimit     = 20
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// jobJSON is a serializable job snapshot with its upcoming
// occurrences.
type jobJSON struct {
	Name     string   `json:"name"`
	Schedule string   `json:"schedule"`
	Zone     string   `json:"zone"`
	Command  []string `json:"command"`
	Next     []string `json:"next"`
}

// runJSON is a serializable journal entry.
type runJSON struct {
	ID       int64  `json:"id"`
	Job      string `json:"job"`
	Pattern  string `json:"pattern"`
	Started  string `json:"started"`
	Duration int64  `json:"duration_ms"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// jobView renders a job with its next n occurrences from now.
func jobView(job config.Job, n int) jobJSON {
	v := jobJSON{
		Name:     job.Name,
		Schedule: job.Pattern.String(),
		Zone:     job.Location.String(),
		Command:  job.Command,
		Next:     make([]string, 0, n),
	}
	t := time.Now().In(job.Location)
	for range n {
		next, ok := job.Pattern.Next(t, false)
		if !ok {
			break
		}
		v.Next = append(v.Next, next.Format(time.RFC3339))
		t = next
	}
	return v
}

func runView(run journal.Run) runJSON {
	return runJSON{
		ID:       run.ID,
		Job:      run.Job,
		Pattern:  run.Pattern,
		Started:  run.Started.Format(time.RFC3339),
		Duration: run.Duration.Milliseconds(),
		Status:   string(run.Status),
		Error:    run.Error,
	}
}

// handleListJobs returns every configured job as JSON.
func (s *Server) handleListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		jobs := s.daemon.Jobs()
		out := make([]jobJSON, 0, len(jobs))
		for _, job := range jobs {
			out = append(out, jobView(job, upcomingCount))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// handleGetJob returns one job plus its recent runs.
func (s *Server) handleGetJob() http.HandlerFunc {
	type response struct {
		jobJSON
		Runs []runJSON `json:"runs"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		var found *config.Job
		for _, job := range s.daemon.Jobs() {
			if job.Name == name {
				found = &job
				break
			}
		}
		if found == nil {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}

		resp := response{jobJSON: jobView(*found, upcomingCount), Runs: []runJSON{}}
		j := s.daemon.Journal()
		if j == nil {
			http.Error(w, "journal not available", http.StatusServiceUnavailable)
			return
		}
		runs, err := j.Recent(r.Context(), name, jobHistoryLimit)
		if err != nil {
			s.logger.Error("server: journal query failed", "error", err)
			http.Error(w, "journal query failed", http.StatusInternalServerError)
			return
		}
		for _, run := range runs {
			resp.Runs = append(resp.Runs, runView(run))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleRunJob fires a job out-of-band.
func (s *Server) handleRunJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		switch err := s.daemon.RunJob(name); {
		case errors.Is(err, daemon.ErrUnknownJob):
			http.Error(w, "job not found", http.StatusNotFound)
		case errors.Is(err, daemon.ErrJobBusy):
			http.Error(w, "job already running", http.StatusConflict)
		case err != nil:
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "started", "job": name})
		}
	}
}

// handleHistory serves journal queries with optional job and limit
// parameters.
func (s *Server) handleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultHistoryLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = min(n, maxHistoryLimit)
		}

		j := s.daemon.Journal()
		if j == nil {
			http.Error(w, "journal not available", http.StatusServiceUnavailable)
			return
		}
		runs, err := j.Recent(r.Context(), r.URL.Query().Get("job"), limit)
		if err != nil {
			s.logger.Error("server: journal query failed", "error", err)
			http.Error(w, "journal query failed", http.StatusInternalServerError)
			return
		}
		out := make([]runJSON, 0, len(runs))
		for _, run := range runs {
			out = append(out, runView(run))
		}
		writeJSON(w, http.StatusOK, out)
	}
}
