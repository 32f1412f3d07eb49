package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/toolfleet/toolfleet/internal/store"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	})
}

// handleSubmitJob handles POST /jobs.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	j, err := s.dispatcher.Enqueue(r.Context(), store.CreateRequest{
		Toolkit:   req.Toolkit,
		Module:    req.Module,
		Operation: req.Operation,
		Payload:   req.Payload,
	})
	if err != nil {
		if j != nil {
			// Created but not submitted; the record is queryable, so
			// report it with the failure.
			s.logger.Error("job submission incomplete", "job_id", j.ID, "error", err)
			s.writeJSON(w, http.StatusAccepted, j)
			return
		}
		s.logger.Error("job submission failed", "error", err)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusAccepted, j)
}

// handleGetJob handles GET /jobs/{jobID}.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	j, err := s.dispatcher.GetStatus(r.Context(), jobID)
	if err != nil {
		s.logger.Error("failed to load job", "job_id", jobID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if j == nil {
		s.writeJSON(w, http.StatusNotFound, NotFoundResponse{ID: jobID, Status: "not_found"})
		return
	}

	s.writeJSON(w, http.StatusOK, j)
}

// handleListJobs handles GET /jobs with optional toolkit, module, status,
// limit and offset query parameters. Filter parameters repeat or take
// comma-separated values.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := store.Filter{
		Toolkits: splitParams(q["toolkit"]),
		Modules:  splitParams(q["module"]),
		Statuses: splitParams(q["status"]),
	}

	limit, err := parseIntParam(q.Get("limit"), 0)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid limit parameter")
		return
	}
	offset, err := parseIntParam(q.Get("offset"), 0)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid offset parameter")
		return
	}

	items, total, err := s.dispatcher.List(r.Context(), f, limit, offset)
	if err != nil {
		s.logger.Error("failed to list jobs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	s.writeJSON(w, http.StatusOK, ListJobsResponse{Items: items, Total: total})
}

// handleCancelJob handles POST /jobs/{jobID}/cancel.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	j, err := s.dispatcher.Cancel(r.Context(), jobID)
	if err != nil {
		s.logger.Error("failed to cancel job", "job_id", jobID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to cancel job")
		return
	}
	if j == nil {
		s.writeJSON(w, http.StatusNotFound, NotFoundResponse{ID: jobID, Status: "not_found"})
		return
	}

	s.writeJSON(w, http.StatusOK, j)
}

func splitParams(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseIntParam(value string, def int) (int, error) {
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}
