package api

import (
	"encoding/json"

	"github.com/toolfleet/toolfleet/internal/job"
)

// SubmitJobRequest is the body for POST /jobs.
type SubmitJobRequest struct {
	Toolkit   string          `json:"toolkit"`
	Module    string          `json:"module,omitempty"`
	Operation string          `json:"operation"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ListJobsResponse is the body for GET /jobs.
type ListJobsResponse struct {
	Items []*job.Job `json:"items"`
	Total int        `json:"total"`
}

// NotFoundResponse is returned for status queries on unknown job ids. The
// shape mirrors a job document so clients can treat it uniformly.
type NotFoundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// HealthzResponse is the body for GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
