// Package store persists job documents in a shared key-value store.
//
// Both backends treat the job record as an opaque JSON document keyed by
// id: a write is a full-document overwrite with no version check
// (last-write-wins), and listing enumerates documents and filters in
// memory. Filtering is OR within a field and AND across fields.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/toolfleet/toolfleet/internal/job"
)

// CreateRequest carries the caller-supplied fields for a new job.
// Payload is opaque; the store never validates its shape.
type CreateRequest struct {
	Toolkit   string
	Module    string
	Operation string
	Payload   json.RawMessage
}

// Filter selects jobs for listing. Empty slices match everything.
type Filter struct {
	Toolkits []string
	Modules  []string
	Statuses []string
}

// Store is the job persistence contract shared by the request server and
// the worker fleet.
type Store interface {
	// Create persists a fresh queued record and returns it. Two calls
	// with identical fields create two distinct records.
	Create(ctx context.Context, req CreateRequest) (*job.Job, error)

	// Save overwrites the full document keyed by the job's id and bumps
	// UpdatedAt. Store failures propagate.
	Save(ctx context.Context, j *job.Job) error

	// Get returns the stored record, or (nil, nil) for a missing id.
	Get(ctx context.Context, id string) (*job.Job, error)

	// List returns the filtered page ordered by UpdatedAt descending,
	// plus the total count of the filtered set.
	List(ctx context.Context, f Filter, limit, offset int) ([]*job.Job, int, error)
}

// newJob builds the initial record. Persistence is the backend's job.
func newJob(req CreateRequest) (*job.Job, error) {
	if req.Toolkit == "" {
		return nil, fmt.Errorf("toolkit is empty")
	}
	if req.Operation == "" {
		return nil, fmt.Errorf("operation is empty")
	}

	module := req.Module
	if module == "" {
		module = req.Toolkit
	}

	now := time.Now().UTC()
	return &job.Job{
		ID:        uuid.NewString(),
		Toolkit:   req.Toolkit,
		Module:    module,
		Operation: req.Operation,
		Type:      job.TypeOf(req.Toolkit, req.Operation),
		Payload:   req.Payload,
		Status:    job.StatusQueued,
		Progress:  0,
		Logs:      []job.LogEntry{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (f Filter) matches(j *job.Job) bool {
	if len(f.Toolkits) > 0 && !contains(f.Toolkits, j.Toolkit) {
		return false
	}
	if len(f.Modules) > 0 && !contains(f.Modules, j.Module) {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, string(j.Status)) {
		return false
	}
	return true
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// sortJobs orders by UpdatedAt descending with id as a tiebreak, so that
// offset/limit pages partition a static set without duplicates or gaps.
func sortJobs(jobs []*job.Job) {
	sort.Slice(jobs, func(a, b int) bool {
		if jobs[a].UpdatedAt.Equal(jobs[b].UpdatedAt) {
			return jobs[a].ID > jobs[b].ID
		}
		return jobs[a].UpdatedAt.After(jobs[b].UpdatedAt)
	})
}

// page applies offset/limit. limit <= 0 means no limit.
func page(jobs []*job.Job, limit, offset int) []*job.Job {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(jobs) {
		return []*job.Job{}
	}
	jobs = jobs[offset:]
	if limit > 0 && limit < len(jobs) {
		jobs = jobs[:limit]
	}
	return jobs
}

// selectJobs decodes, filters, sorts and pages a set of raw documents.
func selectJobs(docs [][]byte, f Filter, limit, offset int) ([]*job.Job, int, error) {
	matched := make([]*job.Job, 0, len(docs))
	for _, doc := range docs {
		var j job.Job
		if err := json.Unmarshal(doc, &j); err != nil {
			return nil, 0, fmt.Errorf("decode job document: %w", err)
		}
		if f.matches(&j) {
			jj := j
			matched = append(matched, &jj)
		}
	}
	sortJobs(matched)
	total := len(matched)
	return page(matched, limit, offset), total, nil
}
