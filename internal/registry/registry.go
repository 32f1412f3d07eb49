// Package registry maps job types to executable handlers. Toolkit worker
// modules populate the table through their registration entrypoints; the
// registry never imports toolkit code itself.
package registry

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/toolfleet/toolfleet/internal/broker"
	"github.com/toolfleet/toolfleet/internal/job"
)

// Handler performs the work for one job type. It may report progress
// through the runtime any number of times and returns the (possibly
// mutated) job. Setting a terminal status is optional; the task runner
// finalizes.
type Handler func(ctx context.Context, rt *Runtime, j *job.Job) (*job.Job, error)

// RegisterFunc is the registration entrypoint contract exposed to toolkit
// worker modules: it receives the execution-backend handle and a register
// callback, and calls the callback zero or more times.
type RegisterFunc func(backend broker.Broker, register func(jobType string, h Handler))

// Loader locates a toolkit's worker entrypoint. The dynamic loading
// mechanism behind it is an external collaborator; found=false simply
// means the toolkit has no worker module.
type Loader interface {
	ResolveWorkerEntrypoint(toolkitSlug string) (RegisterFunc, bool)
}

// Registry is an explicit handler table owned by the worker's startup
// sequence and injected where needed. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	handlers  map[string]Handler
	attempted map[string]bool
	loader    Loader
	backend   broker.Broker
	logger    *slog.Logger
}

// New creates a registry. loader may be nil, disabling lazy loading.
func New(loader Loader, backend broker.Broker, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handlers:  make(map[string]Handler),
		attempted: make(map[string]bool),
		loader:    loader,
		backend:   backend,
		logger:    logger,
	}
}

// Register installs a handler for a job type. Re-registering replaces the
// prior handler: toolkit modules may be loaded more than once, so last
// registration wins.
func (r *Registry) Register(jobType string, h Handler) {
	if jobType == "" || h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[jobType]; exists {
		r.logger.Debug("replacing handler", "type", jobType)
	}
	r.handlers[jobType] = h
}

// Types returns the registered job types, for diagnostics.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}

// Resolve returns the handler for a "<toolkit>.<operation>" job type. On
// a miss it makes at most one lazy-load pass per toolkit through the
// Loader; a toolkit without a worker entrypoint is simply unresolved,
// never an error.
func (r *Registry) Resolve(jobType string) (Handler, bool) {
	r.mu.RLock()
	h, ok := r.handlers[jobType]
	r.mu.RUnlock()
	if ok {
		return h, true
	}

	toolkit := jobType
	if i := strings.Index(jobType, "."); i >= 0 {
		toolkit = jobType[:i]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have loaded the toolkit while we upgraded
	// the lock.
	if h, ok := r.handlers[jobType]; ok {
		return h, true
	}
	if r.attempted[toolkit] || r.loader == nil {
		return nil, false
	}
	r.attempted[toolkit] = true

	entry, found := r.loader.ResolveWorkerEntrypoint(toolkit)
	if !found {
		r.logger.Debug("toolkit has no worker entrypoint", "toolkit", toolkit)
		return nil, false
	}

	entry(r.backend, func(jobType string, h Handler) {
		if jobType == "" || h == nil {
			return
		}
		r.handlers[jobType] = h
	})
	r.logger.Info("toolkit worker registered", "toolkit", toolkit)

	h, ok = r.handlers[jobType]
	return h, ok
}
