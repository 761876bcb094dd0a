// Package worker implements the C11 queue/worker harness: a SQL-backed job
// queue (job_run) polled by one Worker per named queue, dispatching claimed
// jobs to handlers registered by job_type (§5.1).
package worker

import (
	"fmt"
	"sync"
)

// Handler is the minimal contract a job_type implementation must satisfy.
// Handlers must be side-effect safe under retries: a job may be re-claimed
// and re-run after a partial execution left no terminal status behind.
type Handler interface {
	Type() string
	Run(ctx *Context) error
}

// Registry maps job_type to the handler responsible for it. At most one
// handler may be registered per job_type; registration happens once at
// startup, lookups happen concurrently from every worker goroutine.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	t := h.Type()
	if t == "" {
		return fmt.Errorf("handler Type() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[t]; exists {
		return fmt.Errorf("handler already registered for job_type=%s", t)
	}
	r.handlers[t] = h
	return nil
}

func (r *Registry) Get(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}
