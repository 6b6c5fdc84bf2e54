// Package taskqueue provides in-process background task execution for
// the ingestion pipeline.
package taskqueue

import (
	"context"
	"sync"

	"github.com/shokudev/kura/internal/core/ports/driven"
	"github.com/shokudev/kura/internal/logger"
)

// Ensure implementations satisfy the interface.
var (
	_ driven.TaskQueue = (*Runner)(nil)
	_ driven.TaskQueue = (*Synchronous)(nil)
)

// Handler processes one submitted document.
type Handler func(ctx context.Context, documentID string, content []byte) error

// Runner executes each submitted task on its own goroutine.
type Runner struct {
	handler Handler
	wg      sync.WaitGroup
}

// NewRunner creates a goroutine-backed task queue.
func NewRunner(handler Handler) *Runner {
	return &Runner{handler: handler}
}

// Submit schedules processing and returns immediately.
func (r *Runner) Submit(documentID string, content []byte) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.handler(context.Background(), documentID, content); err != nil {
			logger.Warn("task %s failed: %v", documentID, err)
		}
	}()
}

// Wait blocks until all submitted tasks have finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Synchronous runs each task inline on the submitting goroutine.
// Used by one-shot CLI commands and tests, where deferred execution
// only complicates the flow.
type Synchronous struct {
	handler Handler
}

// NewSynchronous creates an inline task queue.
func NewSynchronous(handler Handler) *Synchronous {
	return &Synchronous{handler: handler}
}

// Submit processes the document before returning.
func (s *Synchronous) Submit(documentID string, content []byte) {
	if err := s.handler(context.Background(), documentID, content); err != nil {
		logger.Warn("task %s failed: %v", documentID, err)
	}
}

// Wait is a no-op; Submit never returns with work outstanding.
func (s *Synchronous) Wait() {}
