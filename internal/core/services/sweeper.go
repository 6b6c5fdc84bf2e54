package services

import (
	"context"
	"sync"
	"time"

	"github.com/shokudev/kura/internal/core/ports/driving"
	"github.com/shokudev/kura/internal/logger"
)

// Sweeper periodically reclaims documents stuck mid-pipeline, for
// example after a crash left them in the processing state.
type Sweeper struct {
	ingest    driving.IngestService
	interval  time.Duration
	threshold time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewSweeper creates a sweeper that checks every interval for documents
// stuck longer than threshold.
func NewSweeper(ingest driving.IngestService, interval, threshold time.Duration) *Sweeper {
	return &Sweeper{
		ingest:    ingest,
		interval:  interval,
		threshold: threshold,
	}
}

// Start begins the sweep loop in the background. Calling Start on a
// running sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop shuts the sweeper down and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

// run is the sweep loop. The first sweep happens after one interval,
// not immediately, so a fresh start does not reclaim documents that are
// legitimately still processing.
func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs one reclamation pass.
func (s *Sweeper) sweep(ctx context.Context) {
	reclaimed, err := s.ingest.SweepStale(ctx, s.threshold)
	if err != nil {
		logger.Warn("stale sweep failed: %v", err)
		return
	}
	if reclaimed > 0 {
		logger.Info("stale sweep reclaimed %d document(s)", reclaimed)
	}
}
