// Package supervisor owns the long-lived background tasks spec.md §9
// describes as singletons: the Purchase Worker Pool's queue consumer loop
// and the Lifecycle Ticker. Both run for the lifetime of the process and
// are started/stopped together by main.go.
package supervisor

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/queue"
)

// QueueConsumer is the Job Queue surface the Supervisor drives.
type QueueConsumer interface {
	Process(ctx context.Context, concurrency int, handler queue.Handler) error
	Close(ctx context.Context) error
}

// LifecycleRunner is the Lifecycle Ticker surface the Supervisor drives.
type LifecycleRunner interface {
	Run(ctx context.Context)
}

// Supervisor starts and stops the worker pool's queue consumer and the
// lifecycle ticker as a unit.
type Supervisor struct {
	q           QueueConsumer
	handler     queue.Handler
	concurrency int
	ticker      LifecycleRunner

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Supervisor. concurrency is the number of worker goroutines
// the queue consumer runs (spec.md §9's worker pool size).
func New(q QueueConsumer, handler queue.Handler, concurrency int, ticker LifecycleRunner) *Supervisor {
	return &Supervisor{q: q, handler: handler, concurrency: concurrency, ticker: ticker}
}

// Start launches the queue consumer and lifecycle ticker as background
// goroutines, both scoped to a context derived from ctx. It returns
// immediately; call Stop to shut both down.
func (s *Supervisor) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.q.Process(runCtx, s.concurrency, s.handler); err != nil {
			log.Error().Err(err).Msg("supervisor: queue consumer exited")
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.ticker.Run(runCtx)
	}()

	log.Info().Int("concurrency", s.concurrency).Msg("supervisor: started worker pool and lifecycle ticker")
}

// Stop cancels both background tasks and waits for them to exit, then
// closes the queue. shutdownCtx bounds how long Close may take.
func (s *Supervisor) Stop(shutdownCtx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn().Msg("supervisor: shutdown timed out waiting for background tasks")
	}

	return s.q.Close(shutdownCtx)
}
