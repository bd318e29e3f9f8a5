package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"vidrelay/internal/telemetry"
)

// Supervisor owns the goroutines spawned for jobs so they can be counted and
// drained on shutdown. Jobs are never cancelled individually.
type Supervisor struct {
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inflight atomic.Int64
}

// NewSupervisor derives the job context from parent.
func NewSupervisor(parent context.Context) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	return &Supervisor{ctx: ctx, cancel: cancel}
}

// Go runs fn in a tracked goroutine.
func (s *Supervisor) Go(fn func(ctx context.Context)) {
	s.wg.Add(1)
	s.inflight.Add(1)
	telemetry.JobsInFlight.Inc()
	go func() {
		defer func() {
			s.inflight.Add(-1)
			telemetry.JobsInFlight.Dec()
			s.wg.Done()
		}()
		fn(s.ctx)
	}()
}

// InFlight returns the number of running job goroutines.
func (s *Supervisor) InFlight() int64 {
	return s.inflight.Load()
}

// Wait blocks until every tracked goroutine returned or ctx is done.
func (s *Supervisor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels the job context and waits for goroutines to exit.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.Wait(ctx)
}
