package pipeline

import (
	"context"
	"errors"
	"log"
	"runtime"
	"sync"

	"github.com/google/uuid"
)

// ErrUnavailable is returned by Submit after the pool has begun shutting down.
var ErrUnavailable = errors.New("pipeline pool unavailable")

// Pool executes admission runs on a bounded set of background workers. A full
// queue never blocks the caller: overflow submissions park in a goroutine
// until a worker frees a slot. Shutdown drains queued and in-flight runs.
type Pool struct {
	jobs chan uuid.UUID
	run  func(context.Context, uuid.UUID)

	// mu is held for reading across every send so Shutdown can close the
	// channel only once all parked senders have delivered.
	mu      sync.RWMutex
	closed  bool
	workers sync.WaitGroup
}

// NewPool starts `workers` workers (0 means the host's available parallelism)
// over a queue of `queue` slots.
func NewPool(workers, queue int, run func(context.Context, uuid.UUID)) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queue <= 0 {
		queue = workers * 4
	}
	p := &Pool{
		jobs: make(chan uuid.UUID, queue),
		run:  run,
	}
	for i := 0; i < workers; i++ {
		p.workers.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.workers.Done()
	for id := range p.jobs {
		p.safeRun(id)
	}
}

func (p *Pool) safeRun(id uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("pipeline: run panicked for %s: %v", id, r)
		}
	}()
	p.run(context.Background(), id)
}

// Submit schedules a run for the given record id and returns immediately; the
// run executes in the background.
func (p *Pool) Submit(id uuid.UUID) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrUnavailable
	}
	select {
	case p.jobs <- id:
		p.mu.RUnlock()
	default:
		go func() {
			defer p.mu.RUnlock()
			p.jobs <- id
		}()
	}
	return nil
}

// Shutdown refuses new submissions and drains queued and in-flight runs until
// the context expires; on timeout the remaining runs finish in the background.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		// Taking the write lock waits out every parked sender.
		p.mu.Lock()
		close(p.jobs)
		p.mu.Unlock()
		p.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
