// Package pool implements a fixed-capacity, cancellation-safe container of
// reusable workers, handed out one at a time via FIFO-served leases.
//
// Lock ordering: mu guards free/waiting/rendez/closed/ticketSeq only. No suspending
// operation ever runs while mu is held.
package pool

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/unixpickle/mapscrape/internal/types"
)

// WorkerPool manages up to capacity instances of W, handed out exclusively
// to callers of Lease and returned to the pool when the Lease is released.
type WorkerPool[W io.Closer] struct {
	mu       sync.Mutex
	free     []W
	waiting  []uint64           // FIFO order of outstanding ticket numbers
	rendez   map[uint64]chan W  // one-shot rendezvous slot per ticket
	ticketSeq uint64
	closed   bool
	capacity int

	acquired atomic.Int64
	released atomic.Int64
}

// Factory constructs one worker. New calls it capacity times.
type Factory[W io.Closer] func(ctx context.Context) (W, error)

// New eagerly constructs capacity workers via factory. If any construction
// fails, workers already built are closed and the error is returned.
func New[W io.Closer](ctx context.Context, capacity int, factory Factory[W]) (*WorkerPool[W], error) {
	p := &WorkerPool[W]{
		free:     make([]W, 0, capacity),
		rendez:   make(map[uint64]chan W),
		capacity: capacity,
	}
	for i := 0; i < capacity; i++ {
		w, err := factory(ctx)
		if err != nil {
			for _, built := range p.free {
				_ = built.Close()
			}
			return nil, err
		}
		p.free = append(p.free, w)
	}
	log.Info().Int("capacity", capacity).Msg("worker pool ready")
	return p, nil
}

// Lease is an exclusive, single-use handle to a worker. Callers must call
// Release exactly once.
type Lease[W io.Closer] struct {
	pool   *WorkerPool[W]
	worker W
}

// Worker returns the leased worker.
func (l *Lease[W]) Worker() W { return l.worker }

// Release returns the worker to the pool, handing it to the next FIFO
// waiter if one is queued.
func (l *Lease[W]) Release() {
	l.pool.release(l.worker)
}

// Lease blocks until a worker is available or ctx is done or the pool is
// closed. On cancellation it guarantees no worker is ever leaked: if a
// worker was already deposited into this waiter's rendezvous slot in the
// race between release and cancel, it is routed back into the pool.
func (p *WorkerPool[W]) Lease(ctx context.Context) (*Lease[W], error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, types.ErrPoolClosed
	}
	if n := len(p.free); n > 0 {
		w := p.free[n-1]
		p.free = p.free[:n-1]
		p.acquired.Add(1)
		p.mu.Unlock()
		return &Lease[W]{pool: p, worker: w}, nil
	}

	ticket := p.ticketSeq
	p.ticketSeq++
	slot := make(chan W, 1)
	p.rendez[ticket] = slot
	p.waiting = append(p.waiting, ticket)
	p.mu.Unlock()

	select {
	case w, ok := <-slot:
		if !ok {
			return nil, types.ErrPoolClosed
		}
		p.acquired.Add(1)
		return &Lease[W]{pool: p, worker: w}, nil
	case <-ctx.Done():
		p.abandon(ticket, slot)
		return nil, ctx.Err()
	}
}

// abandon removes ticket from the wait queue and, if a worker had already
// been deposited into slot before cancellation could remove the ticket in
// time, routes that worker back through the normal release path instead of
// letting it leak.
func (p *WorkerPool[W]) abandon(ticket uint64, slot chan W) {
	p.mu.Lock()
	for i, t := range p.waiting {
		if t == ticket {
			p.waiting = append(p.waiting[:i], p.waiting[i+1:]...)
			break
		}
	}
	delete(p.rendez, ticket)
	p.mu.Unlock()

	select {
	case w, ok := <-slot:
		if ok {
			p.release(w)
		}
	default:
	}
}

// release hands w to the head of the wait queue if one is present,
// otherwise returns it to the free set. The deposit into the ticket's
// rendezvous slot happens while mu is still held, so abandon can never
// observe the ticket as gone from rendez without the worker already being
// in the channel: slot has buffer 1 and exactly one writer per ticket, so
// the send here never blocks.
func (p *WorkerPool[W]) release(w W) {
	p.mu.Lock()
	p.released.Add(1)
	for len(p.waiting) > 0 {
		ticket := p.waiting[0]
		p.waiting = p.waiting[1:]
		slot, ok := p.rendez[ticket]
		delete(p.rendez, ticket)
		if !ok {
			continue
		}
		slot <- w
		p.mu.Unlock()
		return
	}
	p.free = append(p.free, w)
	p.mu.Unlock()
}

// Close blocks new leases, abandons queued waiters with ErrPoolClosed,
// reclaims every worker (including those currently leased, by waiting for
// their leases to drop), and invokes shutdown on each reclaimed worker
// exactly once. It returns when all capacity workers have been shut down.
func (p *WorkerPool[W]) Close(shutdown func(W) error) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true

	// Queued waiters are abandoned with PoolClosed, not served: close every
	// outstanding rendezvous slot now so blocked Lease calls return
	// immediately, before any drain waiter can race a real release into
	// one of their slots.
	for _, ticket := range p.waiting {
		if slot, ok := p.rendez[ticket]; ok {
			close(slot)
			delete(p.rendez, ticket)
		}
	}
	p.waiting = nil

	freeNow := p.free
	p.free = nil

	remaining := p.capacity - len(freeNow)
	drainSinks := make([]chan W, 0, remaining)
	for i := 0; i < remaining; i++ {
		ticket := p.ticketSeq
		p.ticketSeq++
		sink := make(chan W, 1)
		p.rendez[ticket] = sink
		p.waiting = append(p.waiting, ticket)
		drainSinks = append(drainSinks, sink)
	}
	p.mu.Unlock()

	var eg errgroup.Group
	for _, w := range freeNow {
		w := w
		eg.Go(func() error { return shutdown(w) })
	}
	for _, sink := range drainSinks {
		sink := sink
		eg.Go(func() error {
			w := <-sink
			return shutdown(w)
		})
	}
	err := eg.Wait()

	p.mu.Lock()
	p.waiting = nil
	p.rendez = nil
	p.mu.Unlock()

	log.Info().Int("capacity", p.capacity).Msg("worker pool closed")
	return err
}

// Stats reports cumulative lease/release counts, useful for metrics.
func (p *WorkerPool[W]) Stats() (acquired, released int64) {
	return p.acquired.Load(), p.released.Load()
}
