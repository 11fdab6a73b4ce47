// Package workerpool provides the bounded goroutine pool that plugin
// background tasks run on. Workers start lazily and are reused across
// tasks so a plugin fanning out hundreds of lookups does not create
// hundreds of goroutines.
package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/waftester/scanhost/pkg/defaults"
)

// Pool manages a fixed set of worker goroutines fed from a buffered queue.
type Pool struct {
	workers int32
	tasks   chan func()

	running atomic.Int32
	active  atomic.Int32
	closed  atomic.Bool

	// mu guards sends on tasks against Close.
	mu sync.RWMutex
	wg sync.WaitGroup

	onPanic func(any)
}

// Option configures a Pool.
type Option func(*Pool)

// WithPanicHandler sets the function called with the recovered value when
// a task panics. The worker survives either way.
func WithPanicHandler(fn func(any)) Option {
	return func(p *Pool) { p.onPanic = fn }
}

// New creates a pool with the given number of workers. Non-positive
// values fall back to GOMAXPROCS; values above defaults.ConcurrencyMax
// are clamped.
func New(workers int, opts ...Option) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > defaults.ConcurrencyMax {
		workers = defaults.ConcurrencyMax
	}

	p := &Pool{
		workers: int32(workers),
		tasks:   make(chan func(), workers*16), // Buffered for burst handling
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit queues task, blocking while the queue is full.
// Returns false if the pool is closed.
func (p *Pool) Submit(task func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() {
		return false
	}

	p.grow()
	p.tasks <- task
	return true
}

// TrySubmit queues task only if there is room right now.
// Returns false if the queue is full or the pool is closed.
func (p *Pool) TrySubmit(task func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() {
		return false
	}

	p.grow()
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// grow starts one more worker if below capacity.
func (p *Pool) grow() {
	for {
		running := p.running.Load()
		if running >= p.workers {
			return
		}
		if p.running.CompareAndSwap(running, running+1) {
			p.wg.Add(1)
			go p.worker()
			return
		}
	}
}

func (p *Pool) worker() {
	defer func() {
		p.running.Add(-1)
		p.wg.Done()
	}()

	for task := range p.tasks {
		p.run(task)
	}
}

func (p *Pool) run(task func()) {
	if task == nil {
		return
	}
	p.active.Add(1)
	defer func() {
		p.active.Add(-1)
		if r := recover(); r != nil && p.onPanic != nil {
			p.onPanic(r)
		}
	}()
	task()
}

// Running returns the number of live workers.
func (p *Pool) Running() int { return int(p.running.Load()) }

// Busy returns the number of workers currently executing a task.
func (p *Pool) Busy() int { return int(p.active.Load()) }

// Cap returns the worker capacity.
func (p *Pool) Cap() int { return int(p.workers) }

// Waiting returns the number of queued tasks.
func (p *Pool) Waiting() int { return len(p.tasks) }

// Close stops accepting tasks and waits for queued ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed.Swap(true) {
		p.mu.Unlock()
		return
	}
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}

// IsClosed reports whether Close has been called.
func (p *Pool) IsClosed() bool { return p.closed.Load() }
