package worker

import (
	"context"
	"sync"

	"github.com/HankHuang0516/wishlist-app-sub000/internal/logger"
)

// Task is a unit of background work. The context is the pool's base context,
// cancelled when the pool shuts down.
type Task func(ctx context.Context)

// Pool runs fire-and-forget tasks on a fixed set of workers. Submission never
// blocks the caller: a full queue is reported, not waited on.
type Pool struct {
	tasks   chan Task
	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
	log     *logger.Logger

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool with the given worker count and queue size and
// starts its workers.
func NewPool(workers, queueSize int, log *logger.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = workers * 2
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		tasks:   make(chan Task, queueSize),
		baseCtx: ctx,
		cancel:  cancel,
		log:     log,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			for task := range p.tasks {
				p.run(workerID, task)
			}
		}(i)
	}
	return p
}

// run executes one task, containing panics so a bad task cannot kill a worker.
func (p *Pool) run(workerID int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithFields(logger.Fields{
				"worker": workerID,
				"panic":  r,
			}).Error("Background task panicked")
		}
	}()
	task(p.baseCtx)
}

// Submit enqueues a task without blocking. Returns false when the queue is
// full or the pool has been shut down.
func (p *Pool) Submit(task Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.tasks <- task:
		return true
	default:
		p.log.Warn("Task queue full, rejecting background task")
		return false
	}
}

// Shutdown stops accepting tasks and waits for in-flight work, bounded by
// ctx. Running tasks keep an un-cancelled context until the bound expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}
