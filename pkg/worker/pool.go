package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/nextid/blockchain/pkg/logger"
)

// ErrPoolClosed is returned when submitting a task to a closed pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Task is a unit of work executed by the pool.
type Task func(ctx context.Context) error

// Pool executes tasks on a fixed set of workers. It is used for
// fire-and-forget side work (failure reports, receipt writes) so callers
// never block on slow collaborators.
type Pool struct {
	name        string
	workerCount int
	log         *zap.Logger
	tasks       chan Task
	wg          sync.WaitGroup
	cancel      context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool with the given number of workers and queue size.
func NewPool(name string, workers, queueSize int, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if log == nil {
		log = logger.Get()
	}
	return &Pool{
		name:        name,
		workerCount: workers,
		log:         log.With(zap.String("pool", name)),
		tasks:       make(chan Task, queueSize),
	}
}

// Start launches the workers. Must be called before Submit.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.log.Debug("worker pool started", zap.Int("workers", p.workerCount))
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			if err := task(ctx); err != nil {
				p.log.Warn("task failed", zap.Error(err))
			}
		}
	}
}

// Submit enqueues a task. Returns ErrPoolClosed after Stop. When the queue
// is full the task is dropped rather than blocking the caller. The mutex is
// held across the send so Stop cannot close the queue mid-submit.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		p.log.Warn("task dropped: queue full")
		return nil
	}
}

// Stop closes the queue and waits for in-flight tasks to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	if p.cancel != nil {
		p.cancel()
	}
}
