// Package pool provides the bounded worker pool that caps concurrent team
// formation and negotiation resolution work. The pool keeps a core set of
// workers alive, grows to a maximum under load, and rejects submissions once
// the queue is full, so resource use stays bounded regardless of caller
// behavior.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrPoolClosed = errors.New("pool is closed")
	ErrPoolFull   = errors.New("pool queue is full")
)

// Task is a unit of work.
type Task func(ctx context.Context) error

// Config bounds the pool. The reference deployment uses core 10, max 50,
// queue 100.
type Config struct {
	CoreWorkers int           `json:"core_workers" yaml:"core_workers"`
	MaxWorkers  int           `json:"max_workers" yaml:"max_workers"`
	QueueSize   int           `json:"queue_size" yaml:"queue_size"`
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
	// PanicHandler is invoked when a task panics.
	PanicHandler func(any) `json:"-" yaml:"-"`
}

// DefaultConfig returns the reference bounds.
func DefaultConfig() Config {
	return Config{
		CoreWorkers: 10,
		MaxWorkers:  50,
		QueueSize:   100,
		IdleTimeout: 60 * time.Second,
	}
}

// WorkerPool is a bounded pool of worker goroutines.
type WorkerPool struct {
	config    Config
	taskQueue chan taskWrapper

	workerCount atomic.Int32
	activeCount atomic.Int32
	closed      atomic.Bool
	wg          sync.WaitGroup

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

type taskWrapper struct {
	task   Task
	ctx    context.Context
	result chan error
}

// New creates a worker pool. Core workers spawn lazily on first submission.
func New(config Config) *WorkerPool {
	if config.CoreWorkers <= 0 {
		config.CoreWorkers = 1
	}
	if config.MaxWorkers < config.CoreWorkers {
		config.MaxWorkers = config.CoreWorkers
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 60 * time.Second
	}
	return &WorkerPool{
		config:    config,
		taskQueue: make(chan taskWrapper, config.QueueSize),
	}
}

// Submit enqueues a task without waiting for it. Returns ErrPoolFull when
// the queue is saturated and no additional worker can be spawned.
func (p *WorkerPool) Submit(ctx context.Context, task Task) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	p.submitted.Add(1)

	wrapper := taskWrapper{task: task, ctx: ctx}
	select {
	case p.taskQueue <- wrapper:
		p.ensureWorker()
		return nil
	default:
		if p.trySpawnWorker() {
			select {
			case p.taskQueue <- wrapper:
				return nil
			default:
			}
		}
		p.rejected.Add(1)
		return ErrPoolFull
	}
}

// SubmitWait enqueues a task and blocks until it completes or ctx is done.
func (p *WorkerPool) SubmitWait(ctx context.Context, task Task) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	p.submitted.Add(1)

	wrapper := taskWrapper{task: task, ctx: ctx, result: make(chan error, 1)}
	select {
	case p.taskQueue <- wrapper:
		p.ensureWorker()
	case <-ctx.Done():
		p.rejected.Add(1)
		return ctx.Err()
	}

	select {
	case err := <-wrapper.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *WorkerPool) ensureWorker() {
	if p.workerCount.Load() < int32(p.config.MaxWorkers) {
		p.trySpawnWorker()
	}
}

func (p *WorkerPool) trySpawnWorker() bool {
	for {
		current := p.workerCount.Load()
		if current >= int32(p.config.MaxWorkers) {
			return false
		}
		if p.workerCount.CompareAndSwap(current, current+1) {
			p.wg.Add(1)
			go p.worker()
			return true
		}
	}
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	defer p.workerCount.Add(-1)

	timer := time.NewTimer(p.config.IdleTimeout)
	defer timer.Stop()

	for {
		select {
		case wrapper, ok := <-p.taskQueue:
			if !ok {
				return
			}

			p.activeCount.Add(1)
			err := p.executeTask(wrapper)
			p.activeCount.Add(-1)

			if wrapper.result != nil {
				wrapper.result <- err
				close(wrapper.result)
			}
			if err != nil {
				p.failed.Add(1)
			} else {
				p.completed.Add(1)
			}
			timer.Reset(p.config.IdleTimeout)

		case <-timer.C:
			// Idle workers above the core size retire.
			if p.workerCount.Load() > int32(p.config.CoreWorkers) {
				return
			}
			timer.Reset(p.config.IdleTimeout)
		}
	}
}

func (p *WorkerPool) executeTask(wrapper taskWrapper) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if p.config.PanicHandler != nil {
				p.config.PanicHandler(r)
			}
			err = errors.New("task panicked")
		}
	}()
	return wrapper.task(wrapper.ctx)
}

// Close stops accepting tasks and waits for workers to drain.
func (p *WorkerPool) Close() {
	if p.closed.Swap(true) {
		return
	}
	close(p.taskQueue)
	p.wg.Wait()
}

// Stats reports pool counters.
func (p *WorkerPool) Stats() Stats {
	return Stats{
		Workers:   int(p.workerCount.Load()),
		Active:    int(p.activeCount.Load()),
		Queued:    len(p.taskQueue),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}

// Stats contains pool counters.
type Stats struct {
	Workers   int   `json:"workers"`
	Active    int   `json:"active"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}
