package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrShutdownTimeout is returned when workers don't stop within timeout.
var ErrShutdownTimeout = errors.New("worker pool shutdown timed out")

// ErrPoolStopped is returned by Run once Stop has been called.
var ErrPoolStopped = errors.New("worker pool stopped")

// Task processes item i of a batch. Results are written by the task into a
// caller-owned slot for i, which keeps output order independent of
// completion order.
type Task func(ctx context.Context, i int) error

// Pool bounds how many tasks run at once across every caller.
type Pool struct {
	workers int
	jobs    chan func()
	logger  *slog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Config holds worker pool configuration.
type Config struct {
	Workers int
}

// NewPool creates a new worker pool.
func NewPool(cfg Config, logger *slog.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		workers: cfg.Workers,
		jobs:    make(chan func()),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Workers returns the concurrency limit.
func (p *Pool) Workers() int {
	return p.workers
}

// Start launches all workers.
func (p *Pool) Start() {
	p.logger.Info("starting worker pool", "workers", p.workers)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop(timeout time.Duration) error {
	p.logger.Info("stopping worker pool")
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	logger := p.logger.With("worker_id", id)
	logger.Debug("worker started")

	for {
		select {
		case <-p.ctx.Done():
			logger.Debug("worker stopping")
			return
		case job := <-p.jobs:
			job()
		}
	}
}

// Run executes task for every i in [0, n) and blocks until all submitted
// tasks have returned. The first task error cancels the context handed to
// the others, stops further submission and is returned. If ctx is
// cancelled first, its error is returned.
func (p *Pool) Run(ctx context.Context, n int, task Task) error {
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
		stopped  bool
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

submit:
	for i := 0; i < n; i++ {
		idx := i
		wg.Add(1)
		job := func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			if err := task(ctx, idx); err != nil {
				fail(err)
			}
		}

		select {
		case p.jobs <- job:
		case <-ctx.Done():
			wg.Done()
			break submit
		case <-p.ctx.Done():
			wg.Done()
			stopped = true
			break submit
		}
	}

	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if err := parent.Err(); err != nil {
		return err
	}
	if stopped {
		return ErrPoolStopped
	}
	return nil
}
