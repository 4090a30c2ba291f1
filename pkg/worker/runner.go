package worker

import (
	"context"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// InlineRunner runs tasks on the calling goroutine.
type InlineRunner struct {
	registry *Registry
}

var _ Runner = (*InlineRunner)(nil)

// NewInlineRunner returns a runner over registry.
func NewInlineRunner(registry *Registry) *InlineRunner {
	return &InlineRunner{registry: registry}
}

func (r *InlineRunner) Run(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	return r.registry.execute(ctx, req), nil
}

func (r *InlineRunner) Close() error { return nil }

type job struct {
	ctx    context.Context
	req    Request
	result chan<- Response
}

// PoolRunner runs tasks on a fixed set of goroutines.
type PoolRunner struct {
	registry *Registry
	logger   zerolog.Logger
	jobs     chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ Runner = (*PoolRunner)(nil)

// PoolOption configures a PoolRunner.
type PoolOption func(*PoolRunner)

// WithPoolLogger sets the logger of the pool.
func WithPoolLogger(logger zerolog.Logger) PoolOption {
	return func(p *PoolRunner) { p.logger = logger }
}

// NewPoolRunner starts size workers. A size below one means GOMAXPROCS.
func NewPoolRunner(registry *Registry, size int, opts ...PoolOption) *PoolRunner {
	if size < 1 {
		size = runtime.GOMAXPROCS(0)
	}
	p := &PoolRunner{
		registry: registry,
		logger:   zerolog.Nop(),
		jobs:     make(chan job),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.work(i)
	}
	p.logger.Debug().Int("size", size).Msg("worker: pool started")
	return p
}

func (p *PoolRunner) work(n int) {
	defer p.wg.Done()
	for j := range p.jobs {
		p.logger.Debug().Int("worker", n).Str("task", j.req.TaskName).Str("id", j.req.ID.String()).Msg("worker: running task")
		j.result <- p.registry.execute(j.ctx, j.req)
	}
}

func (p *PoolRunner) Run(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return Response{}, ErrClosed
	}
	result := make(chan Response, 1)
	select {
	case p.jobs <- job{ctx: ctx, req: req, result: result}:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		return Response{}, ctx.Err()
	}

	select {
	case resp := <-result:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Close stops accepting tasks and waits for running ones to finish.
func (p *PoolRunner) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}
