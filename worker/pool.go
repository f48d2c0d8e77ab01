package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/slackmgr/types"
	"golang.org/x/sync/errgroup"
)

// ErrShutdownTimeout is returned by [Pool.Stop] when a worker did not return
// within the timeout.
var ErrShutdownTimeout = errors.New("workers did not stop within the shutdown timeout")

// Runner is a long-running loop that returns once its context is cancelled.
// *Worker implements it.
type Runner interface {
	Run(ctx context.Context) error
}

// Pool runs a fixed set of workers, each with its own cancellation.
// If one worker fails, the others are cancelled.
type Pool struct {
	runners []Runner
	logger  types.Logger

	mu      sync.Mutex
	cancels []context.CancelFunc
	done    chan struct{}
	err     error
}

// NewPool creates a Pool for runners. Nothing runs until [Pool.Start].
func NewPool(runners []Runner, logger types.Logger) *Pool {
	return &Pool{
		runners: runners,
		logger:  logger.WithField("workers", len(runners)),
		done:    make(chan struct{}),
	}
}

// Start launches every worker. It must be called once.
func (p *Pool) Start(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)

	p.mu.Lock()
	for _, r := range p.runners {
		wctx, cancel := context.WithCancel(gctx)
		p.cancels = append(p.cancels, cancel)

		g.Go(func() error {
			defer cancel()
			return r.Run(wctx)
		})
	}
	p.mu.Unlock()

	go func() {
		p.err = g.Wait()
		close(p.done)
	}()

	p.logger.Info("Worker pool started")
}

// Wait blocks until every worker has returned and returns the first worker
// error.
func (p *Pool) Wait() error {
	<-p.done
	return p.err
}

// Stop cancels every worker and waits up to timeout for them to return.
// Workers still running afterwards are abandoned and [ErrShutdownTimeout]
// is returned; the caller is expected to exit the process.
func (p *Pool) Stop(timeout time.Duration) error {
	p.mu.Lock()
	for _, cancel := range p.cancels {
		cancel()
	}
	p.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		p.logger.Info("Worker pool stopped")
		return p.err
	case <-timer.C:
		p.logger.WithField("timeout", timeout).Error("Worker pool did not stop in time")
		return ErrShutdownTimeout
	}
}
