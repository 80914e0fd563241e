package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/guiyumin/vscribe/internal/core/transcriber"
)

// Pool is what an execution substrate has to provide: spawn its workers,
// dispatch one segment, and hand back that segment's text. Execute drives a
// Pool the same way whether it is backed by goroutines or child processes.
type Pool interface {
	// Start brings the workers up. A failure here is a worker-level failure.
	Start(ctx context.Context) error

	// Dispatch transcribes one segment. It may be called concurrently.
	Dispatch(ctx context.Context, seg SegmentDescriptor) (string, error)

	// Close tears the workers down.
	Close() error
}

// Opener loads the model a ThreadPool shares between its goroutines.
type Opener func(ctx context.Context) (transcriber.Transcriber, error)

// ThreadPool runs segments on goroutines that share one loaded model. Several
// workers may hold the same ThreadPool: the model is opened by the first
// Start and closed by the last Close.
type ThreadPool struct {
	open Opener

	mu    sync.Mutex
	refs  int
	model transcriber.Transcriber
}

// NewThreadPool returns a pool that opens its model with open.
func NewThreadPool(open Opener) *ThreadPool {
	return &ThreadPool{open: open}
}

func (p *ThreadPool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.model == nil {
		m, err := p.open(ctx)
		if err != nil {
			return fmt.Errorf("failed to load model: %w", err)
		}
		p.model = m
	}
	p.refs++
	return nil
}

func (p *ThreadPool) Dispatch(ctx context.Context, seg SegmentDescriptor) (string, error) {
	p.mu.Lock()
	m := p.model
	p.mu.Unlock()
	if m == nil {
		return "", errors.New("thread pool not started")
	}

	res, err := m.Transcribe(ctx, seg.Path)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

func (p *ThreadPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.refs == 0 {
		return nil
	}
	p.refs--
	if p.refs > 0 || p.model == nil {
		return nil
	}
	err := p.model.Close()
	p.model = nil
	return err
}
