package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// CommandFunc builds the command line of one worker process. The process must
// speak the ServeWorker protocol on its stdin and stdout.
type CommandFunc func(ctx context.Context) *exec.Cmd

// ProcessPool keeps a fixed number of worker processes, each with its own
// model, and lends one out per Dispatch. A process that dies mid-request
// fails that segment and is replaced for the next one.
type ProcessPool struct {
	command CommandFunc
	size    int
	stderr  io.Writer

	ctx   context.Context
	idle  chan *child
	mu    sync.Mutex
	live  map[*child]struct{}
	slots int
	dead  chan struct{}
	once  sync.Once
}

type child struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	enc   *json.Encoder
	dec   *json.Decoder
}

// NewProcessPool returns a pool of size processes started with command.
func NewProcessPool(command CommandFunc, size int) *ProcessPool {
	if size <= 0 {
		size = 1
	}
	return &ProcessPool{
		command: command,
		size:    size,
		stderr:  os.Stderr,
	}
}

// SetStderr redirects the worker processes' stderr. It must be called before Start.
func (p *ProcessPool) SetStderr(w io.Writer) {
	p.stderr = w
}

func (p *ProcessPool) Start(ctx context.Context) error {
	p.ctx = ctx
	p.idle = make(chan *child, p.size)
	p.live = make(map[*child]struct{}, p.size)
	p.dead = make(chan struct{})
	p.slots = p.size

	for i := 0; i < p.size; i++ {
		c, err := p.spawn(ctx)
		if err != nil {
			_ = p.Close()
			return fmt.Errorf("failed to start worker process %d: %w", i, err)
		}
		p.mu.Lock()
		p.live[c] = struct{}{}
		p.mu.Unlock()
		p.idle <- c
	}
	return nil
}

func (p *ProcessPool) Dispatch(ctx context.Context, seg SegmentDescriptor) (string, error) {
	var c *child
	select {
	case c = <-p.idle:
	case <-p.dead:
		return "", errors.New("no worker processes left")
	case <-ctx.Done():
		return "", ctx.Err()
	}

	resp, err := c.call(WorkerRequest{Index: seg.Index, Path: seg.Path})
	if err != nil {
		p.replace(c)
		return "", fmt.Errorf("worker process failed: %w", err)
	}
	p.idle <- c

	if resp.Error != "" {
		return "", errors.New(resp.Error)
	}
	return resp.Text, nil
}

func (p *ProcessPool) Close() error {
	p.mu.Lock()
	children := make([]*child, 0, len(p.live))
	for c := range p.live {
		children = append(children, c)
	}
	p.live = map[*child]struct{}{}
	p.mu.Unlock()

	var errs []error
	for _, c := range children {
		if err := c.stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// spawn starts one process and waits for its handshake.
func (p *ProcessPool) spawn(ctx context.Context) (*child, error) {
	cmd := p.command(ctx)
	if cmd.Stderr == nil {
		cmd.Stderr = p.stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cmd.Path, err)
	}

	c := &child{
		cmd:   cmd,
		stdin: stdin,
		enc:   json.NewEncoder(stdin),
		dec:   json.NewDecoder(bufio.NewReader(stdout)),
	}

	var hello WorkerResponse
	if err := c.dec.Decode(&hello); err != nil {
		c.kill()
		return nil, fmt.Errorf("no handshake from worker: %w", err)
	}
	if !hello.Ready {
		c.kill()
		if hello.Error != "" {
			return nil, errors.New(hello.Error)
		}
		return nil, errors.New("worker did not report ready")
	}
	return c, nil
}

// replace drops a broken process and tries to start a new one in its slot.
// When no slot is left the pool is dead and pending Dispatch calls fail.
func (p *ProcessPool) replace(c *child) {
	c.kill()
	p.mu.Lock()
	delete(p.live, c)
	p.mu.Unlock()

	nc, err := p.spawn(p.ctx)
	if err == nil {
		p.mu.Lock()
		p.live[nc] = struct{}{}
		p.mu.Unlock()
		p.idle <- nc
		return
	}

	p.mu.Lock()
	p.slots--
	empty := p.slots == 0
	p.mu.Unlock()
	if empty {
		p.once.Do(func() { close(p.dead) })
	}
}

func (c *child) call(req WorkerRequest) (WorkerResponse, error) {
	var resp WorkerResponse
	if err := c.enc.Encode(req); err != nil {
		return resp, fmt.Errorf("failed to send request: %w", err)
	}
	if err := c.dec.Decode(&resp); err != nil {
		return resp, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.Index != req.Index {
		return resp, fmt.Errorf("response for segment %d, want %d", resp.Index, req.Index)
	}
	return resp, nil
}

// stop closes stdin so the process drains and exits on its own.
func (c *child) stop() error {
	_ = c.stdin.Close()
	if err := c.cmd.Wait(); err != nil {
		return fmt.Errorf("worker process %d: %w", c.cmd.Process.Pid, err)
	}
	return nil
}

func (c *child) kill() {
	_ = c.stdin.Close()
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	_ = c.cmd.Wait()
}
