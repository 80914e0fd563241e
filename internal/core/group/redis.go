// Package group connects the ranks of a distributed run through Redis lists.
// Rank 0 pushes the segment list onto one list per rank and pops every other
// rank's results from a shared gather list.
package group

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/guiyumin/vscribe/internal/core/batch"
	"github.com/guiyumin/vscribe/internal/core/logger"
	"github.com/redis/go-redis/v9"
)

// errTimeout means another rank did not answer within the group timeout.
var errTimeout = errors.New("timed out")

const (
	defaultPrefix  = "vscribe"
	defaultTimeout = 30 * time.Minute
)

// Config describes how a rank reaches the others.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	RunID    string // shared by every rank of one run
	Rank     int
	Size     int

	// Timeout bounds each wait for another rank.
	Timeout time.Duration
}

// RedisGroup implements batch.Group on top of a Redis server that every rank
// can reach.
type RedisGroup struct {
	client  *redis.Client
	prefix  string
	rank    int
	size    int
	timeout time.Duration
	log     *logger.Logger
}

type broadcastMsg struct {
	Segments []batch.SegmentDescriptor `json:"segments"`
	Error    string                    `json:"error,omitempty"`
}

type gatherMsg struct {
	Rank    int                   `json:"rank"`
	Results []batch.SegmentResult `json:"results"`
	Elapsed time.Duration         `json:"elapsed"`
	Error   string                `json:"error,omitempty"`
}

// New connects to Redis and checks the server is reachable.
func New(ctx context.Context, cfg Config, log *logger.Logger) (*RedisGroup, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}
	if cfg.RunID == "" {
		return nil, fmt.Errorf("run id required")
	}
	if cfg.Size < 1 {
		return nil, fmt.Errorf("%w: group size %d", batch.ErrInvalidWorkerCount, cfg.Size)
	}
	if cfg.Rank < 0 || cfg.Rank >= cfg.Size {
		return nil, fmt.Errorf("rank %d out of range for group size %d", cfg.Rank, cfg.Size)
	}
	if log == nil {
		log = logger.Nop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &RedisGroup{
		client:  client,
		prefix:  prefix + ":" + cfg.RunID,
		rank:    cfg.Rank,
		size:    cfg.Size,
		timeout: timeout,
		log:     log.With("rank", cfg.Rank, "size", cfg.Size),
	}, nil
}

func (g *RedisGroup) Rank() int { return g.rank }
func (g *RedisGroup) Size() int { return g.size }

func (g *RedisGroup) broadcastKey(rank int) string {
	return fmt.Sprintf("%s:bcast:%d", g.prefix, rank)
}

func (g *RedisGroup) gatherKey() string {
	return g.prefix + ":gather"
}

// ttl keeps abandoned keys from outliving the run by much.
func (g *RedisGroup) ttl() time.Duration {
	return 2 * g.timeout
}

func (g *RedisGroup) Broadcast(ctx context.Context, segs []batch.SegmentDescriptor, cause error) ([]batch.SegmentDescriptor, error) {
	if g.rank != 0 {
		var msg broadcastMsg
		if err := g.pop(ctx, g.broadcastKey(g.rank), &msg); err != nil {
			return nil, fmt.Errorf("waiting for segment list: %w", err)
		}
		if msg.Error != "" {
			return nil, fmt.Errorf("rank 0: %s", msg.Error)
		}
		g.log.Debugw("segment list received", "segments", len(msg.Segments))
		return msg.Segments, nil
	}

	msg := broadcastMsg{Segments: segs}
	if cause != nil {
		msg.Error = cause.Error()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	pipe := g.client.TxPipeline()
	pipe.Del(ctx, g.gatherKey())
	for r := 1; r < g.size; r++ {
		key := g.broadcastKey(r)
		pipe.Del(ctx, key)
		pipe.RPush(ctx, key, data)
		pipe.Expire(ctx, key, g.ttl())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to publish segment list: %w", err)
	}
	g.log.Debugw("segment list published", "segments", len(segs))
	return segs, cause
}

// Gather collects results on rank 0. Duplicate or unknown senders are
// skipped; ranks still silent after the timeout are reported as failed to
// start.
func (g *RedisGroup) Gather(ctx context.Context, local batch.WorkerResult) ([]batch.WorkerResult, error) {
	if g.rank != 0 {
		msg := gatherMsg{
			Rank:    g.rank,
			Results: local.Results,
			Elapsed: local.Elapsed,
		}
		if local.Err != nil {
			cause := local.Err
			var wie *batch.WorkerInitError
			if errors.As(cause, &wie) {
				cause = wie.Err
			}
			msg.Error = cause.Error()
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return nil, err
		}
		pipe := g.client.TxPipeline()
		pipe.RPush(ctx, g.gatherKey(), data)
		pipe.Expire(ctx, g.gatherKey(), g.ttl())
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to send results: %w", err)
		}
		return nil, nil
	}

	out := make([]batch.WorkerResult, g.size)
	out[0] = local
	seen := map[int]bool{0: true}
	for len(seen) < g.size {
		var msg gatherMsg
		err := g.pop(ctx, g.gatherKey(), &msg)
		if errors.Is(err, errTimeout) {
			// A rank that never reports loses its assignment; the others still count.
			for r := 1; r < g.size; r++ {
				if seen[r] {
					continue
				}
				out[r] = batch.WorkerResult{
					WorkerID: r,
					Err:      &batch.WorkerInitError{WorkerID: r, Err: fmt.Errorf("rank %d did not report: %w", r, err)},
				}
			}
			g.log.Warnw("ranks missing from gather", "missing", g.size-len(seen), "timeout", g.timeout)
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("waiting for %d of %d ranks: %w", g.size-len(seen), g.size-1, err)
		}
		if msg.Rank <= 0 || msg.Rank >= g.size {
			g.log.Warnw("ignoring results from unknown rank", "from", msg.Rank)
			continue
		}
		if seen[msg.Rank] {
			g.log.Warnw("ignoring duplicate results", "from", msg.Rank)
			continue
		}
		seen[msg.Rank] = true

		w := batch.WorkerResult{WorkerID: msg.Rank, Results: msg.Results, Elapsed: msg.Elapsed}
		if msg.Error != "" {
			w.Err = &batch.WorkerInitError{WorkerID: msg.Rank, Err: errors.New(msg.Error)}
		}
		out[msg.Rank] = w
		g.log.Debugw("rank results received", "from", msg.Rank, "results", len(msg.Results))
	}
	return out, nil
}

func (g *RedisGroup) pop(ctx context.Context, key string, v any) error {
	res, err := g.client.BLPop(ctx, g.timeout, key).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w after %s", errTimeout, g.timeout)
	}
	if err != nil {
		return err
	}
	// BLPOP replies with [key, value].
	return json.Unmarshal([]byte(res[1]), v)
}

// Close drops the connection. Rank 0 also deletes the run's keys.
func (g *RedisGroup) Close(ctx context.Context) error {
	if g.rank == 0 {
		keys := []string{g.gatherKey()}
		for r := 1; r < g.size; r++ {
			keys = append(keys, g.broadcastKey(r))
		}
		if err := g.client.Del(ctx, keys...).Err(); err != nil {
			g.log.Warnw("failed to delete group keys", "error", err)
		}
	}
	return g.client.Close()
}
