// Package sender delivers outbound Telegram calls from a bounded worker pool
// so handlers and notifications never block on the network. Calls sharing a
// key, normally the chat id, run one at a time in the order they were queued.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/pestbot/core/logger"
	"github.com/m3rciful/pestbot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the job did not fit into the queue.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options tunes a Dispatcher. Zero values select the defaults.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds all attempts of one job together.
	MaxDuration time.Duration
}

func (o *Options) defaults() {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
}

type job struct {
	ctx    context.Context
	action string
	run    func() error
}

// Dispatcher runs queued calls on a fixed set of workers, retrying
// transient failures. Each worker drains its own lane; a key always maps to
// the same lane.
type Dispatcher struct {
	opts  Options
	lanes []chan job
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	failed atomic.Uint64
}

// NewDispatcher starts the workers. QueueSize is split evenly across them.
func NewDispatcher(opts Options) *Dispatcher {
	opts.defaults()
	size := (opts.QueueSize + opts.Workers - 1) / opts.Workers
	d := &Dispatcher{opts: opts, lanes: make([]chan job, opts.Workers)}
	d.wg.Add(opts.Workers)
	for i := range d.lanes {
		lane := make(chan job, size)
		d.lanes[i] = lane
		go func() {
			defer d.wg.Done()
			for j := range lane {
				d.process(j)
			}
		}()
	}
	return d
}

func (d *Dispatcher) lane(key int64) chan job {
	return d.lanes[uint64(key)%uint64(len(d.lanes))]
}

// Enqueue schedules run behind every job queued earlier with the same key.
// It never blocks; run must be safe to repeat.
func (d *Dispatcher) Enqueue(ctx context.Context, key int64, action string, run func() error) error {
	return d.put(ctx, key, action, run, nil)
}

// Push is Enqueue that waits up to timeout for room in the key's lane.
func (d *Dispatcher) Push(ctx context.Context, key int64, action string, run func() error, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	return d.put(ctx, key, action, run, t.C)
}

// put hands the job to its lane. A nil wait makes it non-blocking.
func (d *Dispatcher) put(ctx context.Context, key int64, action string, run func() error, wait <-chan time.Time) error {
	if run == nil {
		return errors.New("telegram sender: nil job")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	j := job{ctx: context.WithoutCancel(ctx), action: action, run: run}
	if wait == nil {
		select {
		case d.lane(key) <- j:
			return nil
		default:
			return ErrQueueFull
		}
	}
	select {
	case d.lane(key) <- j:
		return nil
	case <-wait:
		return ErrQueueFull
	}
}

// Failed returns how many jobs were given up on.
func (d *Dispatcher) Failed() uint64 {
	return d.failed.Load()
}

// Close rejects new jobs and waits for the queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, lane := range d.lanes {
			close(lane)
		}
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) process(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = j.run(); err == nil {
			if attempt > 1 || logger.ShouldSampleDebug() {
				logger.Sender.LogAttrs(j.ctx, slog.LevelDebug, "sent",
					slog.String("event", "send.ok"),
					slog.String("action", j.action),
					slog.Int("attempts", attempt),
					slog.Duration("duration", time.Since(start)),
				)
			}
			return
		}
		if !netutil.Retryable(err) || attempt == attempts {
			break
		}
		delay := netutil.Delay(err, d.opts.RetryBackoff, attempt)
		logger.Sender.LogAttrs(j.ctx, slog.LevelDebug, "retrying",
			slog.String("event", "send.retry"),
			slog.String("status", "retry"),
			slog.String("action", j.action),
			slog.Int("attempts", attempt),
			slog.Duration("backoff", delay),
			slog.String("err_code", netutil.Kind(err)),
		)
		if !sleep(ctx, delay) {
			err = ctx.Err()
			break
		}
	}

	d.failed.Add(1)
	logger.Sender.LogAttrs(j.ctx, slog.LevelError, "send failed",
		slog.String("event", "send.fail"),
		slog.String("status", "fail"),
		slog.String("action", j.action),
		slog.String("err", netutil.Redact(err)),
		slog.String("err_code", netutil.Kind(err)),
		slog.Duration("duration", time.Since(start)),
	)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
