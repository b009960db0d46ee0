// Package sender runs outbound Telegram API calls on a fixed set of workers.
// Calls that share a key, usually the chat ID, run on the same worker in
// submission order. Every attempt passes a global rate limiter, and transient
// failures are retried with exponential backoff.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/m3rciful/memebot/core/logger"
)

var (
	// ErrQueueClosed is returned when a job is submitted after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the worker owning the key has no room left.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

const (
	defaultQueueSize     = 64
	defaultWorkers       = 4
	defaultRetryBackoff  = 2 * time.Second
	defaultMaxDuration   = 12 * time.Second
	defaultRatePerSecond = 30
)

// Options tunes the dispatcher. Zero values select the defaults.
type Options struct {
	QueueSize  int
	Workers    int
	MaxRetries int
	// RetryBackoff is the delay before the first retry.
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on a single job including retries.
	MaxDuration time.Duration
	// RatePerSecond caps API calls across all workers. Negative disables the cap.
	RatePerSecond float64
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = defaultRetryBackoff
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = defaultMaxDuration
	}
	if o.RatePerSecond == 0 {
		o.RatePerSecond = defaultRatePerSecond
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
	done     chan error
}

// Dispatcher executes queued Telegram calls.
type Dispatcher struct {
	opts    Options
	limiter *rate.Limiter
	queues  []chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	errs   atomic.Uint64
}

// NewDispatcher starts opts.Workers workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	d := &Dispatcher{
		opts:    opts,
		limiter: rate.NewLimiter(limit, max(int(opts.RatePerSecond), 1)),
		queues:  make([]chan job, opts.Workers),
	}
	d.wg.Add(opts.Workers)
	for i := range d.queues {
		d.queues[i] = make(chan job, opts.QueueSize)
		go d.worker(d.queues[i])
	}
	return d
}

// Enqueue schedules run on the worker owning key and returns without waiting.
// run may be called more than once when the call is retried.
func (d *Dispatcher) Enqueue(ctx context.Context, key int64, action, endpoint string, run func() error) error {
	return d.submit(key, job{ctx: ctx, action: action, endpoint: endpoint, run: run})
}

// Do schedules run like Enqueue and waits for its final result.
func (d *Dispatcher) Do(ctx context.Context, key int64, action, endpoint string, run func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	done := make(chan error, 1)
	if err := d.submit(key, job{ctx: ctx, action: action, endpoint: endpoint, run: run, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrorCount returns the number of jobs that failed after all attempts.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting jobs and waits until the queues are drained.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) submit(key int64, j job) error {
	if j.run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if key < 0 {
		key = -key
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.queues[key%int64(len(d.queues))] <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) worker(queue <-chan job) {
	defer d.wg.Done()
	for j := range queue {
		err := d.execute(j)
		if err != nil {
			d.errs.Add(1)
		}
		if j.done != nil {
			j.done <- err
		}
	}
}

// execute runs j until it succeeds, fails permanently or runs out of time.
func (d *Dispatcher) execute(j job) error {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	attrs := sendAttrs(j)
	start := time.Now()
	logger.Debug(ctx, "tg.sender", "send.start", attrs...)

	policy := newRetryPolicy(d.opts.RetryBackoff)
	attempt := 0
	op := func() error {
		attempt++
		if err := d.limiter.Wait(runCtx); err != nil {
			return backoff.Permanent(err)
		}
		err := j.run()
		switch {
		case err == nil:
			return nil
		case !policy.observe(err):
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, delay time.Duration) {
		logger.Debug(ctx, "tg.sender", "send.retry.backoff", append(attrs,
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error_kind", classifyError(err)),
		)...)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(d.opts.MaxRetries)), runCtx)
	err := backoff.RetryNotify(op, b, notify)
	elapsed := logger.RoundMS(time.Since(start))

	if err != nil {
		logger.Error(ctx, "tg.sender", "send.fail", append(attrs,
			slog.Int("attempts", attempt),
			slog.Duration("elapsed", elapsed),
			slog.String("error", redactToken(err)),
			slog.String("error_kind", classifyError(err)),
		)...)
		return err
	}
	if attempt > 1 {
		logger.Info(ctx, "tg.sender", "send.retry.success", append(attrs,
			slog.Int("attempt", attempt),
			slog.Duration("elapsed", elapsed),
		)...)
		return nil
	}
	logger.Debug(ctx, "tg.sender", "send.success", append(attrs, slog.Duration("elapsed", elapsed))...)
	return nil
}

// sendAttrs describes j. Update metadata is added by the log handler from the context.
func sendAttrs(j job) []slog.Attr {
	attrs := make([]slog.Attr, 0, 6)
	attrs = append(attrs, slog.String("action", j.action))
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return attrs[:len(attrs):len(attrs)]
}
