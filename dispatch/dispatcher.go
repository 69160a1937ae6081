/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/acronis/go-geogate/log"
	"github.com/acronis/go-geogate/service"
)

// ErrAlreadyRunning is returned by Run when the dispatcher loop is already running or has been stopped.
var ErrAlreadyRunning = errors.New("dispatcher is already running or stopped")

const logStackSize = 8192

// Task is a unit of work executed by the Dispatcher.
// The passed context lives as long as the dispatcher loop and is not bound to the submitter.
type Task[T any] func(ctx context.Context) T

// Opts represents options for the Dispatcher.
type Opts[T any] struct {
	// MinInterval is the minimal time between the starts of two consecutive tasks.
	MinInterval time.Duration

	// PanicResult builds the value delivered to the submitter when the task panics.
	// If nil, the zero value of T is delivered.
	PanicResult func(panicValue interface{}) T

	// StoppedResult builds the value delivered to the submitter when the task cannot be executed
	// because the dispatcher has been stopped. If nil, the zero value of T is delivered.
	StoppedResult func() T

	Logger           log.FieldLogger
	MetricsCollector MetricsCollector
}

type task[T any] struct {
	submittedAt time.Time
	run         Task[T]
	result      chan T
}

// Dispatcher executes submitted tasks one at a time in FIFO order.
// It implements service.Worker, so the dispatching loop is started by running it (usually via service.WorkerUnit).
type Dispatcher[T any] struct {
	limiter       *rate.Limiter
	minInterval   time.Duration
	panicResult   func(panicValue interface{}) T
	stoppedResult func() T
	logger        log.FieldLogger
	metrics       MetricsCollector

	mu       sync.Mutex
	queue    []*task[T]
	notifyCh chan struct{}

	started   atomic.Bool
	stopped   atomic.Bool
	processed atomic.Uint64
}

var _ service.Worker = (*Dispatcher[int])(nil)

// New creates a new Dispatcher that spaces task starts by minInterval.
func New[T any](minInterval time.Duration) *Dispatcher[T] {
	return NewWithOpts(Opts[T]{MinInterval: minInterval})
}

// NewWithOpts creates a new Dispatcher with the given options.
func NewWithOpts[T any](opts Opts[T]) *Dispatcher[T] {
	if opts.MinInterval < 0 {
		panic(fmt.Sprintf("dispatcher min interval cannot be negative, got %s", opts.MinInterval))
	}
	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	metrics := opts.MetricsCollector
	if metrics == nil {
		metrics = disabledMetrics{}
	}
	return &Dispatcher[T]{
		limiter:       rate.NewLimiter(limit, 1),
		minInterval:   opts.MinInterval,
		panicResult:   opts.PanicResult,
		stoppedResult: opts.StoppedResult,
		logger:        logger,
		metrics:       metrics,
		notifyCh:      make(chan struct{}, 1),
	}
}

// Enqueue submits the task and returns a channel that receives exactly one value: the task's result.
// If the dispatcher has been stopped, the channel receives the StoppedResult value.
func (d *Dispatcher[T]) Enqueue(run Task[T]) <-chan T {
	t := &task[T]{submittedAt: time.Now(), run: run, result: make(chan T, 1)}

	d.mu.Lock()
	if d.stopped.Load() {
		d.mu.Unlock()
		t.result <- d.makeStoppedResult()
		return t.result
	}
	d.queue = append(d.queue, t)
	d.metrics.SetQueueLength(len(d.queue))
	d.mu.Unlock()

	select {
	case d.notifyCh <- struct{}{}:
	default:
	}
	return t.result
}

// QueueLength returns the number of tasks waiting for execution (the executing one is not counted).
func (d *Dispatcher[T]) QueueLength() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Processed returns the number of tasks whose execution has been finished.
func (d *Dispatcher[T]) Processed() uint64 {
	return d.processed.Load()
}

// IsRunning reports whether the dispatching loop is running.
func (d *Dispatcher[T]) IsRunning() bool {
	return d.started.Load() && !d.stopped.Load()
}

// Run runs the dispatching loop until ctx is done.
// Tasks that are still queued at that moment receive the StoppedResult value.
func (d *Dispatcher[T]) Run(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer d.stop()

	d.logger.Infof("running dispatcher (minInterval=%s)...", d.minInterval)

	for {
		t, ok := d.next(ctx)
		if !ok {
			return nil
		}
		startedAt, ok := d.waitTurn(ctx)
		if !ok {
			t.result <- d.makeStoppedResult()
			return nil
		}
		d.execute(ctx, t, startedAt)
	}
}

// waitTurn blocks until at least minInterval has passed since the previous task started.
// The limiter token is taken at the returned instant, so the spacing is measured between actual starts.
func (d *Dispatcher[T]) waitTurn(ctx context.Context) (time.Time, bool) {
	for {
		if ctx.Err() != nil {
			return time.Time{}, false
		}
		now := time.Now()
		if d.limiter.AllowN(now, 1) {
			return now, true
		}
		delay := time.Duration((1 - d.limiter.TokensAt(now)) * float64(d.minInterval))
		if delay < time.Microsecond {
			delay = time.Microsecond
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return time.Time{}, false
		case <-timer.C:
		}
	}
}

func (d *Dispatcher[T]) next(ctx context.Context) (*task[T], bool) {
	for {
		d.mu.Lock()
		if len(d.queue) != 0 {
			t := d.queue[0]
			d.queue[0] = nil
			d.queue = d.queue[1:]
			d.metrics.SetQueueLength(len(d.queue))
			d.mu.Unlock()
			return t, true
		}
		d.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case <-d.notifyCh:
		}
	}
}

func (d *Dispatcher[T]) execute(ctx context.Context, t *task[T], startedAt time.Time) {
	d.metrics.ObserveWait(startedAt.Sub(t.submittedAt))

	var res T
	var panicked bool
	func() {
		defer func() {
			if p := recover(); p != nil {
				panicked = true
				stack := make([]byte, logStackSize)
				stack = stack[:runtime.Stack(stack, false)]
				d.logger.Error(fmt.Sprintf("dispatched task panic: %+v", p), log.Bytes("stack", stack))
				res = d.makePanicResult(p)
			}
		}()
		res = t.run(ctx)
	}()

	t.result <- res
	d.processed.Inc()
	d.metrics.IncTasks(panicked)
	d.logger.Debug("dispatched task finished",
		log.Int64("wait_ms", startedAt.Sub(t.submittedAt).Milliseconds()),
		log.Int64("exec_duration_ms", time.Since(startedAt).Milliseconds()),
		log.Bool("panicked", panicked),
	)
}

func (d *Dispatcher[T]) stop() {
	d.mu.Lock()
	d.stopped.Store(true)
	pending := d.queue
	d.queue = nil
	d.metrics.SetQueueLength(0)
	d.mu.Unlock()

	for _, t := range pending {
		t.result <- d.makeStoppedResult()
	}
	d.logger.Info("dispatcher stopped", log.Int("dropped_tasks", len(pending)))
}

func (d *Dispatcher[T]) makeStoppedResult() T {
	if d.stoppedResult == nil {
		var zero T
		return zero
	}
	return d.stoppedResult()
}

func (d *Dispatcher[T]) makePanicResult(p interface{}) T {
	if d.panicResult == nil {
		var zero T
		return zero
	}
	return d.panicResult(p)
}
