// Package tick provides the scheduling domains deferred results run on: a
// tick loop standing in for the simulation thread, and a bounded pool for
// work that may run anywhere.
package tick

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"

	"github.com/mgomes/capdispatch/dispatch"
)

// Config configures a Loop.
type Config struct {
	// Period is the wall-clock time between ticks when driven by Run.
	Period time.Duration `mapstructure:"period" yaml:"period"`
	// AsyncWorkers bounds how many immediate-domain tasks run at once.
	AsyncWorkers int `mapstructure:"async_workers" yaml:"async_workers"`
}

// DefaultConfig matches a 20 ticks per second simulation.
func DefaultConfig() Config {
	return Config{Period: 50 * time.Millisecond, AsyncWorkers: 4}
}

type task struct {
	due uint64
	seq uint64
	fn  func()
}

// Loop is a dispatch.Scheduler. Tick-domain tasks run on whichever
// goroutine calls Step, in order of due tick and then scheduling order.
// Immediate-domain tasks run on a bounded set of goroutines.
type Loop struct {
	cfg    Config
	logger *log.Logger
	sem    *semaphore.Weighted
	async  sync.WaitGroup

	mu      sync.Mutex
	now     uint64
	seq     uint64
	pending []task
	hooks   []func(tick uint64)
	closed  bool
	stopped chan struct{}
}

// New returns a stopped loop at tick zero. A nil logger discards output.
func New(cfg Config, logger *log.Logger) *Loop {
	if cfg.AsyncWorkers <= 0 {
		cfg.AsyncWorkers = DefaultConfig().AsyncWorkers
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultConfig().Period
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Loop{
		cfg:     cfg,
		logger:  logger,
		sem:     semaphore.NewWeighted(int64(cfg.AsyncWorkers)),
		stopped: make(chan struct{}),
	}
}

var _ dispatch.Stopper = (*Loop)(nil)

// Stopped is closed by Close. Executors waiting on dropped tasks select on
// it.
func (l *Loop) Stopped() <-chan struct{} { return l.stopped }

// Schedule implements dispatch.Scheduler. A tick task scheduled with delay
// d runs on tick now+1+d.
func (l *Loop) Schedule(domain dispatch.Domain, delay int, fn func()) error {
	if fn == nil {
		return fmt.Errorf("tick: nil task")
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return dispatch.ErrSchedulerStopped
	}
	switch domain {
	case dispatch.DomainTick:
		if delay < 0 {
			delay = 0
		}
		l.seq++
		l.pending = append(l.pending, task{due: l.now + 1 + uint64(delay), seq: l.seq, fn: fn})
		l.mu.Unlock()
	case dispatch.DomainImmediate:
		l.async.Add(1)
		l.mu.Unlock()
		go l.runAsync(fn)
	default:
		l.mu.Unlock()
		return fmt.Errorf("tick: unknown domain %s", domain)
	}
	return nil
}

func (l *Loop) runAsync(fn func()) {
	defer l.async.Done()
	// Acquire with a background context only fails on programmer error.
	if err := l.sem.Acquire(context.Background(), 1); err != nil {
		l.logger.Error("async task dropped", "err", err)
		return
	}
	defer l.sem.Release(1)
	fn()
}

// OnTick registers a hook run at the start of every tick, before that
// tick's tasks.
func (l *Loop) OnTick(hook func(tick uint64)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, hook)
}

// Now is the number of completed ticks.
func (l *Loop) Now() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now
}

// Pending is the number of tick tasks waiting to run.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Step advances one tick: hooks run first, then every task due on this
// tick. Tasks scheduled while stepping run on a later tick. Step returns
// the number of tasks run.
func (l *Loop) Step() int {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0
	}
	l.now++
	now := l.now
	hooks := slices.Clone(l.hooks)

	var due, later []task
	for _, t := range l.pending {
		if t.due <= now {
			due = append(due, t)
		} else {
			later = append(later, t)
		}
	}
	l.pending = later
	l.mu.Unlock()

	for _, hook := range hooks {
		hook(now)
	}
	slices.SortFunc(due, func(a, b task) int {
		if c := cmp.Compare(a.due, b.due); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	for _, t := range due {
		t.fn()
	}
	return len(due)
}

// Run steps the loop every Period until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.Period)
	defer ticker.Stop()
	l.logger.Debug("tick loop started", "period", l.cfg.Period)
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("tick loop stopped", "tick", l.Now())
			return nil
		case <-ticker.C:
			l.Step()
		}
	}
}

// Close stops accepting work, drops tick tasks that have not run and waits
// for running immediate tasks. Executors still waiting on dropped tasks
// return dispatch.ErrSchedulerStopped.
func (l *Loop) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	dropped := len(l.pending)
	l.pending = nil
	l.mu.Unlock()

	if dropped > 0 {
		l.logger.Warn("dropping unscheduled tick tasks", "count", dropped)
	}
	l.async.Wait()
	close(l.stopped)
	return nil
}
