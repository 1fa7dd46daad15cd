package dispatch

import (
	"context"
	"errors"
	"fmt"
)

// ResultExecutor materializes a Result into boundary values, running any
// deferred continuations first. Execute blocks until the final values exist
// or ctx is done.
type ResultExecutor interface {
	Execute(ctx context.Context, result Result) ([]Value, error)
}

// ExecutorFactory creates the executor used for calls from one access
// handle.
type ExecutorFactory interface {
	NewExecutor(access Access) ResultExecutor
}

// ExecutorFactoryFunc adapts a function to ExecutorFactory.
type ExecutorFactoryFunc func(access Access) ResultExecutor

func (f ExecutorFactoryFunc) NewExecutor(access Access) ResultExecutor { return f(access) }

// Scheduler runs tasks on a scheduling domain. delay is a number of extra
// ticks and only applies to DomainTick. Schedule must not block on the task.
type Scheduler interface {
	Schedule(domain Domain, delay int, task func()) error
}

// Stopper is implemented by schedulers that can shut down with tasks still
// queued. Stopped is closed once queued tasks will no longer run.
type Stopper interface {
	Stopped() <-chan struct{}
}

type stepOutcome struct {
	result Result
	err    error
}

// SchedulingExecutor hands every continuation to a Scheduler and parks the
// caller until it has run.
type SchedulingExecutor struct {
	scheduler Scheduler
	access    Access
}

// NewSchedulingExecutor returns an executor for access backed by scheduler.
func NewSchedulingExecutor(scheduler Scheduler, access Access) *SchedulingExecutor {
	return &SchedulingExecutor{scheduler: scheduler, access: access}
}

// SchedulingFactory returns a factory creating one SchedulingExecutor per
// access handle.
func SchedulingFactory(scheduler Scheduler) ExecutorFactory {
	return ExecutorFactoryFunc(func(access Access) ResultExecutor {
		return NewSchedulingExecutor(scheduler, access)
	})
}

func (e *SchedulingExecutor) Access() Access { return e.access }

func (e *SchedulingExecutor) Execute(ctx context.Context, result Result) ([]Value, error) {
	var stopped <-chan struct{}
	if s, ok := e.scheduler.(Stopper); ok {
		stopped = s.Stopped()
	}
	for result.IsDeferred() {
		next := result.Next()
		if next == nil {
			return nil, errors.New("deferred result has no continuation")
		}
		if err := ctx.Err(); err != nil {
			return nil, interrupted(err)
		}

		// Buffered so a continuation finishing after the caller gave up
		// never blocks the domain it runs on.
		done := make(chan stepOutcome, 1)
		err := e.scheduler.Schedule(result.Domain(), result.DelayTicks(), func() {
			res, err := runContinuation(next)
			done <- stepOutcome{result: res, err: err}
		})
		if err != nil {
			return nil, err
		}

		select {
		case out := <-done:
			if out.err != nil {
				return nil, out.err
			}
			result = out.result
		case <-ctx.Done():
			return nil, interrupted(ctx.Err())
		case <-stopped:
			// The task may have finished just before the stop.
			select {
			case out := <-done:
				if out.err != nil {
					return nil, out.err
				}
				result = out.result
			default:
				return nil, ErrSchedulerStopped
			}
		}
	}
	return result.Values(), nil
}

// InlineExecutor runs continuations on the calling goroutine, ignoring
// domains and delays. Use it when the caller already is on the domain the
// continuations expect.
type InlineExecutor struct{}

func (InlineExecutor) Execute(ctx context.Context, result Result) ([]Value, error) {
	for result.IsDeferred() {
		next := result.Next()
		if next == nil {
			return nil, errors.New("deferred result has no continuation")
		}
		if err := ctx.Err(); err != nil {
			return nil, interrupted(err)
		}
		res, err := runContinuation(next)
		if err != nil {
			return nil, err
		}
		result = res
	}
	return result.Values(), nil
}

// InlineFactory returns a factory handing out InlineExecutors.
func InlineFactory() ExecutorFactory {
	return ExecutorFactoryFunc(func(Access) ResultExecutor { return InlineExecutor{} })
}

func runContinuation(next Continuation) (result Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &panicError{value: rec}
		}
	}()
	return next()
}

func interrupted(cause error) error {
	return fmt.Errorf("%w: %w", ErrInterrupted, cause)
}
