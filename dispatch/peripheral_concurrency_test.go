package dispatch

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type blockingCall struct {
	entered chan struct{}
	release chan struct{}
}

func TestPeripheralOverlappingCallsKeepComputersIsolated(t *testing.T) {
	barrier := &blockingCall{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	m := mustMethod(t, MethodSpec{
		Owner:  "test.Computer",
		Name:   "whoami",
		Target: ClassOf[*testLocation](),
		Build: Func(func(ctx *UnbakedContext, args []Value) (Result, error) {
			baked, err := ctx.Bake()
			if err != nil {
				return Result{}, err
			}
			access, _ := KeyedContextAs[Access](baked, KeyComputer)
			if wait, _ := BoolArg(args, 0); wait {
				select {
				case barrier.entered <- struct{}{}:
				default:
				}
				<-barrier.release
			}
			return Values(NewString(access.ID())), nil
		}),
	})
	loc := &testLocation{}
	p := NewPeripheral("computer", loc, bindAll(locationContext(loc), m), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	type callResult struct {
		values []Value
		err    error
	}
	firstDone := make(chan callResult, 1)
	go func() {
		values, err := p.Call(ctx, testAccess{id: "first"}, 0, []Value{NewBool(true)})
		firstDone <- callResult{values: values, err: err}
	}()

	select {
	case <-barrier.entered:
	case <-ctx.Done():
		t.Fatalf("first call never started: %v", ctx.Err())
	}

	second, err := p.Call(ctx, testAccess{id: "second"}, 0, []Value{NewBool(false)})
	require.NoError(t, err)
	assert.Equal(t, "second", second[0].String())

	close(barrier.release)
	first := <-firstDone
	require.NoError(t, first.err)
	assert.Equal(t, "first", first.values[0].String())
}

func TestSharedMethodAcrossPeripherals(t *testing.T) {
	var builds atomic.Int32
	m := mustMethod(t, MethodSpec{
		Owner:  "test.Scanner",
		Name:   "where",
		Target: ClassOf[*testLocation](),
		Build: func() (Delegate, error) {
			builds.Add(1)
			return func(ctx *UnbakedContext, _ []Value) (Result, error) {
				return NextTick(func() (Result, error) {
					baked, err := ctx.Bake()
					if err != nil {
						return Result{}, err
					}
					loc, err := TargetAs[*testLocation](baked)
					if err != nil {
						return Result{}, err
					}
					return Values(NewInt(loc.X)), nil
				}), nil
			}, nil
		},
	})

	scheduler := &goScheduler{}
	peripherals := make([]*Peripheral, 8)
	for i := range peripherals {
		loc := &testLocation{X: int64(i)}
		peripherals[i] = NewPeripheral("scanner", loc, bindAll(locationContext(loc), m), SchedulingFactory(scheduler))
	}

	var g errgroup.Group
	for i, p := range peripherals {
		for c := range 8 {
			g.Go(func() error {
				values, err := p.Call(context.Background(), testAccess{id: fmt.Sprint(c)}, 0, nil)
				if err != nil {
					return err
				}
				if got := values[0].Int(); got != int64(i) {
					return fmt.Errorf("peripheral %d answered %d", i, got)
				}
				return nil
			})
		}
	}
	require.NoError(t, g.Wait())
	scheduler.wg.Wait()
	assert.Equal(t, int32(1), builds.Load())
	assert.Equal(t, 64, scheduler.scheduled())
}
