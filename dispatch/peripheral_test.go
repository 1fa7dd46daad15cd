package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindAll(ctx *UnbakedContext, methods ...*Method) []Binding {
	bindings := make([]Binding, len(methods))
	for i, m := range methods {
		bindings[i] = Binding{Method: m, Context: ctx}
	}
	return bindings
}

func TestPeripheralCallPassesComputer(t *testing.T) {
	whoami := mustMethod(t, MethodSpec{
		Owner:  "test.Computer",
		Name:   "whoami",
		Target: ClassOf[*testLocation](),
		Build: Func(func(ctx *UnbakedContext, args []Value) (Result, error) {
			baked, err := ctx.Bake()
			if err != nil {
				return Result{}, err
			}
			access, ok := KeyedContextAs[Access](baked, KeyComputer)
			if !ok {
				return Failure("no computer"), nil
			}
			return Values(NewString(access.ID()), NewInt(int64(len(args)))), nil
		}),
	})
	loc := &testLocation{}
	base := locationContext(loc)
	p := NewPeripheral("scanner", loc, bindAll(base, whoami), nil)

	values, err := p.Call(context.Background(), testAccess{id: "computer-7"}, 0, []Value{NewInt(1), NewInt(2)})
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, "computer-7", values[0].String())
	assert.Equal(t, int64(2), values[1].Int())

	assert.Equal(t, 2, base.Len(), "call must not extend the bound context")
	assert.Equal(t, []string{"whoami"}, p.MethodNames())
	assert.Equal(t, "scanner", p.Type())
	assert.Same(t, loc, p.Target())
}

func TestPeripheralCallUnknownIndex(t *testing.T) {
	loc := &testLocation{}
	p := NewPeripheral("scanner", loc, nil, nil)

	for _, index := range []int{-1, 0, 3} {
		_, err := p.Call(context.Background(), testAccess{id: "1"}, index, nil)
		require.ErrorIs(t, err, ErrUnknownMethod)
		var callErr *CallError
		require.ErrorAs(t, err, &callErr)
		assert.Equal(t, "scanner", callErr.Device)
	}
}

func TestPeripheralSoftFailure(t *testing.T) {
	m := mustMethod(t, MethodSpec{
		Owner:  "test.Inventory",
		Name:   "pushItems",
		Target: ClassOf[*testLocation](),
		Build: Func(func(*UnbakedContext, []Value) (Result, error) {
			return Failure("Target 'north' does not exist"), nil
		}),
	})
	loc := &testLocation{}
	p := NewPeripheral("inventory", loc, bindAll(locationContext(loc), m), nil)

	values, err := p.Call(context.Background(), testAccess{id: "1"}, 0, nil)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.True(t, values[0].IsNil())
	assert.Equal(t, "Target 'north' does not exist", values[1].String())
}

func TestPeripheralWrapsErrors(t *testing.T) {
	m := mustMethod(t, MethodSpec{
		Owner:  "test.Scanner",
		Name:   "getBlockMeta",
		Target: ClassOf[*testLocation](),
		Build: Func(func(_ *UnbakedContext, args []Value) (Result, error) {
			x, err := IntArg(args, 0)
			if err != nil {
				return Result{}, err
			}
			if err := AssertBetween(x, -8, 8, "X coordinate out of bounds (%s)"); err != nil {
				return Result{}, err
			}
			return Values(NewInt(x)), nil
		}),
	})
	loc := &testLocation{}
	p := NewPeripheral("scanner", loc, bindAll(locationContext(loc), m), nil)

	_, err := p.Call(context.Background(), testAccess{id: "1"}, 0, []Value{NewString("x")})
	require.ErrorIs(t, err, ErrBadArgument)
	assert.Equal(t, "bad argument #1 (expected number, got string)", err.Error())

	_, err = p.Call(context.Background(), testAccess{id: "1"}, 0, []Value{NewInt(9)})
	require.ErrorIs(t, err, ErrBadArgument)
	assert.Equal(t, "X coordinate out of bounds (between -8 and 8)", err.Error())

	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, "getBlockMeta", callErr.Method)
}

func TestPeripheralRecoversPanics(t *testing.T) {
	m := mustMethod(t, MethodSpec{
		Owner:  "test.Broken",
		Name:   "explode",
		Target: ClassOf[*testLocation](),
		Build: Func(func(*UnbakedContext, []Value) (Result, error) {
			panic(errors.New("nil block state"))
		}),
	})
	loc := &testLocation{}
	bindings := bindAll(locationContext(loc), m)

	lenient := NewPeripheral("broken", loc, bindings, nil)
	_, err := lenient.Call(context.Background(), testAccess{id: "1"}, 0, nil)
	requireErrorContains(t, err, "nil block state")

	strict := NewPeripheral("broken", loc, bindings, nil, WithStrict(true))
	assert.Panics(t, func() {
		_, _ = strict.Call(context.Background(), testAccess{id: "1"}, 0, nil)
	})
}

func TestPeripheralEquality(t *testing.T) {
	loc := &testLocation{}
	other := &testLocation{}
	base := locationContext(loc)
	a := mustMethod(t, MethodSpec{Owner: "test.A", Name: "a", Target: ClassOf[*testLocation](), Build: constDelegate()})
	b := mustMethod(t, MethodSpec{Owner: "test.B", Name: "b", Target: ClassOf[*testLocation](), Build: constDelegate()})
	c := mustMethod(t, MethodSpec{Owner: "test.C", Name: "c", Target: ClassOf[*testLocation](), Build: constDelegate()})

	ab := NewPeripheral("scanner", loc, bindAll(base, a, b), nil)
	ba := NewPeripheral("scanner", loc, bindAll(base, b, a), InlineFactory())

	assert.True(t, ab.Equal(ba), "method order does not matter")
	assert.True(t, ba.Equal(ab))
	assert.False(t, ab.Equal(NewPeripheral("scanner", other, bindAll(base, a, b), nil)), "owner identity")
	assert.False(t, ab.Equal(NewPeripheral("sensor", loc, bindAll(base, a, b), nil)), "type tag")
	assert.False(t, ab.Equal(NewPeripheral("scanner", loc, bindAll(base, a, c), nil)), "method set")
	assert.False(t, ab.Equal(NewPeripheral("scanner", loc, bindAll(base, a), nil)), "method set size")
	assert.False(t, ab.Equal(nil))
}

func TestSameIdentity(t *testing.T) {
	m := map[string]int{}
	s := []int{1}
	assert.True(t, sameIdentity(nil, nil))
	assert.False(t, sameIdentity(nil, 1))
	assert.True(t, sameIdentity(m, m))
	assert.False(t, sameIdentity(m, map[string]int{}))
	assert.True(t, sameIdentity(s, s))
	assert.True(t, sameIdentity("a", "a"))
	assert.False(t, sameIdentity(1, int64(1)))
	assert.False(t, sameIdentity(&testLocation{}, &testLocation{}))
}

func TestPeripheralDeferredChain(t *testing.T) {
	steps := make(chan string, 3)
	m := mustMethod(t, MethodSpec{
		Owner:  "test.Crafter",
		Name:   "craft",
		Target: ClassOf[*testLocation](),
		Build: Func(func(*UnbakedContext, []Value) (Result, error) {
			steps <- "apply"
			return NextTick(func() (Result, error) {
				steps <- "first"
				return Delay(2, func() (Result, error) {
					steps <- "second"
					return Values(NewInt(3)), nil
				}), nil
			}), nil
		}),
	})
	loc := &testLocation{}
	scheduler := &goScheduler{}
	p := NewPeripheral("crafter", loc, bindAll(locationContext(loc), m), SchedulingFactory(scheduler))

	values, err := p.Call(context.Background(), testAccess{id: "1"}, 0, nil)
	scheduler.wg.Wait()
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, int64(3), values[0].Int())

	close(steps)
	var order []string
	for s := range steps {
		order = append(order, s)
	}
	assert.Equal(t, []string{"apply", "first", "second"}, order)
	assert.Equal(t, []Domain{DomainTick, DomainTick}, scheduler.domains)
	assert.Equal(t, []int{0, 2}, scheduler.delays)
}

func TestPeripheralInterruptedWhileWaiting(t *testing.T) {
	m := mustMethod(t, MethodSpec{
		Owner:  "test.Slow",
		Name:   "wait",
		Target: ClassOf[*testLocation](),
		Build: Func(func(*UnbakedContext, []Value) (Result, error) {
			return NextTick(func() (Result, error) { return Values(NewBool(true)), nil }), nil
		}),
	})
	loc := &testLocation{}
	scheduler := newHeldScheduler()
	p := NewPeripheral("slow", loc, bindAll(locationContext(loc), m), SchedulingFactory(scheduler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Call(ctx, testAccess{id: "1"}, 0, nil)
		done <- err
	}()

	select {
	case <-scheduler.ready:
	case <-time.After(3 * time.Second):
		t.Fatal("continuation was never scheduled")
	}
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrInterrupted)
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("call did not return after cancellation")
	}

	// The continuation still runs later and must not block.
	scheduler.release()
}

func TestPeripheralSchedulerStopped(t *testing.T) {
	m := mustMethod(t, MethodSpec{
		Owner:  "test.Slow",
		Name:   "wait",
		Target: ClassOf[*testLocation](),
		Build: Func(func(*UnbakedContext, []Value) (Result, error) {
			return NextTick(func() (Result, error) { return Empty(), nil }), nil
		}),
	})
	loc := &testLocation{}
	p := NewPeripheral("slow", loc, bindAll(locationContext(loc), m), SchedulingFactory(stoppedScheduler{}))

	_, err := p.Call(context.Background(), testAccess{id: "1"}, 0, nil)
	require.ErrorIs(t, err, ErrSchedulerStopped)
}

func TestInlineExecutorRecoversContinuationPanic(t *testing.T) {
	res := NextTick(func() (Result, error) { panic("tile entity unloaded") })
	_, err := InlineExecutor{}.Execute(context.Background(), res)
	requireErrorContains(t, err, "tile entity unloaded")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = InlineExecutor{}.Execute(ctx, res)
	require.ErrorIs(t, err, ErrInterrupted)
}

func TestDeferredWithoutContinuation(t *testing.T) {
	_, err := InlineExecutor{}.Execute(context.Background(), Defer(DomainImmediate, nil))
	requireErrorContains(t, err, "no continuation")
}
