package dispatch

import "fmt"

// Apply runs the method against ctx with the raw script arguments. The
// delegate is built by the first caller to need it; concurrent first calls
// wait for that single build and share its outcome.
func (m *Method) Apply(ctx *UnbakedContext, args []Value) (Result, error) {
	slot := m.delegate()
	if slot.err != nil {
		return Result{}, slot.err
	}
	return slot.fn(ctx, args)
}

// Built reports whether a build has been attempted, successfully or not.
func (m *Method) Built() bool { return m.slot.Load() != nil }

// BuildErr returns the pinned build failure, if any.
func (m *Method) BuildErr() error {
	if slot := m.slot.Load(); slot != nil {
		return slot.err
	}
	return nil
}

func (m *Method) delegate() *delegateSlot {
	if slot := m.slot.Load(); slot != nil {
		return slot
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if slot := m.slot.Load(); slot != nil {
		return slot
	}
	slot := m.buildSlot()
	m.slot.Store(slot)
	return slot
}

func (m *Method) buildSlot() (slot *delegateSlot) {
	defer func() {
		if rec := recover(); rec != nil {
			slot = &delegateSlot{err: fmt.Errorf("%w: %s: %w", ErrBuildFailed, m.id, &panicError{value: rec})}
		}
	}()

	fn, err := m.build()
	if err != nil {
		return &delegateSlot{err: fmt.Errorf("%w: %s: %w", ErrBuildFailed, m.id, err)}
	}
	if fn == nil {
		return &delegateSlot{err: fmt.Errorf("%w: %s: build returned no delegate", ErrBuildFailed, m.id)}
	}
	if m.worldThread {
		fn = onTick(fn)
	}
	return &delegateSlot{fn: fn}
}

// onTick moves a whole delegate onto the tick domain.
func onTick(fn Delegate) Delegate {
	return func(ctx *UnbakedContext, args []Value) (Result, error) {
		return NextTick(func() (Result, error) {
			return fn(ctx, args)
		}), nil
	}
}
