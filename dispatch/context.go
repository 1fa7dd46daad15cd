package dispatch

import "fmt"

// Well-known context keys.
const (
	// KeyTarget holds the object a method is invoked on.
	KeyTarget = "target"
	// KeyOrigin holds the object the target was reached from, for instance
	// the location of the block a peripheral is attached to.
	KeyOrigin = "origin"
	// KeyComputer holds the access handle of the calling computer.
	KeyComputer = "computer"
	// KeyGeneric holds references with no particular role.
	KeyGeneric = "generic"
)

// Reference is a lazily resolved context value. Resolution happens when a
// context is baked and may fail if the underlying object went away.
type Reference interface {
	Resolve() (any, error)
}

// ReferenceFunc adapts a function to Reference.
type ReferenceFunc func() (any, error)

func (f ReferenceFunc) Resolve() (any, error) { return f() }

// PartialContext is the view of a context CanApply runs against.
type PartialContext interface {
	Target() any
	HasContext(cls Class) bool
	HasKeyedContext(key string, cls Class) bool
	Modules() ModuleContainer
}

// UnbakedContext is an immutable bundle of keyed references awaiting
// resolution. keys[i] names refs[i]; target indexes the method's target.
type UnbakedContext struct {
	target   int
	keys     []string
	refs     []any
	handler  CostHandler
	modules  ModuleContainer
	executor ResultExecutor
}

// Len is the number of keyed references.
func (c *UnbakedContext) Len() int { return len(c.keys) }

// Key returns the key of reference i.
func (c *UnbakedContext) Key(i int) string { return c.keys[i] }

// Ref returns the unresolved reference i.
func (c *UnbakedContext) Ref(i int) any { return c.refs[i] }

func (c *UnbakedContext) CostHandler() CostHandler { return c.handler }

func (c *UnbakedContext) Modules() ModuleContainer { return c.modules }

func (c *UnbakedContext) Executor() ResultExecutor { return c.executor }

// Extend returns a new context with refs appended under key. The receiver
// is left untouched.
func (c *UnbakedContext) Extend(key string, refs ...any) *UnbakedContext {
	total := len(c.keys) + len(refs)
	keys := make([]string, total)
	values := make([]any, total)
	copy(keys, c.keys)
	copy(values, c.refs)
	for i, ref := range refs {
		keys[len(c.keys)+i] = key
		values[len(c.keys)+i] = ref
	}
	return &UnbakedContext{
		target:   c.target,
		keys:     keys,
		refs:     values,
		handler:  c.handler,
		modules:  c.modules,
		executor: c.executor,
	}
}

// withExecutor returns a copy of c bound to executor.
func (c *UnbakedContext) withExecutor(executor ResultExecutor) *UnbakedContext {
	child := *c
	child.executor = executor
	return &child
}

// WithTarget returns a new context whose target is ref, appended under
// KeyTarget. Existing references are kept.
func (c *UnbakedContext) WithTarget(ref any) *UnbakedContext {
	child := c.Extend(KeyTarget, ref)
	child.target = len(child.keys) - 1
	return child
}

// Bake resolves every reference and returns the resulting context.
func (c *UnbakedContext) Bake() (*Context, error) {
	values := make([]any, len(c.refs))
	for i, ref := range c.refs {
		resolved, err := resolveRef(ref)
		if err != nil {
			return nil, err
		}
		values[i] = resolved
	}
	keys := make([]string, len(c.keys))
	copy(keys, c.keys)
	var target any
	if c.target >= 0 && c.target < len(values) {
		target = values[c.target]
	}
	return &Context{
		target:   target,
		keys:     keys,
		values:   values,
		handler:  c.handler,
		modules:  c.modules,
		executor: c.executor,
	}, nil
}

func resolveRef(ref any) (any, error) {
	lazy, ok := ref.(Reference)
	if !ok {
		return ref, nil
	}
	return lazy.Resolve()
}

// Context is a baked context: every reference is resolved and can be
// queried directly. A Context lives for one call, or until the deferred
// continuation holding it has run.
type Context struct {
	target   any
	keys     []string
	values   []any
	handler  CostHandler
	modules  ModuleContainer
	executor ResultExecutor
}

func (c *Context) Target() any { return c.target }

func (c *Context) Modules() ModuleContainer { return c.modules }

func (c *Context) CostHandler() CostHandler { return c.handler }

func (c *Context) Executor() ResultExecutor { return c.executor }

// HasContext reports whether any reference is an instance of cls.
func (c *Context) HasContext(cls Class) bool {
	for _, v := range c.values {
		if cls.Matches(v) {
			return true
		}
	}
	return false
}

// HasKeyedContext reports whether a reference stored under key is an
// instance of cls.
func (c *Context) HasKeyedContext(key string, cls Class) bool {
	for i, k := range c.keys {
		if k == key && cls.Matches(c.values[i]) {
			return true
		}
	}
	return false
}

// GetContext returns the most recently added instance of cls.
func (c *Context) GetContext(cls Class) (any, bool) {
	for i := len(c.values) - 1; i >= 0; i-- {
		if cls.Matches(c.values[i]) {
			return c.values[i], true
		}
	}
	return nil, false
}

// GetKeyedContext returns the most recently added instance of cls stored
// under key.
func (c *Context) GetKeyedContext(key string, cls Class) (any, bool) {
	for i := len(c.values) - 1; i >= 0; i-- {
		if c.keys[i] == key && cls.Matches(c.values[i]) {
			return c.values[i], true
		}
	}
	return nil, false
}

// MakePartialChild returns a context scoped to target, a sub-object of the
// current target, keeping every keyed reference.
func (c *Context) MakePartialChild(target any) *Context {
	keys := make([]string, len(c.keys)+1)
	values := make([]any, len(c.values)+1)
	copy(keys, c.keys)
	copy(values, c.values)
	keys[len(c.keys)] = KeyTarget
	values[len(c.values)] = target
	return &Context{
		target:   target,
		keys:     keys,
		values:   values,
		handler:  c.handler,
		modules:  c.modules,
		executor: c.executor,
	}
}

// ContextAs returns the most recent T in c.
func ContextAs[T any](c *Context) (T, bool) {
	v, ok := c.GetContext(ClassOf[T]())
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// KeyedContextAs returns the most recent T stored under key.
func KeyedContextAs[T any](c *Context, key string) (T, bool) {
	v, ok := c.GetKeyedContext(key, ClassOf[T]())
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// RequireContext is ContextAs with a CapabilityError when T is absent.
func RequireContext[T any](c *Context) (T, error) {
	v, ok := ContextAs[T](c)
	if !ok {
		return v, &CapabilityError{Capability: ClassOf[T]().Name()}
	}
	return v, nil
}

// TargetAs returns the context target as a T.
func TargetAs[T any](c *Context) (T, error) {
	v, ok := c.target.(T)
	if !ok {
		return v, fmt.Errorf("%w: target is %T, not %s", ErrCapabilityMissing, c.target, ClassOf[T]().Name())
	}
	return v, nil
}

// ContextBuilder assembles the base UnbakedContext for one target.
type ContextBuilder struct {
	target   any
	keys     []string
	refs     []any
	handler  CostHandler
	modules  ModuleContainer
	executor ResultExecutor
}

// NewContextBuilder starts a context whose target is target, which may be
// a Reference.
func NewContextBuilder(target any) *ContextBuilder {
	return &ContextBuilder{target: target}
}

// With adds ref under key.
func (b *ContextBuilder) With(key string, ref any) *ContextBuilder {
	b.keys = append(b.keys, key)
	b.refs = append(b.refs, ref)
	return b
}

func (b *ContextBuilder) WithModules(modules ModuleContainer) *ContextBuilder {
	b.modules = modules
	return b
}

func (b *ContextBuilder) WithCostHandler(handler CostHandler) *ContextBuilder {
	b.handler = handler
	return b
}

func (b *ContextBuilder) WithExecutor(executor ResultExecutor) *ContextBuilder {
	b.executor = executor
	return b
}

// Build returns the context. The target is stored last under KeyTarget.
func (b *ContextBuilder) Build() *UnbakedContext {
	n := len(b.keys)
	keys := make([]string, n+1)
	refs := make([]any, n+1)
	copy(keys, b.keys)
	copy(refs, b.refs)
	keys[n] = KeyTarget
	refs[n] = b.target
	return &UnbakedContext{
		target:   n,
		keys:     keys,
		refs:     refs,
		handler:  b.handler,
		modules:  b.modules,
		executor: b.executor,
	}
}
