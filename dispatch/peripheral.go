package dispatch

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strconv"

	"github.com/charmbracelet/log"
)

// Access identifies the computer calling into a device.
type Access interface {
	ID() string
	AttachmentName() string
}

// Device is the call surface a host exposes to scripts.
type Device interface {
	Type() string
	MethodNames() []string
	Call(ctx context.Context, access Access, index int, args []Value) ([]Value, error)
	Attach(access Access)
	Detach(access Access)
	Equal(other Device) bool
	Target() any
	Docs() []MethodDoc
}

// MethodDoc is the documentation of one exposed method.
type MethodDoc struct {
	Name string `json:"name" yaml:"name"`
	ID   string `json:"id" yaml:"id"`
	Doc  string `json:"doc,omitempty" yaml:"doc,omitempty"`
}

// Binding pairs an applicable method with the context it runs in.
type Binding struct {
	Method  *Method
	Context *UnbakedContext
}

// PeripheralOption configures a Peripheral.
type PeripheralOption func(*Peripheral)

// WithStrict makes panics in method bodies propagate instead of being
// turned into call errors.
func WithStrict(strict bool) PeripheralOption {
	return func(p *Peripheral) { p.strict = strict }
}

// WithLogger sets the logger used for debug call tracing.
func WithLogger(logger *log.Logger, debug bool) PeripheralOption {
	return func(p *Peripheral) {
		p.logger = logger
		p.debug = debug
	}
}

// Peripheral exposes an ordered set of bound methods as a Device. It is
// immutable and safe for concurrent calls.
type Peripheral struct {
	typ      string
	owner    any
	bindings []Binding
	names    []string
	ids      []string
	factory  ExecutorFactory

	strict bool
	debug  bool
	logger *log.Logger
}

// NewPeripheral wraps bindings for owner. Method indices follow the order of
// bindings. A nil factory runs deferred results inline.
func NewPeripheral(typ string, owner any, bindings []Binding, factory ExecutorFactory, opts ...PeripheralOption) *Peripheral {
	if factory == nil {
		factory = InlineFactory()
	}
	p := &Peripheral{
		typ:      typ,
		owner:    owner,
		bindings: slices.Clone(bindings),
		names:    make([]string, len(bindings)),
		factory:  factory,
	}
	for i, b := range bindings {
		p.names[i] = b.Method.Name()
	}
	p.ids = make([]string, len(bindings))
	for i, b := range bindings {
		p.ids[i] = b.Method.ID()
	}
	slices.Sort(p.ids)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Peripheral) Type() string { return p.typ }

func (p *Peripheral) Target() any { return p.owner }

// MethodNames returns method names by index.
func (p *Peripheral) MethodNames() []string { return slices.Clone(p.names) }

// Methods returns the bound methods by index.
func (p *Peripheral) Methods() []*Method {
	out := make([]*Method, len(p.bindings))
	for i, b := range p.bindings {
		out[i] = b.Method
	}
	return out
}

func (p *Peripheral) Docs() []MethodDoc {
	docs := make([]MethodDoc, len(p.bindings))
	for i, b := range p.bindings {
		docs[i] = MethodDoc{Name: b.Method.Name(), ID: b.Method.ID(), Doc: b.Method.Doc()}
	}
	return docs
}

// Index returns the index of the first method called name.
func (p *Peripheral) Index(name string) (int, bool) {
	i := slices.Index(p.names, name)
	return i, i >= 0
}

func (p *Peripheral) Attach(access Access) {
	if p.debug && p.logger != nil && access != nil {
		p.logger.Debug("attach", "device", p.typ, "computer", access.ID())
	}
}

func (p *Peripheral) Detach(access Access) {
	if p.debug && p.logger != nil && access != nil {
		p.logger.Debug("detach", "device", p.typ, "computer", access.ID())
	}
}

// Call runs method index with args on behalf of access and waits for its
// values. Every failure is returned as a *CallError.
func (p *Peripheral) Call(ctx context.Context, access Access, index int, args []Value) ([]Value, error) {
	if index < 0 || index >= len(p.bindings) {
		return nil, &CallError{
			Device: p.typ,
			Method: strconv.Itoa(index),
			Err:    fmt.Errorf("%w: index %d", ErrUnknownMethod, index),
		}
	}
	binding := p.bindings[index]
	name := binding.Method.Name()

	executor := p.factory.NewExecutor(access)
	callCtx := binding.Context.withExecutor(executor)
	if access != nil {
		callCtx = callCtx.Extend(KeyComputer, access)
	}
	if p.debug && p.logger != nil {
		computer := ""
		if access != nil {
			computer = access.ID()
		}
		p.logger.Debug("call", "device", p.typ, "method", binding.Method.ID(), "computer", computer, "args", len(args))
	}

	result, err := p.apply(binding.Method, callCtx, slices.Clone(args))
	if err != nil {
		return nil, &CallError{Device: p.typ, Method: name, Err: err}
	}
	values, err := executor.Execute(ctx, result)
	if err != nil {
		return nil, &CallError{Device: p.typ, Method: name, Err: err}
	}
	return values, nil
}

func (p *Peripheral) apply(m *Method, ctx *UnbakedContext, args []Value) (result Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if p.strict {
				panic(rec)
			}
			if p.logger != nil {
				p.logger.Error("method panicked", "method", m.ID(), "panic", rec)
			}
			err = &panicError{value: rec}
		}
	}()
	return m.Apply(ctx, args)
}

// Equal reports whether other wraps the same owner with the same type and
// the same methods, in any order.
func (p *Peripheral) Equal(other Device) bool {
	o, ok := other.(*Peripheral)
	if !ok || o == nil {
		return false
	}
	if p == o {
		return true
	}
	return p.typ == o.typ && sameIdentity(p.owner, o.owner) && slices.Equal(p.ids, o.ids)
}

// sameIdentity compares a and b by identity: pointers, maps, slices, and
// funcs by address, other comparable values with ==.
func sameIdentity(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	switch ta.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func:
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	}
	if ta.Comparable() {
		return a == b
	}
	return false
}
