package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// Delegate is the executable body of a method. It receives the unbaked
// context so it can decide when, and on which domain, to bake it.
type Delegate func(ctx *UnbakedContext, args []Value) (Result, error)

// MethodSpec declares a method. It is the registration-time description a
// Method is built from.
type MethodSpec struct {
	// Owner names the provider declaring the method, such as
	// "blocks.Scanner". It scopes the method ID and blacklist matching.
	Owner string
	Name  string
	Doc   string
	// Target is the class of object the method is invoked on.
	Target Class
	// Context lists required context values.
	Context []ContextInfo
	// Modules lists modules that must all be installed.
	Modules []ModuleID
	// Markers are capability classes the method advertises.
	Markers []Class
	// SubTarget optionally names the class of sub-object the method
	// operates on.
	SubTarget Class
	// WorldThread runs the whole delegate on the tick domain.
	WorldThread bool
	// Build produces the delegate. It runs at most once per Method.
	Build func() (Delegate, error)
}

// Func returns a Build function for an already written delegate.
func Func(fn Delegate) func() (Delegate, error) {
	return func() (Delegate, error) { return fn, nil }
}

// Method is an immutable method descriptor. The delegate is built on first
// use, or at construction in strict mode, and never rebuilt.
type Method struct {
	id              string
	owner           string
	name            string
	doc             string
	target          Class
	requires        []ContextInfo
	modules         []ModuleID
	markers         []Class
	subTarget       Class
	worldThread     bool
	containerTarget bool
	build           func() (Delegate, error)

	mu   sync.Mutex
	slot atomic.Pointer[delegateSlot]
}

type delegateSlot struct {
	fn  Delegate
	err error
}

// NewMethod validates spec and returns its descriptor. In strict mode the
// delegate is built immediately and a build failure is returned.
func NewMethod(spec MethodSpec, cfg Config) (*Method, error) {
	switch {
	case strings.TrimSpace(spec.Owner) == "":
		return nil, errors.New("method owner must be non-empty")
	case strings.TrimSpace(spec.Name) == "":
		return nil, fmt.Errorf("method name must be non-empty (owner %s)", spec.Owner)
	case spec.Target.IsZero():
		return nil, fmt.Errorf("%s#%s: target class is required", spec.Owner, spec.Name)
	case spec.Build == nil:
		return nil, fmt.Errorf("%s#%s: build function is required", spec.Owner, spec.Name)
	}
	for _, info := range spec.Context {
		if info.Class.IsZero() {
			return nil, fmt.Errorf("%s#%s: context requirement without class", spec.Owner, spec.Name)
		}
	}

	m := &Method{
		id:              spec.Owner + "#" + spec.Name + "(" + spec.Target.Name() + ")",
		owner:           spec.Owner,
		name:            spec.Name,
		doc:             spec.Doc,
		target:          spec.Target,
		requires:        cloneContextInfo(spec.Context),
		modules:         append([]ModuleID(nil), spec.Modules...),
		markers:         append([]Class(nil), spec.Markers...),
		subTarget:       spec.SubTarget,
		worldThread:     spec.WorldThread,
		containerTarget: spec.Target.Implements(moduleContainerClass),
		build:           spec.Build,
	}

	if cfg.Strict {
		slot := m.buildSlot()
		if slot.err != nil {
			return nil, slot.err
		}
		m.slot.Store(slot)
	}
	return m, nil
}

func cloneContextInfo(in []ContextInfo) []ContextInfo {
	out := make([]ContextInfo, len(in))
	for i, info := range in {
		out[i] = ContextInfo{Keys: append([]string(nil), info.Keys...), Class: info.Class}
	}
	return out
}

// ID is unique per owner, name and target class.
func (m *Method) ID() string { return m.id }

func (m *Method) Owner() string { return m.owner }

func (m *Method) Name() string { return m.name }

func (m *Method) Doc() string { return m.doc }

func (m *Method) Target() Class { return m.target }

func (m *Method) WorldThread() bool { return m.worldThread }

// Modules returns a copy of the required modules.
func (m *Method) Modules() []ModuleID { return append([]ModuleID(nil), m.modules...) }

// Requires returns a copy of the required context.
func (m *Method) Requires() []ContextInfo { return cloneContextInfo(m.requires) }

// SubTarget returns the sub-object class, if the method declares one.
func (m *Method) SubTarget() (Class, bool) {
	return m.subTarget, !m.subTarget.IsZero()
}

// Has reports whether the method advertises the marker capability cls.
func (m *Method) Has(cls Class) bool {
	for _, marker := range m.markers {
		if marker.Implements(cls) {
			return true
		}
	}
	return false
}

// CanApply reports whether the method may run against ctx: every required
// module is installed and every required context value is present.
func (m *Method) CanApply(ctx PartialContext) bool {
	if len(m.modules) > 0 {
		var container ModuleContainer
		if m.containerTarget {
			container, _ = ctx.Target().(ModuleContainer)
		} else {
			container = ctx.Modules()
		}
		if container == nil {
			return false
		}
		for _, id := range m.modules {
			if !container.HasModule(id) {
				return false
			}
		}
	}

	for _, info := range m.requires {
		if len(info.Keys) == 0 {
			if !ctx.HasContext(info.Class) {
				return false
			}
			continue
		}
		found := false
		for _, key := range info.Keys {
			if ctx.HasKeyedContext(key, info.Class) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (m *Method) String() string { return m.id }
