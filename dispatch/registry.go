package dispatch

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Registry holds every registered method and binds them to targets.
type Registry struct {
	cfg    Config
	logger *log.Logger

	mu      sync.RWMutex
	methods []*Method
	byID    map[string]*Method
}

// NewRegistry returns an empty registry. A nil logger discards output.
func NewRegistry(cfg Config, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Registry{
		cfg:    cfg,
		logger: logger,
		byID:   make(map[string]*Method),
	}
}

func (r *Registry) Config() Config { return r.cfg }

func (r *Registry) Logger() *log.Logger { return r.logger }

// Register adds the method described by spec. Blacklisted methods return
// an error wrapping ErrBlacklisted and are not added.
func (r *Registry) Register(spec MethodSpec) (*Method, error) {
	if r.cfg.Blacklist.ProviderBlacklisted(spec.Owner, spec.Name) {
		r.logger.Info("skipping blacklisted method", "owner", spec.Owner, "method", spec.Name)
		return nil, fmt.Errorf("%w: %s#%s", ErrBlacklisted, spec.Owner, spec.Name)
	}
	for _, id := range spec.Modules {
		if r.cfg.Blacklist.ModuleBlacklisted(id) {
			r.logger.Info("skipping method using blacklisted module", "owner", spec.Owner, "method", spec.Name, "module", id)
			return nil, fmt.Errorf("%w: %s#%s requires module %s", ErrBlacklisted, spec.Owner, spec.Name, id)
		}
	}
	if r.cfg.RequireDocs && strings.TrimSpace(spec.Doc) == "" {
		if r.cfg.Strict {
			return nil, fmt.Errorf("%s#%s has no documentation", spec.Owner, spec.Name)
		}
		r.logger.Warn("method has no documentation", "owner", spec.Owner, "method", spec.Name)
	}

	m, err := NewMethod(spec, r.cfg)
	if err != nil {
		r.logger.Error("cannot register method", "owner", spec.Owner, "method", spec.Name, "err", err)
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[m.ID()]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateMethod, m.ID())
	}
	r.byID[m.ID()] = m
	r.methods = append(r.methods, m)
	r.logger.Debug("registered method", "id", m.ID())
	return m, nil
}

// RegisterAll registers every spec. Blacklisted methods are skipped; other
// failures are joined into the returned error.
func (r *Registry) RegisterAll(specs ...MethodSpec) error {
	var errs []error
	for _, spec := range specs {
		if _, err := r.Register(spec); err != nil && !errors.Is(err, ErrBlacklisted) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Methods returns every registered method ordered by ID.
func (r *Registry) Methods() []*Method {
	r.mu.RLock()
	out := slices.Clone(r.methods)
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Method) int { return strings.Compare(a.ID(), b.ID()) })
	return out
}

// Lookup returns the method with the given ID.
func (r *Registry) Lookup(id string) (*Method, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	return m, ok
}

// Bind returns a binding for every method whose target class matches the
// context target and whose requirements the context satisfies, ordered by
// method name then ID. The context is baked once to check applicability.
func (r *Registry) Bind(base *UnbakedContext) ([]Binding, error) {
	bindings, _, err := r.bind(base)
	return bindings, err
}

func (r *Registry) bind(base *UnbakedContext) ([]Binding, any, error) {
	baked, err := base.Bake()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve context: %w", err)
	}
	target := baked.Target()

	var bindings []Binding
	for _, m := range r.Methods() {
		if !m.Target().Matches(target) || !m.CanApply(baked) {
			continue
		}
		bindings = append(bindings, Binding{Method: m, Context: base})
	}
	slices.SortStableFunc(bindings, func(a, b Binding) int {
		if c := strings.Compare(a.Method.Name(), b.Method.Name()); c != 0 {
			return c
		}
		return strings.Compare(a.Method.ID(), b.Method.ID())
	})
	return bindings, target, nil
}

// Wrap binds base and exposes the result as a Peripheral of type typ owned
// by the context target. It returns nil when no method applies or the
// type is blacklisted.
func (r *Registry) Wrap(typ string, base *UnbakedContext, factory ExecutorFactory) (*Peripheral, error) {
	bindings, target, err := r.bind(base)
	if err != nil {
		return nil, err
	}
	if len(bindings) == 0 {
		return nil, nil
	}
	if r.cfg.Blacklist.TypeBlacklisted(typ, target) {
		r.logger.Info("not wrapping blacklisted type", "type", typ, "target", fmt.Sprintf("%T", target))
		return nil, nil
	}
	return NewPeripheral(typ, target, bindings, factory,
		WithStrict(r.cfg.Strict),
		WithLogger(r.logger, r.cfg.Debug),
	), nil
}
