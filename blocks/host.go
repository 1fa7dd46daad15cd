package blocks

import (
	"github.com/mgomes/capdispatch/dispatch"
)

// Host is something modules are installed in: a manipulator block or a
// neural interface worn by a player.
type Host struct {
	Name     string
	Location *Location
	modules  *dispatch.ModuleSet
}

func NewHost(name string, loc *Location, modules ...dispatch.ModuleID) *Host {
	return &Host{Name: name, Location: loc, modules: dispatch.NewModuleSet(modules...)}
}

// WithoutModules returns a copy of h with ids uninstalled.
func (h *Host) WithoutModules(ids ...dispatch.ModuleID) *Host {
	return &Host{Name: h.Name, Location: h.Location, modules: h.modules.Without(ids...)}
}

func (h *Host) HasModule(id dispatch.ModuleID) bool { return h.modules.HasModule(id) }

// Modules lists installed modules.
func (h *Host) Modules() []dispatch.ModuleID { return h.modules.Modules() }

// Context returns the base context for calls on h: h is the target, its
// location is available under the origin key and costs are charged to
// handler, which may be nil.
func (h *Host) Context(handler dispatch.CostHandler) *dispatch.UnbakedContext {
	b := dispatch.NewContextBuilder(h).
		WithModules(h).
		WithCostHandler(handler)
	if h.Location != nil {
		b = b.With(dispatch.KeyOrigin, h.Location.Ref())
	}
	return b.Build()
}
