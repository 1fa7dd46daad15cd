package dispatch

import (
	"sort"
	"strings"
)

// ModuleID names an optional feature a target may provide, such as
// "scanner" or "plethora:sensor".
type ModuleID string

// ModuleContainer answers which modules are installed on a target.
type ModuleContainer interface {
	HasModule(id ModuleID) bool
}

// ModuleSet is an immutable ModuleContainer backed by a set.
type ModuleSet struct {
	ids map[ModuleID]struct{}
}

// NewModuleSet returns a container holding ids. Blank ids are ignored.
func NewModuleSet(ids ...ModuleID) *ModuleSet {
	set := &ModuleSet{ids: make(map[ModuleID]struct{}, len(ids))}
	for _, id := range ids {
		if strings.TrimSpace(string(id)) == "" {
			continue
		}
		set.ids[id] = struct{}{}
	}
	return set
}

func (s *ModuleSet) HasModule(id ModuleID) bool {
	if s == nil {
		return false
	}
	_, ok := s.ids[id]
	return ok
}

// Modules lists the installed modules in sorted order.
func (s *ModuleSet) Modules() []ModuleID {
	if s == nil {
		return nil
	}
	out := make([]ModuleID, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Without returns a copy of s lacking the given modules.
func (s *ModuleSet) Without(ids ...ModuleID) *ModuleSet {
	drop := make(map[ModuleID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := make([]ModuleID, 0, len(s.Modules()))
	for _, id := range s.Modules() {
		if _, ok := drop[id]; !ok {
			kept = append(kept, id)
		}
	}
	return NewModuleSet(kept...)
}

var moduleContainerClass = ClassOf[ModuleContainer]()
