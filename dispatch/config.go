package dispatch

import (
	"fmt"
	"strings"
)

// Config carries the flags the core reads. It is passed by value to
// NewRegistry and NewMethod; nothing reads global state.
type Config struct {
	// Strict builds every delegate at registration, fails registration on
	// build errors and re-raises panics from method bodies.
	Strict bool `mapstructure:"strict" yaml:"strict"`
	// Debug logs every dispatched call.
	Debug bool `mapstructure:"debug" yaml:"debug"`
	// RequireDocs reports methods registered without documentation. With
	// Strict it rejects them.
	RequireDocs bool `mapstructure:"require_docs" yaml:"require_docs"`

	Blacklist Blacklist  `mapstructure:"blacklist" yaml:"blacklist"`
	Costs     CostConfig `mapstructure:"costs" yaml:"costs"`
}

// Blacklist lists methods the registry refuses.
//
// Provider patterns take three forms:
//   - "blocks." every owner in that package (note the trailing period)
//   - "blocks.Scanner" that owner and owners nested under it
//   - "blocks.Scanner#scan" a single method
//
// Types name device types or target types (as printed by %T, without a
// leading "*") that are never wrapped; a trailing period matches a
// package.
type Blacklist struct {
	Providers []string `mapstructure:"providers" yaml:"providers"`
	Modules   []string `mapstructure:"modules" yaml:"modules"`
	Types     []string `mapstructure:"types" yaml:"types"`
}

// CostConfig configures the default fuel tank.
type CostConfig struct {
	// Initial is the fuel a tank starts with.
	Initial float64 `mapstructure:"initial" yaml:"initial"`
	// Regen is the fuel regained per tick.
	Regen float64 `mapstructure:"regen" yaml:"regen"`
	// Limit caps the fuel a tank can hold.
	Limit float64 `mapstructure:"limit" yaml:"limit"`
	// AllowNegative lets costs overdraw the tank; calls then wait until
	// it climbs back above zero.
	AllowNegative bool `mapstructure:"allow_negative" yaml:"allow_negative"`
}

// DefaultConfig returns the defaults used when no file is loaded.
func DefaultConfig() Config {
	return Config{
		Costs: CostConfig{
			Initial: 100,
			Regen:   10,
			Limit:   100,
		},
	}
}

// ProviderBlacklisted reports whether the method name declared by owner
// matches a provider pattern.
func (b Blacklist) ProviderBlacklisted(owner, name string) bool {
	full := owner + "#" + name
	for _, raw := range b.Providers {
		pattern := strings.TrimSpace(raw)
		switch {
		case pattern == "":
			continue
		case strings.Contains(pattern, "#"):
			if pattern == full {
				return true
			}
		case strings.HasSuffix(pattern, "."):
			if strings.HasPrefix(owner, pattern) {
				return true
			}
		default:
			if owner == pattern || strings.HasPrefix(owner, pattern+".") {
				return true
			}
		}
	}
	return false
}

// TypeBlacklisted reports whether a device of type typ wrapping target
// must not be exposed.
func (b Blacklist) TypeBlacklisted(typ string, target any) bool {
	name := ""
	if target != nil {
		name = strings.TrimPrefix(fmt.Sprintf("%T", target), "*")
	}
	for _, raw := range b.Types {
		pattern := strings.TrimSpace(raw)
		switch {
		case pattern == "":
			continue
		case strings.HasSuffix(pattern, "."):
			if name != "" && strings.HasPrefix(name, pattern) {
				return true
			}
		case pattern == typ || pattern == name:
			return true
		}
	}
	return false
}

// ModuleIDs returns the blacklisted modules.
func (b Blacklist) ModuleIDs() []ModuleID {
	out := make([]ModuleID, 0, len(b.Modules))
	for _, m := range b.Modules {
		if id := strings.TrimSpace(m); id != "" {
			out = append(out, ModuleID(id))
		}
	}
	return out
}

// ModuleBlacklisted reports whether id is a blacklisted module.
func (b Blacklist) ModuleBlacklisted(id ModuleID) bool {
	for _, m := range b.Modules {
		if strings.TrimSpace(m) == string(id) {
			return true
		}
	}
	return false
}
