// Package config loads capdispatch settings: built-in defaults, an optional
// CUE file validated against an embedded schema, CAPDISPATCH_ environment
// variables and command line overrides, in increasing precedence.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"github.com/mgomes/capdispatch/blocks"
	"github.com/mgomes/capdispatch/dispatch"
	"github.com/mgomes/capdispatch/tick"
)

const (
	// FileName is the config file looked up in the working directory.
	FileName = "capdispatch.cue"
	// EnvPrefix prefixes environment overrides, e.g. CAPDISPATCH_SCANNER_RADIUS.
	EnvPrefix = "CAPDISPATCH"
)

//go:embed schema.cue
var schema string

// Config is the complete tool configuration.
type Config struct {
	dispatch.Config `mapstructure:",squash" yaml:",inline"`

	Tick    tick.Config   `mapstructure:"tick" yaml:"tick"`
	Scanner blocks.Config `mapstructure:"scanner" yaml:"scanner"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`

	settings map[string]any
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Config:  dispatch.DefaultConfig(),
		Tick:    tick.DefaultConfig(),
		Scanner: blocks.DefaultConfig(),
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Settings returns the merged settings as plain data, for display.
func (c *Config) Settings() map[string]any { return c.settings }

// LoadOptions controls Load.
type LoadOptions struct {
	// Path is an explicit config file. It must exist.
	Path string
	// Overrides are applied last, keyed by setting name such as "strict"
	// or "log.level".
	Overrides map[string]any
}

// Load resolves the configuration. It returns the config and the path of
// the file it read, which is empty when defaults were used.
func Load(opts LoadOptions) (*Config, string, error) {
	v := newViper()

	path := opts.Path
	if path != "" {
		if !fileExists(path) {
			return nil, "", fmt.Errorf("config file not found: %s", path)
		}
	} else if fileExists(FileName) {
		path = FileName
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", err
		}
	}
	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, "", err
	}
	cfg.settings = v.AllSettings()
	return &cfg, path, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()

	v.SetDefault("strict", d.Strict)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("require_docs", d.RequireDocs)
	v.SetDefault("blacklist.providers", []string{})
	v.SetDefault("blacklist.modules", []string{})
	v.SetDefault("blacklist.types", []string{})
	v.SetDefault("costs.initial", d.Costs.Initial)
	v.SetDefault("costs.regen", d.Costs.Regen)
	v.SetDefault("costs.limit", d.Costs.Limit)
	v.SetDefault("costs.allow_negative", d.Costs.AllowNegative)
	v.SetDefault("tick.period", d.Tick.Period.String())
	v.SetDefault("tick.async_workers", d.Tick.AsyncWorkers)
	v.SetDefault("scanner.radius", d.Scanner.Radius)
	v.SetDefault("scanner.scan_cost", d.Scanner.ScanCost)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadCUEIntoViper validates the file at path against #Config and merges
// it over the defaults.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileString(schema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return fmt.Errorf("%s: %w", path, userValue.Err())
	}

	unified := schemaValue.LookupPath(cue.ParsePath("#Config")).Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// validate checks constraints that span settings or that environment
// overrides could break after CUE validation.
func (c *Config) validate() error {
	var errs []error
	if c.Costs.Limit <= 0 {
		errs = append(errs, errors.New("costs.limit must be positive"))
	}
	if c.Costs.Initial > c.Costs.Limit {
		errs = append(errs, fmt.Errorf("costs.initial (%g) exceeds costs.limit (%g)", c.Costs.Initial, c.Costs.Limit))
	}
	if c.Tick.Period <= 0 {
		errs = append(errs, errors.New("tick.period must be positive"))
	}
	if c.Tick.AsyncWorkers < 1 {
		errs = append(errs, errors.New("tick.async_workers must be at least 1"))
	}
	if c.Scanner.Radius < 0 {
		errs = append(errs, errors.New("scanner.radius must not be negative"))
	}
	return errors.Join(errs...)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
