package main

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mgomes/capdispatch/internal/config"
	"github.com/mgomes/capdispatch/internal/logging"
)

// app carries state shared by every command.
type app struct {
	stdout io.Writer
	stderr io.Writer

	cfgPath  string
	strict   bool
	debug    bool
	logLevel string

	cfg    *config.Config
	used   string
	logger *log.Logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "capdispatch",
		Short: "Inspect and call capability-dispatched peripheral methods",
		Long: `capdispatch binds registered methods to a demo manipulator and lets you
list, document and call them.

Examples:
  capdispatch methods --format yaml
  capdispatch call getBlockMeta 1 0 0
  capdispatch console`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgPath, "config", "", "config file (default is ./"+config.FileName+" when present)")
	flags.BoolVar(&a.strict, "strict", false, "build every method at startup and fail on errors")
	flags.BoolVar(&a.debug, "debug", false, "log every dispatched call")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		newMethodsCmd(a),
		newDocCmd(a),
		newCallCmd(a),
		newConsoleCmd(a),
		newConfigCmd(a),
	)
	return root
}

// load resolves configuration and the logger. Flags only override the
// file when set explicitly.
func (a *app) load(cmd *cobra.Command) error {
	overrides := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("strict") {
		overrides["strict"] = a.strict
	}
	if flags.Changed("debug") {
		overrides["debug"] = a.debug
	}
	if flags.Changed("log-level") {
		overrides["log.level"] = a.logLevel
	}

	cfg, used, err := config.Load(config.LoadOptions{Path: a.cfgPath, Overrides: overrides})
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if cfg.Debug && !flags.Changed("log-level") {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{
		Level:  level,
		Format: cfg.Log.Format,
		Prefix: "capdispatch",
		Writer: a.stderr,
	})
	if err != nil {
		return err
	}
	a.cfg, a.used, a.logger = cfg, used, logger
	if used != "" {
		logger.Debug("loaded config", "path", used)
	}
	return nil
}

func runCLI(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(&app{stdout: stdout, stderr: stderr})
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
