package config

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 100 * time.Millisecond

// Watch reloads opts.Path whenever it changes and passes each valid result
// to onChange. Invalid files are logged and skipped. Watch blocks until ctx
// is done.
func Watch(ctx context.Context, opts LoadOptions, logger *log.Logger, onChange func(*Config)) error {
	if opts.Path == "" {
		return fmt.Errorf("watch: config path required")
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	abs, err := filepath.Abs(opts.Path)
	if err != nil {
		return fmt.Errorf("watch: resolve config path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}
	defer fsw.Close() //nolint:errcheck // best-effort cleanup

	// Editors often replace the file, so watch its directory.
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	reload := func() {
		cfg, _, err := Load(opts)
		if err != nil {
			logger.Warn("ignoring invalid config change", "path", opts.Path, "err", err)
			return
		}
		logger.Info("config reloaded", "path", opts.Path, "debug", cfg.Debug)
		onChange(cfg)
	}

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("watch: fsnotify event channel closed unexpectedly")
			}
			if filepath.Clean(evt.Name) != abs {
				continue
			}
			if evt.Has(fsnotify.Write) || evt.Has(fsnotify.Create) || evt.Has(fsnotify.Rename) {
				debounce = time.After(watchDebounce)
			}
		case <-debounce:
			debounce = nil
			reload()
		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("watch: fsnotify error channel closed unexpectedly")
			}
			logger.Warn("config watch error", "err", err)
		}
	}
}
