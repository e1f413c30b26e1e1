package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config at path whenever it changes on disk and hands the
// result to onChange. It returns nil once ctx is cancelled.
//
// The parent directory is watched rather than the file, so editors that save
// by writing a temporary file and renaming it over path keep triggering
// reloads. A config that fails to load is logged and skipped; onChange only
// ever sees valid configs.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(*Config)) error {
	if logger == nil {
		logger = slog.Default()
	}
	target := filepath.Clean(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(target)); err != nil {
		return err
	}
	logger.Info("config: watching for changes", "path", target)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if touches(ev, target) {
				reload(target, logger, onChange)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("config: watcher error", "err", err)
		}
	}
}

// touches reports whether ev may have changed the contents at target.
func touches(ev fsnotify.Event, target string) bool {
	if filepath.Clean(ev.Name) != target {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

func reload(path string, logger *slog.Logger, onChange func(*Config)) {
	cfg, err := Load(path)
	if err != nil {
		logger.Error("config: reload failed, keeping previous config", "path", path, "err", err)
		return
	}
	logger.Info("config: reloaded", "path", path, "accounts", len(cfg.Bridge.Accounts))
	onChange(cfg)
}
