package gen

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch regenerates whenever the config file changes, until the context is
// cancelled. The config is reloaded on every change, so edits that break it
// are reported and the previous output stays on disk.
func Watch(ctx context.Context, configPath string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	if configPath == "" {
		configPath = DefaultConfigFile
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return err
	}

	run := func() {
		cfg, err := LoadConfig(abs)
		if err != nil {
			log.Error("config rejected", zap.Error(err))
			return
		}
		if err := New(cfg, log).Generate(ctx); err != nil {
			log.Error("generation failed", zap.Error(err))
			return
		}
	}
	run()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	// Watch the directory, not the file: editors often replace the file,
	// which would drop a file-level watch.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	log.Info("watching", zap.String("config", abs))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Name != abs || !ev.Op.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			log.Info("config changed", zap.String("op", ev.Op.String()))
			run()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))
		}
	}
}
