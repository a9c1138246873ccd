package inventory

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads the inventory when the file changes and then calls
// OnReload, typically the device manager's LoadDevices.
type Watcher struct {
	path     string
	loader   *Loader
	onReload func(ctx context.Context) error
	debounce time.Duration
	logger   *zap.Logger
}

// NewWatcher creates a Watcher. A zero debounce uses 500ms.
func NewWatcher(path string, loader *Loader, onReload func(ctx context.Context) error, debounce time.Duration, logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{
		path:     path,
		loader:   loader,
		onReload: onReload,
		debounce: debounce,
		logger:   logger,
	}
}

// Run watches until ctx is cancelled. The parent directory is watched so
// editors that replace the file are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	abs, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("resolve inventory path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	w.logger.Info("watching inventory", zap.String("path", abs))

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			name, _ := filepath.Abs(ev.Name)
			if name != abs || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.logger.Debug("inventory changed", zap.String("op", ev.Op.String()))
			timer.Reset(w.debounce)

		case <-timer.C:
			w.reload(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("inventory watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	if _, err := w.loader.Load(ctx, w.path); err != nil {
		w.logger.Error("inventory reload failed", zap.Error(err))
		return
	}
	if w.onReload == nil {
		return
	}
	if err := w.onReload(ctx); err != nil {
		w.logger.Error("post-reload hook failed", zap.Error(err))
	}
}
