package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ChangeCallback is called with the old and newly loaded configuration when
// the watched file changes. Changes only affect future connects; the live
// connection is never touched.
type ChangeCallback func(oldConfig, newConfig *Config)

// Watcher reloads the configuration file on filesystem changes.
type Watcher struct {
	configFile string
	fsWatcher  *fsnotify.Watcher
	logger     *slog.Logger

	mu        sync.RWMutex
	config    *Config
	callbacks []ChangeCallback

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher with the initial configuration loaded.
func NewWatcher(configFile string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := Load(configFile)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}

	return &Watcher{
		configFile: configFile,
		fsWatcher:  fsWatcher,
		logger:     logger,
		config:     cfg,
	}, nil
}

// Config returns the most recently loaded configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// OnChange registers a callback fired after each successful reload.
func (w *Watcher) OnChange(cb ChangeCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Start begins watching the configuration file's directory. Watching the
// directory instead of the file survives editors that replace the file on
// save.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.configFile)
	if err := w.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("config: watch %s: %w", dir, err)
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.watch(ctx)

	return nil
}

func (w *Watcher) watch(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.configFile) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watch error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	newCfg, err := Load(w.configFile)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous", "error", err)
		return
	}
	if err := newCfg.Validate(); err != nil {
		w.logger.Warn("reloaded config invalid, keeping previous", "error", err)
		return
	}

	w.mu.Lock()
	oldCfg := w.config
	w.config = newCfg
	callbacks := make([]ChangeCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.Info("configuration reloaded", "file", w.configFile)

	for _, cb := range callbacks {
		cb(oldCfg, newCfg)
	}
}

// Stop ends watching and releases the filesystem watcher.
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}
