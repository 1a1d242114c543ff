package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher hot-reloads the configuration file named by SYNCDAL_CONFIG and
// pushes the result to registered callbacks. Used in development so cache
// and queue parameters can be tuned against a running server.
type Watcher struct {
	path    string
	logger  *zap.Logger
	watcher *fsnotify.Watcher

	mu        sync.RWMutex
	current   *Config
	callbacks []func(*Config)

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher builds a watcher over the config file at path, seeded with the
// currently loaded configuration.
func NewWatcher(path string, initial *Config, logger *zap.Logger) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config: watcher requires a file path")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: creating fsnotify watcher: %w", err)
	}
	// Watch the directory, not the file: editors replace files on save and
	// a file-level watch dies with the old inode.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watching %s: %w", filepath.Dir(path), err)
	}
	return &Watcher{
		path:    path,
		logger:  logger.Named("config-watcher"),
		watcher: fsw,
		current: initial,
		stopCh:  make(chan struct{}),
	}, nil
}

// OnChange registers fn to run with every successfully reloaded Config.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, fn)
	w.mu.Unlock()
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start runs the watch loop until Stop. Reload errors keep the previous
// configuration and are logged, never fatal.
func (w *Watcher) Start() {
	go func() {
		var debounce *time.Timer
		for {
			select {
			case <-w.stopCh:
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(w.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				// Editors fire several events per save; coalesce them.
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(200*time.Millisecond, w.reload)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("config watch error", zap.Error(err))
			}
		}
	}()
}

// Stop ends the watch loop and releases the fsnotify watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
	})
}

func (w *Watcher) reload() {
	cfg := DefaultConfig()
	if err := loadFile(cfg, w.path); err != nil {
		w.logger.Warn("config reload failed, keeping previous", zap.Error(err))
		return
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		w.logger.Warn("reloaded config invalid, keeping previous", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = cfg
	callbacks := append([]func(*Config){}, w.callbacks...)
	w.mu.Unlock()

	w.logger.Info("configuration reloaded", zap.String("path", w.path))
	for _, fn := range callbacks {
		fn(cfg)
	}
}
