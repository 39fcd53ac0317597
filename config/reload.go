package config

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReloadCallback is invoked after a successful hot reload with the old and
// new configurations.
type ReloadCallback func(old, next *Config)

// Reloader watches the config file by polling its modification time and
// atomically swaps in a freshly loaded configuration when it changes. A
// file that fails to load or validate is skipped; the previous
// configuration stays active.
type Reloader struct {
	path     string
	interval time.Duration
	loader   *Loader
	logger   *zap.Logger

	mu        sync.RWMutex
	current   *Config
	callbacks []ReloadCallback

	lastMod time.Time
}

// NewReloader wraps an already loaded configuration. interval <= 0
// defaults to 5s.
func NewReloader(path string, current *Config, interval time.Duration, logger *zap.Logger) *Reloader {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reloader{
		path:     path,
		interval: interval,
		loader:   NewLoader().WithConfigPath(path),
		logger:   logger.With(zap.String("component", "config_reloader")),
		current:  current,
	}
	if info, err := os.Stat(path); err == nil {
		r.lastMod = info.ModTime()
	}
	return r
}

// OnReload registers a callback. Not safe to call after Start.
func (r *Reloader) OnReload(cb ReloadCallback) {
	r.callbacks = append(r.callbacks, cb)
}

// Snapshot returns the currently active configuration.
func (r *Reloader) Snapshot() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Start polls until ctx is cancelled.
func (r *Reloader) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.poll()
		}
	}
}

func (r *Reloader) poll() {
	info, err := os.Stat(r.path)
	if err != nil {
		return
	}
	if !info.ModTime().After(r.lastMod) {
		return
	}
	r.lastMod = info.ModTime()

	next, err := r.loader.Load()
	if err != nil {
		r.logger.Warn("config reload rejected, keeping previous",
			zap.String("path", r.path),
			zap.Error(err))
		return
	}

	r.mu.Lock()
	old := r.current
	r.current = next
	callbacks := r.callbacks
	r.mu.Unlock()

	r.logger.Info("config reloaded", zap.String("path", r.path))
	for _, cb := range callbacks {
		cb(old, next)
	}
}
