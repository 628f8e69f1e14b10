/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last write before reloading.
const DefaultDebounce = 250 * time.Millisecond

// Static serves a fixed configuration.
type Static struct {
	Cfg AppConfig
}

func (s Static) Config() AppConfig      { return s.Cfg }
func (s Static) Gesture() GestureConfig { return s.Cfg.Gesture }

// Watcher keeps the configuration file under watch and reloads it on change.
// Reads are cheap and never block on I/O, so Gesture can be called on every
// pointer event.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger

	mu        sync.RWMutex
	cfg       AppConfig
	callbacks []func(AppConfig)

	fs     *fsnotify.Watcher
	stopCh chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewWatcher starts watching path. The parent directory is watched so that
// editors that replace the file on save are picked up too.
func NewWatcher(path string, initial AppConfig, logger *slog.Logger) (*Watcher, error) {
	return newWatcher(path, initial, logger, DefaultDebounce)
}

func newWatcher(path string, initial AppConfig, logger *slog.Logger, debounce time.Duration) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	path = filepath.Clean(path)
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	w := &Watcher{
		path:     path,
		debounce: debounce,
		logger:   logger.With(slog.String("component", "config")),
		cfg:      initial,
		fs:       fsw,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.loop()
	w.logger.Debug("watching config", slog.String("path", path))
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	var timer *time.Timer
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", slog.Any("err", err))
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Rename)
}

// reload reads the file again. Invalid files keep the previous configuration.
func (w *Watcher) reload() {
	next, err := LoadFile(w.path)
	if err != nil {
		w.logger.Warn("config reload rejected", slog.String("path", w.path), slog.Any("err", err))
		return
	}
	w.mu.Lock()
	if reflect.DeepEqual(w.cfg, next) {
		w.mu.Unlock()
		return
	}
	w.cfg = next
	callbacks := append([]func(AppConfig){}, w.callbacks...)
	w.mu.Unlock()

	w.logger.Info("config reloaded", slog.String("path", w.path), slog.Int("subscribers", len(callbacks)))
	for _, cb := range callbacks {
		w.notify(cb, next)
	}
}

func (w *Watcher) notify(cb func(AppConfig), cfg AppConfig) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("config subscriber panicked", slog.Any("panic", r))
		}
	}()
	cb(cfg)
}

// OnChange registers a callback run after every successful reload.
func (w *Watcher) OnChange(cb func(AppConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Config returns the current configuration.
func (w *Watcher) Config() AppConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

// Gesture returns the current gesture settings.
func (w *Watcher) Gesture() GestureConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg.Gesture
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.stopCh)
		<-w.done
		err = w.fs.Close()
	})
	return err
}
