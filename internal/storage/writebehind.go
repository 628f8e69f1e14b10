/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"tigerlauncher/internal/domain"
)

// SaveTimeout bounds a single background write.
const SaveTimeout = 10 * time.Second

// ErrClosed is returned by Flush after Close.
var ErrClosed = errors.New("write-behind closed")

// WriteBehind queues layout saves and performs them on a background
// goroutine. Only the newest pending snapshot of each collection is kept, so
// a burst of edits costs one write. Enqueueing never blocks on I/O.
type WriteBehind struct {
	store    Store
	l        *slog.Logger
	onResult func(kind string, err error)

	mu        sync.Mutex
	points    []domain.Point
	nests     []domain.Nest
	hasPoints bool
	hasNests  bool
	queued    uint64
	written   uint64
	lastErr   error
	notify    chan struct{}
	closed    bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewWriteBehind starts the background writer. onResult, if set, is called
// after every write with "points" or "nests".
func NewWriteBehind(store Store, l *slog.Logger, onResult func(kind string, err error)) *WriteBehind {
	if l == nil {
		l = slog.Default()
	}
	w := &WriteBehind{
		store:    store,
		l:        l,
		onResult: onResult,
		notify:   make(chan struct{}),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// SavePoints queues a copy of points.
func (w *WriteBehind) SavePoints(points []domain.Point) {
	cp := domain.ClonePoints(points)
	w.mu.Lock()
	w.points, w.hasPoints = cp, true
	w.queued++
	w.mu.Unlock()
	w.kick()
}

// SaveNests queues a copy of nests.
func (w *WriteBehind) SaveNests(nests []domain.Nest) {
	cp := domain.CloneNests(nests)
	w.mu.Lock()
	w.nests, w.hasNests = cp, true
	w.queued++
	w.mu.Unlock()
	w.kick()
}

func (w *WriteBehind) kick() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Pending reports whether a save is queued or in flight.
func (w *WriteBehind) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written < w.queued
}

// Flush waits until everything queued before the call has been written and
// returns the error of the last write, if any.
func (w *WriteBehind) Flush(ctx context.Context) error {
	w.mu.Lock()
	target := w.queued
	for w.written < target {
		if w.closed {
			w.mu.Unlock()
			return ErrClosed
		}
		ch := w.notify
		w.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
		w.mu.Lock()
	}
	err := w.lastErr
	w.mu.Unlock()
	return err
}

// Close writes whatever is pending, stops the writer and closes the store.
func (w *WriteBehind) Close(ctx context.Context) error {
	ferr := w.Flush(ctx)
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ferr
	}
	w.closed = true
	w.mu.Unlock()
	close(w.stop)
	<-w.done
	return errors.Join(ferr, w.store.Close())
}

func (w *WriteBehind) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.drain()
		case <-w.stop:
			w.drain()
			return
		}
	}
}

func (w *WriteBehind) drain() {
	for {
		w.mu.Lock()
		if !w.hasPoints && !w.hasNests {
			w.mu.Unlock()
			return
		}
		points, nests := w.points, w.nests
		hasPoints, hasNests := w.hasPoints, w.hasNests
		w.points, w.nests, w.hasPoints, w.hasNests = nil, nil, false, false
		gen := w.queued
		w.mu.Unlock()

		var errs []error
		if hasNests {
			errs = append(errs, w.write("nests", func(ctx context.Context) error { return w.store.SaveNests(ctx, nests) }))
		}
		if hasPoints {
			errs = append(errs, w.write("points", func(ctx context.Context) error { return w.store.SavePoints(ctx, points) }))
		}

		w.mu.Lock()
		w.written = gen
		w.lastErr = errors.Join(errs...)
		close(w.notify)
		w.notify = make(chan struct{})
		w.mu.Unlock()
	}
}

func (w *WriteBehind) write(kind string, save func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), SaveTimeout)
	defer cancel()
	err := save(ctx)
	if err != nil {
		w.l.Error("background save failed", slog.String("kind", kind), slog.Any("err", err))
	}
	if w.onResult != nil {
		w.onResult(kind, err)
	}
	return err
}
