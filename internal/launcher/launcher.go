/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package launcher is the single owner of the launcher layout. Gestures,
// edits, navigation and history all go through a Launcher, which serialises
// them behind one mutex so multi-point rewrites like auto-separation always
// see a consistent snapshot.
package launcher

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"tigerlauncher/internal/config"
	"tigerlauncher/internal/dispatch"
	"tigerlauncher/internal/domain"
	"tigerlauncher/internal/gesture"
	applog "tigerlauncher/internal/log"
	"tigerlauncher/internal/metrics"
	"tigerlauncher/internal/nest"
	"tigerlauncher/internal/storage"
	"tigerlauncher/internal/undo"
)

var (
	ErrRingFull        = errors.New("ring is full")
	ErrPointNotFound   = errors.New("point not found")
	ErrNestNotFound    = nest.ErrNotFound
	ErrRootNest        = nest.ErrRootNest
	ErrInvalidRing     = errors.New("ring not defined in nest")
	ErrInvalidDistance = errors.New("drag distance must be positive")
)

// Settings is queried synchronously whenever a gesture or edit needs the
// current user preferences. *config.Watcher and config.Static implement it.
type Settings interface {
	Gesture() config.GestureConfig
}

// Sink receives the layout after every structural change. It must not block;
// *storage.WriteBehind is the usual implementation.
type Sink interface {
	SavePoints(points []domain.Point)
	SaveNests(nests []domain.Nest)
}

type Options struct {
	Settings   Settings
	History    undo.Config
	Sink       Sink
	Dispatcher dispatch.Dispatcher
	Metrics    *metrics.Collector
	Logger     *slog.Logger
	// Rand drives free-angle placement and nest ids. Defaults to a time seeded source.
	Rand *rand.Rand
}

// Launcher owns points, nests, navigation, the drag session and history.
type Launcher struct {
	mu       sync.Mutex
	settings Settings
	hist     *undo.History
	sink     Sink
	disp     dispatch.Dispatcher
	m        *metrics.Collector
	log      *slog.Logger
	rng      *rand.Rand

	points   []domain.Point
	nests    []domain.Nest
	nav      nest.Navigator
	session  gesture.Session
	selected string
}

// New returns a launcher holding an empty layout with a default root nest.
func New(opts Options) *Launcher {
	if opts.Settings == nil {
		opts.Settings = config.Static{Cfg: config.Defaults()}
	}
	if opts.Logger == nil {
		opts.Logger = applog.WithComponent("launcher")
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = dispatch.Log{L: opts.Logger}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Launcher{
		settings: opts.Settings,
		hist:     undo.New(opts.History),
		sink:     opts.Sink,
		disp:     opts.Dispatcher,
		m:        opts.Metrics,
		log:      opts.Logger,
		rng:      opts.Rand,
		points:   []domain.Point{},
		nests:    []domain.Nest{domain.NewRootNest()},
	}
}

// Load replaces the layout with what the store holds, falling back to an
// empty default layout when the stored data is unreadable.
func (l *Launcher) Load(ctx context.Context, s storage.Store) {
	points, nests := storage.LoadOrDefault(ctx, s, l.log)
	l.Restore(points, nests)
}

// Restore replaces the layout without recording history or saving.
func (l *Launcher) Restore(points []domain.Point, nests []domain.Nest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	nests, _ = nest.EnsureRoot(domain.CloneNests(nests))
	l.points = domain.ClonePoints(points)
	l.nests = nests
	l.nav.Reset()
	l.session.Cancel()
	l.selected = ""
	l.hist.Clear()
	l.m.SetPoints(len(l.points))
	l.log.Info("layout loaded", slog.Int("points", len(l.points)), slog.Int("nests", len(l.nests)))
}

// View is a consistent copy of the launcher state.
type View struct {
	Points   []domain.Point `json:"points"`
	Nests    []domain.Nest  `json:"nests"`
	Current  int            `json:"current_nest"`
	Selected string         `json:"selected,omitempty"`
	CanUndo  bool           `json:"can_undo"`
	CanRedo  bool           `json:"can_redo"`
}

func (l *Launcher) View() View {
	l.mu.Lock()
	defer l.mu.Unlock()
	return View{
		Points:   domain.ClonePoints(l.points),
		Nests:    domain.CloneNests(l.nests),
		Current:  l.nav.Current(),
		Selected: l.selected,
		CanUndo:  l.hist.CanUndo(),
		CanRedo:  l.hist.CanRedo(),
	}
}

func (l *Launcher) Points() []domain.Point {
	l.mu.Lock()
	defer l.mu.Unlock()
	return domain.ClonePoints(l.points)
}

func (l *Launcher) Nests() []domain.Nest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return domain.CloneNests(l.nests)
}

// Point returns the point with id.
func (l *Launcher) Point(id string) (domain.Point, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := domain.IndexOfPoint(l.points, id)
	if i < 0 {
		return domain.Point{}, ErrPointNotFound
	}
	return l.points[i].Clone(), nil
}

// CurrentNest returns the nest the user is in. A nest that has gone missing is
// synthesized under the root.
func (l *Launcher) CurrentNest() domain.Nest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentNestLocked().Clone()
}

func (l *Launcher) currentNestLocked() domain.Nest {
	id := l.nav.Current()
	nests, added := nest.EnsureNest(l.nests, id)
	if added {
		l.nests = nests
		l.log.Warn("current nest missing, synthesized", slog.Int("nest", id))
		l.saveNestsLocked()
	}
	n, _ := nest.Find(l.nests, id)
	return n
}

// GoToNest makes id the current nest, synthesizing it if needed.
func (l *Launcher) GoToNest(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.goToLocked(id)
}

func (l *Launcher) goToLocked(id int) {
	l.nav.GoTo(id)
	l.currentNestLocked()
	l.log.Debug("entered nest", slog.Int("nest", id))
}

// GoBack moves to the parent of the current nest and reports whether it moved.
func (l *Launcher) GoBack() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nav.Back(l.nests)
}

// Select marks a point as the one being edited. An empty id clears it.
func (l *Launcher) Select(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id != "" && domain.IndexOfPoint(l.points, id) < 0 {
		return ErrPointNotFound
	}
	l.selected = id
	return nil
}

func (l *Launcher) Selected() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.selected
}

func (l *Launcher) state() undo.State { return undo.State{Points: l.points, Nests: l.nests} }

func (l *Launcher) saveNestsLocked() {
	if l.sink != nil {
		l.sink.SaveNests(domain.CloneNests(l.nests))
	}
}

func (l *Launcher) saveLocked() {
	if l.sink != nil {
		l.sink.SavePoints(domain.ClonePoints(l.points))
		l.sink.SaveNests(domain.CloneNests(l.nests))
	}
}
