/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"sync"
	"time"

	"tigerlauncher/internal/domain"
)

// DefaultMaxDepth bounds the undo stack when Config.MaxDepth is unset.
const DefaultMaxDepth = 100

// State is one reversible snapshot of the launcher layout.
type State struct {
	Points []domain.Point
	Nests  []domain.Nest
}

// Clone returns a deep copy.
func (s State) Clone() State {
	return State{Points: domain.ClonePoints(s.Points), Nests: domain.CloneNests(s.Nests)}
}

// Config controls depth caps and coalescing behavior.
type Config struct {
	// MaxDepth limits the number of undo snapshots kept; the oldest are dropped.
	MaxDepth int
	// MinInterval coalesces edits recorded within the interval of the previous
	// one: the earlier snapshot is kept so one undo reverts the whole burst.
	// Zero records every edit.
	MinInterval time.Duration
}

type entry struct {
	state State
	ts    time.Time
}

// History is a bounded undo/redo stack of layout snapshots.
// It is safe for concurrent use.
type History struct {
	cfg  Config
	mu   sync.Mutex
	undo []entry
	redo []entry
	now  func() time.Time
}

func New(cfg Config) *History {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	return &History{cfg: cfg, now: time.Now}
}

// Record stores before as the state to return to, and invalidates redo.
func (h *History) Record(before State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recordLocked(before.Clone())
}

func (h *History) recordLocked(before State) {
	now := h.now()
	h.redo = nil
	if n := len(h.undo); n > 0 && h.cfg.MinInterval > 0 && now.Sub(h.undo[n-1].ts) < h.cfg.MinInterval {
		h.undo[n-1].ts = now
		return
	}
	h.undo = append(h.undo, entry{state: before, ts: now})
	if over := len(h.undo) - h.cfg.MaxDepth; over > 0 {
		h.undo = append([]entry{}, h.undo[over:]...)
	}
}

// Apply runs mutate on a copy of current. On success the pre-state is
// recorded and the mutated state returned; on error nothing is recorded.
func (h *History) Apply(current State, mutate func(State) (State, error)) (State, error) {
	before := current.Clone()
	next, err := mutate(current.Clone())
	if err != nil {
		return current, err
	}
	h.mu.Lock()
	h.recordLocked(before)
	h.mu.Unlock()
	return next, nil
}

// Undo returns the most recent snapshot and keeps current for Redo.
// ok is false when there is nothing to undo.
func (h *History) Undo(current State) (State, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.undo) == 0 {
		return current, false
	}
	e := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, entry{state: current.Clone(), ts: h.now()})
	return e.state.Clone(), true
}

// Redo is the mirror of Undo.
func (h *History) Redo(current State) (State, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.redo) == 0 {
		return current, false
	}
	e := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, entry{state: current.Clone(), ts: time.Time{}})
	if over := len(h.undo) - h.cfg.MaxDepth; over > 0 {
		h.undo = append([]entry{}, h.undo[over:]...)
	}
	return e.state.Clone(), true
}

// Clear drops both stacks.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undo, h.redo = nil, nil
}

// Stats returns stack sizes for diagnostics.
func (h *History) Stats() (undo, redo int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo), len(h.redo)
}

func (h *History) CanUndo() bool {
	u, _ := h.Stats()
	return u > 0
}

func (h *History) CanRedo() bool {
	_, r := h.Stats()
	return r > 0
}
