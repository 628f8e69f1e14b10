/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package launcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/jbeda/geom"

	"tigerlauncher/internal/dispatch"
	"tigerlauncher/internal/domain"
	"tigerlauncher/internal/gesture"
	"tigerlauncher/internal/metrics"
)

// Resolution is the outcome of a finished drag.
type Resolution struct {
	Point    domain.Point `json:"point"`
	Selected bool         `json:"selected"`
	Ring     int          `json:"ring"`
	HasRing  bool         `json:"has_ring"`
	Angle    float64      `json:"angle"`
	// Nest is the current nest after the action was applied.
	Nest int `json:"nest"`
}

// BeginDrag starts a drag session at pos.
func (l *Launcher) BeginDrag(pos geom.Coord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.session.Start(pos)
}

// Drag re-evaluates the selection for the pointer at pos.
func (l *Launcher) Drag(pos geom.Coord) gesture.Feedback {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.session.Dragging() {
		return gesture.Feedback{}
	}
	return l.moveLocked(&l.session, pos)
}

func (l *Launcher) moveLocked(s *gesture.Session, pos geom.Coord) gesture.Feedback {
	n := l.currentNestLocked()
	fb := s.Move(pos, n, l.points, l.settings.Gesture().MinAngleToActivate)
	if fb.Candidate != nil {
		l.log.Debug("candidate", slog.String("point", fb.Candidate.ID), slog.Int("ring", fb.Ring), slog.Float64("angle", fb.Angle))
	}
	return fb
}

// CancelDrag discards the drag without resolving anything (system back).
func (l *Launcher) CancelDrag() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session.Dragging() {
		l.session.Cancel()
		l.m.Gesture(metrics.GestureCancelled)
	}
}

// EndDrag finalises the drag. Navigation actions are applied to the
// navigator; every other action is handed to the dispatcher.
func (l *Launcher) EndDrag(ctx context.Context) Resolution {
	l.mu.Lock()
	if !l.session.Dragging() {
		res := Resolution{Nest: l.nav.Current()}
		l.mu.Unlock()
		return res
	}
	res, ev := l.endLocked(&l.session)
	disp := l.disp
	l.mu.Unlock()

	l.send(ctx, disp, ev)
	return res
}

// Resolve runs a complete drag from start straight to end in one step. It
// uses its own session, so a drag the host has in progress is left alone.
func (l *Launcher) Resolve(ctx context.Context, start, end geom.Coord) Resolution {
	var s gesture.Session
	l.mu.Lock()
	s.Start(start)
	l.moveLocked(&s, end)
	res, ev := l.endLocked(&s)
	disp := l.disp
	l.mu.Unlock()

	l.send(ctx, disp, ev)
	return res
}

func (l *Launcher) endLocked(s *gesture.Session) (Resolution, *dispatch.Event) {
	fb := s.Last()
	p, ok := s.End()
	res := Resolution{Point: p, Selected: ok, Ring: fb.Ring, HasRing: fb.HasRing, Angle: fb.Angle}
	var ev *dispatch.Event
	switch {
	case !ok && fb.HasRing && fb.Ring == domain.CancelRing:
		l.m.Gesture(metrics.GestureCancelled)
	case !ok:
		l.m.Gesture(metrics.GestureEmpty)
	default:
		l.m.Gesture(metrics.GestureSelected)
		ev = l.applyLocked(p)
	}
	res.Nest = l.nav.Current()
	return res, ev
}

// send must be called without the lock held.
func (l *Launcher) send(ctx context.Context, d dispatch.Dispatcher, ev *dispatch.Event) {
	if ev == nil {
		return
	}
	if err := d.Dispatch(ctx, *ev); err != nil {
		l.log.Warn("dispatch failed", slog.String("point", ev.PointID), slog.Any("err", err))
	}
}

// applyLocked performs navigation actions and returns the event to dispatch
// for everything else.
func (l *Launcher) applyLocked(p domain.Point) *dispatch.Event {
	switch p.Action.Kind {
	case domain.ActionOpenNest:
		if id, ok := p.Action.Target(); ok {
			l.goToLocked(id)
		} else {
			l.log.Warn("open_nest point without target", slog.String("point", p.ID))
		}
		return nil
	case domain.ActionParentNest:
		l.nav.Back(l.nests)
		return nil
	}
	if p.Action.IsNone() {
		return nil
	}
	return &dispatch.Event{PointID: p.ID, NestID: p.NestID, Action: p.Action.Clone(), At: time.Now().UTC()}
}
