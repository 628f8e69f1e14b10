/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package gesture

import (
	"github.com/jbeda/geom"

	"tigerlauncher/internal/domain"
	"tigerlauncher/internal/geometry"
)

// Feedback is what the host renders after each pointer move.
type Feedback struct {
	Ring       int
	HasRing    bool
	Angle      float64
	Cumulative float64
	Distance   float64
	Candidate  *domain.Point
}

// Session is the state of one drag from pointer-down to pointer-up.
// The zero value is idle. It is not safe for concurrent use.
type Session struct {
	start     geom.Coord
	current   geom.Coord
	dragging  bool
	tracker   geometry.AngleTracker
	candidate *domain.Point
	last      Feedback
}

// Start begins a drag at pos, discarding anything left from a previous drag.
func (s *Session) Start(pos geom.Coord) {
	*s = Session{start: pos, current: pos, dragging: true}
}

// Move re-evaluates the selection for a new pointer position. Outside a drag it
// returns a zero Feedback.
func (s *Session) Move(pos geom.Coord, nest domain.Nest, points []domain.Point, tolerance float64) Feedback {
	if !s.dragging {
		return Feedback{}
	}
	s.current = pos
	ring, angle, ok := ResolveAngleAndRing(s.start, pos, nest)
	fb := Feedback{
		Ring:     ring,
		HasRing:  ok,
		Angle:    angle,
		Distance: geometry.Distance(s.start, pos),
	}
	// the angle at the origin is meaningless; seed the tracker on the first real move
	if fb.Distance > 0 {
		fb.Cumulative = s.tracker.Update(angle)
	} else {
		fb.Cumulative = s.tracker.Cumulative()
	}
	s.candidate = nil
	if ok {
		if p, sel := ResolveSelection(points, nest.ID, ring, angle, tolerance); sel {
			s.candidate = &p
			fb.Candidate = &p
		}
	}
	s.last = fb
	return fb
}

// End finishes the drag and returns the point confirmed by the last move, if any.
func (s *Session) End() (domain.Point, bool) {
	if !s.dragging {
		return domain.Point{}, false
	}
	c := s.candidate
	*s = Session{}
	if c == nil {
		return domain.Point{}, false
	}
	return *c, true
}

// Cancel aborts the drag without resolving anything.
func (s *Session) Cancel() { *s = Session{} }

func (s *Session) Dragging() bool { return s.dragging }

// Origin is where the drag started.
func (s *Session) Origin() geom.Coord { return s.start }

func (s *Session) Current() geom.Coord { return s.current }
func (s *Session) Last() Feedback      { return s.last }
