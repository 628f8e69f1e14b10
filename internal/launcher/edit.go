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
	"fmt"
	"log/slog"

	"tigerlauncher/internal/domain"
	"tigerlauncher/internal/geometry"
	"tigerlauncher/internal/layout"
	"tigerlauncher/internal/nest"
	"tigerlauncher/internal/undo"
)

// PointSpec describes a point to add.
type PointSpec struct {
	NestID int
	Ring   int
	// Angle places the point explicitly; nil picks a free angle on the ring.
	Angle  *float64
	Action domain.Action
	Label  string
}

// AddPoint creates a point. Without an explicit angle it is placed on a free
// spot of the ring, or ErrRingFull is returned. An open_nest action without a
// target materialises a child nest.
func (l *Launcher) AddPoint(in PointSpec) (domain.Point, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var added domain.Point
	err := l.edit("add_point", func(s undo.State) (undo.State, error) {
		n, err := ringOf(s.Nests, in.NestID, in.Ring)
		if err != nil {
			return s, err
		}
		var angle float64
		if in.Angle != nil {
			angle = *in.Angle
		} else {
			gap := l.gap(n, in.Ring)
			a, ok := layout.RandomFreeAngle(layout.RingAngles(s.Points, n.ID, in.Ring, ""), gap, l.rng)
			if !ok {
				return s, fmt.Errorf("%w: nest %d ring %d", ErrRingFull, n.ID, in.Ring)
			}
			angle = a
		}
		s, action, err := l.resolveAction(s, n.ID, in.Action)
		if err != nil {
			return s, err
		}
		added = domain.NewPoint(n.ID, in.Ring, angle, action)
		added.Label = in.Label
		s.Points = append(s.Points, added)
		return l.separate(s, n.ID, in.Ring, added.ID), nil
	})
	if err != nil {
		return domain.Point{}, err
	}
	l.selected = added.ID
	return l.pointLocked(added.ID), nil
}

// CopyPoint duplicates a point onto a free spot of the same ring.
func (l *Launcher) CopyPoint(id string) (domain.Point, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var cp domain.Point
	err := l.edit("copy_point", func(s undo.State) (undo.State, error) {
		i := domain.IndexOfPoint(s.Points, id)
		if i < 0 {
			return s, fmt.Errorf("%w: %s", ErrPointNotFound, id)
		}
		src := s.Points[i]
		n, err := ringOf(s.Nests, src.NestID, src.CircleNumber)
		if err != nil {
			return s, err
		}
		a, ok := layout.RandomFreeAngle(layout.RingAngles(s.Points, n.ID, src.CircleNumber, ""), l.gap(n, src.CircleNumber), l.rng)
		if !ok {
			return s, fmt.Errorf("%w: nest %d ring %d", ErrRingFull, n.ID, src.CircleNumber)
		}
		cp = src.Clone()
		cp.ID = domain.NewPointID()
		cp.AngleDeg = a
		s.Points = append(s.Points, cp)
		return l.separate(s, n.ID, cp.CircleNumber, cp.ID), nil
	})
	if err != nil {
		return domain.Point{}, err
	}
	l.selected = cp.ID
	return l.pointLocked(cp.ID), nil
}

// MovePoint puts a point at angle on ring within its nest. With auto
// separation on, the moved point stays put and its neighbours make room.
func (l *Launcher) MovePoint(id string, ring int, angle float64) (domain.Point, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.edit("move_point", func(s undo.State) (undo.State, error) {
		i := domain.IndexOfPoint(s.Points, id)
		if i < 0 {
			return s, fmt.Errorf("%w: %s", ErrPointNotFound, id)
		}
		n, err := ringOf(s.Nests, s.Points[i].NestID, ring)
		if err != nil {
			return s, err
		}
		s.Points[i].CircleNumber = ring
		s.Points[i].AngleDeg = geometry.NormalizeAngle(angle)
		return l.separate(s, n.ID, ring, id), nil
	})
	if err != nil {
		return domain.Point{}, err
	}
	return l.pointLocked(id), nil
}

// SetAction replaces a point's action. An open_nest action without a target
// creates a child of the point's nest and targets it.
func (l *Launcher) SetAction(id string, action domain.Action) (domain.Point, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.edit("set_action", func(s undo.State) (undo.State, error) {
		i := domain.IndexOfPoint(s.Points, id)
		if i < 0 {
			return s, fmt.Errorf("%w: %s", ErrPointNotFound, id)
		}
		s, a, err := l.resolveAction(s, s.Points[i].NestID, action)
		if err != nil {
			return s, err
		}
		s.Points[i].Action = a
		return s, nil
	})
	if err != nil {
		return domain.Point{}, err
	}
	return l.pointLocked(id), nil
}

// SetLabel changes a point's display label.
func (l *Launcher) SetLabel(id, label string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.edit("set_label", func(s undo.State) (undo.State, error) {
		i := domain.IndexOfPoint(s.Points, id)
		if i < 0 {
			return s, fmt.Errorf("%w: %s", ErrPointNotFound, id)
		}
		s.Points[i].Label = label
		return s, nil
	})
}

func (l *Launcher) RemovePoint(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.edit("remove_point", func(s undo.State) (undo.State, error) {
		i := domain.IndexOfPoint(s.Points, id)
		if i < 0 {
			return s, fmt.Errorf("%w: %s", ErrPointNotFound, id)
		}
		s.Points = append(s.Points[:i], s.Points[i+1:]...)
		return s, nil
	})
	if err == nil && l.selected == id {
		l.selected = ""
	}
	return err
}

// DeleteNest removes a nest together with everything below it, the points
// inside, and the points elsewhere that open it. The root cannot be deleted.
func (l *Launcher) DeleteNest(id int) (nest.Deletion, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var d nest.Deletion
	err := l.edit("delete_nest", func(s undo.State) (undo.State, error) {
		var err error
		d, err = nest.DeleteCascade(s.Points, s.Nests, id)
		if err != nil {
			return s, err
		}
		return undo.State{Points: d.Points, Nests: d.Nests}, nil
	})
	if err != nil {
		return nest.Deletion{}, err
	}
	for _, gone := range d.RemovedNests {
		if gone == l.nav.Current() {
			l.nav.Reset()
			break
		}
	}
	if l.selected != "" && domain.IndexOfPoint(l.points, l.selected) < 0 {
		l.selected = ""
	}
	l.log.Info("nest deleted", slog.Int("nest", id), slog.Int("nests_removed", len(d.RemovedNests)), slog.Int("points_removed", len(d.RemovedPoints)))
	return d, nil
}

// SetDragDistance sets the threshold of a ring, adding the ring if the nest
// does not have it yet.
func (l *Launcher) SetDragDistance(nestID, ring int, threshold float64) error {
	if threshold <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidDistance, threshold)
	}
	if ring < domain.CancelRing {
		return fmt.Errorf("%w: %d", ErrInvalidRing, ring)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.edit("set_drag_distance", func(s undo.State) (undo.State, error) {
		i := domain.IndexOfNest(s.Nests, nestID)
		if i < 0 {
			return s, fmt.Errorf("%w: %d", ErrNestNotFound, nestID)
		}
		if s.Nests[i].DragDistances == nil {
			s.Nests[i].DragDistances = domain.DragDistances{}
		}
		s.Nests[i].DragDistances[ring] = threshold
		return s, nil
	})
}

// SeparateRing spreads the points of one ring apart regardless of the auto
// separation setting. The selected point is the anchor when it sits on that
// ring.
func (l *Launcher) SeparateRing(nestID, ring int) (layout.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var res layout.Result
	err := l.edit("separate_ring", func(s undo.State) (undo.State, error) {
		n, err := ringOf(s.Nests, nestID, ring)
		if err != nil {
			return s, err
		}
		s.Points, res = layout.SeparateRing(s.Points, nestID, ring, l.selected, l.gap(n, ring))
		return s, nil
	})
	if res.Full {
		l.log.Warn("ring over capacity, points spread evenly", slog.Int("nest", nestID), slog.Int("ring", ring))
	}
	return res, err
}

// Undo restores the layout before the last edit. It reports false when there
// is nothing to undo.
func (l *Launcher) Undo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.hist.Undo(l.state())
	if ok {
		l.restoreLocked(s, "undo")
	}
	return ok
}

func (l *Launcher) Redo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.hist.Redo(l.state())
	if ok {
		l.restoreLocked(s, "redo")
	}
	return ok
}

func (l *Launcher) restoreLocked(s undo.State, op string) {
	l.points, l.nests = s.Points, s.Nests
	if l.selected != "" && domain.IndexOfPoint(l.points, l.selected) < 0 {
		l.selected = ""
	}
	if domain.IndexOfNest(l.nests, l.nav.Current()) < 0 {
		l.nav.Reset()
	}
	l.saveLocked()
	l.m.Edit(op)
	l.m.SetPoints(len(l.points))
	l.log.Info("layout restored", slog.String("op", op), slog.Int("points", len(l.points)))
}

// edit runs mutate through the history, then commits and saves the result.
func (l *Launcher) edit(op string, mutate func(undo.State) (undo.State, error)) error {
	next, err := l.hist.Apply(l.state(), mutate)
	if err != nil {
		l.log.Debug("edit rejected", slog.String("op", op), slog.Any("err", err))
		return err
	}
	l.points, l.nests = next.Points, next.Nests
	l.saveLocked()
	l.m.Edit(op)
	l.m.SetPoints(len(l.points))
	l.log.Info("layout edited", slog.String("op", op), slog.Int("points", len(l.points)))
	return nil
}

// separate applies auto separation around anchor when the setting is on.
func (l *Launcher) separate(s undo.State, nestID, ring int, anchor string) undo.State {
	if !l.settings.Gesture().AutoSeparate {
		return s
	}
	n, ok := nest.Find(s.Nests, nestID)
	if !ok {
		return s
	}
	var res layout.Result
	s.Points, res = layout.SeparateRing(s.Points, nestID, ring, anchor, l.gap(n, ring))
	if res.Full {
		l.log.Warn("ring over capacity, points spread evenly", slog.Int("nest", nestID), slog.Int("ring", ring))
	}
	return s
}

// resolveAction validates a and, for an open_nest action without a target,
// adds a new child nest of owner.
func (l *Launcher) resolveAction(s undo.State, owner int, a domain.Action) (undo.State, domain.Action, error) {
	if a.Kind == "" {
		a = domain.NoAction()
	}
	if a.Kind == domain.ActionOpenNest && a.NestID == nil {
		child := nest.NewChild(s.Nests, owner, l.rng)
		s.Nests = append(s.Nests, child)
		l.log.Info("nest created", slog.Int("nest", child.ID), slog.Int("parent", owner))
		return s, domain.OpenNest(child.ID), nil
	}
	if err := a.Validate(); err != nil {
		return s, a, err
	}
	return s, a.Clone(), nil
}

func (l *Launcher) gap(n domain.Nest, ring int) float64 {
	return layout.MinGapForRing(n, ring, l.settings.Gesture().MinArcLength)
}

func (l *Launcher) pointLocked(id string) domain.Point {
	if i := domain.IndexOfPoint(l.points, id); i >= 0 {
		return l.points[i].Clone()
	}
	return domain.Point{}
}

// ringOf returns the nest when it defines ring. Points cannot live on the
// cancel ring.
func ringOf(nests []domain.Nest, nestID, ring int) (domain.Nest, error) {
	n, ok := nest.Find(nests, nestID)
	if !ok {
		return domain.Nest{}, fmt.Errorf("%w: %d", ErrNestNotFound, nestID)
	}
	if ring == domain.CancelRing || !n.DragDistances.Has(ring) {
		return domain.Nest{}, fmt.Errorf("%w: %d in nest %d", ErrInvalidRing, ring, nestID)
	}
	return n, nil
}
