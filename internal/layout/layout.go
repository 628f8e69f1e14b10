/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package layout keeps the points of one ring apart. Two points closer than
// the minimum gap are hard to tell apart on screen and hard to hit with a
// finger, so the gap is derived from a minimum arc length at the ring's
// radius: the inner rings need a larger angular gap than the outer ones.
//
// AutoSeparate moves points as little as possible (least squares) while
// keeping their order around the circle and one anchor point fixed.
// RandomFreeAngle and WidestGapAngle find room for a new point.
// All functions are deterministic for identical inputs, except that
// RandomFreeAngle draws from the supplied source.
package layout

import (
	"math"
	"math/rand"
	"sort"

	"tigerlauncher/internal/domain"
	"tigerlauncher/internal/geometry"
	"tigerlauncher/internal/gesture"
)

const eps = 1e-9

// MinGapDegrees converts the minimum arc length between two points into an
// angle at the given radius. It is capped at a full turn; a ring without a
// positive radius gets a full turn (one point only).
func MinGapDegrees(minArcLength, radius float64) float64 {
	if minArcLength <= 0 {
		return 0
	}
	return geometry.ArcLengthToDegrees(minArcLength, radius)
}

// MinGapForRing is MinGapDegrees at the radius of a nest ring.
func MinGapForRing(nest domain.Nest, ring int, minArcLength float64) float64 {
	r, ok := gesture.RingRadius(nest.DragDistances, ring)
	if !ok {
		return MinGapDegrees(minArcLength, 0)
	}
	return MinGapDegrees(minArcLength, r)
}

// Capacity is the number of points a ring holds at the given gap.
func Capacity(gap float64) int {
	if gap <= 0 {
		return math.MaxInt
	}
	return int(math.Floor(geometry.FullTurn/gap + eps))
}

// Result reports what AutoSeparate did.
type Result struct {
	Angles []float64
	// Full is set when the points cannot all be gap apart; they are then
	// spread evenly instead.
	Full  bool
	Moved int
}

// AutoSeparate returns new angles for the points of one ring so that every
// pair is at least gap degrees apart. angles[anchor] is kept; an anchor out
// of range means the first point. The clockwise order of the points, seen
// from the anchor, is preserved.
func AutoSeparate(angles []float64, anchor int, gap float64) Result {
	n := len(angles)
	out := make([]float64, n)
	for i, a := range angles {
		out[i] = geometry.NormalizeAngle(a)
	}
	if n < 2 || gap <= 0 {
		return Result{Angles: out}
	}
	if anchor < 0 || anchor >= n {
		anchor = 0
	}
	base := out[anchor]

	// Cut the circle open at the anchor and order the others clockwise.
	type slot struct {
		idx int
		off float64
	}
	others := make([]slot, 0, n-1)
	for i := range out {
		if i == anchor {
			continue
		}
		others = append(others, slot{idx: i, off: geometry.ClockwiseOffset(base, out[i])})
	}
	sort.SliceStable(others, func(i, j int) bool { return others[i].off < others[j].off })

	m := len(others)
	target := make([]float64, m)
	full := float64(n)*gap > geometry.FullTurn+eps
	if full {
		step := geometry.FullTurn / float64(n)
		for k := range others {
			target[k] = float64(k+1) * step
		}
	} else {
		// With q_k = o_k - k*gap the constraints o_{k+1}-o_k >= gap become
		// q non-decreasing, and the anchor clearance becomes the box
		// [gap, 360-m*gap]. Clamping the isotonic fit is optimal for the box.
		q := make([]float64, m)
		for k, s := range others {
			q[k] = s.off - float64(k)*gap
		}
		q = isotonic(q)
		lo, hi := gap, geometry.FullTurn-float64(m)*gap
		for k := range q {
			target[k] = math.Min(math.Max(q[k], lo), hi) + float64(k)*gap
		}
	}

	moved := 0
	for k, s := range others {
		next := geometry.NormalizeAngle(base + target[k])
		if geometry.ShortestAngularDistance(next, out[s.idx]) > eps {
			moved++
		}
		out[s.idx] = next
	}
	return Result{Angles: out, Full: full, Moved: moved}
}

// isotonic returns the least-squares non-decreasing fit of y
// (pool adjacent violators).
func isotonic(y []float64) []float64 {
	type block struct {
		sum float64
		n   int
	}
	mean := func(b block) float64 { return b.sum / float64(b.n) }
	blocks := make([]block, 0, len(y))
	for _, v := range y {
		blocks = append(blocks, block{sum: v, n: 1})
		for len(blocks) > 1 {
			a, b := blocks[len(blocks)-2], blocks[len(blocks)-1]
			if mean(a) <= mean(b) {
				break
			}
			blocks = append(blocks[:len(blocks)-2], block{sum: a.sum + b.sum, n: a.n + b.n})
		}
	}
	out := make([]float64, 0, len(y))
	for _, b := range blocks {
		m := mean(b)
		for i := 0; i < b.n; i++ {
			out = append(out, m)
		}
	}
	return out
}

// SeparateRing applies AutoSeparate to the points on (nestID, ring) and
// returns a new point list. anchorID names the point that must not move;
// empty or unknown means the first point of the ring in list order.
func SeparateRing(points []domain.Point, nestID, ring int, anchorID string, gap float64) ([]domain.Point, Result) {
	out := domain.ClonePoints(points)
	var idx []int
	var angles []float64
	anchor := -1
	for i, p := range out {
		if !p.OnRing(nestID, ring) {
			continue
		}
		if p.ID == anchorID {
			anchor = len(idx)
		}
		idx = append(idx, i)
		angles = append(angles, p.AngleDeg)
	}
	res := AutoSeparate(angles, anchor, gap)
	for k, i := range idx {
		out[i].AngleDeg = res.Angles[k]
	}
	return out, res
}

// MinPairGap returns the smallest angular distance between any two angles,
// or 360 for fewer than two.
func MinPairGap(angles []float64) float64 {
	if len(angles) < 2 {
		return geometry.FullTurn
	}
	s := sortedAngles(angles)
	best := geometry.FullTurn
	for i := range s {
		var arc float64
		if i == len(s)-1 {
			arc = s[0] + geometry.FullTurn - s[i]
		} else {
			arc = s[i+1] - s[i]
		}
		best = math.Min(best, arc)
	}
	return best
}

func sortedAngles(angles []float64) []float64 {
	s := make([]float64, len(angles))
	for i, a := range angles {
		s[i] = geometry.NormalizeAngle(a)
	}
	sort.Float64s(s)
	return s
}

// arc is the open stretch between two neighbouring points, starting at from
// and running clockwise for length degrees.
type arc struct {
	from, length float64
}

func arcs(existing []float64) []arc {
	s := sortedAngles(existing)
	out := make([]arc, len(s))
	for i := range s {
		next := s[0] + geometry.FullTurn
		if i+1 < len(s) {
			next = s[i+1]
		}
		out[i] = arc{from: s[i], length: next - s[i]}
	}
	return out
}

// RandomFreeAngle picks an angle uniformly among the positions that are at
// least gap away from every existing angle. ok is false when the ring has no
// such position.
func RandomFreeAngle(existing []float64, gap float64, rng *rand.Rand) (angle float64, ok bool) {
	if len(existing) == 0 || gap <= 0 {
		return rng.Float64() * geometry.FullTurn, true
	}
	type window struct {
		start, width float64
	}
	var wins []window
	total := 0.0
	for _, a := range arcs(existing) {
		if a.length < 2*gap-eps {
			continue
		}
		w := math.Max(a.length-2*gap, 0)
		wins = append(wins, window{start: a.from + gap, width: w})
		total += w
	}
	if len(wins) == 0 {
		return 0, false
	}
	if total <= eps {
		return geometry.NormalizeAngle(wins[rng.Intn(len(wins))].start), true
	}
	u := rng.Float64() * total
	for _, w := range wins {
		if u <= w.width {
			return geometry.NormalizeAngle(w.start + u), true
		}
		u -= w.width
	}
	last := wins[len(wins)-1]
	return geometry.NormalizeAngle(last.start + last.width), true
}

// WidestGapAngle bisects the widest free arc. ok is false when even that arc
// cannot take a point gap away from both neighbours.
func WidestGapAngle(existing []float64, gap float64) (angle float64, ok bool) {
	if len(existing) == 0 {
		return 0, true
	}
	best := arc{length: -1}
	for _, a := range arcs(existing) {
		if a.length > best.length+eps {
			best = a
		}
	}
	if best.length < 2*gap-eps {
		return 0, false
	}
	return geometry.NormalizeAngle(best.from + best.length/2), true
}

// RingAngles returns the angles of the points on (nestID, ring), skipping
// the point with id skip.
func RingAngles(points []domain.Point, nestID, ring int, skip string) []float64 {
	var out []float64
	for _, p := range points {
		if p.OnRing(nestID, ring) && p.ID != skip {
			out = append(out, p.AngleDeg)
		}
	}
	return out
}
