/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package gesture turns a drag (start, current position) into a ring, an angle
// and the configured point it selects. Everything here is a pure function of
// its inputs except Session, which holds the ephemeral state of one drag.
package gesture

import (
	"math"

	"github.com/jbeda/geom"

	"tigerlauncher/internal/domain"
	"tigerlauncher/internal/geometry"
)

// ResolveRing maps a drag distance to a ring of the table: the first ring,
// in ascending threshold order, whose threshold is >= distance. Past the
// outermost threshold the outermost ring stays active. An empty table has
// no ring.
func ResolveRing(distance float64, d domain.DragDistances) (int, bool) {
	rings := d.Sorted()
	if len(rings) == 0 {
		return 0, false
	}
	for _, r := range rings {
		if r.Threshold >= distance {
			return r.Index, true
		}
	}
	return rings[len(rings)-1].Index, true
}

// RingBand returns the inner and outer distance of a ring. The inner edge is
// the next smaller threshold in the table, or 0.
func RingBand(d domain.DragDistances, ring int) (inner, outer float64, ok bool) {
	for _, r := range d.Sorted() {
		if r.Index == ring {
			return inner, r.Threshold, true
		}
		inner = r.Threshold
	}
	return 0, 0, false
}

// RingRadius is the radius at which a ring's points are laid out: the middle
// of its band.
func RingRadius(d domain.DragDistances, ring int) (float64, bool) {
	inner, outer, ok := RingBand(d, ring)
	if !ok {
		return 0, false
	}
	return (inner + outer) / 2, true
}

// ResolveAngleAndRing computes the pointer angle around start and the ring the
// drag distance falls in for the nest.
func ResolveAngleAndRing(start, current geom.Coord, nest domain.Nest) (ring int, angle float64, ok bool) {
	angle = geometry.AngleBetween(start, current)
	ring, ok = ResolveRing(geometry.Distance(start, current), nest.DragDistances)
	return ring, angle, ok
}

// NearestPoint returns the point on (nestID, ring) closest in angle to angle,
// together with that angular distance. On equal distance the point that comes
// first in points wins.
func NearestPoint(points []domain.Point, nestID, ring int, angle float64) (domain.Point, float64, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i := range points {
		if !points[i].OnRing(nestID, ring) {
			continue
		}
		d := geometry.ShortestAngularDistance(points[i].AngleDeg, angle)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return domain.Point{}, 0, false
	}
	return points[best], bestDist, true
}

// ResolveSelection picks the point selected at (ring, angle). The cancel ring
// never selects. A tolerance above zero rejects the nearest point when it is
// further away than tolerance degrees; zero accepts it at any distance.
func ResolveSelection(points []domain.Point, nestID, ring int, angle, tolerance float64) (domain.Point, bool) {
	if ring == domain.CancelRing {
		return domain.Point{}, false
	}
	p, d, ok := NearestPoint(points, nestID, ring, angle)
	if !ok {
		return domain.Point{}, false
	}
	if tolerance > 0 && d > tolerance {
		return domain.Point{}, false
	}
	return p, true
}
