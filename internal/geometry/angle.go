/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package geometry holds the angle and distance math behind gesture resolution.
// Angles are degrees measured clockwise from 12 o'clock (screen "up") and are
// kept in [0,360). Screen coordinates grow right (X) and down (Y).
package geometry

import (
	"math"

	"github.com/jbeda/geom"
)

// FullTurn is one revolution in degrees.
const FullTurn = 360.0

// Pt is a shorthand constructor for a screen position.
func Pt(x, y float64) geom.Coord { return geom.Coord{X: x, Y: y} }

// AngleBetween returns the direction of pos as seen from center.
func AngleBetween(center, pos geom.Coord) float64 {
	d := pos.Minus(center)
	if d.X == 0 && d.Y == 0 {
		return 0
	}
	return NormalizeAngle(RadToDeg(math.Atan2(d.X, -d.Y)))
}

// Distance returns the Euclidean distance between two positions.
func Distance(a, b geom.Coord) float64 { return a.DistanceFrom(b) }

// NormalizeAngle wraps any finite angle into [0,360). Non-finite input maps to 0.
func NormalizeAngle(a float64) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0
	}
	r := math.Mod(a, FullTurn)
	if r < 0 {
		r += FullTurn
	}
	// -tiny + 360 rounds to exactly 360
	if r >= FullTurn {
		r -= FullTurn
	}
	return r
}

// ShortestAngularDistance returns the unsigned separation of two angles in [0,180].
func ShortestAngularDistance(a, b float64) float64 {
	d := math.Abs(NormalizeAngle(a) - NormalizeAngle(b))
	if d > FullTurn/2 {
		d = FullTurn - d
	}
	return d
}

// SignedAngleDelta returns the step from prev to next, taking the short way
// around the circle. Positive is clockwise.
func SignedAngleDelta(prev, next float64) float64 {
	diff := next - prev
	if diff > FullTurn/2 {
		diff -= FullTurn
	} else if diff < -FullTurn/2 {
		diff += FullTurn
	}
	return diff
}

// ClockwiseOffset returns how far b lies clockwise from a, in [0,360).
func ClockwiseOffset(a, b float64) float64 { return NormalizeAngle(b - a) }

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 { return deg * math.Pi / 180 }

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 { return rad * 180 / math.Pi }

// ArcLengthToDegrees converts an arc length on a circle of the given radius
// into the angle it subtends, capped at one full turn.
func ArcLengthToDegrees(arc, radius float64) float64 {
	if radius <= 0 || arc <= 0 {
		if arc <= 0 {
			return 0
		}
		return FullTurn
	}
	return math.Min(RadToDeg(arc/radius), FullTurn)
}

// PolarToCoord returns the position at angleDeg and distance r from center.
func PolarToCoord(center geom.Coord, angleDeg, r float64) geom.Coord {
	rad := DegToRad(angleDeg)
	return geom.Coord{X: center.X + r*math.Sin(rad), Y: center.Y - r*math.Cos(rad)}
}

// AngleTracker accumulates a continuous angle across the 0/360 seam so a
// pointer circling the origin several times yields e.g. 725° instead of 5°.
type AngleTracker struct {
	last       float64
	cumulative float64
	started    bool
}

// Reset starts a new track at the given raw angle.
func (t *AngleTracker) Reset(angle float64) {
	a := NormalizeAngle(angle)
	t.last = a
	t.cumulative = a
	t.started = true
}

// Update feeds a new raw angle and returns the cumulative angle.
func (t *AngleTracker) Update(angle float64) float64 {
	a := NormalizeAngle(angle)
	if !t.started {
		t.Reset(a)
		return t.cumulative
	}
	t.cumulative += SignedAngleDelta(t.last, a)
	t.last = a
	return t.cumulative
}

// Cumulative returns the accumulated angle.
func (t *AngleTracker) Cumulative() float64 { return t.cumulative }

// Last returns the most recent raw angle.
func (t *AngleTracker) Last() float64 { return t.last }
