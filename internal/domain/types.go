/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the launcher data model: configured action points and the
// nests (concentric action menus) they live in. Values are plain data; the
// behaviour lives in gesture, layout, nest and launcher.

import (
	"sort"

	"github.com/google/uuid"

	"tigerlauncher/internal/geometry"
)

const (
	// RootNestID is the nest every launcher starts in. It must always exist.
	RootNestID = 0
	// CancelRing is the innermost band; dragging inside it selects nothing.
	CancelRing = -1
)

// DefaultDragDistances returns the ring table a fresh root nest gets.
func DefaultDragDistances() DragDistances {
	return DragDistances{CancelRing: 150, 0: 400, 1: 700, 2: 800}
}

// Point is a configured action anchor on one ring of one nest.
type Point struct {
	ID           string  `json:"id" validate:"required"`
	AngleDeg     float64 `json:"angle_deg" validate:"gte=0,lt=360"`
	CircleNumber int     `json:"circle_number" validate:"gte=-1"`
	NestID       int     `json:"nest_id"`
	Action       Action  `json:"action"`
	Label        string  `json:"label,omitempty"`
}

// NewPoint returns a point with a fresh id and a normalized angle.
func NewPoint(nestID, ring int, angle float64, action Action) Point {
	return Point{
		ID:           NewPointID(),
		AngleDeg:     geometry.NormalizeAngle(angle),
		CircleNumber: ring,
		NestID:       nestID,
		Action:       action,
	}
}

// NewPointID returns an opaque unique identifier for a point.
func NewPointID() string { return uuid.NewString() }

// Clone returns a deep copy.
func (p Point) Clone() Point {
	p.Action = p.Action.Clone()
	return p
}

// OnRing reports whether p sits on the given (nest, ring) pair.
func (p Point) OnRing(nestID, ring int) bool {
	return p.NestID == nestID && p.CircleNumber == ring
}

// Nest is an addressable action menu with its own ring table.
type Nest struct {
	ID            int           `json:"id"`
	ParentID      int           `json:"parent_id"`
	Name          string        `json:"name,omitempty"`
	DragDistances DragDistances `json:"drag_distances" validate:"dive,keys,gte=-1,endkeys,gt=0"`
}

// NewRootNest returns the root nest with the default ring table.
func NewRootNest() Nest {
	return Nest{ID: RootNestID, ParentID: RootNestID, DragDistances: DefaultDragDistances()}
}

// Clone returns a deep copy.
func (n Nest) Clone() Nest {
	n.DragDistances = n.DragDistances.Clone()
	return n
}

// IsRoot reports whether n is the root nest.
func (n Nest) IsRoot() bool { return n.ID == RootNestID }

// DragDistances maps a ring index to its outer distance threshold.
type DragDistances map[int]float64

// Ring is one entry of a DragDistances table.
type Ring struct {
	Index     int
	Threshold float64
}

// Clone returns a copy; a nil table stays nil.
func (d DragDistances) Clone() DragDistances {
	if d == nil {
		return nil
	}
	out := make(DragDistances, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Has reports whether ring is configured.
func (d DragDistances) Has(ring int) bool {
	_, ok := d[ring]
	return ok
}

// Sorted returns the rings in ascending threshold order. Equal thresholds
// are ordered by ring index so the result is deterministic.
func (d DragDistances) Sorted() []Ring {
	out := make([]Ring, 0, len(d))
	for k, v := range d {
		out = append(out, Ring{Index: k, Threshold: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Threshold != out[j].Threshold {
			return out[i].Threshold < out[j].Threshold
		}
		return out[i].Index < out[j].Index
	})
	return out
}

// ClonePoints deep-copies a point list. The result is never nil.
func ClonePoints(in []Point) []Point {
	out := make([]Point, len(in))
	for i, p := range in {
		out[i] = p.Clone()
	}
	return out
}

// CloneNests deep-copies a nest list. The result is never nil.
func CloneNests(in []Nest) []Nest {
	out := make([]Nest, len(in))
	for i, n := range in {
		out[i] = n.Clone()
	}
	return out
}

// IndexOfPoint returns the slice index of the point with id, or -1.
func IndexOfPoint(points []Point, id string) int {
	for i := range points {
		if points[i].ID == id {
			return i
		}
	}
	return -1
}

// IndexOfNest returns the slice index of the nest with id, or -1.
func IndexOfNest(nests []Nest, id int) int {
	for i := range nests {
		if nests[i].ID == id {
			return i
		}
	}
	return -1
}

// PointsOnRing returns the points sitting on (nestID, ring), in list order.
func PointsOnRing(points []Point, nestID, ring int) []Point {
	var out []Point
	for _, p := range points {
		if p.OnRing(nestID, ring) {
			out = append(out, p)
		}
	}
	return out
}
