/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package nest walks and edits the nest tree. Each nest stores its parent id,
// so navigation only needs the current id: Back follows the parent pointer
// and no breadcrumb stack is kept.
package nest

import (
	"errors"
	"fmt"
	"math/rand"

	"tigerlauncher/internal/domain"
)

var (
	ErrNotFound = errors.New("nest not found")
	ErrRootNest = errors.New("root nest cannot be deleted")
)

// Navigator tracks the nest the user is currently in. The zero value starts
// at the root.
type Navigator struct {
	current int
}

func (n *Navigator) Current() int { return n.current }

// GoTo enters the nest with the given id.
func (n *Navigator) GoTo(id int) { n.current = id }

// Reset returns to the root.
func (n *Navigator) Reset() { n.current = domain.RootNestID }

// Back moves to the parent of the current nest. It is a no-op at the root or
// when the nest is its own parent. A nest missing from nests is treated as a
// child of the root. It reports whether the current nest changed.
func (n *Navigator) Back(nests []domain.Nest) bool {
	if n.current == domain.RootNestID {
		return false
	}
	parent := domain.RootNestID
	if i := domain.IndexOfNest(nests, n.current); i >= 0 {
		parent = nests[i].ParentID
	}
	if parent == n.current {
		return false
	}
	n.current = parent
	return true
}

// Find returns the nest with id.
func Find(nests []domain.Nest, id int) (domain.Nest, bool) {
	if i := domain.IndexOfNest(nests, id); i >= 0 {
		return nests[i], true
	}
	return domain.Nest{}, false
}

// EnsureRoot appends a default root nest when it is missing.
func EnsureRoot(nests []domain.Nest) ([]domain.Nest, bool) {
	if domain.IndexOfNest(nests, domain.RootNestID) >= 0 {
		return nests, false
	}
	return append(nests, domain.NewRootNest()), true
}

// EnsureNest makes sure a nest with id exists. A missing nest is synthesized
// as a child of the root with the root's ring table.
func EnsureNest(nests []domain.Nest, id int) ([]domain.Nest, bool) {
	nests, added := EnsureRoot(nests)
	if domain.IndexOfNest(nests, id) >= 0 {
		return nests, added
	}
	root, _ := Find(nests, domain.RootNestID)
	return append(nests, domain.Nest{
		ID:            id,
		ParentID:      domain.RootNestID,
		DragDistances: root.DragDistances.Clone(),
	}), true
}

// NewChild returns a fresh nest under parent with an unused random id and a
// copy of the parent's ring table.
func NewChild(nests []domain.Nest, parent int, rng *rand.Rand) domain.Nest {
	dd := domain.DefaultDragDistances()
	if p, ok := Find(nests, parent); ok && len(p.DragDistances) > 0 {
		dd = p.DragDistances.Clone()
	}
	return domain.Nest{ID: UnusedID(nests, rng), ParentID: parent, DragDistances: dd}
}

// UnusedID draws random positive ids until one is not taken.
func UnusedID(nests []domain.Nest, rng *rand.Rand) int {
	for {
		id := 1 + rng.Intn(1<<30)
		if domain.IndexOfNest(nests, id) < 0 {
			return id
		}
	}
}

// Descendants returns id and every nest below it, following parent ids.
// The root is never its own descendant through the self-parent edge.
func Descendants(nests []domain.Nest, id int) map[int]struct{} {
	out := map[int]struct{}{id: {}}
	for grew := true; grew; {
		grew = false
		for _, n := range nests {
			if _, in := out[n.ID]; in {
				continue
			}
			if _, parentIn := out[n.ParentID]; parentIn && n.ParentID != n.ID {
				out[n.ID] = struct{}{}
				grew = true
			}
		}
	}
	return out
}

// Deletion is the outcome of DeleteCascade.
type Deletion struct {
	Points        []domain.Point
	Nests         []domain.Nest
	RemovedNests  []int
	RemovedPoints []string
}

// DeleteCascade removes nest id, all nests below it, every point inside
// them, and every point elsewhere whose action opens one of them.
func DeleteCascade(points []domain.Point, nests []domain.Nest, id int) (Deletion, error) {
	if id == domain.RootNestID {
		return Deletion{}, ErrRootNest
	}
	if domain.IndexOfNest(nests, id) < 0 {
		return Deletion{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	gone := Descendants(nests, id)
	var d Deletion
	d.Nests = make([]domain.Nest, 0, len(nests))
	for _, n := range nests {
		if _, del := gone[n.ID]; del {
			d.RemovedNests = append(d.RemovedNests, n.ID)
			continue
		}
		d.Nests = append(d.Nests, n.Clone())
	}
	d.Points = make([]domain.Point, 0, len(points))
	for _, p := range points {
		_, inside := gone[p.NestID]
		target, opens := p.Action.Target()
		_, opensGone := gone[target]
		if inside || (opens && opensGone) {
			d.RemovedPoints = append(d.RemovedPoints, p.ID)
			continue
		}
		d.Points = append(d.Points, p.Clone())
	}
	return d, nil
}
