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

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"tigerlauncher/internal/geometry"
)

var (
	ErrInvalidPoint = errors.New("invalid point")
	ErrInvalidNest  = errors.New("invalid nest")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the payload required by the action kind.
func (a Action) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	switch a.Kind {
	case ActionLaunchApp:
		if a.Package == "" {
			return fmt.Errorf("%w: launch_app needs a package", ErrInvalidAction)
		}
	case ActionOpenURL:
		if err := validate.Var(a.URL, "required,url"); err != nil {
			return fmt.Errorf("%w: open_url needs a valid url", ErrInvalidAction)
		}
	case ActionOpenNest:
		if a.NestID != nil && *a.NestID < 0 {
			return fmt.Errorf("%w: nest id must not be negative", ErrInvalidAction)
		}
	case ActionTogglePanel:
		if err := validate.Var(a.Panel, "oneof=notifications quick_settings recents app_drawer"); err != nil {
			return fmt.Errorf("%w: unknown panel %q", ErrInvalidAction, a.Panel)
		}
	case ActionShortcut:
		if a.Name == "" {
			return fmt.Errorf("%w: shortcut needs a name", ErrInvalidAction)
		}
	}
	return nil
}

// Validate checks field ranges and the action payload.
func (p Point) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidPoint, p.ID, err)
	}
	return p.Action.Validate()
}

// Validate checks the ring table.
func (n Nest) Validate() error {
	if err := validate.Struct(n); err != nil {
		return fmt.Errorf("%w %d: %v", ErrInvalidNest, n.ID, err)
	}
	return nil
}

// ValidateLayout checks every point and nest, and that each point sits on a
// ring its nest defines.
func ValidateLayout(points []Point, nests []Nest) error {
	byID := make(map[int]Nest, len(nests))
	for _, n := range nests {
		if err := n.Validate(); err != nil {
			return err
		}
		if _, dup := byID[n.ID]; dup {
			return fmt.Errorf("%w %d: duplicate id", ErrInvalidNest, n.ID)
		}
		byID[n.ID] = n
	}
	seen := make(map[string]struct{}, len(points))
	for _, p := range points {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w %q: duplicate id", ErrInvalidPoint, p.ID)
		}
		seen[p.ID] = struct{}{}
		n, ok := byID[p.NestID]
		if !ok {
			continue
		}
		if p.CircleNumber != CancelRing && !n.DragDistances.Has(p.CircleNumber) {
			return fmt.Errorf("%w %q: ring %d not in nest %d", ErrInvalidPoint, p.ID, p.CircleNumber, p.NestID)
		}
	}
	return nil
}

// RepairLayout returns a copy of the layout that passes ValidateLayout, plus a
// description of everything it dropped. Point angles are normalized. Nests with
// a broken ring table or a repeated id are dropped and a missing root is
// recreated. Points that still fail validation, repeat an id or sit on a ring
// their nest does not define are dropped.
func RepairLayout(points []Point, nests []Nest) ([]Point, []Nest, []string) {
	var dropped []string
	byID := make(map[int]Nest, len(nests))
	outN := make([]Nest, 0, len(nests)+1)
	for _, n := range nests {
		if _, dup := byID[n.ID]; dup || n.Validate() != nil {
			dropped = append(dropped, fmt.Sprintf("nest %d", n.ID))
			continue
		}
		byID[n.ID] = n
		outN = append(outN, n.Clone())
	}
	if _, ok := byID[RootNestID]; !ok {
		root := NewRootNest()
		byID[RootNestID] = root
		outN = append(outN, root)
	}

	seen := make(map[string]struct{}, len(points))
	outP := make([]Point, 0, len(points))
	for _, p := range points {
		p = p.Clone()
		p.AngleDeg = geometry.NormalizeAngle(p.AngleDeg)
		_, dup := seen[p.ID]
		bad := dup || p.Validate() != nil
		if n, ok := byID[p.NestID]; ok && p.CircleNumber != CancelRing && !n.DragDistances.Has(p.CircleNumber) {
			bad = true
		}
		if bad {
			dropped = append(dropped, fmt.Sprintf("point %q", p.ID))
			continue
		}
		seen[p.ID] = struct{}{}
		outP = append(outP, p)
	}
	return outP, outN, dropped
}
