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
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidAction is returned when an action is missing the payload its kind requires.
var ErrInvalidAction = errors.New("invalid action")

type ActionKind string

const (
	ActionNone        ActionKind = "none"
	ActionLaunchApp   ActionKind = "launch_app"
	ActionOpenURL     ActionKind = "open_url"
	ActionOpenNest    ActionKind = "open_nest"
	ActionParentNest  ActionKind = "parent_nest"
	ActionTogglePanel ActionKind = "toggle_panel"
	ActionShortcut    ActionKind = "shortcut"
)

// Panels a toggle_panel action may name.
const (
	PanelNotifications = "notifications"
	PanelQuickSettings = "quick_settings"
	PanelRecents       = "recents"
	PanelAppDrawer     = "app_drawer"
)

// Action is a tagged variant: Kind selects which payload field is meaningful.
// On the wire it is an object like {"kind":"launch_app","package":"org.mozilla.firefox"}.
type Action struct {
	Kind    ActionKind `json:"kind" validate:"required,oneof=none launch_app open_url open_nest parent_nest toggle_panel shortcut"`
	Package string     `json:"package,omitempty"`
	URL     string     `json:"url,omitempty"`
	// NestID is the target of open_nest. Nil means "create a nest on assignment".
	NestID *int   `json:"nest_id,omitempty"`
	Panel  string `json:"panel,omitempty"`
	Name   string `json:"name,omitempty"`
}

func NoAction() Action                { return Action{Kind: ActionNone} }
func LaunchApp(pkg string) Action     { return Action{Kind: ActionLaunchApp, Package: pkg} }
func OpenURL(u string) Action         { return Action{Kind: ActionOpenURL, URL: u} }
func ParentNest() Action              { return Action{Kind: ActionParentNest} }
func TogglePanel(panel string) Action { return Action{Kind: ActionTogglePanel, Panel: panel} }
func Shortcut(name string) Action     { return Action{Kind: ActionShortcut, Name: name} }
func NewNestAction() Action           { return Action{Kind: ActionOpenNest} }
func OpenNest(id int) Action          { return Action{Kind: ActionOpenNest, NestID: &id} }

// IsNone reports whether selecting the action does nothing.
func (a Action) IsNone() bool { return a.Kind == "" || a.Kind == ActionNone }

// Opens reports whether a is an open_nest action targeting id.
func (a Action) Opens(id int) bool {
	return a.Kind == ActionOpenNest && a.NestID != nil && *a.NestID == id
}

// Target returns the open_nest target, if any.
func (a Action) Target() (int, bool) {
	if a.Kind != ActionOpenNest || a.NestID == nil {
		return 0, false
	}
	return *a.NestID, true
}

// Clone returns a deep copy.
func (a Action) Clone() Action {
	if a.NestID != nil {
		id := *a.NestID
		a.NestID = &id
	}
	return a
}

// Equal compares two actions by value.
func (a Action) Equal(b Action) bool {
	if a.Kind != b.Kind || a.Package != b.Package || a.URL != b.URL || a.Panel != b.Panel || a.Name != b.Name {
		return false
	}
	if (a.NestID == nil) != (b.NestID == nil) {
		return false
	}
	return a.NestID == nil || *a.NestID == *b.NestID
}

func (a Action) String() string {
	switch a.Kind {
	case ActionLaunchApp:
		return "launch_app:" + a.Package
	case ActionOpenURL:
		return "open_url:" + a.URL
	case ActionOpenNest:
		if a.NestID == nil {
			return "open_nest:new"
		}
		return fmt.Sprintf("open_nest:%d", *a.NestID)
	case ActionTogglePanel:
		return "toggle_panel:" + a.Panel
	case ActionShortcut:
		return "shortcut:" + a.Name
	case "":
		return string(ActionNone)
	default:
		return string(a.Kind)
	}
}

// UnmarshalJSON treats a missing kind as "none" so older files without
// actions still load.
func (a *Action) UnmarshalJSON(b []byte) error {
	type raw Action
	var r raw
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	if r.Kind == "" {
		r.Kind = ActionNone
	}
	*a = Action(r)
	return nil
}

// ParseAction builds an action from a kind and a single free-form argument,
// the shape the CLI and HTTP bridge accept.
func ParseAction(kind, arg string) (Action, error) {
	var a Action
	switch ActionKind(kind) {
	case "", ActionNone:
		a = NoAction()
	case ActionLaunchApp:
		a = LaunchApp(arg)
	case ActionOpenURL:
		a = OpenURL(arg)
	case ActionOpenNest:
		if arg == "" {
			a = NewNestAction()
			break
		}
		var id int
		if _, err := fmt.Sscanf(arg, "%d", &id); err != nil {
			return Action{}, fmt.Errorf("%w: nest id %q", ErrInvalidAction, arg)
		}
		a = OpenNest(id)
	case ActionParentNest:
		a = ParentNest()
	case ActionTogglePanel:
		a = TogglePanel(arg)
	case ActionShortcut:
		a = Shortcut(arg)
	default:
		return Action{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidAction, kind)
	}
	if err := a.Validate(); err != nil {
		return Action{}, err
	}
	return a, nil
}
