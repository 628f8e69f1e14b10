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
	"strings"
	"testing"
)

func TestLayoutJSONRoundTrip(t *testing.T) {
	points := []Point{
		NewPoint(RootNestID, 0, 450, LaunchApp("org.mozilla.firefox")),
		NewPoint(RootNestID, 1, 180, OpenNest(7)),
	}
	nests := []Nest{NewRootNest(), {ID: 7, ParentID: RootNestID, DragDistances: DefaultDragDistances()}}

	b, err := json.Marshal(struct {
		Points []Point `json:"points"`
		Nests  []Nest  `json:"nests"`
	}{points, nests})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"kind":"open_nest","nest_id":7`) {
		t.Fatalf("action not tagged as expected: %s", b)
	}
	var got struct {
		Points []Point `json:"points"`
		Nests  []Nest  `json:"nests"`
	}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Points) != 2 || got.Points[0].AngleDeg != 90 {
		t.Fatalf("unexpected points: %+v", got.Points)
	}
	if !got.Points[1].Action.Opens(7) {
		t.Fatalf("open_nest target lost: %+v", got.Points[1].Action)
	}
	if got.Nests[0].DragDistances[CancelRing] != 150 || got.Nests[0].DragDistances[2] != 800 {
		t.Fatalf("drag distances lost: %+v", got.Nests[0].DragDistances)
	}
}

func TestActionMissingKindDecodesAsNone(t *testing.T) {
	var p Point
	if err := json.Unmarshal([]byte(`{"id":"a","angle_deg":10,"circle_number":0,"nest_id":0,"action":{}}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Action.Kind != ActionNone || !p.Action.IsNone() {
		t.Fatalf("expected none, got %q", p.Action.Kind)
	}
}

func TestCloneIsDeep(t *testing.T) {
	n := NewRootNest()
	c := n.Clone()
	c.DragDistances[0] = 1
	if n.DragDistances[0] != 400 {
		t.Fatalf("nest clone shares map")
	}
	p := NewPoint(0, 0, 0, OpenNest(3))
	cp := ClonePoints([]Point{p})
	*cp[0].Action.NestID = 9
	if !p.Action.Opens(3) {
		t.Fatalf("point clone shares nest id pointer")
	}
}

func TestSortedRingsByThreshold(t *testing.T) {
	d := DragDistances{2: 800, CancelRing: 150, 0: 400, 1: 700, 5: 400}
	got := d.Sorted()
	want := []int{CancelRing, 0, 5, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("len = %d", len(got))
	}
	for i, r := range got {
		if r.Index != want[i] {
			t.Fatalf("order[%d] = %d, want %d (%+v)", i, r.Index, want[i], got)
		}
	}
}

func TestActionValidate(t *testing.T) {
	tests := []struct {
		name string
		a    Action
		ok   bool
	}{
		{"none", NoAction(), true},
		{"app", LaunchApp("com.example"), true},
		{"app-missing", LaunchApp(""), false},
		{"url", OpenURL("https://example.com/x"), true},
		{"url-bad", OpenURL("not a url"), false},
		{"nest-new", NewNestAction(), true},
		{"nest", OpenNest(4), true},
		{"nest-negative", OpenNest(-2), false},
		{"panel", TogglePanel(PanelRecents), true},
		{"panel-bad", TogglePanel("dock"), false},
		{"shortcut", Shortcut("torch"), true},
		{"shortcut-empty", Shortcut(""), false},
		{"unknown", Action{Kind: "teleport"}, false},
	}
	for _, tt := range tests {
		err := tt.a.Validate()
		if tt.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidAction) {
			t.Errorf("%s: expected ErrInvalidAction, got %v", tt.name, err)
		}
	}
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("open_nest", "12")
	if err != nil || !a.Opens(12) {
		t.Fatalf("ParseAction open_nest = %+v, %v", a, err)
	}
	a, err = ParseAction("open_nest", "")
	if err != nil {
		t.Fatalf("ParseAction new nest: %v", err)
	}
	if _, ok := a.Target(); ok {
		t.Fatalf("expected no target for new nest action")
	}
	if _, err := ParseAction("bogus", ""); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
	if got := LaunchApp("x").String(); got != "launch_app:x" {
		t.Fatalf("String() = %q", got)
	}
}

func TestValidateLayout(t *testing.T) {
	nests := []Nest{NewRootNest()}
	good := []Point{NewPoint(0, 1, 10, NoAction())}
	if err := ValidateLayout(good, nests); err != nil {
		t.Fatalf("valid layout rejected: %v", err)
	}
	bad := []Point{NewPoint(0, 9, 10, NoAction())}
	if err := ValidateLayout(bad, nests); !errors.Is(err, ErrInvalidPoint) {
		t.Fatalf("expected ErrInvalidPoint for unknown ring, got %v", err)
	}
	out := Point{ID: "x", AngleDeg: 360, NestID: 0, Action: NoAction()}
	if err := ValidateLayout([]Point{out}, nests); !errors.Is(err, ErrInvalidPoint) {
		t.Fatalf("expected ErrInvalidPoint for angle 360, got %v", err)
	}
	zero := []Nest{{ID: 0, DragDistances: DragDistances{0: 0}}}
	if err := ValidateLayout(nil, zero); !errors.Is(err, ErrInvalidNest) {
		t.Fatalf("expected ErrInvalidNest for zero threshold, got %v", err)
	}
}

func TestRepairLayout(t *testing.T) {
	nests := []Nest{
		NewRootNest(),
		{ID: 3, ParentID: 0, DragDistances: DragDistances{0: 0}},
		{ID: 0, ParentID: 0, DragDistances: DragDistances{0: 50}},
	}
	points := []Point{
		{ID: "wrap", AngleDeg: 725, CircleNumber: 0, NestID: 0, Action: NoAction()},
		{ID: "ring", AngleDeg: 10, CircleNumber: 7, NestID: 0, Action: NoAction()},
		{ID: "neg", AngleDeg: -90, CircleNumber: 1, NestID: 0, Action: NoAction()},
		{ID: "wrap", AngleDeg: 20, CircleNumber: 0, NestID: 0, Action: NoAction()},
		{ID: "url", AngleDeg: 30, CircleNumber: 0, NestID: 0, Action: OpenURL("not a url")},
		{ID: "orphan", AngleDeg: 40, CircleNumber: 5, NestID: 9, Action: NoAction()},
	}
	gotP, gotN, dropped := RepairLayout(points, nests)
	if err := ValidateLayout(gotP, gotN); err != nil {
		t.Fatalf("repaired layout still invalid: %v", err)
	}
	if len(gotN) != 1 || gotN[0].ID != RootNestID || gotN[0].DragDistances[0] != 400 {
		t.Fatalf("nests = %+v", gotN)
	}
	if len(gotP) != 3 || gotP[0].ID != "wrap" || gotP[1].ID != "neg" || gotP[2].ID != "orphan" {
		t.Fatalf("points = %+v", gotP)
	}
	if gotP[0].AngleDeg != 5 || gotP[1].AngleDeg != 270 {
		t.Fatalf("angles not normalized: %v %v", gotP[0].AngleDeg, gotP[1].AngleDeg)
	}
	if len(dropped) != 5 {
		t.Fatalf("dropped = %v", dropped)
	}
	if points[0].AngleDeg != 725 {
		t.Fatalf("input mutated")
	}
}

func TestRepairLayoutRecreatesRoot(t *testing.T) {
	nests := []Nest{{ID: 0, DragDistances: DragDistances{0: -1}}}
	points := []Point{{ID: "a", AngleDeg: 10, CircleNumber: 2, NestID: 0, Action: NoAction()}}
	gotP, gotN, _ := RepairLayout(points, nests)
	if len(gotN) != 1 || !gotN[0].IsRoot() || !gotN[0].DragDistances.Has(2) {
		t.Fatalf("root not recreated: %+v", gotN)
	}
	if len(gotP) != 1 {
		t.Fatalf("point on a default ring dropped: %+v", gotP)
	}
}
