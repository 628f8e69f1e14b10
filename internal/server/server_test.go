/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package server

import (
	"bytes"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tigerlauncher/internal/config"
	"tigerlauncher/internal/domain"
	"tigerlauncher/internal/launcher"
	applog "tigerlauncher/internal/log"
	"tigerlauncher/internal/metrics"
)

func newTestServer(t *testing.T) (*httptest.Server, *launcher.Launcher) {
	t.Helper()
	m := metrics.NewCollector()
	l := launcher.New(launcher.Options{
		Settings: config.Static{Cfg: config.Defaults()},
		Metrics:  m,
		Logger:   applog.Discard(),
		Rand:     rand.New(rand.NewSource(7)),
	})
	l.Restore([]domain.Point{
		{ID: "P", NestID: 0, CircleNumber: 0, AngleDeg: 90, Action: domain.OpenNest(5)},
	}, []domain.Nest{{ID: 0, ParentID: 0, DragDistances: domain.DragDistances{-1: 150, 0: 400, 1: 700}}})
	srv := httptest.NewServer(New(l, m, applog.Discard()).Handler())
	t.Cleanup(srv.Close)
	return srv, l
}

func do(t *testing.T, method, url, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)
	code, body := do(t, http.MethodGet, srv.URL+"/healthz", "")
	if code != http.StatusOK || !bytes.Contains(body, []byte(`"status":"ok"`)) {
		t.Fatalf("healthz: %d %s", code, body)
	}
	// the request counter is bumped after the response is written
	for i := 0; i < 50; i++ {
		code, body = do(t, http.MethodGet, srv.URL+"/metrics", "")
		if code == http.StatusOK && bytes.Contains(body, []byte(`route="/healthz"`)) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("metrics: %d %s", code, body)
}

func TestGestureNavigatesAndBack(t *testing.T) {
	srv, l := newTestServer(t)
	code, body := do(t, http.MethodPost, srv.URL+"/api/gesture", `{"start":{"x":0,"y":0},"end":{"x":300,"y":0}}`)
	if code != http.StatusOK {
		t.Fatalf("gesture: %d %s", code, body)
	}
	var res launcher.Resolution
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Selected || res.Point.ID != "P" || res.Nest != 5 {
		t.Fatalf("unexpected resolution %+v", res)
	}
	code, body = do(t, http.MethodGet, srv.URL+"/api/nest", "")
	var n domain.Nest
	if code != http.StatusOK || json.Unmarshal(body, &n) != nil || n.ID != 5 {
		t.Fatalf("current nest: %d %s", code, body)
	}
	code, _ = do(t, http.MethodPost, srv.URL+"/api/back", "")
	if code != http.StatusOK || l.CurrentNest().ID != 0 {
		t.Fatalf("back failed: %d nest=%d", code, l.CurrentNest().ID)
	}
}

func TestPointLifecycle(t *testing.T) {
	srv, l := newTestServer(t)
	code, body := do(t, http.MethodPost, srv.URL+"/api/points", `{"nest_id":0,"ring":1,"angle":45,"action":{"kind":"launch_app","package":"org.example.cam"}}`)
	if code != http.StatusCreated {
		t.Fatalf("add: %d %s", code, body)
	}
	var p domain.Point
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.CircleNumber != 1 || p.AngleDeg != 45 {
		t.Fatalf("unexpected point %+v", p)
	}

	code, body = do(t, http.MethodPut, srv.URL+"/api/points/"+p.ID, `{"ring":1,"angle":200}`)
	if code != http.StatusOK {
		t.Fatalf("move: %d %s", code, body)
	}
	code, _ = do(t, http.MethodPost, srv.URL+"/api/points/"+p.ID+"/copy", "")
	if code != http.StatusCreated {
		t.Fatalf("copy: %d", code)
	}
	if len(l.Points()) != 3 {
		t.Fatalf("expected 3 points, got %d", len(l.Points()))
	}

	code, _ = do(t, http.MethodPost, srv.URL+"/api/undo", "")
	if code != http.StatusOK || len(l.Points()) != 2 {
		t.Fatalf("undo: %d points=%d", code, len(l.Points()))
	}
	code, _ = do(t, http.MethodPost, srv.URL+"/api/redo", "")
	if code != http.StatusOK || len(l.Points()) != 3 {
		t.Fatalf("redo: %d points=%d", code, len(l.Points()))
	}

	code, _ = do(t, http.MethodDelete, srv.URL+"/api/points/"+p.ID, "")
	if code != http.StatusNoContent {
		t.Fatalf("delete: %d", code)
	}
	code, _ = do(t, http.MethodDelete, srv.URL+"/api/points/"+p.ID, "")
	if code != http.StatusNotFound {
		t.Fatalf("second delete should be 404, got %d", code)
	}
}

func TestErrorMapping(t *testing.T) {
	srv, _ := newTestServer(t)
	cases := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodPost, "/api/points", `{"nest_id":0,"ring":9}`, http.StatusBadRequest},
		{http.MethodPost, "/api/points", `{"nest_id":3,"ring":0}`, http.StatusNotFound},
		{http.MethodPost, "/api/points", `{"nest_id":0,"ring":0,"action":{"kind":"open_url","url":"nope"}}`, http.StatusBadRequest},
		{http.MethodPost, "/api/points", `{"bogus":true}`, http.StatusBadRequest},
		{http.MethodDelete, "/api/nests/0", "", http.StatusConflict},
		{http.MethodDelete, "/api/nests/x", "", http.StatusBadRequest},
		{http.MethodDelete, "/api/nests/12", "", http.StatusNotFound},
		{http.MethodPost, "/api/gesture", `not json`, http.StatusBadRequest},
	}
	for _, c := range cases {
		code, body := do(t, c.method, srv.URL+c.path, c.body)
		if code != c.want {
			t.Errorf("%s %s %s: got %d want %d (%s)", c.method, c.path, c.body, code, c.want, body)
		}
	}
}

func TestListEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	code, body := do(t, http.MethodGet, srv.URL+"/api/points", "")
	var pts []domain.Point
	if code != http.StatusOK || json.Unmarshal(body, &pts) != nil || len(pts) != 1 {
		t.Fatalf("points: %d %s", code, body)
	}
	code, body = do(t, http.MethodGet, srv.URL+"/api/nests", "")
	var nests []domain.Nest
	if code != http.StatusOK || json.Unmarshal(body, &nests) != nil || len(nests) != 1 {
		t.Fatalf("nests: %d %s", code, body)
	}
}
