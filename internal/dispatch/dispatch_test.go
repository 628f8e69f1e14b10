/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"tigerlauncher/internal/domain"
)

type outcomes struct {
	mu  sync.Mutex
	got []string
}

func (o *outcomes) add(s string) {
	o.mu.Lock()
	o.got = append(o.got, s)
	o.mu.Unlock()
}

func (o *outcomes) list() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.got...)
}

func flush(t *testing.T, b *Bridge) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func TestBridgePostsActionJSON(t *testing.T) {
	var mu sync.Mutex
	var bodies [][]byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		mu.Lock()
		bodies = append(bodies, b)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	var out outcomes
	b := NewBridge(BridgeConfig{URL: srv.URL, Timeout: 2 * time.Second, OnResult: out.add})
	defer b.Close()

	ev := Event{PointID: "p1", NestID: 0, Action: domain.LaunchApp("org.example.mail")}
	if err := b.Dispatch(context.Background(), ev); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	flush(t, b)

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 1 {
		t.Fatalf("expected 1 request, got %d", len(bodies))
	}
	var m map[string]any
	if err := json.Unmarshal(bodies[0], &m); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if m["point_id"] != "p1" {
		t.Fatalf("point_id mismatch: %v", m["point_id"])
	}
	act, ok := m["action"].(map[string]any)
	if !ok || act["kind"] != string(domain.ActionLaunchApp) || act["package"] != "org.example.mail" {
		t.Fatalf("action mismatch: %v", m["action"])
	}
	if _, ok := m["ts"].(string); !ok {
		t.Fatalf("missing ts")
	}
	if _, ok := m["version"].(string); !ok {
		t.Fatalf("missing version")
	}
	if got := out.list(); len(got) != 1 || got[0] != OutcomeSent {
		t.Fatalf("outcomes: %v", got)
	}
}

func TestBridgeOpensCircuitAfterFailures(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var out outcomes
	b := NewBridge(BridgeConfig{URL: srv.URL, Timeout: time.Second, OnResult: out.add})
	defer b.Close()

	for i := 0; i < 5; i++ {
		if err := b.Dispatch(context.Background(), Event{PointID: "p", Action: domain.Shortcut("x")}); err != nil {
			t.Fatalf("dispatch %d: %v", i, err)
		}
	}
	flush(t, b)

	got := out.list()
	want := []string{OutcomeFailed, OutcomeFailed, OutcomeFailed, OutcomeRejected, OutcomeRejected}
	if len(got) != len(want) {
		t.Fatalf("outcomes: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("outcome %d: got %s want %s (all %v)", i, got[i], want[i], got)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if hits != 3 {
		t.Fatalf("expected 3 requests to reach the host, got %d", hits)
	}
}

func TestBridgeQueueFull(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var out outcomes
	b := NewBridge(BridgeConfig{URL: srv.URL, Timeout: 5 * time.Second, QueueSize: 1, OnResult: out.add})
	defer b.Close()

	var full bool
	for i := 0; i < 10 && !full; i++ {
		err := b.Dispatch(context.Background(), Event{PointID: "p", Action: domain.Shortcut("x")})
		if errors.Is(err, ErrQueueFull) {
			full = true
		} else if err != nil {
			t.Fatalf("dispatch: %v", err)
		}
	}
	close(release)
	if !full {
		t.Fatalf("expected the queue to fill up")
	}
	flush(t, b)
	var dropped int
	for _, o := range out.list() {
		if o == OutcomeDropped {
			dropped++
		}
	}
	if dropped != 1 {
		t.Fatalf("expected exactly one dropped event, got %v", out.list())
	}
}

func TestBridgeClosedRejects(t *testing.T) {
	b := NewBridge(BridgeConfig{URL: "http://127.0.0.1:1"})
	b.Close()
	b.Close()
	if err := b.Dispatch(context.Background(), Event{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestBridgeCloseDuringDispatchDoesNotStrandEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	for round := 0; round < 20; round++ {
		var out outcomes
		b := NewBridge(BridgeConfig{URL: srv.URL, QueueSize: 4, OnResult: out.add})
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			accepted int
			full     int
		)
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					err := b.Dispatch(context.Background(), Event{PointID: "p", Action: domain.Shortcut("x")})
					mu.Lock()
					switch {
					case err == nil:
						accepted++
					case errors.Is(err, ErrQueueFull):
						full++
					case !errors.Is(err, ErrClosed):
						t.Errorf("dispatch: %v", err)
					}
					mu.Unlock()
				}
			}()
		}
		b.Close()
		wg.Wait()

		flush(t, b)
		if got := len(out.list()); got != accepted+full {
			t.Fatalf("round %d: %d outcomes for %d accepted and %d rejected events", round, got, accepted, full)
		}
	}
}

func TestLogAndMulti(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))
	var seen []Event
	m := Multi{
		Log{L: l},
		Func(func(_ context.Context, ev Event) error {
			seen = append(seen, ev)
			return errors.New("boom")
		}),
	}
	err := m.Dispatch(context.Background(), Event{PointID: "p9", Action: domain.OpenURL("https://example.org")})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected first error, got %v", err)
	}
	if len(seen) != 1 || seen[0].PointID != "p9" {
		t.Fatalf("func dispatcher not called: %v", seen)
	}
	if !bytes.Contains(buf.Bytes(), []byte("point=p9")) {
		t.Fatalf("log output missing point: %s", buf.String())
	}
}
