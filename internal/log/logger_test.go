/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package log

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestInitAndStructuredLoggingToFile(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "tl.json")
	var console bytes.Buffer
	Init(Options{Level: "debug", Format: "json", File: fpath, Out: &console})
	t.Cleanup(func() { Init(Options{Out: &bytes.Buffer{}}) })

	l := WithOperation(WithComponent("gesture"), "resolve")
	l.Info("resolved", slog.String("point", "p1"))

	time.Sleep(20 * time.Millisecond)
	b, err := os.ReadFile(fpath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var last string
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			last = s
		}
	}
	if last == "" {
		t.Fatalf("no log lines found")
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("unmarshal json log: %v", err)
	}
	if m["app"] != "tigerlauncher" {
		t.Fatalf("missing app attr: %v", m["app"])
	}
	if m["component"] != "gesture" || m["op"] != "resolve" {
		t.Fatalf("context attrs mismatch: %v", m)
	}
	if m["point"] != "p1" || m["msg"] != "resolved" {
		t.Fatalf("record attrs mismatch: %v", m)
	}
	if console.Len() == 0 {
		t.Fatalf("expected console output as well")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("TL_LOG_LEVEL", "warn")
	t.Setenv("TL_LOG_FORMAT", "json")
	t.Setenv("TL_LOG_SOURCE", "true")
	t.Setenv("TL_LOG_FILE", "")

	opts := FromEnv()
	if opts.Level != "warn" || opts.Format != "json" || !opts.AddSource || opts.File != "" {
		t.Fatalf("FromEnv mismatch: %+v", opts)
	}
	if v := getenv("TL_SOME_UNSET_VAR", "fallback"); v != "fallback" {
		t.Fatalf("getenv fallback failed: %q", v)
	}
}

func TestPrettyTextHandler(t *testing.T) {
	var buf bytes.Buffer
	h := &prettyTextHandler{opts: prettyOpts{Level: slog.LevelWarn}, w: &buf}
	ctx := context.Background()
	if h.Enabled(ctx, slog.LevelInfo) {
		t.Fatalf("info should not be enabled at warn level")
	}
	if !h.Enabled(ctx, slog.LevelError) {
		t.Fatalf("error should be enabled at warn level")
	}

	h2 := h.WithAttrs([]slog.Attr{slog.String("k", "v")}).WithGroup("grp")
	r := slog.NewRecord(time.Now(), slog.LevelError, "boom", 0)
	r.AddAttrs(slog.Int("n", 42), slog.Float64("deg", 12.5), slog.Bool("ok", true))
	if err := h2.Handle(ctx, r); err != nil {
		t.Fatalf("handle error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"ERR", "boom", "k=v", "grp.n=42", "deg=12.5", "ok=true"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}

func TestDiscardDropsEverything(t *testing.T) {
	l := Discard()
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("discard logger should not be enabled")
	}
}
