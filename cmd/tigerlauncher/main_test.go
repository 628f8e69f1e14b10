/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"tigerlauncher/internal/crash"
	"tigerlauncher/internal/launcher"
)

type cli struct {
	t    *testing.T
	cfg  string
	data string
}

func newCLI(t *testing.T) cli {
	dir := t.TempDir()
	return cli{t: t, cfg: filepath.Join(dir, "config.yaml"), data: filepath.Join(dir, "data")}
}

func (c cli) run(args ...string) (string, error) {
	c.t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(nil)
	cmd.SetArgs(append([]string{"--config", c.cfg, "--data", c.data}, args...))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func (c cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	if err != nil {
		c.t.Fatalf("%v: %v\n%s", args, err, out)
	}
	return out
}

func TestCrashReportsGoToTheirOwnDir(t *testing.T) {
	c := newCLI(t)
	var target crash.Target
	cmd := newRootCmd(&target)
	cmd.SetArgs([]string{"--config", c.cfg, "--data", c.data, "points"})
	cmd.SetOut(&bytes.Buffer{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("points: %v", err)
	}
	if want := filepath.Join(c.data, crash.DirName); target.Dir != want {
		t.Fatalf("crash dir = %q, want %q", target.Dir, want)
	}
	if target.Flusher == nil {
		t.Fatalf("crash target has no flusher")
	}
}

func TestVersionCommand(t *testing.T) {
	c := newCLI(t)
	if out := c.mustRun("version"); strings.TrimSpace(out) == "" {
		t.Fatalf("empty version output")
	}
}

func TestAddResolveAndList(t *testing.T) {
	c := newCLI(t)
	c.mustRun("add", "--ring", "0", "--angle", "90", "--action", "launch_app", "--arg", "org.example.mail", "--label", "Mail")

	out := c.mustRun("resolve", "--to", "300,0")
	if !strings.Contains(out, "launch_app:org.example.mail") {
		t.Fatalf("expected the mail point to resolve, got %q", out)
	}
	out = c.mustRun("resolve", "--to", "100,0")
	if !strings.Contains(out, "cancelled") {
		t.Fatalf("expected cancel zone, got %q", out)
	}

	out = c.mustRun("points")
	if !strings.Contains(out, "Mail") || !strings.Contains(out, "90.0") {
		t.Fatalf("points listing missing the new point:\n%s", out)
	}
}

func TestNestCommands(t *testing.T) {
	c := newCLI(t)
	c.mustRun("add", "--ring", "1", "--action", "open_nest")
	out := c.mustRun("nests")
	if lines := strings.Count(strings.TrimSpace(out), "\n"); lines != 2 {
		t.Fatalf("expected header, root and one child:\n%s", out)
	}
	if _, err := c.run("delete-nest", "0"); !errors.Is(err, launcher.ErrRootNest) {
		t.Fatalf("expected ErrRootNest, got %v", err)
	}
	if _, err := c.run("delete-nest", "abc"); err == nil {
		t.Fatalf("expected an error for a non-numeric id")
	}
	c.mustRun("set-distance", "--ring", "2", "--distance", "950")
	out = c.mustRun("nests")
	if !strings.Contains(out, "2:950") {
		t.Fatalf("ring threshold not updated:\n%s", out)
	}
}

func TestAddRejectsUnknownRing(t *testing.T) {
	c := newCLI(t)
	if _, err := c.run("add", "--ring", "9"); !errors.Is(err, launcher.ErrInvalidRing) {
		t.Fatalf("expected ErrInvalidRing, got %v", err)
	}
}

func TestParseCoord(t *testing.T) {
	p, err := parseCoord(" 3.5, -2 ")
	if err != nil || p.X != 3.5 || p.Y != -2 {
		t.Fatalf("got %+v %v", p, err)
	}
	for _, bad := range []string{"", "1", "a,2", "1,b"} {
		if _, err := parseCoord(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestConfigShowAndInit(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun("config", "show")
	if !strings.Contains(out, "min_arc_length: 48") {
		t.Fatalf("unexpected config:\n%s", out)
	}
	c.mustRun("config", "init")
	if _, err := c.run("config", "init"); err == nil {
		t.Fatalf("second init should refuse to overwrite")
	}
	if out := c.mustRun("config", "path"); strings.TrimSpace(out) != c.cfg {
		t.Fatalf("path: %q", out)
	}
}
