/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"tigerlauncher/internal/domain"
)

func sampleLayout() ([]domain.Point, []domain.Nest) {
	points := []domain.Point{
		{ID: "p1", AngleDeg: 90, CircleNumber: 0, NestID: 0, Action: domain.LaunchApp("org.example.mail")},
		{ID: "p2", AngleDeg: 270.5, CircleNumber: 1, NestID: 0, Action: domain.OpenNest(7), Label: "tools"},
		{ID: "p3", AngleDeg: 0, CircleNumber: 0, NestID: 7, Action: domain.ParentNest()},
	}
	nests := []domain.Nest{
		domain.NewRootNest(),
		{ID: 7, ParentID: 0, Name: "tools", DragDistances: domain.DragDistances{-1: 100, 0: 300}},
	}
	return points, nests
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewFileStore(root)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	points, nests := sampleLayout()
	if err := s.SaveNests(ctx, nests); err != nil {
		t.Fatalf("SaveNests: %v", err)
	}
	if err := s.SavePoints(ctx, points); err != nil {
		t.Fatalf("SavePoints: %v", err)
	}

	// a fresh store reads from disk
	s2, _ := NewFileStore(root)
	gotP, err := s2.LoadPoints(ctx)
	if err != nil {
		t.Fatalf("LoadPoints: %v", err)
	}
	gotN, err := s2.LoadNests(ctx)
	if err != nil {
		t.Fatalf("LoadNests: %v", err)
	}
	if len(gotP) != 3 || gotP[1].ID != "p2" || !gotP[1].Action.Opens(7) || gotP[1].Label != "tools" {
		t.Fatalf("points mismatch: %+v", gotP)
	}
	if len(gotN) != 2 || gotN[1].DragDistances[-1] != 100 {
		t.Fatalf("nests mismatch: %+v", gotN)
	}
}

func TestFileStoreSavedFileConformsToSchema(t *testing.T) {
	root := t.TempDir()
	s, _ := NewFileStore(root)
	points, nests := sampleLayout()
	_ = s.SaveNests(context.Background(), nests)
	_ = s.SavePoints(context.Background(), points)
	data, err := os.ReadFile(s.LayoutPath)
	if err != nil {
		t.Fatalf("read layout: %v", err)
	}
	if err := ValidateLayoutJSON(data); err != nil {
		t.Fatalf("layout does not conform to schema: %v", err)
	}
	bad := []byte(`{"version":1,"points":[{"id":"x","angle_deg":400,"circle_number":0,"nest_id":0}],"nests":[]}`)
	if err := ValidateLayoutJSON(bad); !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema for angle 400, got %v", err)
	}
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	s, _ := NewFileStore(t.TempDir())
	p, err := s.LoadPoints(context.Background())
	if err != nil || len(p) != 0 {
		t.Fatalf("LoadPoints on empty dir = %v, %v", p, err)
	}
}

func TestFileStoreCorruptFallsBackToBackup(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, _ := NewFileStore(root)
	points, nests := sampleLayout()
	_ = s.SaveNests(ctx, nests)
	_ = s.SavePoints(ctx, points) // second save leaves a backup of the first

	if err := os.WriteFile(s.LayoutPath, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s2, _ := NewFileStore(root)
	gotN, err := s2.LoadNests(ctx)
	if err != nil {
		t.Fatalf("expected recovery from backup, got %v", err)
	}
	if len(gotN) != 2 {
		t.Fatalf("backup nests = %+v", gotN)
	}

	// nothing to fall back to
	lonely := t.TempDir()
	_ = os.WriteFile(filepath.Join(lonely, LayoutFileName), []byte("{not json"), 0o644)
	s3, _ := NewFileStore(lonely)
	if _, err := s3.LoadPoints(ctx); err == nil {
		t.Fatalf("expected error without backups")
	}
	// the launcher-facing loader never fails
	p, n := LoadOrDefault(ctx, s3, quietLogger())
	if len(p) != 0 || len(n) != 1 || n[0].ID != domain.RootNestID || n[0].DragDistances[2] != 800 {
		t.Fatalf("LoadOrDefault = %+v %+v", p, n)
	}
}

func TestFileStorePrunesBackups(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, _ := NewFileStore(root)
	points, _ := sampleLayout()
	for i := 0; i < MaxBackups+5; i++ {
		if err := s.SavePoints(ctx, points[:1+i%3]); err != nil {
			t.Fatal(err)
		}
	}
	all, err := s.backups()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) > MaxBackups {
		t.Fatalf("kept %d backups, want at most %d", len(all), MaxBackups)
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	js, err := Open(ctx, configStorage("json", dir))
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	if _, ok := js.(*FileStore); !ok {
		t.Fatalf("json backend = %T", js)
	}
	sq, err := Open(ctx, configStorage("sqlite", dir))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer sq.Close()
	if _, ok := sq.(*SQLStore); !ok {
		t.Fatalf("sqlite backend = %T", sq)
	}
	if _, err := Open(ctx, configStorage("redis", dir)); err == nil {
		t.Fatalf("unknown backend accepted")
	}
}
