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
	"os"
	"path/filepath"
	"testing"

	"tigerlauncher/internal/config"
	"tigerlauncher/internal/domain"
)

func configStorage(backend, dir string) config.StorageConfig {
	return config.StorageConfig{Backend: backend, Path: dir}
}

func exerciseSQLStore(t *testing.T, s *SQLStore) {
	t.Helper()
	ctx := context.Background()
	points, nests := sampleLayout()
	if err := s.SaveNests(ctx, nests); err != nil {
		t.Fatalf("SaveNests: %v", err)
	}
	if err := s.SavePoints(ctx, points); err != nil {
		t.Fatalf("SavePoints: %v", err)
	}
	gotP, err := s.LoadPoints(ctx)
	if err != nil {
		t.Fatalf("LoadPoints: %v", err)
	}
	if len(gotP) != 3 {
		t.Fatalf("points = %+v", gotP)
	}
	for i := range points {
		if gotP[i].ID != points[i].ID || gotP[i].AngleDeg != points[i].AngleDeg || !gotP[i].Action.Equal(points[i].Action) {
			t.Fatalf("point %d = %+v, want %+v", i, gotP[i], points[i])
		}
	}
	gotN, err := s.LoadNests(ctx)
	if err != nil {
		t.Fatalf("LoadNests: %v", err)
	}
	if len(gotN) != 2 || gotN[1].Name != "tools" || gotN[1].DragDistances[0] != 300 {
		t.Fatalf("nests = %+v", gotN)
	}

	// saving again replaces rather than appends, and keeps list order
	reordered := []domain.Point{points[2], points[0]}
	if err := s.SavePoints(ctx, reordered); err != nil {
		t.Fatalf("SavePoints again: %v", err)
	}
	gotP, _ = s.LoadPoints(ctx)
	if len(gotP) != 2 || gotP[0].ID != "p3" || gotP[1].ID != "p1" {
		t.Fatalf("after replace: %+v", gotP)
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), SQLiteFileName)
	s, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	exerciseSQLStore(t, s)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// reopening does not re-run migrations
	s2, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	applied, err := s2.appliedMigrations(context.Background())
	if err != nil || len(applied) != 2 {
		t.Fatalf("applied migrations = %v, %v", applied, err)
	}
	p, _ := s2.LoadPoints(context.Background())
	if len(p) != 2 {
		t.Fatalf("data lost on reopen: %+v", p)
	}
}

func TestLoadOrDefaultRepairsInvalidRows(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), SQLiteFileName))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	if err := s.SaveNests(ctx, []domain.Nest{domain.NewRootNest()}); err != nil {
		t.Fatalf("SaveNests: %v", err)
	}
	rows := []domain.Point{
		{ID: "x", AngleDeg: 725, CircleNumber: 7, NestID: 0, Action: domain.NoAction()},
		{ID: "y", AngleDeg: 725, CircleNumber: 0, NestID: 0, Action: domain.NoAction()},
	}
	if err := s.SavePoints(ctx, rows); err != nil {
		t.Fatalf("SavePoints: %v", err)
	}
	points, nests := LoadOrDefault(ctx, s, quietLogger())
	if err := domain.ValidateLayout(points, nests); err != nil {
		t.Fatalf("loaded layout invalid: %v", err)
	}
	if len(points) != 1 || points[0].ID != "y" || points[0].AngleDeg != 5 {
		t.Fatalf("points = %+v", points)
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TL_PG_DSN")
	if dsn == "" {
		t.Skip("TL_PG_DSN not set")
	}
	s, err := OpenPostgres(context.Background(), dsn)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	defer s.Close()
	exerciseSQLStore(t, s)
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{dialect: dialectPostgres}
	if got := pg.rebind("INSERT INTO t VALUES (?, ?, ?)"); got != "INSERT INTO t VALUES ($1, $2, $3)" {
		t.Fatalf("rebind = %q", got)
	}
	lite := &SQLStore{dialect: dialectSQLite}
	if got := lite.rebind("x = ?"); got != "x = ?" {
		t.Fatalf("sqlite rebind changed query: %q", got)
	}
}

func TestParseMigrationVersion(t *testing.T) {
	if v, err := parseMigrationVersion("0002_points_nest_index.sql"); err != nil || v != 2 {
		t.Fatalf("version = %d, %v", v, err)
	}
	if _, err := parseMigrationVersion("init.sql"); err == nil {
		t.Fatalf("expected error for missing prefix")
	}
}
