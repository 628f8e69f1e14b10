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
	"fmt"
	"log/slog"
	"path/filepath"

	"tigerlauncher/internal/config"
	"tigerlauncher/internal/domain"
	"tigerlauncher/internal/nest"
)

// Store is the persistence collaborator of the launcher.
type Store interface {
	LoadPoints(ctx context.Context) ([]domain.Point, error)
	LoadNests(ctx context.Context) ([]domain.Nest, error)
	SavePoints(ctx context.Context, points []domain.Point) error
	SaveNests(ctx context.Context, nests []domain.Nest) error
	Close() error
}

// Open returns the store selected by the configuration.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", "json":
		dir, err := cfg.StorageDir()
		if err != nil {
			return nil, err
		}
		return NewFileStore(dir)
	case "sqlite":
		dir, err := cfg.StorageDir()
		if err != nil {
			return nil, err
		}
		return OpenSQLite(ctx, filepath.Join(dir, SQLiteFileName))
	case "postgres":
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// LoadOrDefault reads the layout and never fails: unreadable points become an
// empty list and unreadable or missing nests become a single default root.
// A readable layout that fails validation is repaired record by record.
// Each fallback is logged as a warning.
func LoadOrDefault(ctx context.Context, s Store, l *slog.Logger) ([]domain.Point, []domain.Nest) {
	points, err := s.LoadPoints(ctx)
	if err != nil {
		l.Warn("points unreadable, starting empty", slog.Any("err", err))
		points = nil
	}
	nests, err := s.LoadNests(ctx)
	if err != nil {
		l.Warn("nests unreadable, starting with default root", slog.Any("err", err))
		nests = nil
	}
	nests, added := nest.EnsureRoot(nests)
	if added && len(nests) > 1 {
		l.Warn("root nest missing, recreated")
	}
	if err := domain.ValidateLayout(points, nests); err != nil {
		var dropped []string
		points, nests, dropped = domain.RepairLayout(points, nests)
		l.Warn("stored layout failed validation, repaired", slog.Any("err", err), slog.Any("dropped", dropped))
	}
	if points == nil {
		points = []domain.Point{}
	}
	return points, nests
}
