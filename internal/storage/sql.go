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
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	// PostgreSQL through database/sql
	_ "github.com/jackc/pgx/v5/stdlib"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"

	"tigerlauncher/internal/domain"
	applog "tigerlauncher/internal/log"
	"tigerlauncher/internal/version"
)

// SQLiteFileName is the database file used by the sqlite backend.
const SQLiteFileName = "launcher.sqlite"

//go:embed migrations/*.sql
var migrationsFS embed.FS

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func (d dialect) String() string {
	if d == dialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// SQLStore keeps the layout in two tables, points and nests. Point order is
// kept in a position column because selection ties are broken by list order.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	l       *slog.Logger
}

// OpenSQLite opens (creating if needed) the SQLite database at path, enables
// WAL mode and applies migrations.
func OpenSQLite(ctx context.Context, dbPath string) (*SQLStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	// Use a URI with shared cache and set busy timeout. Convert to forward slashes for SQLite URI.
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(dbPath))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Set reasonable connection pool limits for embedded usage.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	return newSQLStore(ctx, db, dialectSQLite)
}

// OpenPostgres connects through the pgx database/sql driver and applies migrations.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newSQLStore(ctx, db, dialectPostgres)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: d, l: applog.WithComponent("storage").With(slog.String("backend", d.String()))}
	mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.migrate(mctx); err != nil {
		_ = db.Close()
		s.l.Error("migrations failed", slog.Any("err", err))
		return nil, err
	}
	return s, nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(q string) string {
	if s.dialect != dialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// migrate applies embedded SQL migrations in filename order and records them
// in schema_migrations.
func (s *SQLStore) migrate(ctx context.Context) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    BIGINT PRIMARY KEY,
		name       TEXT NOT NULL,
		app        TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return err
	}
	for _, fname := range files {
		v, err := parseMigrationVersion(fname)
		if err != nil {
			return err
		}
		if applied[v] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", fname, err)
		}
		for _, stmt := range splitStatements(string(b)) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("apply %s: %w", fname, err)
			}
		}
		now := time.Now().UTC().Format(time.RFC3339)
		if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO schema_migrations (version, name, app, applied_at) VALUES (?, ?, ?, ?)`), v, fname, version.String(), now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", fname, err)
		}
		s.l.Info("applied migration", slog.String("file", fname))
	}
	return nil
}

func (s *SQLStore) appliedMigrations(ctx context.Context) (map[int64]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("select schema_migrations: %w", err)
	}
	defer rows.Close()
	applied := map[int64]bool{}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func parseMigrationVersion(name string) (int64, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid migration filename %s: %w", name, err)
	}
	return v, nil
}

func splitStatements(text string) []string {
	var out []string
	for _, stmt := range strings.Split(text, ";") {
		if strings.TrimSpace(stmt) != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func (s *SQLStore) LoadPoints(ctx context.Context) ([]domain.Point, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, angle_deg, circle_number, nest_id, action, label FROM points ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()
	out := []domain.Point{}
	for rows.Next() {
		var p domain.Point
		var action string
		if err := rows.Scan(&p.ID, &p.AngleDeg, &p.CircleNumber, &p.NestID, &action, &p.Label); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		if err := json.Unmarshal([]byte(action), &p.Action); err != nil {
			return nil, fmt.Errorf("point %s action: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) LoadNests(ctx context.Context) ([]domain.Nest, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, parent_id, name, drag_distances FROM nests ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query nests: %w", err)
	}
	defer rows.Close()
	out := []domain.Nest{}
	for rows.Next() {
		var n domain.Nest
		var dd string
		if err := rows.Scan(&n.ID, &n.ParentID, &n.Name, &dd); err != nil {
			return nil, fmt.Errorf("scan nest: %w", err)
		}
		if err := json.Unmarshal([]byte(dd), &n.DragDistances); err != nil {
			return nil, fmt.Errorf("nest %d drag distances: %w", n.ID, err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// SavePoints replaces the stored points in one transaction.
func (s *SQLStore) SavePoints(ctx context.Context, points []domain.Point) error {
	const insert = `INSERT INTO points (id, position, angle_deg, circle_number, nest_id, action, label) VALUES (?, ?, ?, ?, ?, ?, ?)`
	return s.replace(ctx, "points", insert, len(points), func(stmt *sql.Stmt, i int) error {
		p := points[i]
		action, err := json.Marshal(p.Action)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx, p.ID, i, p.AngleDeg, p.CircleNumber, p.NestID, string(action), p.Label)
		return err
	})
}

// SaveNests replaces the stored nests in one transaction.
func (s *SQLStore) SaveNests(ctx context.Context, nests []domain.Nest) error {
	const insert = `INSERT INTO nests (id, parent_id, name, drag_distances) VALUES (?, ?, ?, ?)`
	return s.replace(ctx, "nests", insert, len(nests), func(stmt *sql.Stmt, i int) error {
		n := nests[i]
		dd := n.DragDistances
		if dd == nil {
			dd = domain.DragDistances{}
		}
		b, err := json.Marshal(dd)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx, n.ID, n.ParentID, n.Name, string(b))
		return err
	})
}

// replace deletes every row of table and inserts n new ones in one transaction.
func (s *SQLStore) replace(ctx context.Context, table, insert string, n int, row func(*sql.Stmt, int) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear %s: %w", table, err)
	}
	stmt, err := tx.PrepareContext(ctx, s.rebind(insert))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare %s insert: %w", table, err)
	}
	defer stmt.Close()
	for i := 0; i < n; i++ {
		if err := row(stmt, i); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert %s row %d: %w", table, i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", table, err)
	}
	s.l.Debug("saved", slog.String("table", table), slog.Int("rows", n))
	return nil
}

// Close closes the database handle.
func (s *SQLStore) Close() error { return s.db.Close() }
