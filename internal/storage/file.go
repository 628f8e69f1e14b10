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
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"tigerlauncher/internal/domain"
	applog "tigerlauncher/internal/log"
)

const (
	LayoutFileName = "launcher.json"
	BackupsDirName = "backups"
	// MaxBackups is how many timestamped backups are kept next to the layout.
	MaxBackups = 10

	layoutVersion = 1
)

//go:embed launcher.schema.json
var layoutSchemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func layoutSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(layoutSchemaJSON))
	})
	return schema, schemaErr
}

// ErrSchema is returned when launcher.json does not match the layout schema.
var ErrSchema = errors.New("layout does not conform to schema")

// Layout is the on-disk document.
type Layout struct {
	Version int            `json:"version"`
	Points  []domain.Point `json:"points"`
	Nests   []domain.Nest  `json:"nests"`
}

// ValidateLayoutJSON checks a launcher.json document against the embedded schema.
func ValidateLayoutJSON(data []byte) error {
	s, err := layoutSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrSchema, strings.Join(msgs, "; "))
	}
	return nil
}

// FileStore keeps the layout in <Root>/launcher.json.
// It is safe for concurrent use.
type FileStore struct {
	Root       string
	LayoutPath string

	mu     sync.Mutex
	doc    Layout
	loaded bool
	l      *slog.Logger
}

// NewFileStore prepares root (creating it if needed). Nothing is read until
// the first Load or Save.
func NewFileStore(root string) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FileStore{
		Root:       root,
		LayoutPath: filepath.Join(root, LayoutFileName),
		l:          applog.WithComponent("storage").With(slog.String("backend", "json")),
	}, nil
}

func (s *FileStore) LoadPoints(ctx context.Context) ([]domain.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	return domain.ClonePoints(s.doc.Points), nil
}

func (s *FileStore) LoadNests(ctx context.Context) ([]domain.Nest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	return domain.CloneNests(s.doc.Nests), nil
}

func (s *FileStore) SavePoints(ctx context.Context, points []domain.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.primeLocked()
	s.doc.Points = domain.ClonePoints(points)
	return s.writeLocked()
}

func (s *FileStore) SaveNests(ctx context.Context, nests []domain.Nest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.primeLocked()
	s.doc.Nests = domain.CloneNests(nests)
	return s.writeLocked()
}

func (s *FileStore) Close() error { return nil }

// primeLocked makes sure a save of one collection keeps the other one.
func (s *FileStore) primeLocked() {
	if s.loaded {
		return
	}
	if err := s.loadLocked(); err != nil {
		s.l.Warn("saving over unreadable layout", slog.Any("err", err))
		s.doc = Layout{Version: layoutVersion}
		s.loaded = true
	}
}

// loadLocked reads launcher.json once. If the current file cannot be read,
// parsed or validated, it falls back to the latest backup.
func (s *FileStore) loadLocked() error {
	if s.loaded {
		return nil
	}
	doc, err := readLayout(s.LayoutPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		doc = Layout{Version: layoutVersion}
	case err != nil:
		b, berr := s.latestBackup()
		if berr != nil {
			return fmt.Errorf("open layout: %w; backup attempt: %v", err, berr)
		}
		s.l.Warn("layout unreadable, restored from backup", slog.Any("err", err))
		doc = b
	}
	s.doc = doc
	s.loaded = true
	return nil
}

func readLayout(path string) (Layout, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, err
	}
	if err := ValidateLayoutJSON(b); err != nil {
		return Layout{}, err
	}
	var doc Layout
	if err := json.Unmarshal(b, &doc); err != nil {
		return Layout{}, fmt.Errorf("parse layout: %w", err)
	}
	return doc, nil
}

// writeLocked writes the document with transactional semantics and a
// timestamped backup of the previous file (if present).
func (s *FileStore) writeLocked() error {
	doc := s.doc
	doc.Version = layoutVersion
	if doc.Points == nil {
		doc.Points = []domain.Point{}
	}
	if doc.Nests == nil {
		doc.Nests = []domain.Nest{}
	}
	for i := range doc.Nests {
		if doc.Nests[i].DragDistances == nil {
			doc.Nests[i].DragDistances = domain.DragDistances{}
		}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal layout: %w", err)
	}
	data = append(data, '\n')

	bdir := filepath.Join(s.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(s.LayoutPath); statErr == nil {
		stamp := time.Now().Format("20060102-150405.000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", LayoutFileName, stamp))
		if cerr := copyFile(s.LayoutPath, bpath); cerr != nil {
			return fmt.Errorf("backup current layout: %w", cerr)
		}
		s.pruneBackups()
	}

	// Write to a temp file in the same directory, then rename over the target.
	temp := filepath.Join(s.Root, fmt.Sprintf(".%s.tmp-%d-%d", LayoutFileName, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp layout: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(s.LayoutPath); err == nil {
		_ = os.Remove(s.LayoutPath)
	}
	if rerr := os.Rename(temp, s.LayoutPath); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace layout: %w", rerr)
	}
	s.doc = doc
	s.l.Debug("layout saved", slog.Int("points", len(doc.Points)), slog.Int("nests", len(doc.Nests)))
	return nil
}

func (s *FileStore) backups() ([]string, error) {
	bdir := filepath.Join(s.Root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, LayoutFileName+".") && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out, nil
}

func (s *FileStore) pruneBackups() {
	all, err := s.backups()
	if err != nil || len(all) <= MaxBackups {
		return
	}
	for _, p := range all[:len(all)-MaxBackups] {
		_ = os.Remove(p)
	}
}

// latestBackup returns the newest backup that still reads and validates.
func (s *FileStore) latestBackup() (Layout, error) {
	all, err := s.backups()
	if err != nil {
		return Layout{}, err
	}
	if len(all) == 0 {
		return Layout{}, errors.New("no backups found")
	}
	var lastErr error
	for i := len(all) - 1; i >= 0; i-- {
		doc, err := readLayout(all[i])
		if err == nil {
			return doc, nil
		}
		lastErr = err
	}
	return Layout{}, fmt.Errorf("no usable backup: %w", lastErr)
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
