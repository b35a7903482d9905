// Package file stores the wish list and the planning document as
// pretty-printed JSON files on local disk.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"wunschliste/internal/core"
	"wunschliste/internal/storage"
)

const pendingSuffix = ".pending"

type Store struct {
	mu           sync.Mutex
	wishesPath   string
	planningPath string
}

var (
	_ storage.Store          = (*Store)(nil)
	_ storage.PendingTracker = (*Store)(nil)
	_ storage.Pinger         = (*Store)(nil)
)

func New(wishesPath, planningPath string) *Store {
	return &Store{wishesPath: wishesPath, planningPath: planningPath}
}

func (s *Store) Name() string { return "file" }

// LoadWishes reads the wish list. A missing file is an empty list.
func (s *Store) LoadWishes(_ context.Context) (core.Wishlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := core.Wishlist{}
	if err := readJSON(s.wishesPath, &items); err != nil {
		return core.Wishlist{}, err
	}
	return items, nil
}

func (s *Store) SaveWishes(_ context.Context, items core.Wishlist) error {
	if items == nil {
		items = core.Wishlist{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.wishesPath, items)
}

// LoadPlanning reads the planning document. A missing file is an empty
// document.
func (s *Store) LoadPlanning(_ context.Context) (core.Planning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var p core.Planning
	if err := readJSON(s.planningPath, &p); err != nil {
		return core.Planning{}, err
	}
	return p, nil
}

func (s *Store) SavePlanning(_ context.Context, p core.Planning) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.planningPath, p)
}

// Ping checks that the data directory is writable.
func (s *Store) Ping(_ context.Context) error {
	dir := filepath.Dir(s.wishesPath)
	f, err := os.CreateTemp(dir, ".ping-*")
	if err != nil {
		return fmt.Errorf("data directory not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func (s *Store) pathFor(collection string) (string, error) {
	switch collection {
	case storage.CollectionWishes:
		return s.wishesPath, nil
	case storage.CollectionPlanning:
		return s.planningPath, nil
	}
	return "", fmt.Errorf("unknown collection %q", collection)
}

// MarkPending flags a document as written locally but not yet remotely.
func (s *Store) MarkPending(collection string) error {
	path, err := s.pathFor(collection)
	if err != nil {
		return err
	}
	return os.WriteFile(path+pendingSuffix, []byte(collection), 0o644)
}

// Pending lists the flagged documents.
func (s *Store) Pending() ([]string, error) {
	var out []string
	for _, c := range []string{storage.CollectionWishes, storage.CollectionPlanning} {
		path, _ := s.pathFor(c)
		if _, err := os.Stat(path + pendingSuffix); err == nil {
			out = append(out, c)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) ClearPending(collection string) error {
	path, err := s.pathFor(collection)
	if err != nil {
		return err
	}
	if err := os.Remove(path + pendingSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// writeJSON replaces the file through a rename so readers never observe a
// half written document.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+strings.TrimPrefix(filepath.Base(path), ".")+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
