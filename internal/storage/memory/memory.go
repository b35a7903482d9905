// Package memory keeps both documents in process memory. It backs the
// "memory" data backend used for demos and tests.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"wunschliste/internal/core"
	"wunschliste/internal/storage"
)

type Store struct {
	mu       sync.Mutex
	wishes   []byte
	planning []byte
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// NewSeeded returns a store preloaded with items.
func NewSeeded(items core.Wishlist) *Store {
	s := New()
	_ = s.SaveWishes(context.Background(), items)
	return s
}

func (s *Store) Name() string { return "memory" }

// Documents are kept serialized so callers never share slices or
// pointers with the store.
func (s *Store) LoadWishes(_ context.Context) (core.Wishlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := core.Wishlist{}
	if len(s.wishes) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(s.wishes, &items); err != nil {
		return core.Wishlist{}, err
	}
	return items, nil
}

func (s *Store) SaveWishes(_ context.Context, items core.Wishlist) error {
	if items == nil {
		items = core.Wishlist{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wishes = b
	return nil
}

func (s *Store) LoadPlanning(_ context.Context) (core.Planning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var p core.Planning
	if len(s.planning) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(s.planning, &p); err != nil {
		return core.Planning{}, err
	}
	return p, nil
}

func (s *Store) SavePlanning(_ context.Context, p core.Planning) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planning = b
	return nil
}

func (s *Store) Ping(_ context.Context) error { return nil }
