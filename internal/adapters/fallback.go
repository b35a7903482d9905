package adapters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"wunschliste/internal/core"
	applog "wunschliste/internal/log"
	"wunschliste/internal/metrics"
	"wunschliste/internal/storage"
)

// LocalStore is the on-disk store that answers while the remote store is
// unreachable and remembers what still has to be pushed.
type LocalStore interface {
	storage.Store
	storage.PendingTracker
}

// ResyncPublisher announces documents that were written locally only.
type ResyncPublisher interface {
	PublishResync(ctx context.Context, collection, reason string) error
}

// FallbackStore prefers the remote store and falls back to the local file
// on any remote error. Failures are logged as warnings and never surface
// to callers as long as the local store works.
//
// Every successful remote write is mirrored locally so the fallback copy
// stays current. A document written only locally is marked pending and
// keeps being served from disk until the resync worker has pushed it.
type FallbackStore struct {
	remote    storage.Store
	local     LocalStore
	publisher ResyncPublisher
	metrics   *metrics.Metrics
}

var _ storage.Store = (*FallbackStore)(nil)

func NewFallbackStore(remote storage.Store, local LocalStore, publisher ResyncPublisher, m *metrics.Metrics) *FallbackStore {
	return &FallbackStore{remote: remote, local: local, publisher: publisher, metrics: m}
}

func (s *FallbackStore) Name() string { return s.remote.Name() + "+" + s.local.Name() }

func (s *FallbackStore) isPending(collection string) bool {
	pending, err := s.local.Pending()
	if err != nil {
		return false
	}
	return slices.Contains(pending, collection)
}

func (s *FallbackStore) LoadWishes(ctx context.Context) (core.Wishlist, error) {
	if s.isPending(storage.CollectionWishes) {
		return s.local.LoadWishes(ctx)
	}
	items, err := s.remote.LoadWishes(ctx)
	if err == nil {
		return items, nil
	}
	s.warn(ctx, storage.CollectionWishes, "load", err)
	return s.local.LoadWishes(ctx)
}

func (s *FallbackStore) SaveWishes(ctx context.Context, items core.Wishlist) error {
	return s.save(ctx, storage.CollectionWishes,
		func(st storage.Store) error { return st.SaveWishes(ctx, items) })
}

func (s *FallbackStore) LoadPlanning(ctx context.Context) (core.Planning, error) {
	if s.isPending(storage.CollectionPlanning) {
		return s.local.LoadPlanning(ctx)
	}
	p, err := s.remote.LoadPlanning(ctx)
	if err == nil {
		return p, nil
	}
	s.warn(ctx, storage.CollectionPlanning, "load", err)
	return s.local.LoadPlanning(ctx)
}

func (s *FallbackStore) SavePlanning(ctx context.Context, p core.Planning) error {
	return s.save(ctx, storage.CollectionPlanning,
		func(st storage.Store) error { return st.SavePlanning(ctx, p) })
}

func (s *FallbackStore) save(ctx context.Context, collection string, write func(storage.Store) error) error {
	remoteErr := write(s.remote)
	localErr := write(s.local)

	if remoteErr == nil {
		if localErr != nil {
			slog.WarnContext(ctx, "Local mirror write failed", "collection", collection, "error", localErr)
		} else if err := s.local.ClearPending(collection); err != nil {
			slog.WarnContext(ctx, "Failed to clear pending marker", "collection", collection, "error", err)
		}
		return nil
	}

	s.warn(ctx, collection, "save", remoteErr)
	if localErr != nil {
		return fmt.Errorf("save %s: %w", collection, errors.Join(remoteErr, localErr))
	}
	if err := s.local.MarkPending(collection); err != nil {
		slog.WarnContext(ctx, "Failed to mark document pending", "collection", collection, "error", err)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishResync(ctx, collection, remoteErr.Error()); err != nil {
			slog.WarnContext(ctx, "Failed to publish resync message", "collection", collection, "error", err)
		}
	}
	return nil
}

func (s *FallbackStore) warn(ctx context.Context, collection, op string, err error) {
	s.metrics.StorageFallback(collection, op)
	slog.WarnContext(ctx, "Remote store unavailable, using local file",
		applog.FieldComponent, applog.ComponentStorage,
		applog.FieldCollection, collection,
		applog.FieldOperation, op,
		"remote", s.remote.Name(),
		"error", err)
}

// Ping reports the remote store's health; the local file is always there.
func (s *FallbackStore) Ping(ctx context.Context) error {
	if p, ok := s.remote.(storage.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
