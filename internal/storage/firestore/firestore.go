// Package firestore is the remote document store. Under the configured
// root collection it keeps two sub-trees: one document per wish below
// "wishes/items", and the planning document at "planning".
package firestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"wunschliste/internal/core"
	"wunschliste/internal/storage"
)

// Config selects the project and credentials. Credentials may be given as
// a file path or inline JSON; with neither, application default
// credentials are used.
type Config struct {
	ProjectID       string
	CredentialsFile string
	CredentialsJSON string
	Root            string
}

type Store struct {
	client *firestore.Client
	root   string
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Pinger = (*Store)(nil)
)

func New(ctx context.Context, cfg Config) (*Store, error) {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	root := cfg.Root
	if root == "" {
		root = "wunschliste"
	}
	return &Store{client: client, root: root}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *firestore.Client, root string) *Store {
	return &Store{client: client, root: root}
}

func (s *Store) Name() string { return "firestore" }

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) wishes() *firestore.CollectionRef {
	return s.client.Collection(s.root).Doc(storage.CollectionWishes).Collection("items")
}

func (s *Store) planning() *firestore.DocumentRef {
	return s.client.Collection(s.root).Doc(storage.CollectionPlanning)
}

// LoadWishes reads every wish document. Order follows document ids since
// the remote tree is keyed by id.
func (s *Store) LoadWishes(ctx context.Context) (core.Wishlist, error) {
	iter := s.wishes().Documents(ctx)
	defer iter.Stop()

	items := core.Wishlist{}
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return core.Wishlist{}, fmt.Errorf("read wishes: %w", err)
		}
		var w core.WishItem
		if err := fromDoc(doc.Data(), &w); err != nil {
			slog.WarnContext(ctx, "Skipping undecodable wish document", "id", doc.Ref.ID, "error", err)
			continue
		}
		if w.ID == "" {
			w.ID = doc.Ref.ID
		}
		items = append(items, w)
	}
	return items, nil
}

// SaveWishes overwrites the remote sub-tree with items: every record is
// written and documents no longer present are deleted.
func (s *Store) SaveWishes(ctx context.Context, items core.Wishlist) error {
	existing := map[string]*firestore.DocumentRef{}
	refs := s.wishes().DocumentRefs(ctx)
	for {
		ref, err := refs.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return fmt.Errorf("list wish documents: %w", err)
		}
		existing[ref.ID] = ref
	}

	bw := s.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for _, w := range items {
		data, err := toDoc(w)
		if err != nil {
			bw.End()
			return fmt.Errorf("encode wish %s: %w", w.ID, err)
		}
		job, err := bw.Set(s.wishes().Doc(w.ID), data)
		if err != nil {
			bw.End()
			return fmt.Errorf("queue wish %s: %w", w.ID, err)
		}
		jobs = append(jobs, job)
		delete(existing, w.ID)
	}
	for _, ref := range existing {
		job, err := bw.Delete(ref)
		if err != nil {
			bw.End()
			return fmt.Errorf("queue delete %s: %w", ref.ID, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("write wishes: %w", err)
		}
	}
	return nil
}

func (s *Store) LoadPlanning(ctx context.Context) (core.Planning, error) {
	snap, err := s.planning().Get(ctx)
	if err != nil {
		if snap != nil && !snap.Exists() {
			return core.Planning{}, nil
		}
		return core.Planning{}, fmt.Errorf("read planning: %w", err)
	}
	var p core.Planning
	if err := fromDoc(snap.Data(), &p); err != nil {
		return core.Planning{}, fmt.Errorf("decode planning: %w", err)
	}
	return p, nil
}

func (s *Store) SavePlanning(ctx context.Context, p core.Planning) error {
	data, err := toDoc(p)
	if err != nil {
		return fmt.Errorf("encode planning: %w", err)
	}
	if _, err := s.planning().Set(ctx, data); err != nil {
		return fmt.Errorf("write planning: %w", err)
	}
	return nil
}

// Ping performs a cheap read against the root collection.
func (s *Store) Ping(ctx context.Context) error {
	iter := s.client.Collection(s.root).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("firestore ping: %w", err)
	}
	return nil
}

// toDoc converts a value to a Firestore field map through its JSON form,
// so the remote tree mirrors the local file field for field.
func toDoc(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func fromDoc(m map[string]any, v any) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
