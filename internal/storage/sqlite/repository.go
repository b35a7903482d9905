// Package sqlite stores one row per wish and the planning document as a
// single row, so individual records can be read and written without
// rewriting the whole list.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"wunschliste/internal/core"
	"wunschliste/internal/storage"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
}

var (
	_ storage.Store       = (*Repository)(nil)
	_ storage.RecordStore = (*Repository)(nil)
	_ storage.Pinger      = (*Repository)(nil)
)

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Name() string { return "sqlite" }

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const wishColumns = "doc"

func (r *Repository) queryWishes(ctx context.Context, query string, args ...any) ([]core.WishItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query wishes: %w", err)
	}
	defer rows.Close()

	var out []core.WishItem
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan wish: %w", err)
		}
		var w core.WishItem
		if err := json.Unmarshal([]byte(doc), &w); err != nil {
			return nil, fmt.Errorf("decode wish: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// LoadWishes returns all wishes in insertion order.
func (r *Repository) LoadWishes(ctx context.Context) (core.Wishlist, error) {
	items, err := r.queryWishes(ctx, "SELECT "+wishColumns+" FROM wishes ORDER BY position")
	if err != nil {
		return core.Wishlist{}, err
	}
	if items == nil {
		items = []core.WishItem{}
	}
	return core.Wishlist(items), nil
}

// SaveWishes replaces every stored wish inside one transaction.
func (r *Repository) SaveWishes(ctx context.Context, items core.Wishlist) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM wishes"); err != nil {
		return fmt.Errorf("clear wishes: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO wishes
		(id, position, kind, owner_user, suggested_by, suggested_for, claimed_by, doc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, w := range items {
		doc, err := json.Marshal(w)
		if err != nil {
			return fmt.Errorf("encode wish %s: %w", w.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, w.ID, i, string(w.Kind), w.OwnerUser, w.SuggestedBy, w.SuggestedFor, w.ClaimedBy, string(doc)); err != nil {
			return fmt.Errorf("insert wish %s: %w", w.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit wishes: %w", err)
	}
	slog.DebugContext(ctx, "Wishes saved to SQLite", "count", len(items))
	return nil
}

func (r *Repository) GetWish(ctx context.Context, id string) (core.WishItem, bool, error) {
	items, err := r.queryWishes(ctx, "SELECT "+wishColumns+" FROM wishes WHERE id = ?", id)
	if err != nil || len(items) == 0 {
		return core.WishItem{}, false, err
	}
	return items[0], true, nil
}

// PutWish inserts or replaces a single record, appending new ones at the
// end of the list.
func (r *Repository) PutWish(ctx context.Context, w core.WishItem) error {
	doc, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode wish %s: %w", w.ID, err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO wishes
		(id, position, kind, owner_user, suggested_by, suggested_for, claimed_by, doc)
		VALUES (?, (SELECT COALESCE(MAX(position), -1) + 1 FROM wishes), ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			owner_user = excluded.owner_user,
			suggested_by = excluded.suggested_by,
			suggested_for = excluded.suggested_for,
			claimed_by = excluded.claimed_by,
			doc = excluded.doc,
			updated_at = CURRENT_TIMESTAMP`,
		w.ID, string(w.Kind), w.OwnerUser, w.SuggestedBy, w.SuggestedFor, w.ClaimedBy, string(doc))
	if err != nil {
		return fmt.Errorf("put wish %s: %w", w.ID, err)
	}
	return nil
}

func (r *Repository) DeleteWish(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM wishes WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete wish %s: %w", id, err)
	}
	return nil
}

// ListByOwner returns the wishes owned by user.
func (r *Repository) ListByOwner(ctx context.Context, user string) ([]core.WishItem, error) {
	return r.queryWishes(ctx, "SELECT "+wishColumns+" FROM wishes WHERE kind = 'wish' AND owner_user = ? ORDER BY position", user)
}

// ListByClaimant returns the records claimed by user.
func (r *Repository) ListByClaimant(ctx context.Context, user string) ([]core.WishItem, error) {
	return r.queryWishes(ctx, "SELECT "+wishColumns+" FROM wishes WHERE claimed_by = ? ORDER BY position", user)
}

func (r *Repository) LoadPlanning(ctx context.Context) (core.Planning, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, "SELECT doc FROM planning WHERE id = 1").Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Planning{}, nil
	}
	if err != nil {
		return core.Planning{}, fmt.Errorf("load planning: %w", err)
	}
	var p core.Planning
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return core.Planning{}, fmt.Errorf("decode planning: %w", err)
	}
	return p, nil
}

func (r *Repository) SavePlanning(ctx context.Context, p core.Planning) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode planning: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO planning (id, doc) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, updated_at = CURRENT_TIMESTAMP`, string(doc))
	if err != nil {
		return fmt.Errorf("save planning: %w", err)
	}
	return nil
}
