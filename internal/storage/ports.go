package storage

import (
	"context"

	"wunschliste/internal/core"
)

// Names of the two stored documents. Remote stores use them as sub-tree
// names, sync messages use them to say what needs pushing.
const (
	CollectionWishes   = "wishes"
	CollectionPlanning = "planning"
)

// Ports for outbound adapters.
type (
	// WishStore persists the wish list as a whole. Load of a store that
	// holds nothing yet returns an empty list and no error.
	WishStore interface {
		LoadWishes(ctx context.Context) (core.Wishlist, error)
		SaveWishes(ctx context.Context, items core.Wishlist) error
	}

	// PlanningStore persists the shared planning document.
	PlanningStore interface {
		LoadPlanning(ctx context.Context) (core.Planning, error)
		SavePlanning(ctx context.Context, p core.Planning) error
	}

	// Store is a complete backend.
	Store interface {
		WishStore
		PlanningStore
		Name() string
	}

	// RecordStore is the per-record view offered by backends that do not
	// need whole-document rewrites.
	RecordStore interface {
		GetWish(ctx context.Context, id string) (core.WishItem, bool, error)
		PutWish(ctx context.Context, w core.WishItem) error
		DeleteWish(ctx context.Context, id string) error
		ListByOwner(ctx context.Context, user string) ([]core.WishItem, error)
		ListByClaimant(ctx context.Context, user string) ([]core.WishItem, error)
	}

	// Pinger reports whether a backend is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// PendingTracker remembers documents that were written locally while
	// the remote store was unavailable.
	PendingTracker interface {
		MarkPending(collection string) error
		Pending() ([]string, error)
		ClearPending(collection string) error
	}
)
