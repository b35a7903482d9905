package services

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"wunschliste/internal/core"
	applog "wunschliste/internal/log"
	"wunschliste/internal/metrics"
	"wunschliste/internal/storage"
)

// Option customizes a service.
type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDs replaces the uuid generator.
func WithIDs(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Dashboard is everything the start page shows for one user.
type Dashboard struct {
	User            string
	Mine            []core.WishItem
	Others          []core.OwnerGroup
	Suggestions     []core.OwnerGroup
	MySuggestions   []core.WishItem
	Claimed         core.ClaimedView
	ExpertTasks     []core.WishItem
	BudgetUsed      core.Money
	BudgetRemaining core.Money
	BudgetLimit     core.Money
}

// WishService runs every wish list operation as one load, mutate, save
// cycle against the store. Cycles are serialized within the process.
type WishService struct {
	mu      sync.Mutex
	store   storage.WishStore
	users   []string
	metrics *metrics.Metrics
	log     *applog.StructuredLogger
	opts    options
}

func NewWishService(store storage.WishStore, users []string, m *metrics.Metrics, opts ...Option) *WishService {
	return &WishService{
		store:   store,
		users:   users,
		metrics: m,
		log:     applog.NewStructuredLogger(applog.New(applog.Config{Component: applog.ComponentWishes, Handler: slog.Default().Handler()})),
		opts:    buildOptions(opts),
	}
}

// load never fails: a broken store reads as an empty list.
func (s *WishService) load(ctx context.Context) core.Wishlist {
	items, err := s.store.LoadWishes(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load wish list, using empty list", "error", err)
		return core.Wishlist{}
	}
	return items
}

// mutate applies fn to a freshly loaded list and saves when fn reports a
// change. Save failures are logged and do not fail the operation.
func (s *WishService) mutate(ctx context.Context, op string, fn func(*core.Wishlist) (bool, error)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.load(ctx)
	changed, err := fn(&l)
	if err != nil {
		s.metrics.Operation(op, metrics.OutcomeInvalid)
		slog.InfoContext(ctx, "Wish operation rejected", applog.FieldOperation, op, applog.FieldError, err)
		return false, err
	}
	if !changed {
		s.metrics.Operation(op, metrics.OutcomeNoop)
		return false, nil
	}
	if err := s.store.SaveWishes(ctx, l); err != nil {
		slog.WarnContext(ctx, "Failed to save wish list", applog.FieldOperation, op, applog.FieldError, err)
	}
	s.metrics.Operation(op, metrics.OutcomeChanged)
	return true, nil
}

func (s *WishService) logChange(ctx context.Context, user, op string, w core.WishItem) {
	s.log.LogItemChanged(ctx, user, op, w.ID, string(w.Kind), w.WishName)
}

// List returns the current wish list.
func (s *WishService) List(ctx context.Context) core.Wishlist {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Get returns one record.
func (s *WishService) Get(ctx context.Context, id string) (core.WishItem, bool) {
	return s.List(ctx).Get(id)
}

// Dashboard computes the start page projections for user.
func (s *WishService) Dashboard(ctx context.Context, user string) Dashboard {
	l := s.List(ctx)
	return Dashboard{
		User:            user,
		Mine:            l.Mine(user),
		Others:          l.OthersClaimable(user),
		Suggestions:     l.SuggestionsVisibleTo(user),
		MySuggestions:   l.MySuggestions(user),
		Claimed:         l.MyClaimed(user),
		ExpertTasks:     l.ExpertTasks(user),
		BudgetUsed:      l.BudgetUsed(user),
		BudgetRemaining: l.BudgetRemaining(user),
		BudgetLimit:     core.BudgetLimit,
	}
}

// Expenses returns user's own purchase summary.
func (s *WishService) Expenses(ctx context.Context, user string) core.ExpenseSummary {
	return s.List(ctx).Expenses(user)
}

// AdminExpenses returns the per-user summaries visible to an admin.
func (s *WishService) AdminExpenses(ctx context.Context, viewer string) []core.ExpenseSummary {
	return s.List(ctx).AdminExpenses(viewer, s.users)
}

func (s *WishService) AddWish(ctx context.Context, user string, f core.WishFields) (core.WishItem, error) {
	id := s.opts.newID()
	var added core.WishItem
	_, err := s.mutate(ctx, "add_wish", func(l *core.Wishlist) (bool, error) {
		if err := l.AddWish(id, user, f); err != nil {
			return false, err
		}
		added, _ = l.Get(id)
		return true, nil
	})
	if err != nil {
		return core.WishItem{}, err
	}
	s.logChange(ctx, user, applog.OpCreate, added)
	return added, nil
}

func (s *WishService) UpdateWish(ctx context.Context, user, id string, f core.WishFields) (bool, error) {
	changed, err := s.mutate(ctx, "update_wish", func(l *core.Wishlist) (bool, error) {
		return l.UpdateWish(user, id, f)
	})
	if changed {
		s.log.LogItemChanged(ctx, user, applog.OpUpdate, id, "", "")
	}
	return changed, err
}

func (s *WishService) DeleteWish(ctx context.Context, user, id string) (bool, error) {
	changed, err := s.mutate(ctx, "delete_wish", func(l *core.Wishlist) (bool, error) {
		return l.DeleteWish(user, id), nil
	})
	if changed {
		s.log.LogItemChanged(ctx, user, applog.OpDelete, id, "", "")
	}
	return changed, err
}

func (s *WishService) AddSuggestion(ctx context.Context, author, target string, f core.WishFields) (core.WishItem, error) {
	if !slices.Contains(s.users, target) {
		return core.WishItem{}, core.ErrUnknownUser
	}
	id := s.opts.newID()
	var added core.WishItem
	_, err := s.mutate(ctx, "add_suggestion", func(l *core.Wishlist) (bool, error) {
		if err := l.AddSuggestion(id, author, target, f); err != nil {
			return false, err
		}
		added, _ = l.Get(id)
		return true, nil
	})
	if err != nil {
		return core.WishItem{}, err
	}
	s.logChange(ctx, author, applog.OpCreate, added)
	return added, nil
}

func (s *WishService) UpdateSuggestion(ctx context.Context, author, id string, f core.WishFields) (bool, error) {
	changed, err := s.mutate(ctx, "update_suggestion", func(l *core.Wishlist) (bool, error) {
		return l.UpdateSuggestion(author, id, f)
	})
	if changed {
		s.log.LogItemChanged(ctx, author, applog.OpUpdate, id, "", "")
	}
	return changed, err
}

func (s *WishService) DeleteSuggestion(ctx context.Context, author, id string) (bool, error) {
	changed, err := s.mutate(ctx, "delete_suggestion", func(l *core.Wishlist) (bool, error) {
		return l.DeleteSuggestion(author, id), nil
	})
	if changed {
		s.log.LogItemChanged(ctx, author, applog.OpDelete, id, "", "")
	}
	return changed, err
}

func (s *WishService) Claim(ctx context.Context, user, id string) (bool, error) {
	now := s.opts.now()
	changed, err := s.mutate(ctx, "claim", func(l *core.Wishlist) (bool, error) {
		return l.Claim(user, id, now), nil
	})
	if changed {
		s.log.LogItemChanged(ctx, user, applog.OpClaim, id, "", "")
	}
	return changed, err
}

func (s *WishService) Unclaim(ctx context.Context, user, id string) (bool, error) {
	return s.mutate(ctx, "unclaim", func(l *core.Wishlist) (bool, error) {
		return l.Unclaim(user, id), nil
	})
}

// MarkPurchased records the purchase; actual may be nil when the price
// paid is unknown.
func (s *WishService) MarkPurchased(ctx context.Context, user, id string, actual *core.Money) (bool, error) {
	changed, err := s.mutate(ctx, "purchase", func(l *core.Wishlist) (bool, error) {
		return l.MarkPurchased(user, id, actual), nil
	})
	if changed {
		s.log.LogItemChanged(ctx, user, applog.OpPurchase, id, "", "")
	}
	return changed, err
}

func (s *WishService) MarkUnpurchased(ctx context.Context, user, id string) (bool, error) {
	return s.mutate(ctx, "unpurchase", func(l *core.Wishlist) (bool, error) {
		return l.MarkUnpurchased(user, id), nil
	})
}

func (s *WishService) MarkReimbursed(ctx context.Context, user, id string, reimbursed bool) (bool, error) {
	return s.mutate(ctx, "reimburse", func(l *core.Wishlist) (bool, error) {
		return l.MarkReimbursed(user, id, reimbursed), nil
	})
}
