package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wunschliste/internal/core"
	"wunschliste/internal/storage/memory"
)

var family = []string{"Dieter", "Gudrun", "Lukas", "Pia", "Emmy", "Tim"}

func fixedNow() time.Time { return time.Date(2025, 12, 5, 18, 0, 0, 0, time.UTC) }

func seqIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("id-%d", n.Add(1)) }
}

func newWishService(t *testing.T) (*WishService, *memory.Store) {
	t.Helper()
	store := memory.New()
	return NewWishService(store, family, nil, WithClock(fixedNow), WithIDs(seqIDs())), store
}

func giftFields(name string, cents int64) core.WishFields {
	p := core.Money{Cents: cents}
	return core.WishFields{
		WishName:     name,
		Description:  "bitte",
		Price:        &p,
		OthersCanBuy: true,
		Images:       []core.Image{core.NewImage([]byte{0xff, 0xd8}, "image/jpeg")},
	}
}

// brokenStore fails every load.
type brokenStore struct {
	saved core.Wishlist
}

func (b *brokenStore) LoadWishes(context.Context) (core.Wishlist, error) {
	return nil, errors.New("disk on fire")
}

func (b *brokenStore) SaveWishes(_ context.Context, items core.Wishlist) error {
	b.saved = items
	return nil
}

func TestWishService_AddAndDashboard(t *testing.T) {
	ctx := context.Background()
	s, _ := newWishService(t)

	w, err := s.AddWish(ctx, "Lukas", giftFields("Lego", 4999))
	if err != nil {
		t.Fatal(err)
	}
	if w.ID != "id-1" || w.OwnerUser != "Lukas" {
		t.Fatalf("unexpected wish %+v", w)
	}

	lukas := s.Dashboard(ctx, "Lukas")
	if len(lukas.Mine) != 1 || len(lukas.Others) != 0 {
		t.Fatalf("Lukas sees mine=%d others=%d", len(lukas.Mine), len(lukas.Others))
	}
	if lukas.BudgetUsed.Cents != 4999 || lukas.BudgetRemaining.Cents != 150000-4999 {
		t.Errorf("budget used=%v remaining=%v", lukas.BudgetUsed, lukas.BudgetRemaining)
	}

	pia := s.Dashboard(ctx, "Pia")
	if len(pia.Others) != 1 || pia.Others[0].Owner != "Lukas" {
		t.Fatalf("Pia should see Lukas' wish grouped: %+v", pia.Others)
	}
}

func TestWishService_ValidationDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	s, store := newWishService(t)

	_, err := s.AddWish(ctx, "Lukas", core.WishFields{Description: "d"})
	if !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	items, _ := store.LoadWishes(ctx)
	if len(items) != 0 {
		t.Fatalf("nothing should be stored, got %d", len(items))
	}
}

func TestWishService_BudgetError(t *testing.T) {
	ctx := context.Background()
	s, _ := newWishService(t)

	if _, err := s.AddWish(ctx, "Tim", giftFields("Fahrrad", 140000)); err != nil {
		t.Fatal(err)
	}
	_, err := s.AddWish(ctx, "Tim", giftFields("Helm", 10001))
	var be *core.BudgetError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BudgetError, got %v", err)
	}
	if be.Remaining.Cents != 10000 {
		t.Errorf("Remaining = %v, want 100.00", be.Remaining)
	}
	if _, err := s.AddWish(ctx, "Tim", giftFields("Helm", 10000)); err != nil {
		t.Errorf("exact headroom must fit: %v", err)
	}
}

func TestWishService_ClaimPurchaseExpenses(t *testing.T) {
	ctx := context.Background()
	s, _ := newWishService(t)
	w, _ := s.AddWish(ctx, "Lukas", giftFields("Buch", 2000))

	if ok, _ := s.Claim(ctx, "Lukas", w.ID); ok {
		t.Fatal("owner must not claim own wish")
	}
	if ok, _ := s.Claim(ctx, "Pia", w.ID); !ok {
		t.Fatal("Pia should claim")
	}
	if ok, _ := s.Claim(ctx, "Dieter", w.ID); ok {
		t.Fatal("second claim must lose")
	}
	actual := core.Money{Cents: 1850}
	if ok, _ := s.MarkPurchased(ctx, "Dieter", w.ID, &actual); ok {
		t.Fatal("non-claimer cannot purchase")
	}
	if ok, _ := s.MarkPurchased(ctx, "Pia", w.ID, &actual); !ok {
		t.Fatal("claimer should purchase")
	}

	sum := s.Expenses(ctx, "Pia")
	if sum.Total.Cents != 1850 || sum.Outstanding.Cents != 1850 || sum.Reimbursed.Cents != 0 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if ok, _ := s.MarkReimbursed(ctx, "Pia", w.ID, true); !ok {
		t.Fatal("reimburse failed")
	}
	if sum := s.Expenses(ctx, "Pia"); sum.Reimbursed.Cents != 1850 || sum.Outstanding.Cents != 0 {
		t.Errorf("after reimbursement %+v", sum)
	}

	admin := s.AdminExpenses(ctx, "Dieter")
	if len(admin) != 1 || admin[0].User != "Pia" {
		t.Fatalf("admin view = %+v", admin)
	}
	if admin := s.AdminExpenses(ctx, "Lukas"); len(admin) != 0 {
		t.Fatalf("Lukas must not learn who bought his gift: %+v", admin)
	}
}

func TestWishService_SuggestionTargets(t *testing.T) {
	ctx := context.Background()
	s, _ := newWishService(t)

	if _, err := s.AddSuggestion(ctx, "Pia", "Nikolaus", giftFields("Socken", 900)); !errors.Is(err, core.ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
	sug, err := s.AddSuggestion(ctx, "Pia", "Dieter", giftFields("Socken", 900))
	if err != nil {
		t.Fatal(err)
	}
	if d := s.Dashboard(ctx, "Dieter"); len(d.Suggestions) != 0 {
		t.Fatalf("Dieter must not see suggestions for himself: %+v", d.Suggestions)
	}
	if d := s.Dashboard(ctx, "Gudrun"); len(d.Suggestions) != 1 {
		t.Fatalf("Gudrun should see the suggestion")
	}
	if ok, _ := s.DeleteSuggestion(ctx, "Gudrun", sug.ID); ok {
		t.Fatal("only the author may delete")
	}
	if ok, _ := s.DeleteSuggestion(ctx, "Pia", sug.ID); !ok {
		t.Fatal("author delete failed")
	}
}

func TestWishService_NonOwnerDeleteLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	s, store := newWishService(t)
	w, _ := s.AddWish(ctx, "Emmy", giftFields("Puppe", 1500))

	before, _ := store.LoadWishes(ctx)
	beforeJSON, _ := json.Marshal(before)
	if ok, err := s.DeleteWish(ctx, "Tim", w.ID); ok || err != nil {
		t.Fatalf("DeleteWish by non-owner = %v, %v", ok, err)
	}
	after, _ := store.LoadWishes(ctx)
	afterJSON, _ := json.Marshal(after)
	if string(beforeJSON) != string(afterJSON) {
		t.Fatal("store changed after non-owner delete")
	}
}

func TestWishService_LoadErrorReadsEmpty(t *testing.T) {
	ctx := context.Background()
	store := &brokenStore{}
	s := NewWishService(store, family, nil, WithIDs(seqIDs()))

	if l := s.List(ctx); len(l) != 0 {
		t.Fatalf("expected empty list, got %d", len(l))
	}
	if _, err := s.AddWish(ctx, "Gudrun", core.WishFields{WishName: "Schal", Description: "rot"}); err != nil {
		t.Fatal(err)
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected the new wish to be saved, got %d", len(store.saved))
	}
}

func TestWishService_ConcurrentClaimsFirstWins(t *testing.T) {
	ctx := context.Background()
	s, _ := newWishService(t)
	w, _ := s.AddWish(ctx, "Lukas", giftFields("Drohne", 9000))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for _, u := range []string{"Pia", "Emmy", "Tim", "Dieter", "Gudrun"} {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			if ok, _ := s.Claim(ctx, user, w.ID); ok {
				wins.Add(1)
			}
		}(u)
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
}
