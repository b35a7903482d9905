package memory

import (
	"context"
	"testing"
	"time"

	"wunschliste/internal/core"
)

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	var l core.Wishlist
	if err := l.AddWish("w1", "Emmy", core.WishFields{WishName: "Puzzle", Description: "1000 Teile"}); err != nil {
		t.Fatal(err)
	}
	s := NewSeeded(l)

	loaded, err := s.LoadWishes(ctx)
	if err != nil || len(loaded) != 1 {
		t.Fatalf("unexpected load: %v %v", loaded, err)
	}
	loaded[0].WishName = "changed"
	again, _ := s.LoadWishes(ctx)
	if again[0].WishName != "Puzzle" {
		t.Fatalf("store shares memory with callers")
	}
}

func TestMemoryStorePlanning(t *testing.T) {
	ctx := context.Background()
	s := New()
	p, err := s.LoadPlanning(ctx)
	if err != nil || len(p.MealProposals) != 0 {
		t.Fatalf("expected empty planning: %+v %v", p, err)
	}
	if err := p.AddDish("d1", "Tim", core.DishFields{Name: "Fondue"}, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := s.SavePlanning(ctx, p); err != nil {
		t.Fatal(err)
	}
	p2, _ := s.LoadPlanning(ctx)
	if d, ok := p2.Dish("d1"); !ok || d.Name != "Fondue" {
		t.Fatalf("dish not stored: %+v", p2)
	}
}
