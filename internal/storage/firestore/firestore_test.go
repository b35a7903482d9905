package firestore

import (
	"testing"
	"time"

	"wunschliste/internal/core"
)

func TestDocConversionRoundTrip(t *testing.T) {
	var l core.Wishlist
	if err := l.AddWish("w1", "Pia", core.WishFields{
		WishName:     "Kamera",
		Description:  "analog",
		Price:        &core.Money{Cents: 12050},
		OthersCanBuy: true,
		Images:       []core.Image{{Data: "AAEC", Type: "image/jpeg"}},
	}); err != nil {
		t.Fatal(err)
	}
	l.Claim("Emmy", "w1", time.Date(2025, 12, 3, 9, 0, 0, 0, time.UTC))

	m, err := toDoc(l[0])
	if err != nil {
		t.Fatal(err)
	}
	if m["claimed_by"] != "Emmy" || m["price"] != 120.5 {
		t.Fatalf("unexpected document %v", m)
	}
	if _, ok := m["images"].([]any); !ok {
		t.Fatalf("images should be an array: %T", m["images"])
	}

	var back core.WishItem
	if err := fromDoc(m, &back); err != nil {
		t.Fatal(err)
	}
	if back.ID != "w1" || back.Price.Cents != 12050 || back.ClaimedBy != "Emmy" || len(back.Images) != 1 {
		t.Fatalf("round trip lost data: %+v", back)
	}
}

func TestPlanningDocHasNoNestedArrays(t *testing.T) {
	var p core.Planning
	if err := p.AddDish("d1", "Tim", core.DishFields{Name: "Suppe", Category: core.Vorspeise}, time.Now()); err != nil {
		t.Fatal(err)
	}
	p.Assign("2025-12-24", core.Vorspeise, "d1")
	if _, err := p.OpenDoor("Tim", 1, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}

	m, err := toDoc(p)
	if err != nil {
		t.Fatal(err)
	}
	var walk func(v any, inArray bool)
	walk = func(v any, inArray bool) {
		switch x := v.(type) {
		case []any:
			if inArray {
				t.Fatalf("firestore does not accept nested arrays")
			}
			for _, e := range x {
				walk(e, true)
			}
		case map[string]any:
			for _, e := range x {
				walk(e, false)
			}
		}
	}
	walk(m, false)

	var back core.Planning
	if err := fromDoc(m, &back); err != nil {
		t.Fatal(err)
	}
	if !back.HasOpened("Tim", 1) || len(back.DayAssignments["2025-12-24"][core.Vorspeise]) != 1 {
		t.Fatalf("planning lost data: %+v", back)
	}
}
