package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"wunschliste/internal/core"
	"wunschliste/internal/storage/memory"
)

var eventDays = []string{"2025-12-24", "2025-12-25", "2025-12-26"}

func newPlanningService(t *testing.T, now time.Time) (*PlanningService, *memory.Store) {
	t.Helper()
	store := memory.New()
	clock := func() time.Time { return now }
	return NewPlanningService(store, family, eventDays, nil, WithClock(clock), WithIDs(seqIDs())), store
}

func TestPlanningService_Meals(t *testing.T) {
	ctx := context.Background()
	s, _ := newPlanningService(t, fixedNow())

	if _, err := s.AddDish(ctx, "Gudrun", core.DishFields{Name: "  "}); !errors.Is(err, core.ErrEmptyDishName) {
		t.Fatalf("expected ErrEmptyDishName, got %v", err)
	}
	d, err := s.AddDish(ctx, "Gudrun", core.DishFields{Name: "Gans", Category: core.Hauptspeise})
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Vote(ctx, "Tim", d.ID); !ok {
		t.Fatal("vote failed")
	}
	if ok, _ := s.Vote(ctx, "Tim", d.ID); ok {
		t.Fatal("second vote must be a no-op")
	}
	if ok, _ := s.Assign(ctx, "2025-12-24", core.Hauptspeise, d.ID); !ok {
		t.Fatal("assign failed")
	}
	if _, err := s.Assign(ctx, "2025-12-24", core.Category("Brunch"), d.ID); !errors.Is(err, core.ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}

	p := s.Planning(ctx)
	if got := p.DishesOn("2025-12-24", core.Hauptspeise); len(got) != 1 || !got[0].Votes.Has("Tim") {
		t.Fatalf("unexpected assignment %+v", got)
	}

	if ok, _ := s.DeleteDish(ctx, d.ID); !ok {
		t.Fatal("delete failed")
	}
	p = s.Planning(ctx)
	if len(p.MealProposals) != 0 || len(p.DayAssignments["2025-12-24"][core.Hauptspeise]) != 0 {
		t.Fatalf("dish not purged: %+v", p)
	}
}

func TestPlanningService_MigratesLegacyMealsOnLoad(t *testing.T) {
	ctx := context.Background()
	s, store := newPlanningService(t, fixedNow())

	legacy := core.Planning{LegacyMeals: json.RawMessage(`{
		"2025-12-24": {"proposals": [{"name": "Raclette", "category": "Hauptspeise", "proposed_by": "Pia", "votes": ["Tim"]}]},
		"2025-12-25": {"proposals": [{"name": "raclette ", "proposed_by": "Emmy", "votes": ["Emmy"]}]}
	}`)}
	if err := store.SavePlanning(ctx, legacy); err != nil {
		t.Fatal(err)
	}

	p := s.Planning(ctx)
	if len(p.MealProposals) != 1 {
		t.Fatalf("expected one merged dish, got %+v", p.MealProposals)
	}
	stored, _ := store.LoadPlanning(ctx)
	if stored.LegacyMeals != nil || len(stored.MealProposals) != 1 {
		t.Fatalf("migration was not written back: %+v", stored)
	}

	// second load does not duplicate
	if p := s.Planning(ctx); len(p.MealProposals) != 1 {
		t.Fatalf("migration not idempotent: %d dishes", len(p.MealProposals))
	}
}

func TestPlanningService_Attendance(t *testing.T) {
	ctx := context.Background()
	s, _ := newPlanningService(t, fixedNow())

	err := s.SubmitAttendance(ctx, "Emmy", map[string]core.DayStatus{
		"2025-12-24": {Present: true, WithPartner: true},
		"2025-12-25": {Unsure: true, Overnight: true},
	}, "komme spät")
	if err != nil {
		t.Fatal(err)
	}

	overview := s.AttendanceOverview(ctx)
	if len(overview) != 3 {
		t.Fatalf("expected one entry per event day, got %d", len(overview))
	}
	if len(overview[0].Present) != 1 || overview[0].Partners != 1 {
		t.Errorf("24th: %+v", overview[0])
	}
	if len(overview[1].Unsure) != 1 || overview[1].Overnight != 0 {
		t.Errorf("25th: %+v", overview[1])
	}
	if len(overview[2].Absent) != len(family) {
		t.Errorf("26th: everybody absent, got %+v", overview[2])
	}
}

func TestPlanningService_Advent(t *testing.T) {
	ctx := context.Background()
	s, _ := newPlanningService(t, time.Date(2025, 12, 3, 8, 0, 0, 0, time.UTC))

	if _, err := s.OpenDoor(ctx, "Pia", 4); !errors.Is(err, core.ErrDoorLocked) {
		t.Fatalf("door 4 must be locked on Dec 3, got %v", err)
	}
	if err := s.AddComment(ctx, "Pia", 3, "hallo"); !errors.Is(err, core.ErrDoorNotOpened) {
		t.Fatalf("expected ErrDoorNotOpened, got %v", err)
	}
	if ok, err := s.OpenDoor(ctx, "Pia", 3); !ok || err != nil {
		t.Fatalf("OpenDoor = %v, %v", ok, err)
	}
	if err := s.AddComment(ctx, "Pia", 3, "Schöner Stern!"); err != nil {
		t.Fatal(err)
	}

	images := map[int]string{3: "stern.jpg"}
	doors := s.AdventCalendar(ctx, "Pia", images)
	if len(doors) != core.AdventDoors {
		t.Fatalf("expected %d doors, got %d", core.AdventDoors, len(doors))
	}
	d3 := doors[2]
	if !d3.Opened || d3.Image != "stern.jpg" || len(d3.Comments) != 1 {
		t.Errorf("door 3 for Pia: %+v", d3)
	}
	if doors[3].Openable {
		t.Error("door 4 must not be openable yet")
	}

	// Tim has not opened door 3 and sees nothing behind it
	if d := s.AdventCalendar(ctx, "Tim", images)[2]; d.Opened || d.Image != "" || d.Comments != nil {
		t.Errorf("door 3 for Tim: %+v", d)
	}
}
