package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("dish-%d", n)
	}
}

func TestDishLifecycle(t *testing.T) {
	var p Planning
	if err := p.AddDish("d1", "Gudrun", DishFields{Name: "  "}, testNow); !errors.Is(err, ErrEmptyDishName) {
		t.Fatalf("expected empty name error, got %v", err)
	}
	if err := p.AddDish("d1", "Gudrun", DishFields{Name: "Gans", Category: "Fisch"}, testNow); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected category error, got %v", err)
	}
	if err := p.AddDish("d1", "Gudrun", DishFields{Name: "Gans"}, testNow); err != nil {
		t.Fatal(err)
	}
	if d, _ := p.Dish("d1"); d.Category != Hauptspeise {
		t.Fatalf("default category: %q", d.Category)
	}

	if !p.Vote("d1", "Pia") || p.Vote("d1", "Pia") {
		t.Fatalf("vote must be idempotent")
	}
	p.Vote("d1", "Emmy")
	if d, _ := p.Dish("d1"); !slices.Equal([]string(d.Votes), []string{"Emmy", "Pia"}) {
		t.Fatalf("votes: %v", d.Votes)
	}
	if !p.Unvote("d1", "Pia") || p.Unvote("d1", "Pia") {
		t.Fatalf("unvote must be idempotent")
	}

	if !p.Assign("2025-12-24", Hauptspeise, "d1") || p.Assign("2025-12-24", Hauptspeise, "d1") {
		t.Fatalf("assign must append once")
	}
	p.Assign("2025-12-25", Hauptspeise, "d1")
	if p.Assign("2025-12-25", Hauptspeise, "missing") {
		t.Fatalf("unknown dishes cannot be assigned")
	}
	if got := p.DishesOn("2025-12-24", Hauptspeise); len(got) != 1 || got[0].Name != "Gans" {
		t.Fatalf("dishes on: %+v", got)
	}

	if !p.DeleteDish("d1") {
		t.Fatalf("delete failed")
	}
	for date, day := range p.DayAssignments {
		for cat, ids := range day {
			if slices.Contains(ids, "d1") {
				t.Fatalf("deleted dish still assigned on %s/%s", date, cat)
			}
		}
	}
}

func TestAttendanceSubmitAndOverview(t *testing.T) {
	var p Planning
	p.SubmitAttendance("Lukas", map[string]DayStatus{
		"2025-12-24": {Present: true, WithPartner: true, Overnight: true},
		"2025-12-25": {Unsure: true, WithPartner: true, Overnight: true},
	}, "komme spät", testNow)
	p.SubmitAttendance("Pia", map[string]DayStatus{"2025-12-24": {Unsure: true}}, "", testNow)

	a := p.Attendance["Lukas"]
	if s := a.Days["2025-12-25"]; s.WithPartner || s.Overnight {
		t.Fatalf("partner/overnight must be cleared when not present: %+v", s)
	}

	p.SubmitAttendance("Lukas", map[string]DayStatus{"2025-12-26": {Present: true}}, "", testNow)
	if _, ok := p.Attendance["Lukas"].Days["2025-12-24"]; ok {
		t.Fatalf("submission must replace the previous record")
	}

	ov := p.AttendanceOverview([]string{"Lukas", "Pia", "Tim"}, []string{"2025-12-24", "2025-12-26"})
	if !slices.Equal(ov[0].Unsure, []string{"Pia"}) || !slices.Equal(ov[0].Absent, []string{"Lukas", "Tim"}) {
		t.Fatalf("day 1: %+v", ov[0])
	}
	if !slices.Equal(ov[1].Present, []string{"Lukas"}) {
		t.Fatalf("day 2: %+v", ov[1])
	}
}

func TestMigrateLegacyMeals(t *testing.T) {
	raw := `{"meals":{
		"2025-12-24":{"proposals":[{"name":"Raclette","proposed_by":"Pia","votes":["Tim"]},
		                            {"name":"Tiramisu","category":"Nachspeise","proposed_by":"Emmy"}]},
		"2025-12-25":{"proposals":[{"name":"raclette ","proposed_by":"Tim","votes":["Emmy","Tim"]}]}}}`
	var p Planning
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatal(err)
	}
	ids := seqIDs()
	changed, err := p.MigrateLegacyMeals(ids, testNow)
	if err != nil || !changed {
		t.Fatalf("migrate: %v %v", changed, err)
	}
	if len(p.MealProposals) != 2 {
		t.Fatalf("dishes should be deduplicated by name: %+v", p.MealProposals)
	}
	raclette := p.MealProposals[0]
	if !slices.Equal([]string(raclette.Votes), []string{"Emmy", "Tim"}) {
		t.Fatalf("votes not merged: %v", raclette.Votes)
	}
	if got := p.DayAssignments["2025-12-25"][Hauptspeise]; !slices.Equal(got, []string{raclette.ID}) {
		t.Fatalf("assignment: %v", got)
	}
	if got := p.DayAssignments["2025-12-24"][Nachspeise]; len(got) != 1 {
		t.Fatalf("dessert assignment: %v", got)
	}

	before, _ := json.Marshal(p)
	changed, err = p.MigrateLegacyMeals(ids, testNow.Add(time.Hour))
	after, _ := json.Marshal(p)
	if err != nil || changed || string(before) != string(after) {
		t.Fatalf("second migration must be a no-op")
	}
}

func TestAdventDoors(t *testing.T) {
	nov := time.Date(2025, 11, 30, 12, 0, 0, 0, time.UTC)
	dec5 := time.Date(2025, 12, 5, 8, 0, 0, 0, time.UTC)
	cases := []struct {
		door int
		now  time.Time
		ok   bool
	}{
		{1, nov, false},
		{1, dec5, true},
		{5, dec5, true},
		{6, dec5, false},
		{0, dec5, false},
		{25, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		if got := DoorOpenable(tc.door, tc.now); got != tc.ok {
			t.Errorf("door %d at %s: expected %v", tc.door, tc.now.Format(time.DateOnly), tc.ok)
		}
	}

	var p Planning
	if _, err := p.OpenDoor("Pia", 6, dec5); !errors.Is(err, ErrDoorLocked) {
		t.Fatalf("expected locked door, got %v", err)
	}
	if err := p.AddComment("Pia", 3, "Schön!", dec5); !errors.Is(err, ErrDoorNotOpened) {
		t.Fatalf("expected not opened, got %v", err)
	}
	if opened, err := p.OpenDoor("Pia", 3, dec5); !opened || err != nil {
		t.Fatalf("open: %v %v", opened, err)
	}
	if opened, _ := p.OpenDoor("Pia", 3, dec5); opened {
		t.Fatalf("opening twice should be a no-op")
	}
	long := make([]rune, MaxCommentLength+1)
	for i := range long {
		long[i] = 'ä'
	}
	if err := p.AddComment("Pia", 3, string(long), dec5); !errors.Is(err, ErrCommentTooLong) {
		t.Fatalf("expected too long, got %v", err)
	}
	if err := p.AddComment("Pia", 3, string(long[:MaxCommentLength]), dec5); err != nil {
		t.Fatalf("500 characters must be accepted: %v", err)
	}
	if got := p.Comments("Lukas", 3); got != nil {
		t.Fatalf("comments visible before opening: %+v", got)
	}
	if got := p.Comments("Pia", 3); len(got) != 1 {
		t.Fatalf("comments: %+v", got)
	}
}

func TestDoorImagesStable(t *testing.T) {
	names := make([]string, 30)
	for i := range names {
		names[i] = fmt.Sprintf("img%02d.jpg", i)
	}
	first := DoorImages(names)
	reversed := slices.Clone(names)
	slices.Reverse(reversed)
	second := DoorImages(reversed)
	if len(first) != AdventDoors {
		t.Fatalf("expected 24 doors, got %d", len(first))
	}
	for d := 1; d <= AdventDoors; d++ {
		if first[d] != second[d] {
			t.Fatalf("door %d differs: %s vs %s", d, first[d], second[d])
		}
	}
	if got := DoorImages(names[:23]); len(got) != 0 {
		t.Fatalf("fewer than 24 images must yield no mapping")
	}
}
