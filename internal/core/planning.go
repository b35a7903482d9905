package core

import (
	"encoding/json"
	"errors"
	"slices"
	"sort"
	"strings"
	"time"
)

// Category is the course a dish belongs to.
type Category string

const (
	Vorspeise   Category = "Vorspeise"
	Hauptspeise Category = "Hauptspeise"
	Nachspeise  Category = "Nachspeise"
	Snacks      Category = "Snacks"
)

// Categories lists the courses in menu order.
var Categories = []Category{Vorspeise, Hauptspeise, Nachspeise, Snacks}

var (
	ErrEmptyDishName   = errors.New("empty dish name")
	ErrInvalidCategory = errors.New("invalid category")
)

func (c Category) Valid() bool { return slices.Contains(Categories, c) }

// ParseCategory maps form input to a Category; empty input selects the
// main course.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Hauptspeise, nil
	}
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", ErrInvalidCategory
}

// UserSet is a sorted set of usernames, stored as a JSON array.
type UserSet []string

func (s UserSet) Has(user string) bool {
	_, found := slices.BinarySearch(s, user)
	return found
}

func (s *UserSet) Add(user string) bool {
	i, found := slices.BinarySearch(*s, user)
	if found {
		return false
	}
	*s = slices.Insert(*s, i, user)
	return true
}

func (s *UserSet) Remove(user string) bool {
	i, found := slices.BinarySearch(*s, user)
	if !found {
		return false
	}
	*s = slices.Delete(*s, i, i+1)
	return true
}

func (s *UserSet) UnmarshalJSON(b []byte) error {
	var users []string
	if err := json.Unmarshal(b, &users); err != nil {
		// older documents kept votes as {"user": true}
		var m map[string]bool
		if err2 := json.Unmarshal(b, &m); err2 != nil {
			return err
		}
		for u, v := range m {
			if v {
				users = append(users, u)
			}
		}
	}
	sort.Strings(users)
	*s = slices.Compact(users)
	return nil
}

type (
	Dish struct {
		ID          string     `json:"id"`
		Name        string     `json:"name"`
		Category    Category   `json:"category"`
		Description string     `json:"description,omitempty"`
		ProposedBy  string     `json:"proposed_by"`
		Responsible string     `json:"responsible,omitempty"`
		CreatedAt   *Timestamp `json:"created_at,omitempty"`
		Votes       UserSet    `json:"votes"`
	}

	DishFields struct {
		Name        string
		Category    Category
		Description string
		Responsible string
	}

	DayStatus struct {
		Present     bool `json:"present"`
		Unsure      bool `json:"unsure"`
		WithPartner bool `json:"with_partner"`
		Overnight   bool `json:"overnight"`
	}

	Attendance struct {
		Days      map[string]DayStatus `json:"days"`
		Notes     string               `json:"notes"`
		UpdatedAt *Timestamp           `json:"updated_at,omitempty"`
	}

	Comment struct {
		User      string    `json:"user"`
		Text      string    `json:"text"`
		Timestamp Timestamp `json:"timestamp"`
	}

	// Planning is the single shared document holding meals, attendance
	// and the advent calendar.
	Planning struct {
		MealProposals  []Dish                           `json:"meal_proposals"`
		DayAssignments map[string]map[Category][]string `json:"day_assignments"`
		Attendance     map[string]Attendance            `json:"attendance"`
		AdventDoors    map[string][]int                 `json:"advent_doors"`
		AdventComments map[string][]Comment             `json:"advent_comments"`
		LegacyMeals    json.RawMessage                  `json:"meals,omitempty"`
	}

	// DayOverview partitions users by their answer for one day.
	DayOverview struct {
		Date      string
		Present   []string
		Unsure    []string
		Absent    []string
		Partners  int
		Overnight int
	}
)

// Normalize fills nil containers so templates and callers can index freely.
func (p *Planning) Normalize() {
	if p.MealProposals == nil {
		p.MealProposals = []Dish{}
	}
	if p.DayAssignments == nil {
		p.DayAssignments = map[string]map[Category][]string{}
	}
	if p.Attendance == nil {
		p.Attendance = map[string]Attendance{}
	}
	if p.AdventDoors == nil {
		p.AdventDoors = map[string][]int{}
	}
	if p.AdventComments == nil {
		p.AdventComments = map[string][]Comment{}
	}
}

func (p *Planning) dishIndex(id string) int {
	return slices.IndexFunc(p.MealProposals, func(d Dish) bool { return d.ID == id })
}

// Dish looks up a proposal by id.
func (p *Planning) Dish(id string) (Dish, bool) {
	if i := p.dishIndex(id); i >= 0 {
		return p.MealProposals[i], true
	}
	return Dish{}, false
}

// AddDish proposes a new dish.
func (p *Planning) AddDish(id, user string, f DishFields, now time.Time) error {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return ErrEmptyDishName
	}
	if f.Category == "" {
		f.Category = Hauptspeise
	}
	if !f.Category.Valid() {
		return ErrInvalidCategory
	}
	p.Normalize()
	p.MealProposals = append(p.MealProposals, Dish{
		ID:          id,
		Name:        name,
		Category:    f.Category,
		Description: strings.TrimSpace(f.Description),
		ProposedBy:  user,
		Responsible: strings.TrimSpace(f.Responsible),
		CreatedAt:   NewTimestamp(now),
		Votes:       UserSet{},
	})
	return nil
}

// Vote adds user's vote to a dish.
func (p *Planning) Vote(dishID, user string) bool {
	i := p.dishIndex(dishID)
	if i < 0 {
		return false
	}
	return p.MealProposals[i].Votes.Add(user)
}

// Unvote withdraws user's vote.
func (p *Planning) Unvote(dishID, user string) bool {
	i := p.dishIndex(dishID)
	if i < 0 {
		return false
	}
	return p.MealProposals[i].Votes.Remove(user)
}

// Assign schedules a dish for a day and course.
func (p *Planning) Assign(date string, cat Category, dishID string) bool {
	if date == "" || !cat.Valid() || p.dishIndex(dishID) < 0 {
		return false
	}
	p.Normalize()
	day := p.DayAssignments[date]
	if day == nil {
		day = map[Category][]string{}
		p.DayAssignments[date] = day
	}
	if slices.Contains(day[cat], dishID) {
		return false
	}
	day[cat] = append(day[cat], dishID)
	return true
}

// Unassign removes a dish from a day and course.
func (p *Planning) Unassign(date string, cat Category, dishID string) bool {
	day := p.DayAssignments[date]
	i := slices.Index(day[cat], dishID)
	if i < 0 {
		return false
	}
	day[cat] = slices.Delete(day[cat], i, i+1)
	return true
}

// DeleteDish removes a proposal and every assignment of it.
func (p *Planning) DeleteDish(dishID string) bool {
	i := p.dishIndex(dishID)
	if i < 0 {
		return false
	}
	p.MealProposals = slices.Delete(p.MealProposals, i, i+1)
	for _, day := range p.DayAssignments {
		for cat, ids := range day {
			day[cat] = slices.DeleteFunc(ids, func(id string) bool { return id == dishID })
		}
	}
	return true
}

// DishesOn resolves the dishes assigned to a day and course.
func (p *Planning) DishesOn(date string, cat Category) []Dish {
	var out []Dish
	for _, id := range p.DayAssignments[date][cat] {
		if d, ok := p.Dish(id); ok {
			out = append(out, d)
		}
	}
	return out
}

// SubmitAttendance replaces the user's attendance record. Partner and
// overnight flags only make sense on days the user is present.
func (p *Planning) SubmitAttendance(user string, days map[string]DayStatus, notes string, now time.Time) {
	p.Normalize()
	normalized := make(map[string]DayStatus, len(days))
	for date, s := range days {
		if !s.Present {
			s.WithPartner = false
			s.Overnight = false
		}
		normalized[date] = s
	}
	p.Attendance[user] = Attendance{
		Days:      normalized,
		Notes:     strings.TrimSpace(notes),
		UpdatedAt: NewTimestamp(now),
	}
}

// AttendanceOverview partitions users for each day. Users without an
// answer for a day count as absent.
func (p *Planning) AttendanceOverview(users, days []string) []DayOverview {
	out := make([]DayOverview, 0, len(days))
	for _, date := range days {
		o := DayOverview{Date: date}
		for _, u := range users {
			s := p.Attendance[u].Days[date]
			switch {
			case s.Present:
				o.Present = append(o.Present, u)
				if s.WithPartner {
					o.Partners++
				}
				if s.Overnight {
					o.Overnight++
				}
			case s.Unsure:
				o.Unsure = append(o.Unsure, u)
			default:
				o.Absent = append(o.Absent, u)
			}
		}
		out = append(out, o)
	}
	return out
}
