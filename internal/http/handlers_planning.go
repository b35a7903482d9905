package http

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"wunschliste/internal/core"
	"wunschliste/internal/services"
)

var errUnknownDay = errors.New("unknown event day")

type (
	mealCourse struct {
		Category core.Category
		Dishes   []core.Dish
		// Options are the proposals that may still be assigned.
		Options []core.Dish
	}

	mealDay struct {
		Date    string
		Courses []mealCourse
	}

	mealsView struct {
		// Proposals grouped by course, most votes first.
		Proposals  []mealCourse
		Days       []mealDay
		Categories []core.Category
		Users      []string
	}
)

func (s *Server) handleMeals(w http.ResponseWriter, r *http.Request) {
	p := s.planning.Planning(r.Context())
	view := mealsView{Categories: core.Categories, Users: s.dir.Users()}

	byCourse := make(map[core.Category][]core.Dish, len(core.Categories))
	for _, d := range p.MealProposals {
		byCourse[d.Category] = append(byCourse[d.Category], d)
	}
	for _, c := range core.Categories {
		dishes := slices.Clone(byCourse[c])
		slices.SortStableFunc(dishes, func(a, b core.Dish) int { return len(b.Votes) - len(a.Votes) })
		view.Proposals = append(view.Proposals, mealCourse{Category: c, Dishes: dishes})
	}
	for _, date := range s.planning.Days() {
		day := mealDay{Date: date}
		for _, c := range core.Categories {
			assigned := p.DishesOn(date, c)
			var options []core.Dish
			for _, d := range byCourse[c] {
				if !slices.ContainsFunc(assigned, func(a core.Dish) bool { return a.ID == d.ID }) {
					options = append(options, d)
				}
			}
			day.Courses = append(day.Courses, mealCourse{Category: c, Dishes: assigned, Options: options})
		}
		view.Days = append(view.Days, day)
	}
	s.render(w, r, "meals", s.page(r, "Essensplanung", "meals", view))
}

func (s *Server) handleAddDish(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	f, err := parseDishForm(p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.planning.AddDish(r.Context(), currentUser(r), f); err != nil {
		s.fail(w, r, err)
		return
	}
	s.done(w, r, "/meals", NewHTMXResponse().
		TriggerPlanningChanged("meals").
		TriggerFormReset().
		TriggerSuccessNotification("Gericht vorgeschlagen"))
}

// dishAction runs fn for the {id} dish and returns to the meals page.
func (s *Server) dishAction(w http.ResponseWriter, r *http.Request, fn func(user, id string) (bool, error)) {
	if _, err := fn(currentUser(r), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	s.done(w, r, "/meals", NewHTMXResponse().TriggerPlanningChanged("meals"))
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	s.dishAction(w, r, func(user, id string) (bool, error) {
		return s.planning.Vote(r.Context(), user, id)
	})
}

func (s *Server) handleUnvote(w http.ResponseWriter, r *http.Request) {
	s.dishAction(w, r, func(user, id string) (bool, error) {
		return s.planning.Unvote(r.Context(), user, id)
	})
}

// handleDeleteDish lets any user remove a proposal; the family plans
// together and there is no owner check on dishes.
func (s *Server) handleDeleteDish(w http.ResponseWriter, r *http.Request) {
	s.dishAction(w, r, func(_, id string) (bool, error) {
		return s.planning.DeleteDish(r.Context(), id)
	})
}

// assignment reads date, category and dish_id, checking the date is one
// of the event days.
func (s *Server) assignment(p *RequestBodyParser) (string, core.Category, string, error) {
	date := p.Get("date")
	if !slices.Contains(s.planning.Days(), date) {
		return "", "", "", errUnknownDay
	}
	return date, core.Category(p.Get("category")), p.Get("dish_id"), nil
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	s.assignAction(w, r, s.planning.Assign)
}

func (s *Server) handleUnassign(w http.ResponseWriter, r *http.Request) {
	s.assignAction(w, r, s.planning.Unassign)
}

func (s *Server) assignAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, date string, cat core.Category, dishID string) (bool, error)) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	date, cat, dishID, err := s.assignment(p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := fn(r.Context(), date, cat, dishID); err != nil {
		s.fail(w, r, err)
		return
	}
	s.done(w, r, "/meals#day-"+date, NewHTMXResponse().TriggerPlanningChanged("meals"))
}

type attendanceView struct {
	Days     []string
	Mine     core.Attendance
	Overview []core.DayOverview
}

func (s *Server) handleAttendance(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	p := s.planning.Planning(r.Context())
	view := attendanceView{
		Days:     s.planning.Days(),
		Mine:     p.Attendance[user],
		Overview: s.planning.AttendanceOverview(r.Context()),
	}
	s.render(w, r, "attendance", s.page(r, "Wer kommt?", "attendance", view))
}

func (s *Server) handleSubmitAttendance(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	days := parseAttendance(p, s.planning.Days())
	if err := s.planning.SubmitAttendance(r.Context(), currentUser(r), days, p.Get("notes")); err != nil {
		s.fail(w, r, err)
		return
	}
	s.done(w, r, "/attendance", NewHTMXResponse().
		TriggerPlanningChanged("attendance").
		TriggerSuccessNotification("Danke für deine Rückmeldung"))
}

type adventView struct {
	Doors []services.AdventDoor
}

func (s *Server) handleAdvent(w http.ResponseWriter, r *http.Request) {
	doors := s.planning.AdventCalendar(r.Context(), currentUser(r), s.doorImages(r))
	s.render(w, r, "advent", s.page(r, "Adventskalender", "advent", adventView{Doors: doors}))
}

func (s *Server) handleOpenDoor(w http.ResponseWriter, r *http.Request) {
	d, err := pathDoor(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.planning.OpenDoor(r.Context(), currentUser(r), d); err != nil {
		s.fail(w, r, err)
		return
	}
	s.done(w, r, "/advent#door-"+strconv.Itoa(d), NewHTMXResponse().TriggerPlanningChanged("advent"))
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	d, err := pathDoor(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	if err := s.planning.AddComment(r.Context(), currentUser(r), d, p.Get("text")); err != nil {
		s.fail(w, r, err)
		return
	}
	s.done(w, r, "/advent#door-"+strconv.Itoa(d), NewHTMXResponse().
		TriggerPlanningChanged("advent").
		TriggerFormReset())
}

// handleDoorImage serves the picture behind a door the user has opened.
func (s *Server) handleDoorImage(w http.ResponseWriter, r *http.Request) {
	d, err := pathDoor(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	p := s.planning.Planning(r.Context())
	name := s.doorImages(r)[d]
	if name == "" || !p.HasOpened(currentUser(r), d) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=86400")
	http.ServeFile(w, r, filepath.Join(s.adventDir, name))
}

var adventExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// doorImages maps doors to the pictures in the advent directory. A missing
// directory yields no pictures.
func (s *Server) doorImages(r *http.Request) map[int]string {
	if s.adventDir == "" {
		return map[int]string{}
	}
	entries, err := os.ReadDir(s.adventDir)
	if err != nil {
		s.log.DebugContext(r.Context(), "Advent images unavailable", "dir", s.adventDir, "error", err)
		return map[int]string{}
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(adventExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			names = append(names, e.Name())
		}
	}
	return core.DoorImages(names)
}
