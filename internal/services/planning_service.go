package services

import (
	"context"
	"log/slog"
	"sync"

	"wunschliste/internal/core"
	applog "wunschliste/internal/log"
	"wunschliste/internal/metrics"
	"wunschliste/internal/storage"
)

// PlanningService owns the shared planning document: meals, attendance and
// the advent calendar.
type PlanningService struct {
	mu      sync.Mutex
	store   storage.PlanningStore
	users   []string
	days    []string
	metrics *metrics.Metrics
	opts    options
}

// AdventDoor is one door as seen by a single user.
type AdventDoor struct {
	Number   int
	Openable bool
	Opened   bool
	Image    string
	Comments []core.Comment
}

func NewPlanningService(store storage.PlanningStore, users, days []string, m *metrics.Metrics, opts ...Option) *PlanningService {
	return &PlanningService{
		store:   store,
		users:   users,
		days:    days,
		metrics: m,
		opts:    buildOptions(opts),
	}
}

// Days returns the event days attendance and meals are planned for.
func (s *PlanningService) Days() []string { return s.days }

// Users returns every known user.
func (s *PlanningService) Users() []string { return s.users }

// load reads the document, folding in the legacy meal layout on the way.
// A migrated document is written back immediately.
func (s *PlanningService) load(ctx context.Context) core.Planning {
	p, err := s.store.LoadPlanning(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load planning, using empty document", "error", err)
		p = core.Planning{}
	}
	p.Normalize()

	migrated, err := p.MigrateLegacyMeals(s.opts.newID, s.opts.now())
	if err != nil {
		slog.WarnContext(ctx, "Legacy meal data could not be migrated", "error", err)
		return p
	}
	if migrated {
		slog.InfoContext(ctx, "Migrated legacy meal proposals",
			applog.FieldComponent, applog.ComponentPlanning,
			"dishes", len(p.MealProposals))
		if err := s.store.SavePlanning(ctx, p); err != nil {
			slog.WarnContext(ctx, "Failed to save migrated planning", "error", err)
		}
	}
	return p
}

func (s *PlanningService) mutate(ctx context.Context, op string, fn func(*core.Planning) (bool, error)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.load(ctx)
	changed, err := fn(&p)
	if err != nil {
		s.metrics.Operation(op, metrics.OutcomeInvalid)
		slog.InfoContext(ctx, "Planning operation rejected", applog.FieldOperation, op, applog.FieldError, err)
		return false, err
	}
	if !changed {
		s.metrics.Operation(op, metrics.OutcomeNoop)
		return false, nil
	}
	if err := s.store.SavePlanning(ctx, p); err != nil {
		slog.WarnContext(ctx, "Failed to save planning", applog.FieldOperation, op, applog.FieldError, err)
	}
	s.metrics.Operation(op, metrics.OutcomeChanged)
	return true, nil
}

// Planning returns the current document.
func (s *PlanningService) Planning(ctx context.Context) core.Planning {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *PlanningService) AddDish(ctx context.Context, user string, f core.DishFields) (core.Dish, error) {
	id := s.opts.newID()
	now := s.opts.now()
	var added core.Dish
	_, err := s.mutate(ctx, "add_dish", func(p *core.Planning) (bool, error) {
		if err := p.AddDish(id, user, f, now); err != nil {
			return false, err
		}
		added, _ = p.Dish(id)
		return true, nil
	})
	return added, err
}

func (s *PlanningService) Vote(ctx context.Context, user, dishID string) (bool, error) {
	return s.mutate(ctx, "vote", func(p *core.Planning) (bool, error) {
		return p.Vote(dishID, user), nil
	})
}

func (s *PlanningService) Unvote(ctx context.Context, user, dishID string) (bool, error) {
	return s.mutate(ctx, "unvote", func(p *core.Planning) (bool, error) {
		return p.Unvote(dishID, user), nil
	})
}

func (s *PlanningService) DeleteDish(ctx context.Context, dishID string) (bool, error) {
	return s.mutate(ctx, "delete_dish", func(p *core.Planning) (bool, error) {
		return p.DeleteDish(dishID), nil
	})
}

func (s *PlanningService) Assign(ctx context.Context, date string, cat core.Category, dishID string) (bool, error) {
	return s.mutate(ctx, "assign", func(p *core.Planning) (bool, error) {
		if !cat.Valid() {
			return false, core.ErrInvalidCategory
		}
		return p.Assign(date, cat, dishID), nil
	})
}

func (s *PlanningService) Unassign(ctx context.Context, date string, cat core.Category, dishID string) (bool, error) {
	return s.mutate(ctx, "unassign", func(p *core.Planning) (bool, error) {
		return p.Unassign(date, cat, dishID), nil
	})
}

// SubmitAttendance replaces user's attendance record.
func (s *PlanningService) SubmitAttendance(ctx context.Context, user string, days map[string]core.DayStatus, notes string) error {
	now := s.opts.now()
	_, err := s.mutate(ctx, "attendance", func(p *core.Planning) (bool, error) {
		p.SubmitAttendance(user, days, notes, now)
		return true, nil
	})
	return err
}

// AttendanceOverview partitions all users for every event day.
func (s *PlanningService) AttendanceOverview(ctx context.Context) []core.DayOverview {
	p := s.Planning(ctx)
	return p.AttendanceOverview(s.users, s.days)
}

func (s *PlanningService) OpenDoor(ctx context.Context, user string, door int) (bool, error) {
	now := s.opts.now()
	return s.mutate(ctx, "open_door", func(p *core.Planning) (bool, error) {
		return p.OpenDoor(user, door, now)
	})
}

func (s *PlanningService) AddComment(ctx context.Context, user string, door int, text string) error {
	now := s.opts.now()
	_, err := s.mutate(ctx, "comment", func(p *core.Planning) (bool, error) {
		if err := p.AddComment(user, door, text, now); err != nil {
			return false, err
		}
		return true, nil
	})
	return err
}

// AdventCalendar returns all doors for user. images maps door numbers to
// picture names and may be empty.
func (s *PlanningService) AdventCalendar(ctx context.Context, user string, images map[int]string) []AdventDoor {
	p := s.Planning(ctx)
	now := s.opts.now()
	doors := make([]AdventDoor, 0, core.AdventDoors)
	for d := 1; d <= core.AdventDoors; d++ {
		door := AdventDoor{
			Number:   d,
			Openable: core.DoorOpenable(d, now),
			Opened:   p.HasOpened(user, d),
		}
		if door.Opened {
			door.Image = images[d]
			door.Comments = p.Comments(user, d)
		}
		doors = append(doors, door)
	}
	return doors
}
