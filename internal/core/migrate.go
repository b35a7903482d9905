package core

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// legacyDay is the per-day meal structure used before dishes became a
// shared proposal list.
type legacyDay struct {
	Proposals []legacyProposal `json:"proposals"`
}

type legacyProposal struct {
	Name        string   `json:"name"`
	Dish        string   `json:"dish"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	ProposedBy  string   `json:"proposed_by"`
	User        string   `json:"user"`
	Responsible string   `json:"responsible"`
	Votes       UserSet  `json:"votes"`
	Voters      []string `json:"voters"`
}

func (lp legacyProposal) name() string {
	if n := strings.TrimSpace(lp.Name); n != "" {
		return n
	}
	return strings.TrimSpace(lp.Dish)
}

func dishKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MigrateLegacyMeals folds the old per-day proposals into the shared
// proposal list and day assignments. Dishes proposed on several days are
// merged by name. Running it again is a no-op.
func (p *Planning) MigrateLegacyMeals(newID func() string, now time.Time) (bool, error) {
	if len(p.LegacyMeals) == 0 || string(p.LegacyMeals) == "null" {
		p.LegacyMeals = nil
		return false, nil
	}
	var days map[string]legacyDay
	if err := json.Unmarshal(p.LegacyMeals, &days); err != nil {
		return false, err
	}
	p.Normalize()

	byName := map[string]int{}
	for i, d := range p.MealProposals {
		byName[dishKey(d.Name)] = i
	}

	dates := make([]string, 0, len(days))
	for date := range days {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	for _, date := range dates {
		for _, lp := range days[date].Proposals {
			name := lp.name()
			if name == "" {
				continue
			}
			cat, err := ParseCategory(lp.Category)
			if err != nil {
				cat = Hauptspeise
			}
			i, ok := byName[dishKey(name)]
			if !ok {
				proposer := lp.ProposedBy
				if proposer == "" {
					proposer = lp.User
				}
				p.MealProposals = append(p.MealProposals, Dish{
					ID:          newID(),
					Name:        name,
					Category:    cat,
					Description: lp.Description,
					ProposedBy:  proposer,
					Responsible: lp.Responsible,
					CreatedAt:   NewTimestamp(now),
					Votes:       UserSet{},
				})
				i = len(p.MealProposals) - 1
				byName[dishKey(name)] = i
			}
			for _, v := range append(lp.Votes, lp.Voters...) {
				p.MealProposals[i].Votes.Add(v)
			}
			p.Assign(date, p.MealProposals[i].Category, p.MealProposals[i].ID)
		}
	}
	p.LegacyMeals = nil
	return true, nil
}
