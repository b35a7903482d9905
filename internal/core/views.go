package core

import "sort"

// OwnerGroup is a set of records sharing one recipient.
type OwnerGroup struct {
	Owner string
	Items []WishItem
}

// ClaimedView splits the records a user claimed by purchase state.
type ClaimedView struct {
	Open      []WishItem
	Purchased []WishItem
}

// ExpenseSummary aggregates the purchases a user paid for.
type ExpenseSummary struct {
	User        string
	Items       []WishItem
	Total       Money
	Reimbursed  Money
	Outstanding Money
}

func (l Wishlist) filter(keep func(WishItem) bool) []WishItem {
	var out []WishItem
	for _, w := range l {
		if keep(w) {
			out = append(out, w)
		}
	}
	return out
}

// Mine lists the user's own wishes.
func (l Wishlist) Mine(user string) []WishItem {
	return l.filter(func(w WishItem) bool { return w.Kind == KindWish && w.OwnerUser == user })
}

// OthersClaimable lists other users' wishes that may be bought by others,
// grouped by owner in name order.
func (l Wishlist) OthersClaimable(user string) []OwnerGroup {
	return groupBy(l.filter(func(w WishItem) bool {
		return w.Kind == KindWish && w.OwnerUser != user && w.OthersCanBuy
	}), WishItem.Recipient)
}

// SuggestionsVisibleTo lists suggestions the user may see, grouped by
// recipient. Suggestions for the user are never included.
func (l Wishlist) SuggestionsVisibleTo(user string) []OwnerGroup {
	return groupBy(l.filter(func(w WishItem) bool {
		return w.Kind == KindSuggestion && w.SuggestedFor != user
	}), WishItem.Recipient)
}

// MySuggestions lists the suggestions the user wrote.
func (l Wishlist) MySuggestions(user string) []WishItem {
	return l.filter(func(w WishItem) bool { return w.Kind == KindSuggestion && w.SuggestedBy == user })
}

// MyClaimed lists what the user has claimed.
func (l Wishlist) MyClaimed(user string) ClaimedView {
	var v ClaimedView
	for _, w := range l {
		if w.ClaimedBy != user {
			continue
		}
		if w.Purchased {
			v.Purchased = append(v.Purchased, w)
		} else {
			v.Open = append(v.Open, w)
		}
	}
	return v
}

// ExpertTasks lists records naming the user as responsible person, except
// those the user would receive.
func (l Wishlist) ExpertTasks(user string) []WishItem {
	return l.filter(func(w WishItem) bool { return w.ResponsiblePerson == user && w.Recipient() != user })
}

// Expenses summarises the purchases user made.
func (l Wishlist) Expenses(user string) ExpenseSummary {
	return summarize(user, l.filter(func(w WishItem) bool {
		return w.ClaimedBy == user && w.Purchased
	}))
}

// AdminExpenses summarises every other user's purchases for viewer,
// leaving out records meant for viewer so the admin does not learn who
// bought their own gifts. Users without purchases are omitted.
func (l Wishlist) AdminExpenses(viewer string, users []string) []ExpenseSummary {
	var out []ExpenseSummary
	for _, u := range users {
		if u == viewer {
			continue
		}
		s := summarize(u, l.filter(func(w WishItem) bool {
			return w.ClaimedBy == u && w.Purchased && w.Recipient() != viewer
		}))
		if len(s.Items) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func summarize(user string, items []WishItem) ExpenseSummary {
	s := ExpenseSummary{User: user, Items: items}
	for _, w := range items {
		cost := w.Cost()
		s.Total = s.Total.Add(cost)
		if w.IsReimbursed() {
			s.Reimbursed = s.Reimbursed.Add(cost)
		} else {
			s.Outstanding = s.Outstanding.Add(cost)
		}
	}
	return s
}

func groupBy(items []WishItem, key func(WishItem) string) []OwnerGroup {
	idx := map[string]int{}
	var groups []OwnerGroup
	for _, w := range items {
		k := key(w)
		i, ok := idx[k]
		if !ok {
			i = len(groups)
			idx[k] = i
			groups = append(groups, OwnerGroup{Owner: k})
		}
		groups[i].Items = append(groups[i].Items, w)
	}
	sort.SliceStable(groups, func(a, b int) bool { return groups[a].Owner < groups[b].Owner })
	return groups
}
