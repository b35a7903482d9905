package core

import (
	"errors"
	"fmt"
	"time"
)

// BudgetLimit caps the total of a user's own wishes.
var BudgetLimit = Money{Cents: 150000}

var ErrBudgetExceeded = errors.New("budget exceeded")

// BudgetError reports how much of the budget is left when a new wish does
// not fit.
type BudgetError struct {
	Limit     Money
	Used      Money
	Remaining Money
	Requested Money
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("budget exceeded: requested %s, remaining %s of %s", e.Requested, e.Remaining, e.Limit)
}

func (e *BudgetError) Unwrap() error { return ErrBudgetExceeded }

// Wishlist is the whole stored collection. Mutating methods return whether
// anything changed; callers persist only when it did. Operations on records
// the caller does not own are silent no-ops.
type Wishlist []WishItem

func (l Wishlist) index(match func(WishItem) bool) int {
	for i, w := range l {
		if match(w) {
			return i
		}
	}
	return -1
}

// Get returns the record with the given id.
func (l Wishlist) Get(id string) (WishItem, bool) {
	if i := l.index(func(w WishItem) bool { return w.ID == id }); i >= 0 {
		return l[i], true
	}
	return WishItem{}, false
}

// BudgetUsed sums the budget weight of every wish owned by user.
func (l Wishlist) BudgetUsed(user string) Money {
	var used Money
	for _, w := range l {
		if w.Kind == KindWish && w.OwnerUser == user {
			used = used.Add(w.BudgetWeight())
		}
	}
	return used
}

// BudgetRemaining is the headroom left for user.
func (l Wishlist) BudgetRemaining(user string) Money {
	return BudgetLimit.Sub(l.BudgetUsed(user))
}

// CheckBudget returns a *BudgetError when adding price would push user over
// the limit.
func (l Wishlist) CheckBudget(user string, price *Money) error {
	if price == nil {
		return nil
	}
	used := l.BudgetUsed(user)
	if used.Add(*price).Cents > BudgetLimit.Cents {
		return &BudgetError{
			Limit:     BudgetLimit,
			Used:      used,
			Remaining: BudgetLimit.Sub(used),
			Requested: *price,
		}
	}
	return nil
}

// AddWish appends a new wish owned by owner.
func (l *Wishlist) AddWish(id, owner string, f WishFields) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if f.OthersCanBuy && len(f.Images) == 0 {
		return ErrImagesRequired
	}
	if err := l.CheckBudget(owner, f.Price); err != nil {
		return err
	}
	w := WishItem{ID: id, Kind: KindWish, OwnerUser: owner}
	w.apply(f, true)
	*l = append(*l, w)
	return nil
}

// UpdateWish merges f into the owner's wish. Stored images are replaced
// only when f carries new ones. Raising the price is held to the budget.
func (l Wishlist) UpdateWish(owner, id string, f WishFields) (bool, error) {
	if err := f.Validate(); err != nil {
		return false, err
	}
	i := l.index(func(w WishItem) bool {
		return w.ID == id && w.Kind == KindWish && w.OwnerUser == owner
	})
	if i < 0 {
		return false, nil
	}
	if f.OthersCanBuy && len(f.Images) == 0 && len(l[i].Images) == 0 {
		return false, ErrImagesRequired
	}
	updated := l[i]
	updated.apply(f, len(f.Images) > 0)
	if err := l.checkReweight(owner, l[i].BudgetWeight(), updated.BudgetWeight()); err != nil {
		return false, err
	}
	l[i] = updated
	return true, nil
}

// checkReweight rejects an edit that raises a wish's weight past the
// owner's limit. The wish's current weight does not count against it.
func (l Wishlist) checkReweight(owner string, before, after Money) error {
	if after.Cents <= before.Cents {
		return nil
	}
	used := l.BudgetUsed(owner).Sub(before)
	if used.Add(after).Cents > BudgetLimit.Cents {
		return &BudgetError{
			Limit:     BudgetLimit,
			Used:      used,
			Remaining: BudgetLimit.Sub(used),
			Requested: after,
		}
	}
	return nil
}

// DeleteWish removes the owner's wish.
func (l *Wishlist) DeleteWish(owner, id string) bool {
	return l.remove(func(w WishItem) bool {
		return w.ID == id && w.Kind == KindWish && w.OwnerUser == owner
	})
}

// AddSuggestion records a gift idea by author for target.
func (l *Wishlist) AddSuggestion(id, author, target string, f WishFields) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if target == "" || target == author {
		return ErrSelfSuggestion
	}
	w := WishItem{ID: id, Kind: KindSuggestion, SuggestedBy: author, SuggestedFor: target}
	f.OthersCanBuy = true
	w.apply(f, true)
	*l = append(*l, w)
	return nil
}

// UpdateSuggestion merges f into a suggestion written by author.
func (l Wishlist) UpdateSuggestion(author, id string, f WishFields) (bool, error) {
	if err := f.Validate(); err != nil {
		return false, err
	}
	i := l.index(func(w WishItem) bool {
		return w.ID == id && w.Kind == KindSuggestion && w.SuggestedBy == author
	})
	if i < 0 {
		return false, nil
	}
	f.OthersCanBuy = true
	l[i].apply(f, len(f.Images) > 0)
	return true, nil
}

// DeleteSuggestion removes a suggestion written by author.
func (l *Wishlist) DeleteSuggestion(author, id string) bool {
	return l.remove(func(w WishItem) bool {
		return w.ID == id && w.Kind == KindSuggestion && w.SuggestedBy == author
	})
}

// Claim reserves the first unclaimed record with id for user. Recipients
// cannot claim their own gifts.
func (l Wishlist) Claim(user, id string, now time.Time) bool {
	i := l.index(func(w WishItem) bool { return w.ID == id && !w.IsClaimed() })
	if i < 0 || l[i].Recipient() == user {
		return false
	}
	l[i].ClaimedBy = user
	l[i].ClaimedAt = NewTimestamp(now)
	return true
}

// Unclaim releases a claim that has not been purchased yet.
func (l Wishlist) Unclaim(user, id string) bool {
	i := l.claimedBy(user, id)
	if i < 0 || l[i].Purchased {
		return false
	}
	l[i].ClaimedBy = ""
	l[i].ClaimedAt = nil
	return true
}

// MarkPurchased flags the claimer's record as bought.
func (l Wishlist) MarkPurchased(user, id string, actual *Money) bool {
	i := l.claimedBy(user, id)
	if i < 0 {
		return false
	}
	l[i].Purchased = true
	if actual != nil {
		price := *actual
		l[i].ActualPrice = &price
	}
	if l[i].Reimbursed == nil {
		reimbursed := false
		l[i].Reimbursed = &reimbursed
	}
	return true
}

// MarkUnpurchased reverts a purchase, dropping its actual price and
// reimbursement state.
func (l Wishlist) MarkUnpurchased(user, id string) bool {
	i := l.claimedBy(user, id)
	if i < 0 || !l[i].Purchased {
		return false
	}
	l[i].Purchased = false
	l[i].ActualPrice = nil
	l[i].Reimbursed = nil
	return true
}

// MarkReimbursed sets the reimbursement flag on a purchased record.
func (l Wishlist) MarkReimbursed(user, id string, reimbursed bool) bool {
	i := l.claimedBy(user, id)
	if i < 0 || !l[i].Purchased {
		return false
	}
	l[i].Reimbursed = &reimbursed
	return true
}

func (l Wishlist) claimedBy(user, id string) int {
	return l.index(func(w WishItem) bool { return w.ID == id && w.ClaimedBy == user })
}

func (l *Wishlist) remove(match func(WishItem) bool) bool {
	kept := (*l)[:0:0]
	for _, w := range *l {
		if !match(w) {
			kept = append(kept, w)
		}
	}
	if len(kept) == len(*l) {
		return false
	}
	*l = kept
	return true
}

func (w *WishItem) apply(f WishFields, replaceImages bool) {
	w.WishName = f.WishName
	w.Description = f.Description
	w.Link = f.Link
	w.Price = f.Price
	w.Note = f.Note
	w.Color = f.Color
	w.ResponsiblePerson = f.ResponsiblePerson
	w.OthersCanBuy = f.OthersCanBuy
	w.BuySelf = !f.OthersCanBuy
	if replaceImages {
		w.Images = f.Images
	}
}
