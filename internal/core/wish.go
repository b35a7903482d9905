package core

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Kind discriminates the two record variants stored in the wish list.
type Kind string

const (
	KindWish       Kind = "wish"
	KindSuggestion Kind = "suggestion"
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyName        = errors.New("empty wish name")
	ErrEmptyDescription = errors.New("empty description")
	ErrImagesRequired   = errors.New("images required when others can buy")
	ErrSelfSuggestion   = errors.New("suggestion target must be another user")
	ErrUnknownUser      = errors.New("unknown user")
)

type (
	// Image is an inline, base64 encoded picture attached to a record.
	Image struct {
		Data string `json:"data"`
		Type string `json:"type"`
	}

	// WishItem is a single record of the shared list. Wishes belong to
	// OwnerUser; suggestions are written by SuggestedBy for SuggestedFor and
	// are never shown to SuggestedFor.
	WishItem struct {
		ID                string
		Kind              Kind
		OwnerUser         string
		SuggestedBy       string
		SuggestedFor      string
		WishName          string
		Description       string
		Link              string
		Price             *Money
		ActualPrice       *Money
		Note              string
		Color             string
		Images            []Image
		BuySelf           bool
		OthersCanBuy      bool
		ResponsiblePerson string
		ClaimedBy         string
		ClaimedAt         *Timestamp
		Purchased         bool
		Reimbursed        *bool
	}

	// WishFields carries the user editable part of a wish or suggestion.
	WishFields struct {
		WishName          string
		Description       string
		Link              string
		Price             *Money
		Note              string
		Color             string
		OthersCanBuy      bool
		ResponsiblePerson string
		Images            []Image
	}
)

// Recipient is the user the gift is meant for.
func (w WishItem) Recipient() string {
	if w.Kind == KindSuggestion {
		return w.SuggestedFor
	}
	return w.OwnerUser
}

// Author is the user allowed to edit or delete the record.
func (w WishItem) Author() string {
	if w.Kind == KindSuggestion {
		return w.SuggestedBy
	}
	return w.OwnerUser
}

func (w WishItem) IsClaimed() bool { return w.ClaimedBy != "" }

// IsReimbursed reports the reimbursement flag, treating absent as false.
func (w WishItem) IsReimbursed() bool { return w.Reimbursed != nil && *w.Reimbursed }

// Cost is what a purchased item cost the claimer: the actual price when
// recorded, otherwise the estimate.
func (w WishItem) Cost() Money {
	if w.ActualPrice != nil {
		return *w.ActualPrice
	}
	if w.Price != nil {
		return *w.Price
	}
	return Money{}
}

// BudgetWeight is the amount a wish counts against its owner's budget.
func (w WishItem) BudgetWeight() Money {
	if w.Purchased && w.ActualPrice != nil {
		return *w.ActualPrice
	}
	if w.Price != nil {
		return *w.Price
	}
	return Money{}
}

func (f WishFields) Validate() error {
	if strings.TrimSpace(f.WishName) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(f.Description) == "" {
		return ErrEmptyDescription
	}
	if f.Price != nil && f.Price.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Decode returns the raw image bytes.
func (i Image) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(i.Data)
}

// NewImage encodes raw bytes as an inline image.
func NewImage(data []byte, mime string) Image {
	return Image{Data: base64.StdEncoding.EncodeToString(data), Type: mime}
}

// UnmarshalJSON accepts the {data, type} object as well as the legacy
// plain string form (either a data URL or bare base64).
func (i *Image) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*i = legacyImage(s)
		return nil
	}
	type plain Image
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*i = Image(p)
	return nil
}

func legacyImage(s string) Image {
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		if meta, data, found := strings.Cut(rest, ","); found {
			mime := strings.TrimSuffix(meta, ";base64")
			return Image{Data: data, Type: mime}
		}
	}
	return Image{Data: s, Type: "image/jpeg"}
}

// wishJSON is the stored representation of a WishItem.
type wishJSON struct {
	ID                string     `json:"id"`
	Type              Kind       `json:"type,omitempty"`
	OwnerUser         string     `json:"owner_user,omitempty"`
	SuggestedBy       string     `json:"suggested_by,omitempty"`
	SuggestedFor      string     `json:"suggested_for,omitempty"`
	WishName          string     `json:"wish_name"`
	Description       string     `json:"description"`
	Link              string     `json:"link,omitempty"`
	Price             *Money     `json:"price,omitempty"`
	ActualPrice       *Money     `json:"actual_price,omitempty"`
	Note              string     `json:"note,omitempty"`
	Color             string     `json:"color,omitempty"`
	Images            []Image    `json:"images"`
	BuySelf           bool       `json:"buy_self"`
	OthersCanBuy      bool       `json:"others_can_buy"`
	ResponsiblePerson string     `json:"responsible_person,omitempty"`
	ClaimedBy         *string    `json:"claimed_by"`
	ClaimedAt         *Timestamp `json:"claimed_at,omitempty"`
	Purchased         bool       `json:"purchased"`
	Reimbursed        *bool      `json:"reimbursed,omitempty"`
}

func (w WishItem) MarshalJSON() ([]byte, error) {
	j := wishJSON{
		ID:                w.ID,
		Type:              w.Kind,
		OwnerUser:         w.OwnerUser,
		SuggestedBy:       w.SuggestedBy,
		SuggestedFor:      w.SuggestedFor,
		WishName:          w.WishName,
		Description:       w.Description,
		Link:              w.Link,
		Price:             w.Price,
		ActualPrice:       w.ActualPrice,
		Note:              w.Note,
		Color:             w.Color,
		Images:            w.Images,
		BuySelf:           w.BuySelf,
		OthersCanBuy:      w.OthersCanBuy,
		ResponsiblePerson: w.ResponsiblePerson,
		ClaimedAt:         w.ClaimedAt,
		Purchased:         w.Purchased,
		Reimbursed:        w.Reimbursed,
	}
	if j.Type == "" {
		j.Type = KindWish
	}
	if j.Images == nil {
		j.Images = []Image{}
	}
	if w.ClaimedBy != "" {
		claimer := w.ClaimedBy
		j.ClaimedBy = &claimer
	}
	// Names and descriptions keep &, < and > as typed.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(j); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (w *WishItem) UnmarshalJSON(b []byte) error {
	var j wishJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	*w = WishItem{
		ID:                j.ID,
		Kind:              j.Type,
		OwnerUser:         j.OwnerUser,
		SuggestedBy:       j.SuggestedBy,
		SuggestedFor:      j.SuggestedFor,
		WishName:          j.WishName,
		Description:       j.Description,
		Link:              j.Link,
		Price:             j.Price,
		ActualPrice:       j.ActualPrice,
		Note:              j.Note,
		Color:             j.Color,
		Images:            j.Images,
		BuySelf:           j.BuySelf,
		OthersCanBuy:      j.OthersCanBuy,
		ResponsiblePerson: j.ResponsiblePerson,
		ClaimedAt:         j.ClaimedAt,
		Purchased:         j.Purchased,
		Reimbursed:        j.Reimbursed,
	}
	if w.Kind != KindSuggestion {
		w.Kind = KindWish
	}
	if j.ClaimedBy != nil {
		w.ClaimedBy = *j.ClaimedBy
	}
	return nil
}

// Timestamp is a point in time that also reads the naive ISO format
// ("2024-12-01T10:00:00.123456") written by older versions of the list.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Time: t.UTC().Truncate(time.Microsecond)}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return errors.New("invalid timestamp: " + s)
}
