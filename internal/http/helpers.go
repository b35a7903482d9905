package http

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"wunschliste/internal/core"
	"wunschliste/internal/imaging"
)

var german = message.NewPrinter(language.German)

// formatEuros renders an amount the German way, e.g. "1.234,50 €".
func formatEuros(m core.Money) string {
	return german.Sprintf("%.2f €", m.Euros())
}

// formatPrice renders an optional price; nil prints as a dash.
func formatPrice(m *core.Money) string {
	if m == nil {
		return "–"
	}
	return formatEuros(*m)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// validationMessages maps domain errors to what the user reads.
var validationMessages = []struct {
	err error
	msg string
}{
	{core.ErrEmptyName, "Bitte einen Namen für den Wunsch angeben."},
	{core.ErrEmptyDescription, "Bitte eine Beschreibung angeben."},
	{core.ErrInvalidAmount, "Der Preis ist ungültig."},
	{core.ErrImagesRequired, "Wenn andere den Wunsch kaufen dürfen, braucht er mindestens ein Bild."},
	{core.ErrSelfSuggestion, "Vorschläge sind nur für andere Personen möglich."},
	{core.ErrUnknownUser, "Unbekannte Person."},
	{errUnknownDay, "Diesen Tag gibt es nicht."},
	{core.ErrEmptyDishName, "Bitte einen Namen für das Gericht angeben."},
	{core.ErrInvalidCategory, "Unbekannte Kategorie."},
	{core.ErrInvalidDoor, "Dieses Türchen gibt es nicht."},
	{core.ErrDoorLocked, "Dieses Türchen darf noch nicht geöffnet werden."},
	{core.ErrDoorNotOpened, "Erst das Türchen öffnen, dann kommentieren."},
	{core.ErrEmptyComment, "Der Kommentar ist leer."},
	{core.ErrCommentTooLong, "Kommentare dürfen höchstens 500 Zeichen lang sein."},
	{imaging.ErrUnsupportedImage, "Das Bild konnte nicht gelesen werden."},
	{imaging.ErrImageTooLarge, "Das Bild ist zu groß und konnte nicht verkleinert werden."},
}

// userMessage returns the German text for a validation error. ok is false
// for errors the user cannot fix.
func userMessage(err error) (msg string, ok bool) {
	var be *core.BudgetError
	if errors.As(err, &be) {
		return "Budget überschritten: noch " + formatEuros(be.Remaining) +
			" von " + formatEuros(be.Limit) + " verfügbar.", true
	}
	for _, v := range validationMessages {
		if errors.Is(err, v.err) {
			return v.msg, true
		}
	}
	return "", false
}
