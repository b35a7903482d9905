package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"wunschliste/internal/core"
	"wunschliste/internal/imaging"
	"wunschliste/internal/services"
)

type (
	dashboardView struct {
		services.Dashboard
		WishForm       formView
		SuggestionForm formView
	}

	// formView feeds the shared wish/suggestion form. Item is empty when
	// creating.
	formView struct {
		Item       core.WishItem
		Action     string
		Suggestion bool
		Others     []string
		Users      []string
	}
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	view := dashboardView{
		Dashboard:      s.wishes.Dashboard(r.Context(), user),
		WishForm:       formView{Action: "/wishes", Users: s.dir.Users()},
		SuggestionForm: formView{Action: "/suggestions", Suggestion: true, Others: s.others(user), Users: s.dir.Users()},
	}
	s.render(w, r, "index", s.page(r, "Wunschliste", "wishes", view))
}

func (s *Server) handleCreateWish(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	f, err := parseWishForm(w, r, s.images, s.maxUpload)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	item, err := s.wishes.AddWish(r.Context(), user, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.done(w, r, "/", NewHTMXResponse().
		TriggerItemChanged(item.ID, "create").
		TriggerFormReset().
		TriggerSuccessNotification("Wunsch gespeichert"))
}

// handleEditItem prefills the edit form for the item's author. Other users
// get a 404 so the form never leaks concealed suggestions.
func (s *Server) handleEditItem(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	item, ok := s.wishes.Get(r.Context(), r.PathValue("id"))
	if !ok || item.Author() != user {
		NotFoundError("Eintrag nicht gefunden").Write(w)
		return
	}
	view := formView{Item: item, Action: "/wishes/" + item.ID, Others: s.others(user), Users: s.dir.Users()}
	if item.Kind == core.KindSuggestion {
		view.Action = "/suggestions/" + item.ID
		view.Suggestion = true
	}
	s.render(w, r, "edit", s.page(r, "Bearbeiten: "+item.WishName, "wishes", view))
}

func (s *Server) handleUpdateWish(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f, err := parseWishForm(w, r, s.images, s.maxUpload)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	changed, err := s.wishes.UpdateWish(r.Context(), currentUser(r), id, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if changed && len(f.Images) > 0 {
		s.images.Forget(id + "/")
	}
	s.done(w, r, "/", NewHTMXResponse().TriggerItemChanged(id, "update"))
}

func (s *Server) handleDeleteWish(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	changed, err := s.wishes.DeleteWish(r.Context(), currentUser(r), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if changed {
		s.images.Forget(id + "/")
	}
	s.done(w, r, "/", NewHTMXResponse().TriggerItemChanged(id, "delete"))
}

func (s *Server) handleCreateSuggestion(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	f, err := parseWishForm(w, r, s.images, s.maxUpload)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	target := sanitizeInput(r.PostFormValue("suggested_for"))
	item, err := s.wishes.AddSuggestion(r.Context(), user, target, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.done(w, r, "/", NewHTMXResponse().
		TriggerItemChanged(item.ID, "create").
		TriggerFormReset().
		TriggerSuccessNotification("Vorschlag gespeichert"))
}

func (s *Server) handleUpdateSuggestion(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f, err := parseWishForm(w, r, s.images, s.maxUpload)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	changed, err := s.wishes.UpdateSuggestion(r.Context(), currentUser(r), id, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if changed && len(f.Images) > 0 {
		s.images.Forget(id + "/")
	}
	s.done(w, r, "/", NewHTMXResponse().TriggerItemChanged(id, "update"))
}

func (s *Server) handleDeleteSuggestion(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	changed, err := s.wishes.DeleteSuggestion(r.Context(), currentUser(r), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if changed {
		s.images.Forget(id + "/")
	}
	s.done(w, r, "/", NewHTMXResponse().TriggerItemChanged(id, "delete"))
}

// returnTo picks the page to go back to after a claim flow action. Only
// local paths are accepted.
func returnTo(p *RequestBodyParser, fallback string) string {
	t := p.Get("return")
	if !strings.HasPrefix(t, "/") || strings.HasPrefix(t, "//") || strings.Contains(t, "\\") {
		return fallback
	}
	return t
}

// claimAction wraps the claim flow endpoints, which all take an item id
// and an optional return path.
func (s *Server) claimAction(action string, fn func(r *http.Request, p *RequestBodyParser, user, id string) (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := parseBody(w, r)
		if !ok {
			return
		}
		id := r.PathValue("id")
		if _, err := fn(r, p, currentUser(r), id); err != nil {
			s.fail(w, r, err)
			return
		}
		s.done(w, r, returnTo(p, "/"), NewHTMXResponse().TriggerItemChanged(id, action))
	}
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	s.claimAction("claim", func(r *http.Request, _ *RequestBodyParser, user, id string) (bool, error) {
		return s.wishes.Claim(r.Context(), user, id)
	})(w, r)
}

func (s *Server) handleUnclaim(w http.ResponseWriter, r *http.Request) {
	s.claimAction("unclaim", func(r *http.Request, _ *RequestBodyParser, user, id string) (bool, error) {
		return s.wishes.Unclaim(r.Context(), user, id)
	})(w, r)
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	s.claimAction("purchase", func(r *http.Request, p *RequestBodyParser, user, id string) (bool, error) {
		actual, err := parsePrice(p.Get("actual_price"))
		if err != nil {
			return false, err
		}
		return s.wishes.MarkPurchased(r.Context(), user, id, actual)
	})(w, r)
}

func (s *Server) handleUnpurchase(w http.ResponseWriter, r *http.Request) {
	s.claimAction("unpurchase", func(r *http.Request, _ *RequestBodyParser, user, id string) (bool, error) {
		return s.wishes.MarkUnpurchased(r.Context(), user, id)
	})(w, r)
}

// handleReimburse sets the flag from the "reimbursed" field; a missing
// field means reimbursed.
func (s *Server) handleReimburse(w http.ResponseWriter, r *http.Request) {
	s.claimAction("reimburse", func(r *http.Request, p *RequestBodyParser, user, id string) (bool, error) {
		flag := p.Get("reimbursed") == "" || p.Bool("reimbursed")
		return s.wishes.MarkReimbursed(r.Context(), user, id, flag)
	})(w, r)
}

var errNoImage = errors.New("no such image")

// handleItemImage serves a stored picture, or its thumbnail with
// ?thumb=1. Pictures of suggestions are hidden from their recipient.
// Broken stored images answer 404 without further noise.
func (s *Server) handleItemImage(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id := r.PathValue("id")
	img, n, err := s.storedImage(r, user, id)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if r.URL.Query().Get("thumb") == "1" {
		b, err := s.images.Thumbnail(fmt.Sprintf("%s/%d", id, n), img, imaging.DefaultThumbPx)
		if err != nil {
			s.log.DebugContext(r.Context(), "Thumbnail unavailable", "item_id", id, "error", err)
			http.NotFound(w, r)
			return
		}
		writeImage(w, "image/jpeg", b)
		return
	}

	raw, err := img.Decode()
	if err != nil {
		s.log.DebugContext(r.Context(), "Stored image unreadable", "item_id", id, "error", err)
		http.NotFound(w, r)
		return
	}
	mime := img.Type
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	writeImage(w, mime, raw)
}

func (s *Server) storedImage(r *http.Request, user, id string) (core.Image, int, error) {
	item, ok := s.wishes.Get(r.Context(), id)
	if !ok || (item.Kind == core.KindSuggestion && item.Recipient() == user) {
		return core.Image{}, 0, errNoImage
	}
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 0 || n >= len(item.Images) {
		return core.Image{}, 0, errNoImage
	}
	return item.Images[n], n, nil
}

func writeImage(w http.ResponseWriter, mime string, b []byte) {
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	_, _ = w.Write(b)
}

type expensesView struct {
	Own   core.ExpenseSummary
	Admin []core.ExpenseSummary
}

// handleExpenses shows the user's purchases; admins additionally see every
// other user's, minus gifts meant for themselves.
func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	view := expensesView{Own: s.wishes.Expenses(r.Context(), user)}
	if s.dir.IsAdmin(user) {
		view.Admin = s.wishes.AdminExpenses(r.Context(), user)
	}
	s.render(w, r, "expenses", s.page(r, "Ausgaben", "expenses", view))
}
