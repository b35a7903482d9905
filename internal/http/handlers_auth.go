package http

import (
	"net/http"

	applog "wunschliste/internal/log"
)

type loginView struct {
	Users    []string
	Username string
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if currentUser(r) != "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, "login", s.page(r, "Anmelden", "login", loginView{Users: s.dir.Users()}))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	name := p.Get("username")
	user, ok := s.dir.Authenticate(name, p.Get("password"))
	if !ok {
		s.log.InfoContext(r.Context(), "Login failed",
			applog.FieldOperation, applog.OpLogin,
			applog.FieldUser, name,
			applog.FieldClientIP, s.detector.ExtractClientIP(r))
		data := s.page(r, "Anmelden", "login", loginView{Users: s.dir.Users(), Username: name})
		data.Error = "Benutzername oder Passwort ist falsch."
		s.renderStatus(w, r, "login", http.StatusUnauthorized, data)
		return
	}
	if err := s.sessions.Login(w, user); err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.InfoContext(r.Context(), "Login", applog.FieldOperation, applog.OpLogin, applog.FieldUser, user)
	s.done(w, r, "/", nil)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Logout(w)
	s.done(w, r, "/login", nil)
}
