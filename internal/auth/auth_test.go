package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func testDirectory(t *testing.T) *Directory {
	t.Helper()
	d, err := DefaultDirectory(bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestDirectory_Authenticate(t *testing.T) {
	d := testDirectory(t)
	tests := []struct {
		name     string
		user     string
		password string
		want     bool
	}{
		{"valid", "Lukas", "lukas123", true},
		{"surrounding spaces in name", " Pia ", "pia123", true},
		{"wrong password", "Lukas", "pia123", false},
		{"unknown user", "Nikolaus", "nikolaus123", false},
		{"case matters", "lukas", "lukas123", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := d.Authenticate(tt.user, tt.password)
			if ok != tt.want {
				t.Errorf("Authenticate(%q) = %v, want %v", tt.user, ok, tt.want)
			}
		})
	}
}

func TestDirectory_UsersAndAdmins(t *testing.T) {
	d := testDirectory(t)
	want := []string{"Dieter", "Gudrun", "Lukas", "Pia", "Emmy", "Tim"}
	if got := d.Users(); !slices.Equal(got, want) {
		t.Errorf("Users() = %v", got)
	}
	if !d.IsAdmin("Gudrun") || d.IsAdmin("Tim") {
		t.Error("admin list mismatch")
	}
}

func TestSessions_RoundTrip(t *testing.T) {
	s, err := NewSessions("0123456789abcdef", false)
	if err != nil {
		t.Fatal(err)
	}
	token, err := s.Issue("Emmy")
	if err != nil {
		t.Fatal(err)
	}
	user, err := s.Parse(token)
	if err != nil || user != "Emmy" {
		t.Fatalf("Parse = %q, %v", user, err)
	}

	other, _ := NewSessions("fedcba9876543210", false)
	if _, err := other.Parse(token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("token signed with another secret must fail, got %v", err)
	}
	if _, err := s.Parse(token + "x"); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("tampered token must fail, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	d := testDirectory(t)
	s, _ := NewSessions("", false)

	var seen string
	h := Middleware(s, d)(RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFrom(r.Context())
	})))

	t.Run("anonymous is redirected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
			t.Fatalf("got %d %q", rec.Code, rec.Header().Get("Location"))
		}
	})

	t.Run("htmx gets HX-Redirect", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/items/x/claim", nil)
		req.Header.Set("HX-Request", "true")
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized || rec.Header().Get("HX-Redirect") != "/login" {
			t.Fatalf("got %d %q", rec.Code, rec.Header().Get("HX-Redirect"))
		}
	})

	t.Run("valid cookie", func(t *testing.T) {
		login := httptest.NewRecorder()
		if err := s.Login(login, "Tim"); err != nil {
			t.Fatal(err)
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for _, c := range login.Result().Cookies() {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || seen != "Tim" {
			t.Fatalf("got %d user %q", rec.Code, seen)
		}
	})

	t.Run("token for unknown user", func(t *testing.T) {
		token, _ := s.Issue("Nikolaus")
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("expected redirect, got %d", rec.Code)
		}
	})
}
