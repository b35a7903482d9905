package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the session cookie.
const CookieName = "wunschliste_session"

var ErrInvalidSession = errors.New("invalid session")

// Sessions issues and verifies HS256 signed session tokens. Sessions do
// not expire; logging out drops the cookie.
type Sessions struct {
	secret []byte
	secure bool
	now    func() time.Time
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// NewSessions uses secret to sign tokens. An empty secret is replaced by a
// random one, which logs everybody out on restart.
func NewSessions(secret string, secure bool) (*Sessions, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	return &Sessions{secret: key, secure: secure, now: time.Now}, nil
}

// Issue returns a token for user.
func (s *Sessions) Issue(user string) (string, error) {
	claims := sessionClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:  user,
		IssuedAt: jwt.NewNumericDate(s.now()),
	}}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// Parse verifies token and returns its user.
func (s *Sessions) Parse(token string) (string, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.Subject == "" {
		return "", ErrInvalidSession
	}
	return claims.Subject, nil
}

// Login issues a token for user and sets the cookie.
func (s *Sessions) Login(w http.ResponseWriter, user string) error {
	token, err := s.Issue(user)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Logout clears the cookie.
func (s *Sessions) Logout(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
