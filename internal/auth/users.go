// Package auth holds the fixed family accounts, the signed session cookie
// and the middleware that puts the logged-in user into the request context.
package auth

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Accounts in display order. Passwords are the compiled-in defaults.
var defaultAccounts = []struct {
	User     string
	Password string
}{
	{"Dieter", "dieter123"},
	{"Gudrun", "gudrun123"},
	{"Lukas", "lukas123"},
	{"Pia", "pia123"},
	{"Emmy", "emmy123"},
	{"Tim", "tim123"},
}

// Admins may see every other user's purchases.
var defaultAdmins = []string{"Dieter", "Gudrun"}

// Directory checks credentials against bcrypt hashes computed at startup.
type Directory struct {
	users  []string
	hashes map[string][]byte
	admins []string
}

// NewDirectory hashes the given passwords with cost.
func NewDirectory(accounts map[string]string, order, admins []string, cost int) (*Directory, error) {
	d := &Directory{hashes: make(map[string][]byte, len(accounts)), admins: admins}
	for _, u := range order {
		pw, ok := accounts[u]
		if !ok {
			return nil, fmt.Errorf("no password for user %s", u)
		}
		h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", u, err)
		}
		d.hashes[u] = h
		d.users = append(d.users, u)
	}
	return d, nil
}

// DefaultDirectory builds the directory of the family accounts.
func DefaultDirectory(cost int) (*Directory, error) {
	accounts := make(map[string]string, len(defaultAccounts))
	order := make([]string, 0, len(defaultAccounts))
	for _, a := range defaultAccounts {
		accounts[a.User] = a.Password
		order = append(order, a.User)
	}
	return NewDirectory(accounts, order, defaultAdmins, cost)
}

// Authenticate returns the canonical user name when password matches.
func (d *Directory) Authenticate(user, password string) (string, bool) {
	user = strings.TrimSpace(user)
	h, ok := d.hashes[user]
	if !ok {
		return "", false
	}
	if bcrypt.CompareHashAndPassword(h, []byte(password)) != nil {
		return "", false
	}
	return user, true
}

// Users returns all account names in display order.
func (d *Directory) Users() []string { return slices.Clone(d.users) }

func (d *Directory) Known(user string) bool {
	_, ok := d.hashes[user]
	return ok
}

func (d *Directory) IsAdmin(user string) bool { return slices.Contains(d.admins, user) }
