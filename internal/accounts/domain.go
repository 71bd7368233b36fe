package accounts

import (
	"time"

	"github.com/campassistant/campassistant/internal/roles"
)

// Account represents an identity record. The credential hash is opaque to
// everything outside registration; authorization only reads the role set.
type Account struct {
	ID           int64
	Username     string
	FullName     string
	PasswordHash string
	Roles        []roles.Name
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRole reports whether the account currently holds the named role.
func (a Account) HasRole(name roles.Name) bool {
	for _, r := range a.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// RoleStrings returns the role set as plain strings, the shape consumed by
// the principal middleware.
func (a Account) RoleStrings() []string {
	out := make([]string, len(a.Roles))
	for i, r := range a.Roles {
		out[i] = string(r)
	}
	return out
}
