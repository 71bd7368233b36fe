package roles

import "time"

// Name is a role identifier drawn from the closed catalog below. Business
// logic matches on these constants, never on free-form strings.
type Name string

const (
	Admin     Name = "ADMIN"
	Dirigente Name = "DIRIGENTE"
	Acampante Name = "ACAMPANTE"
	User      Name = "USER"
	Staff     Name = "STAFF"
)

func (n Name) String() string { return string(n) }

// Canonical returns the full role catalog in seeding order.
func Canonical() []Name {
	return []Name{Admin, Dirigente, Acampante, User, Staff}
}

// Role represents a seeded role row. Roles are immutable once created and
// are never created by request-handling code.
type Role struct {
	ID        int64     `json:"id"`
	Name      Name      `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
