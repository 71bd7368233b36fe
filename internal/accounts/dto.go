package accounts

import "time"

// UserDTO is the JSON shape exposed for accounts. The credential hash
// never leaves the package.
type UserDTO struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

// ToDTO maps an account to its transport shape.
func ToDTO(a Account) UserDTO {
	return UserDTO{
		ID:        a.ID,
		Username:  a.Username,
		FullName:  a.FullName,
		Roles:     a.RoleStrings(),
		CreatedAt: a.CreatedAt,
	}
}

// ToDTOs maps a slice of accounts.
func ToDTOs(list []Account) []UserDTO {
	out := make([]UserDTO, len(list))
	for i, a := range list {
		out[i] = ToDTO(a)
	}
	return out
}
