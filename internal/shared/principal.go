package shared

// Principal describes the authenticated actor issuing a request. It is
// produced by the identity middleware from a trusted upstream identity and
// a fresh role lookup; a nil *Principal means the request is unauthenticated.
type Principal struct {
	ID       int64
	Username string
	Roles    []string
}

// HasRole reports whether the principal carries the named role. Nil-safe.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
