package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a uniqueness violation.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrForbidden indicates a denied action. Handlers map it to a generic
	// 403 body that never says why the action was denied.
	ErrForbidden = errors.New("forbidden")
)

// UserSafeMessage returns a message safe to expose to API clients.
// Authorization denials always collapse to the same generic text.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "resource not found"
	case errors.Is(err, ErrDuplicate):
		return "duplicate entry"
	default:
		return "request failed"
	}
}
