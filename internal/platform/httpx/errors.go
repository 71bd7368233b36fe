package httpx

import (
	"errors"
	"net/http"

	"github.com/campassistant/campassistant/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807. A
// forbidden outcome always renders the same generic body regardless of
// whether the denial came from a role mismatch or the supervision graph.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", "resource not found")
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", "duplicate entry")
	case errors.Is(err, shared.ErrForbidden):
		Forbidden(w)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// Forbidden sends the generic denial response.
func Forbidden(w http.ResponseWriter) {
	Problem(w, http.StatusForbidden, "Forbidden", "forbidden")
}
