package supervision

import (
	"errors"
	"time"
)

// Edge is one supervision relation between a specific supervisor
// (Dirigente) and supervisee (Acampante).
type Edge struct {
	SupervisorID int64     `json:"supervisor_id"`
	SuperviseeID int64     `json:"supervisee_id"`
	CreatedAt    time.Time `json:"created_at"`
}

var (
	// ErrInvalidRole indicates an assignment where the supervisor lacks
	// DIRIGENTE or the supervisee lacks ACAMPANTE. Surfaced as a rejected
	// request, distinct from an authorization denial.
	ErrInvalidRole = errors.New("supervision: account lacks required role")
	// ErrSelfSupervision indicates an edge with identical endpoints.
	ErrSelfSupervision = errors.New("supervision: account cannot supervise itself")
)
