// Package authz implements the supervision-scoped authorization gate used
// by the roster resource services. A denial is a boolean false, never an
// error; errors are reserved for integration defects such as a principal
// id that does not resolve to a stored account.
package authz

import (
	"context"
	"errors"
	"log/slog"

	"github.com/campassistant/campassistant/internal/roles"
	"github.com/campassistant/campassistant/internal/shared"
)

// RoleSource resolves the current role set of an account. Lookups must
// reflect the latest stored state; decisions are made against fresh roles,
// never a cached copy.
type RoleSource interface {
	RolesOf(ctx context.Context, userID int64) ([]roles.Name, error)
}

// SupervisionSource answers edge-membership probes against the supervision
// graph.
type SupervisionSource interface {
	IsSupervising(ctx context.Context, supervisorID, superviseeID int64) (bool, error)
}

// OwnerLookup derives the owning user id from a resource id, for resources
// that reference their subject indirectly (e.g. an attendance record).
type OwnerLookup func(ctx context.Context, resourceID int64) (int64, error)

// Gate decides whether a principal may act on a target user's resources.
type Gate struct {
	roles       RoleSource
	supervision SupervisionSource
	logger      *slog.Logger
}

// NewGate constructs a Gate.
func NewGate(roleSource RoleSource, supervision SupervisionSource, logger *slog.Logger) *Gate {
	return &Gate{roles: roleSource, supervision: supervision, logger: logger}
}

// CanActOn reports whether the principal may act on the target user's
// resources. The role check runs before any graph probe, so non-privileged
// principals never trigger a graph query. A failure to resolve the
// principal's account propagates as an error: that is an integration
// defect, not a denial.
func (g *Gate) CanActOn(ctx context.Context, principal *shared.Principal, targetUserID int64) (bool, error) {
	if principal == nil {
		return false, nil
	}

	roleSet, err := g.roles.RolesOf(ctx, principal.ID)
	if err != nil {
		return false, err
	}

	if hasRole(roleSet, roles.Admin) {
		return true, nil
	}
	if hasRole(roleSet, roles.Dirigente) {
		return g.supervision.IsSupervising(ctx, principal.ID, targetUserID)
	}
	return false, nil
}

// CanActOnAll reports whether the principal may act on every target. The
// first failing target aborts evaluation; callers receive only the overall
// verdict, never which target failed. An empty target list is vacuously
// authorized.
func (g *Gate) CanActOnAll(ctx context.Context, principal *shared.Principal, targetUserIDs []int64) (bool, error) {
	if principal == nil {
		return false, nil
	}
	if len(targetUserIDs) == 0 {
		return true, nil
	}

	roleSet, err := g.roles.RolesOf(ctx, principal.ID)
	if err != nil {
		return false, err
	}

	if hasRole(roleSet, roles.Admin) {
		return true, nil
	}
	if !hasRole(roleSet, roles.Dirigente) {
		return false, nil
	}
	for _, target := range targetUserIDs {
		ok, err := g.supervision.IsSupervising(ctx, principal.ID, target)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// CanActOnResource authorizes an action on a resource whose owning user
// must first be derived via lookup. Administrators are allowed without the
// lookup; for supervisors a missing resource is a plain denial so the
// response does not disclose whether the record exists.
func (g *Gate) CanActOnResource(ctx context.Context, principal *shared.Principal, resourceID int64, owner OwnerLookup) (bool, error) {
	if principal == nil {
		return false, nil
	}

	roleSet, err := g.roles.RolesOf(ctx, principal.ID)
	if err != nil {
		return false, err
	}

	if hasRole(roleSet, roles.Admin) {
		return true, nil
	}
	if !hasRole(roleSet, roles.Dirigente) {
		return false, nil
	}

	ownerID, err := owner(ctx, resourceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return g.supervision.IsSupervising(ctx, principal.ID, ownerID)
}

func hasRole(set []roles.Name, name roles.Name) bool {
	for _, r := range set {
		if r == name {
			return true
		}
	}
	return false
}
