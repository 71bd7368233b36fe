package supervision

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/campassistant/campassistant/internal/accounts"
	"github.com/campassistant/campassistant/internal/roles"
	"github.com/campassistant/campassistant/internal/shared"
)

// AccountSource is the subset of the account store the supervision service
// needs: existence and current-role resolution for edge endpoints.
type AccountSource interface {
	GetByID(ctx context.Context, id int64) (accounts.Account, error)
}

// AuditRecorder persists audit rows for edge mutations. Satisfied by
// shared.AuditLogger; nil disables auditing.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns supervision-graph mutation and queries. Mutation is strict
// (both endpoints must exist and hold the right roles at call time);
// querying is permissive (a non-supervisor simply has an empty set).
//
// Edges are not retracted when a supervisor later loses DIRIGENTE: the
// authorization gate re-reads roles on every decision, so a demoted
// supervisor is denied while the stale edge persists until it is removed
// explicitly or the account is deleted.
type Service struct {
	repo     Repository
	accounts AccountSource
	audit    AuditRecorder
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, accountSource AccountSource, audit AuditRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, accounts: accountSource, audit: audit, logger: logger}
}

// Assign creates the supervision edge. Both ids must resolve, the
// supervisor must hold DIRIGENTE and the supervisee ACAMPANTE at call
// time. Returns whether a new edge was created; assigning an existing
// pair is a reported no-op, not an error. actorID names the principal
// performing the mutation, which may be an admin rather than the
// supervisor endpoint.
func (s *Service) Assign(ctx context.Context, actorID, supervisorID, superviseeID int64) (bool, error) {
	if supervisorID == superviseeID {
		return false, ErrSelfSupervision
	}

	supervisor, err := s.accounts.GetByID(ctx, supervisorID)
	if err != nil {
		return false, fmt.Errorf("supervisor: %w", err)
	}
	supervisee, err := s.accounts.GetByID(ctx, superviseeID)
	if err != nil {
		return false, fmt.Errorf("supervisee: %w", err)
	}

	if !supervisor.HasRole(roles.Dirigente) {
		return false, fmt.Errorf("%w: user %d is not a DIRIGENTE", ErrInvalidRole, supervisorID)
	}
	if !supervisee.HasRole(roles.Acampante) {
		return false, fmt.Errorf("%w: user %d is not an ACAMPANTE", ErrInvalidRole, superviseeID)
	}

	added, err := s.repo.Insert(ctx, supervisorID, superviseeID)
	if err != nil {
		return false, err
	}
	if added {
		s.recordAudit(ctx, shared.AuditSupervisionAssign, actorID, supervisorID, superviseeID)
		s.logger.Info("supervision edge created",
			slog.Int64("supervisor", supervisorID),
			slog.Int64("supervisee", superviseeID))
	}
	return added, nil
}

// Remove deletes the supervision edge. Both ids must resolve; the edge
// being absent is a reported no-op. Roles are deliberately not validated
// here so stale edges left by a demotion can still be cleaned up.
func (s *Service) Remove(ctx context.Context, actorID, supervisorID, superviseeID int64) (bool, error) {
	if _, err := s.accounts.GetByID(ctx, supervisorID); err != nil {
		return false, fmt.Errorf("supervisor: %w", err)
	}
	if _, err := s.accounts.GetByID(ctx, superviseeID); err != nil {
		return false, fmt.Errorf("supervisee: %w", err)
	}

	removed, err := s.repo.Delete(ctx, supervisorID, superviseeID)
	if err != nil {
		return false, err
	}
	if removed {
		s.recordAudit(ctx, shared.AuditSupervisionRemove, actorID, supervisorID, superviseeID)
	}
	return removed, nil
}

// SupervisedSet returns the accounts supervised by the given account. If
// the account does not currently hold DIRIGENTE the set is empty, not an
// error.
func (s *Service) SupervisedSet(ctx context.Context, supervisorID int64) ([]accounts.Account, error) {
	supervisor, err := s.accounts.GetByID(ctx, supervisorID)
	if err != nil {
		return nil, err
	}
	if !supervisor.HasRole(roles.Dirigente) {
		return []accounts.Account{}, nil
	}
	return s.repo.ListSupervised(ctx, supervisorID)
}

// SupervisorSet returns the accounts supervising the given account.
// Empty, not an error, if the account does not hold ACAMPANTE.
func (s *Service) SupervisorSet(ctx context.Context, superviseeID int64) ([]accounts.Account, error) {
	supervisee, err := s.accounts.GetByID(ctx, superviseeID)
	if err != nil {
		return nil, err
	}
	if !supervisee.HasRole(roles.Acampante) {
		return []accounts.Account{}, nil
	}
	return s.repo.ListSupervisors(ctx, superviseeID)
}

// IsSupervising is the pure membership test used by the authorization
// gate on every decision. Role validation stays out of this path; the
// gate orders its role checks ahead of the probe.
func (s *Service) IsSupervising(ctx context.Context, supervisorID, superviseeID int64) (bool, error) {
	return s.repo.Exists(ctx, supervisorID, superviseeID)
}

func (s *Service) recordAudit(ctx context.Context, action string, actorID, supervisorID, superviseeID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "supervision_edge",
		EntityID: strconv.FormatInt(supervisorID, 10) + ":" + strconv.FormatInt(superviseeID, 10),
		Meta: map[string]any{
			"supervisor_id": supervisorID,
			"supervisee_id": superviseeID,
		},
	})
}
