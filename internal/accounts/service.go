package accounts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"

	"github.com/campassistant/campassistant/internal/roles"
	"github.com/campassistant/campassistant/internal/shared"
)

// ErrInvalidInput indicates a registration payload that fails validation.
var ErrInvalidInput = errors.New("accounts: invalid input")

// RegisterInput carries the fields required to create an account.
type RegisterInput struct {
	Username string
	FullName string
	Password string
	Roles    []roles.Name
}

// Service wraps account business rules.
type Service struct {
	repo     Repository
	registry *roles.Registry
	audit    *shared.AuditLogger
}

// NewService constructs a new Service.
func NewService(repo Repository, registry *roles.Registry, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, registry: registry, audit: audit}
}

// Get fetches an account by id.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByUsername fetches an account by username, normalised the same way
// registration normalises it.
func (s *Service) GetByUsername(ctx context.Context, username string) (Account, error) {
	return s.repo.GetByUsername(ctx, normaliseUsername(username))
}

// RolesOf resolves the current role set of an account. This is the
// RoleSource contract consumed by the authorization gate; it always reads
// through to storage so role mutations take effect on the next decision.
func (s *Service) RolesOf(ctx context.Context, userID int64) ([]roles.Name, error) {
	account, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return account.Roles, nil
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

// ListByRole returns accounts holding the given role.
func (s *Service) ListByRole(ctx context.Context, role roles.Name) ([]Account, error) {
	return s.repo.ListByRole(ctx, role)
}

// Register creates an account with a bcrypt credential hash and the given
// role grants. Role names must resolve against the seeded catalog.
func (s *Service) Register(ctx context.Context, input RegisterInput) (Account, error) {
	username := normaliseUsername(input.Username)
	if username == "" {
		return Account{}, fmt.Errorf("%w: username required", ErrInvalidInput)
	}
	if len(input.Password) < 8 {
		return Account{}, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	if len(input.Roles) == 0 {
		input.Roles = []roles.Name{roles.User}
	}

	roleIDs := make([]int64, 0, len(input.Roles))
	for _, name := range input.Roles {
		role, err := s.registry.Resolve(name)
		if err != nil {
			return Account{}, fmt.Errorf("%w: unknown role %s", ErrInvalidInput, name)
		}
		roleIDs = append(roleIDs, role.ID)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}

	account := Account{
		Username:     username,
		FullName:     norm.NFC.String(strings.TrimSpace(input.FullName)),
		PasswordHash: string(hash),
		Roles:        input.Roles,
	}
	return s.repo.Create(ctx, account, roleIDs)
}

// GrantRole adds a role to an account.
func (s *Service) GrantRole(ctx context.Context, actorID, userID int64, name roles.Name) error {
	role, err := s.registry.Resolve(name)
	if err != nil {
		return err
	}
	if _, err := s.repo.GetByID(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.GrantRole(ctx, userID, role.ID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, shared.AuditRoleGrant, userID, name)
	return nil
}

// RevokeRole removes a role from an account. Existing supervision edges
// are intentionally kept; see supervision.Service for the rationale.
func (s *Service) RevokeRole(ctx context.Context, actorID, userID int64, name roles.Name) error {
	role, err := s.registry.Resolve(name)
	if err != nil {
		return err
	}
	if _, err := s.repo.GetByID(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.RevokeRole(ctx, userID, role.ID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, shared.AuditRoleRevoke, userID, name)
	return nil
}

// Delete removes an account after severing its supervision edges.
func (s *Service) Delete(ctx context.Context, actorID, userID int64) error {
	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, shared.AuditAccountDelete, userID, "")
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, userID int64, role roles.Name) {
	if s.audit == nil {
		return
	}
	meta := map[string]any{}
	if role != "" {
		meta["role"] = string(role)
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     meta,
	})
}

func normaliseUsername(username string) string {
	return norm.NFC.String(strings.TrimSpace(username))
}
