package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/campassistant/campassistant/internal/roles"
	"github.com/campassistant/campassistant/internal/shared"
)

type memoryAccountRepo struct {
	accounts map[int64]Account
	roleIDs  map[int64]map[int64]bool
	byName   map[string]int64
	catalog  map[int64]roles.Name
	nextID   int64
}

func newMemoryAccountRepo(catalog *roles.Registry) *memoryAccountRepo {
	repo := &memoryAccountRepo{
		accounts: make(map[int64]Account),
		roleIDs:  make(map[int64]map[int64]bool),
		byName:   make(map[string]int64),
		catalog:  make(map[int64]roles.Name),
	}
	for _, role := range catalog.All() {
		repo.catalog[role.ID] = role.Name
	}
	return repo
}

func (r *memoryAccountRepo) roleSet(userID int64) []roles.Name {
	var out []roles.Name
	for roleID := range r.roleIDs[userID] {
		out = append(out, r.catalog[roleID])
	}
	return out
}

func (r *memoryAccountRepo) GetByID(ctx context.Context, id int64) (Account, error) {
	account, ok := r.accounts[id]
	if !ok {
		return Account{}, fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	account.Roles = r.roleSet(id)
	return account, nil
}

func (r *memoryAccountRepo) GetByUsername(ctx context.Context, username string) (Account, error) {
	id, ok := r.byName[username]
	if !ok {
		return Account{}, fmt.Errorf("user %s: %w", username, shared.ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

func (r *memoryAccountRepo) List(ctx context.Context) ([]Account, error) {
	var out []Account
	for id := range r.accounts {
		account, _ := r.GetByID(ctx, id)
		out = append(out, account)
	}
	return out, nil
}

func (r *memoryAccountRepo) ListByRole(ctx context.Context, role roles.Name) ([]Account, error) {
	var out []Account
	for id := range r.accounts {
		account, _ := r.GetByID(ctx, id)
		if account.HasRole(role) {
			out = append(out, account)
		}
	}
	return out, nil
}

func (r *memoryAccountRepo) Create(ctx context.Context, account Account, roleIDs []int64) (Account, error) {
	if _, exists := r.byName[account.Username]; exists {
		return Account{}, fmt.Errorf("username %s: %w", account.Username, shared.ErrDuplicate)
	}
	r.nextID++
	account.ID = r.nextID
	r.accounts[account.ID] = account
	r.byName[account.Username] = account.ID
	r.roleIDs[account.ID] = make(map[int64]bool)
	for _, roleID := range roleIDs {
		r.roleIDs[account.ID][roleID] = true
	}
	return r.GetByID(ctx, account.ID)
}

func (r *memoryAccountRepo) GrantRole(ctx context.Context, userID, roleID int64) error {
	if r.roleIDs[userID] == nil {
		r.roleIDs[userID] = make(map[int64]bool)
	}
	r.roleIDs[userID][roleID] = true
	return nil
}

func (r *memoryAccountRepo) RevokeRole(ctx context.Context, userID, roleID int64) error {
	delete(r.roleIDs[userID], roleID)
	return nil
}

func (r *memoryAccountRepo) Delete(ctx context.Context, userID int64) error {
	account, ok := r.accounts[userID]
	if !ok {
		return fmt.Errorf("user %d: %w", userID, shared.ErrNotFound)
	}
	delete(r.byName, account.Username)
	delete(r.accounts, userID)
	delete(r.roleIDs, userID)
	return nil
}

type memoryRoleRepo struct {
	roles  map[roles.Name]roles.Role
	nextID int64
}

func (r *memoryRoleRepo) GetByName(ctx context.Context, name roles.Name) (roles.Role, error) {
	role, ok := r.roles[name]
	if !ok {
		return roles.Role{}, shared.ErrNotFound
	}
	return role, nil
}

func (r *memoryRoleRepo) List(ctx context.Context) ([]roles.Role, error) {
	out := make([]roles.Role, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, role)
	}
	return out, nil
}

func (r *memoryRoleRepo) CreateIfAbsent(ctx context.Context, name roles.Name) error {
	if _, ok := r.roles[name]; ok {
		return nil
	}
	r.nextID++
	r.roles[name] = roles.Role{ID: r.nextID, Name: name}
	return nil
}

func newTestService(t *testing.T) (*Service, *memoryAccountRepo) {
	t.Helper()
	registry, err := roles.LoadRegistry(context.Background(), &memoryRoleRepo{roles: make(map[roles.Name]roles.Role)}, slog.Default())
	require.NoError(t, err)
	repo := newMemoryAccountRepo(registry)
	return NewService(repo, registry, nil), repo
}

func TestRegisterHashesPasswordAndGrantsRoles(t *testing.T) {
	svc, _ := newTestService(t)

	account, err := svc.Register(context.Background(), RegisterInput{
		Username: "dirigente.ana",
		FullName: "Ana Morales",
		Password: "secret-pass",
		Roles:    []roles.Name{roles.Dirigente},
	})
	require.NoError(t, err)
	require.NotZero(t, account.ID)
	require.True(t, account.HasRole(roles.Dirigente))
	require.NotEqual(t, "secret-pass", account.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte("secret-pass")))
}

func TestRegisterNormalisesUsername(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	account, err := svc.Register(ctx, RegisterInput{Username: "  camper01  ", Password: "longenough"})
	require.NoError(t, err)
	require.Equal(t, "camper01", account.Username)

	// Lookup applies the same normalisation.
	found, err := svc.GetByUsername(ctx, " camper01 ")
	require.NoError(t, err)
	require.Equal(t, account.ID, found.ID)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "   ", Password: "longenough"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Register(ctx, RegisterInput{Username: "short", Password: "tiny"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Register(ctx, RegisterInput{Username: "odd", Password: "longenough", Roles: []roles.Name{"SUPERVISOR"}})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRegisterDefaultsToUserRole(t *testing.T) {
	svc, _ := newTestService(t)

	account, err := svc.Register(context.Background(), RegisterInput{Username: "plain", Password: "longenough"})
	require.NoError(t, err)
	require.True(t, account.HasRole(roles.User))
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "taken", Password: "longenough"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Username: "taken", Password: "otherlong"})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestRolesOfReflectsMutationsImmediately(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	account, err := svc.Register(ctx, RegisterInput{Username: "promote.me", Password: "longenough"})
	require.NoError(t, err)

	set, err := svc.RolesOf(ctx, account.ID)
	require.NoError(t, err)
	require.NotContains(t, set, roles.Dirigente)

	require.NoError(t, svc.GrantRole(ctx, 1, account.ID, roles.Dirigente))
	set, err = svc.RolesOf(ctx, account.ID)
	require.NoError(t, err)
	require.Contains(t, set, roles.Dirigente)

	require.NoError(t, svc.RevokeRole(ctx, 1, account.ID, roles.Dirigente))
	set, err = svc.RolesOf(ctx, account.ID)
	require.NoError(t, err)
	require.NotContains(t, set, roles.Dirigente)
}

func TestRolesOfUnknownAccount(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RolesOf(context.Background(), 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGrantRoleRequiresKnownRoleAndAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.GrantRole(ctx, 1, 42, roles.Name("SUPERVISOR"))
	require.ErrorIs(t, err, shared.ErrNotFound)

	err = svc.GrantRole(ctx, 1, 42, roles.Dirigente)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteRemovesAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	account, err := svc.Register(ctx, RegisterInput{Username: "leaving", Password: "longenough"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, 1, account.ID))
	_, err = svc.Get(ctx, account.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	require.ErrorIs(t, svc.Delete(ctx, 1, account.ID), shared.ErrNotFound)
}
