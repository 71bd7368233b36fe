package roles

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/campassistant/campassistant/internal/shared"
)

type memoryRoleRepo struct {
	roles  map[Name]Role
	nextID int64
}

func newMemoryRoleRepo() *memoryRoleRepo {
	return &memoryRoleRepo{roles: make(map[Name]Role)}
}

func (r *memoryRoleRepo) GetByName(ctx context.Context, name Name) (Role, error) {
	role, ok := r.roles[name]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return role, nil
}

func (r *memoryRoleRepo) List(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, role)
	}
	return out, nil
}

func (r *memoryRoleRepo) CreateIfAbsent(ctx context.Context, name Name) error {
	if _, ok := r.roles[name]; ok {
		return nil
	}
	r.nextID++
	r.roles[name] = Role{ID: r.nextID, Name: name}
	return nil
}

func TestLoadRegistrySeedsCanonicalRoles(t *testing.T) {
	repo := newMemoryRoleRepo()

	registry, err := LoadRegistry(context.Background(), repo, slog.Default())
	require.NoError(t, err)

	for _, name := range Canonical() {
		role, err := registry.Resolve(name)
		require.NoError(t, err)
		require.Equal(t, name, role.Name)
		require.NotZero(t, role.ID)
	}
}

func TestLoadRegistryIsIdempotent(t *testing.T) {
	repo := newMemoryRoleRepo()
	ctx := context.Background()

	first, err := LoadRegistry(ctx, repo, nil)
	require.NoError(t, err)
	second, err := LoadRegistry(ctx, repo, nil)
	require.NoError(t, err)

	adminFirst, err := first.Resolve(Admin)
	require.NoError(t, err)
	adminSecond, err := second.Resolve(Admin)
	require.NoError(t, err)
	require.Equal(t, adminFirst.ID, adminSecond.ID)
}

func TestResolveUnknownRole(t *testing.T) {
	repo := newMemoryRoleRepo()

	registry, err := LoadRegistry(context.Background(), repo, nil)
	require.NoError(t, err)

	_, err = registry.Resolve(Name("SUPERVISOR"))
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCanonicalNamesAreStable(t *testing.T) {
	require.Equal(t, []Name{Admin, Dirigente, Acampante, User, Staff}, Canonical())
}
