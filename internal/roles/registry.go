package roles

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/campassistant/campassistant/internal/shared"
)

// Registry is the process-wide role catalog. It is populated once at
// startup and read-only afterwards: authorization code resolves role
// identities through it instead of hitting the database per request.
type Registry struct {
	byName map[Name]Role
	all    []Role
}

// LoadRegistry seeds the canonical catalog into storage (insert-if-absent)
// and builds the in-memory registry from the stored rows. A canonical role
// missing after seeding is a configuration defect and fails startup.
func LoadRegistry(ctx context.Context, repo Repository, logger *slog.Logger) (*Registry, error) {
	for _, name := range Canonical() {
		if err := repo.CreateIfAbsent(ctx, name); err != nil {
			return nil, fmt.Errorf("roles: seed %s: %w", name, err)
		}
	}

	stored, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("roles: load catalog: %w", err)
	}

	reg := &Registry{byName: make(map[Name]Role, len(stored)), all: stored}
	for _, role := range stored {
		reg.byName[role.Name] = role
	}
	for _, name := range Canonical() {
		if _, ok := reg.byName[name]; !ok {
			return nil, fmt.Errorf("roles: role %s missing after seeding: %w", name, shared.ErrNotFound)
		}
	}

	if logger != nil {
		logger.Info("role catalog loaded", slog.Int("roles", len(stored)))
	}
	return reg, nil
}

// Resolve returns the role identity for a name.
func (r *Registry) Resolve(name Name) (Role, error) {
	role, ok := r.byName[name]
	if !ok {
		return Role{}, fmt.Errorf("roles: role %s: %w", name, shared.ErrNotFound)
	}
	return role, nil
}

// All returns every role in the catalog.
func (r *Registry) All() []Role {
	out := make([]Role, len(r.all))
	copy(out, r.all)
	return out
}
