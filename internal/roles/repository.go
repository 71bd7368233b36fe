package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campassistant/campassistant/internal/shared"
)

// Repository defines persistence operations for the role catalog.
type Repository interface {
	GetByName(ctx context.Context, name Name) (Role, error)
	List(ctx context.Context) ([]Role, error)
	CreateIfAbsent(ctx context.Context, name Name) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetByName fetches a role by its name.
func (r *PGRepository) GetByName(ctx context.Context, name Name) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM roles WHERE name = $1`,
		string(name),
	).Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("roles: role %s: %w", name, shared.ErrNotFound)
		}
		return Role{}, err
	}
	return role, nil
}

// List returns all roles ordered by id.
func (r *PGRepository) List(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at, updated_at FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// CreateIfAbsent inserts a role unless it already exists. Re-seeding is a
// no-op, which keeps repeated startups of clustered instances safe.
func (r *PGRepository) CreateIfAbsent(ctx context.Context, name Name) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO roles (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
		string(name),
	)
	return err
}

var _ Repository = (*PGRepository)(nil)
