package supervision

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campassistant/campassistant/internal/accounts"
	"github.com/campassistant/campassistant/internal/roles"
)

// Repository provides persistence for supervision edges. The edge table is
// the single source of truth; supervised-set and supervisor-set are two
// views over it, so the relation cannot drift out of sync.
type Repository interface {
	Insert(ctx context.Context, supervisorID, superviseeID int64) (bool, error)
	Delete(ctx context.Context, supervisorID, superviseeID int64) (bool, error)
	Exists(ctx context.Context, supervisorID, superviseeID int64) (bool, error)
	ListSupervised(ctx context.Context, supervisorID int64) ([]accounts.Account, error)
	ListSupervisors(ctx context.Context, superviseeID int64) ([]accounts.Account, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert adds the edge if absent. Returns whether a new edge was created;
// a duplicate insert is a no-op, so concurrent assigns of the same pair
// commute.
func (r *PGRepository) Insert(ctx context.Context, supervisorID, superviseeID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO user_supervision (dirigente_id, acampante_id) VALUES ($1, $2)
		 ON CONFLICT (dirigente_id, acampante_id) DO NOTHING`,
		supervisorID, superviseeID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes the edge if present. Returns whether an edge was removed.
func (r *PGRepository) Delete(ctx context.Context, supervisorID, superviseeID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM user_supervision WHERE dirigente_id = $1 AND acampante_id = $2`,
		supervisorID, superviseeID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Exists is the hot-path membership probe: one primary-key lookup, no set
// materialisation.
func (r *PGRepository) Exists(ctx context.Context, supervisorID, superviseeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM user_supervision WHERE dirigente_id = $1 AND acampante_id = $2
		)`,
		supervisorID, superviseeID,
	).Scan(&exists)
	return exists, err
}

// ListSupervised returns the accounts supervised by the given supervisor.
func (r *PGRepository) ListSupervised(ctx context.Context, supervisorID int64) ([]accounts.Account, error) {
	return r.listRelated(ctx,
		`WHERE u.id IN (SELECT acampante_id FROM user_supervision WHERE dirigente_id = $1)`,
		supervisorID,
	)
}

// ListSupervisors returns the accounts supervising the given supervisee.
func (r *PGRepository) ListSupervisors(ctx context.Context, superviseeID int64) ([]accounts.Account, error) {
	return r.listRelated(ctx,
		`WHERE u.id IN (SELECT dirigente_id FROM user_supervision WHERE acampante_id = $1)`,
		superviseeID,
	)
}

func (r *PGRepository) listRelated(ctx context.Context, where string, id int64) ([]accounts.Account, error) {
	query := `SELECT
		u.id, u.username, u.full_name, u.created_at, u.updated_at,
		COALESCE(array_agg(r.name ORDER BY r.id) FILTER (WHERE r.name IS NOT NULL), '{}')
	FROM users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id
	LEFT JOIN roles r ON r.id = ur.role_id
	` + where + `
	GROUP BY u.id ORDER BY u.id`

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []accounts.Account
	for rows.Next() {
		var a accounts.Account
		var names []string
		if err := rows.Scan(&a.ID, &a.Username, &a.FullName, &a.CreatedAt, &a.UpdatedAt, &names); err != nil {
			return nil, err
		}
		a.Roles = make([]roles.Name, len(names))
		for i, n := range names {
			a.Roles[i] = roles.Name(n)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
