package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campassistant/campassistant/internal/platform/db"
	"github.com/campassistant/campassistant/internal/roles"
	"github.com/campassistant/campassistant/internal/shared"
)

const pgUniqueViolation = "23505"

// Repository defines persistence operations for accounts. Role sets are
// loaded together with the account row on every lookup; there is no role
// cache, so mutations are visible to the next authorization decision.
type Repository interface {
	GetByID(ctx context.Context, id int64) (Account, error)
	GetByUsername(ctx context.Context, username string) (Account, error)
	List(ctx context.Context) ([]Account, error)
	ListByRole(ctx context.Context, role roles.Name) ([]Account, error)
	Create(ctx context.Context, account Account, roleIDs []int64) (Account, error)
	GrantRole(ctx context.Context, userID, roleID int64) error
	RevokeRole(ctx context.Context, userID, roleID int64) error
	Delete(ctx context.Context, userID int64) error
}

const accountColumns = `
	u.id, u.username, u.full_name, u.password_hash, u.created_at, u.updated_at,
	COALESCE(array_agg(r.name ORDER BY r.id) FILTER (WHERE r.name IS NOT NULL), '{}')`

const accountJoin = `
	FROM users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id
	LEFT JOIN roles r ON r.id = ur.role_id`

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	var names []string
	err := row.Scan(&a.ID, &a.Username, &a.FullName, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt, &names)
	if err != nil {
		return Account{}, err
	}
	a.Roles = make([]roles.Name, len(names))
	for i, n := range names {
		a.Roles[i] = roles.Name(n)
	}
	return a, nil
}

// GetByID fetches an account with its current role set.
func (r *PGRepository) GetByID(ctx context.Context, id int64) (Account, error) {
	query := `SELECT` + accountColumns + accountJoin + ` WHERE u.id = $1 GROUP BY u.id`
	account, err := scanAccount(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("accounts: user %d: %w", id, shared.ErrNotFound)
		}
		return Account{}, err
	}
	return account, nil
}

// GetByUsername fetches an account by its unique username.
func (r *PGRepository) GetByUsername(ctx context.Context, username string) (Account, error) {
	query := `SELECT` + accountColumns + accountJoin + ` WHERE u.username = $1 GROUP BY u.id`
	account, err := scanAccount(r.pool.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("accounts: user %q: %w", username, shared.ErrNotFound)
		}
		return Account{}, err
	}
	return account, nil
}

// List returns all accounts ordered by id.
func (r *PGRepository) List(ctx context.Context) ([]Account, error) {
	query := `SELECT` + accountColumns + accountJoin + ` GROUP BY u.id ORDER BY u.id`
	return r.queryAccounts(ctx, query)
}

// ListByRole returns all accounts holding the given role.
func (r *PGRepository) ListByRole(ctx context.Context, role roles.Name) ([]Account, error) {
	query := `SELECT` + accountColumns + accountJoin + `
	WHERE u.id IN (
		SELECT ur2.user_id FROM user_roles ur2
		JOIN roles r2 ON r2.id = ur2.role_id
		WHERE r2.name = $1
	)
	GROUP BY u.id ORDER BY u.id`
	return r.queryAccounts(ctx, query, string(role))
}

func (r *PGRepository) queryAccounts(ctx context.Context, query string, args ...any) ([]Account, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	return out, rows.Err()
}

// Create inserts the account and its role grants in one transaction.
func (r *PGRepository) Create(ctx context.Context, account Account, roleIDs []int64) (Account, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO users (username, full_name, password_hash) VALUES ($1, $2, $3)
			 RETURNING id, created_at, updated_at`,
			account.Username, account.FullName, account.PasswordHash,
		).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
		if err != nil {
			return err
		}
		for _, roleID := range roleIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				account.ID, roleID,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return Account{}, fmt.Errorf("accounts: username %q: %w", account.Username, shared.ErrDuplicate)
		}
		return Account{}, err
	}
	return account, nil
}

// GrantRole adds a role to the account. Granting a role twice is a no-op.
func (r *PGRepository) GrantRole(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, roleID,
	)
	return err
}

// RevokeRole removes a role from the account. Supervision edges referring
// to the demoted account are left in place; the gate re-reads roles on
// every decision, so access stops immediately regardless.
func (r *PGRepository) RevokeRole(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`,
		userID, roleID,
	)
	return err
}

// Delete removes the account. Supervision edges must be severed first so
// the graph never references a missing account; both directions are
// cleared in the same transaction as the user row.
func (r *PGRepository) Delete(ctx context.Context, userID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM user_supervision WHERE dirigente_id = $1 OR acampante_id = $1`,
			userID,
		); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("accounts: user %d: %w", userID, shared.ErrNotFound)
		}
		return nil
	})
}

var _ Repository = (*PGRepository)(nil)
