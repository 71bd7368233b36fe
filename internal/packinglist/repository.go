package packinglist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campassistant/campassistant/internal/platform/db"
	"github.com/campassistant/campassistant/internal/shared"
)

// Repository provides persistence for packing lists.
type Repository interface {
	GetByUser(ctx context.Context, userID int64) (List, error)
	Replace(ctx context.Context, userID int64, categories []Category) (List, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetByUser loads a user's packing list with its categories and items.
// Returns shared.ErrNotFound when the user never saved a list.
func (r *PGRepository) GetByUser(ctx context.Context, userID int64) (List, error) {
	var list List
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, updated_at FROM packing_lists WHERE user_id = $1`, userID,
	).Scan(&list.ID, &list.UserID, &list.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return List{}, fmt.Errorf("packing list for user %d: %w", userID, shared.ErrNotFound)
	}
	if err != nil {
		return List{}, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.title, c.display_order, i.id, i.text, i.checked, i.display_order
		 FROM packing_list_categories c
		 LEFT JOIN packing_list_items i ON i.category_id = c.id
		 WHERE c.packing_list_id = $1
		 ORDER BY c.display_order, c.id, i.display_order, i.id`,
		list.ID,
	)
	if err != nil {
		return List{}, err
	}
	defer rows.Close()

	list.Categories = []Category{}
	for rows.Next() {
		var (
			catID        int64
			catTitle     string
			catOrder     int
			itemID       *int64
			itemText     *string
			itemChecked  *bool
			itemOrder    *int
		)
		if err := rows.Scan(&catID, &catTitle, &catOrder, &itemID, &itemText, &itemChecked, &itemOrder); err != nil {
			return List{}, err
		}
		n := len(list.Categories)
		if n == 0 || list.Categories[n-1].ID != catID {
			list.Categories = append(list.Categories, Category{ID: catID, Title: catTitle, DisplayOrder: catOrder, Items: []Item{}})
			n++
		}
		if itemID != nil {
			list.Categories[n-1].Items = append(list.Categories[n-1].Items, Item{
				ID:           *itemID,
				Text:         *itemText,
				Checked:      *itemChecked,
				DisplayOrder: *itemOrder,
			})
		}
	}
	return list, rows.Err()
}

// Replace swaps the entire list content in one transaction: the list row
// is upserted, old categories are dropped, and the new tree is inserted.
// Readers never observe a half-replaced list.
func (r *PGRepository) Replace(ctx context.Context, userID int64, categories []Category) (List, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var listID int64
		if err := tx.QueryRow(ctx,
			`INSERT INTO packing_lists (user_id) VALUES ($1)
			 ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
			 RETURNING id`,
			userID,
		).Scan(&listID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM packing_list_categories WHERE packing_list_id = $1`, listID); err != nil {
			return err
		}
		for ci, cat := range categories {
			var catID int64
			if err := tx.QueryRow(ctx,
				`INSERT INTO packing_list_categories (packing_list_id, title, display_order)
				 VALUES ($1, $2, $3) RETURNING id`,
				listID, cat.Title, ci,
			).Scan(&catID); err != nil {
				return err
			}
			for ii, item := range cat.Items {
				if _, err := tx.Exec(ctx,
					`INSERT INTO packing_list_items (category_id, text, checked, display_order)
					 VALUES ($1, $2, $3, $4)`,
					catID, item.Text, item.Checked, ii,
				); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return List{}, err
	}
	return r.GetByUser(ctx, userID)
}
