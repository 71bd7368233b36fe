package packinglist

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campassistant/campassistant/internal/accounts"
	"github.com/campassistant/campassistant/internal/shared"
)

type memoryListRepo struct {
	lists map[int64]List
}

func (r *memoryListRepo) GetByUser(ctx context.Context, userID int64) (List, error) {
	list, ok := r.lists[userID]
	if !ok {
		return List{}, fmt.Errorf("packing list for user %d: %w", userID, shared.ErrNotFound)
	}
	return list, nil
}

func (r *memoryListRepo) Replace(ctx context.Context, userID int64, categories []Category) (List, error) {
	list := List{ID: userID, UserID: userID, Categories: categories, UpdatedAt: time.Now()}
	r.lists[userID] = list
	return list, nil
}

type stubAccountSource struct {
	known map[int64]bool
}

func (s *stubAccountSource) GetByID(ctx context.Context, id int64) (accounts.Account, error) {
	if !s.known[id] {
		return accounts.Account{}, fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	return accounts.Account{ID: id}, nil
}

func newListService(users ...int64) *Service {
	known := make(map[int64]bool, len(users))
	for _, id := range users {
		known[id] = true
	}
	repo := &memoryListRepo{lists: make(map[int64]List)}
	return NewService(repo, &stubAccountSource{known: known}, slog.Default())
}

func TestGetReturnsEmptyListForUnsavedUser(t *testing.T) {
	svc := newListService(7)

	list, err := svc.Get(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, int64(7), list.UserID)
	require.NotNil(t, list.Categories)
	require.Empty(t, list.Categories)
}

func TestGetRequiresExistingOwner(t *testing.T) {
	svc := newListService(7)

	_, err := svc.Get(context.Background(), 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSaveReplacesWholeList(t *testing.T) {
	svc := newListService(7)
	ctx := context.Background()

	first, err := svc.Save(ctx, 7, []Category{
		{Title: "Ropa", Items: []Item{{Text: "Campera"}, {Text: "Botas"}}},
		{Title: "Higiene", Items: []Item{{Text: "Cepillo"}}},
	})
	require.NoError(t, err)
	require.Len(t, first.Categories, 2)

	second, err := svc.Save(ctx, 7, []Category{
		{Title: "Equipo", Items: []Item{{Text: "Linterna", Checked: true}}},
	})
	require.NoError(t, err)
	require.Len(t, second.Categories, 1)
	require.Equal(t, "Equipo", second.Categories[0].Title)

	stored, err := svc.Get(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, second.Categories, stored.Categories)
}

func TestSaveRequiresExistingOwner(t *testing.T) {
	svc := newListService(7)

	_, err := svc.Save(context.Background(), 404, []Category{{Title: "Ropa"}})
	require.ErrorIs(t, err, shared.ErrNotFound)
}
