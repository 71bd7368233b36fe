package packinglist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/campassistant/campassistant/internal/accounts"
	"github.com/campassistant/campassistant/internal/shared"
)

// AccountSource is the subset of the account store used to validate list
// owners.
type AccountSource interface {
	GetByID(ctx context.Context, id int64) (accounts.Account, error)
}

// Service owns packing-list operations.
type Service struct {
	repo     Repository
	accounts AccountSource
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, accountSource AccountSource, logger *slog.Logger) *Service {
	return &Service{repo: repo, accounts: accountSource, logger: logger}
}

// Get returns the user's packing list. A user who never saved gets the
// empty list, not an error; a user that does not exist is an error.
func (s *Service) Get(ctx context.Context, userID int64) (List, error) {
	if _, err := s.accounts.GetByID(ctx, userID); err != nil {
		return List{}, fmt.Errorf("list owner: %w", err)
	}
	list, err := s.repo.GetByUser(ctx, userID)
	if errors.Is(err, shared.ErrNotFound) {
		return List{UserID: userID, Categories: []Category{}}, nil
	}
	return list, err
}

// Save replaces the user's packing list with the given categories.
func (s *Service) Save(ctx context.Context, userID int64, categories []Category) (List, error) {
	if _, err := s.accounts.GetByID(ctx, userID); err != nil {
		return List{}, fmt.Errorf("list owner: %w", err)
	}
	return s.repo.Replace(ctx, userID, categories)
}
