package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service exposes the atomic balance increments every fulfillment and reward path goes through.
type Service interface {
	AddCredits(ctx context.Context, userID uuid.UUID, delta int) (int, error)
	AddPoints(ctx context.Context, userID uuid.UUID, delta int) (int, error)
	AddCommission(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) Service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

func (s *service) AddCredits(ctx context.Context, userID uuid.UUID, delta int) (int, error) {
	return s.repo.AddCredits(ctx, userID, delta)
}

func (s *service) AddPoints(ctx context.Context, userID uuid.UUID, delta int) (int, error) {
	return s.repo.AddPoints(ctx, userID, delta)
}

func (s *service) AddCommission(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	return s.repo.AddCommission(ctx, userID, delta.Round(2))
}
