package service

import (
	"context"

	"github.com/mmeshcher/groupbuy/internal/model"
	"github.com/mmeshcher/groupbuy/internal/tier"
)

// GetAnalytics возвращает сводные показатели. Доступно только администратору.
func (s *Service) GetAnalytics(ctx context.Context, userID string) (model.Analytics, error) {
	if err := s.requireAdmin(ctx, userID); err != nil {
		return model.Analytics{}, err
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return model.Analytics{}, unavailable("list products", err)
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return model.Analytics{}, unavailable("list users", err)
	}
	pools, err := s.repo.ListPools(ctx)
	if err != nil {
		return model.Analytics{}, unavailable("list pools", err)
	}

	a := model.Analytics{
		TotalProducts: len(products),
		TotalUsers:    len(users),
	}
	for _, p := range pools {
		if len(p.Participants) == 0 {
			continue
		}
		a.ActiveGroups++
		a.CommittedQuantity += p.TotalQuantity
		if p.DiscountTier == tier.Max {
			a.MaxTierGroups++
		}
	}
	return a, nil
}
