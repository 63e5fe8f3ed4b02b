package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/groupbuy/internal/model"
	"github.com/mmeshcher/groupbuy/internal/repository"
	"github.com/mmeshcher/groupbuy/internal/tier"
	"github.com/mmeshcher/groupbuy/internal/validation"
)

// maxWriteAttempts ограничивает число повторов чтения-изменения-записи при конфликте версий.
const maxWriteAttempts = 8

var hundred = decimal.NewFromInt(100)

type poolChange struct {
	before  model.Pool
	after   model.Pool
	changed bool
}

// GetPool возвращает пул товара или пустой пул, если активности ещё не было.
// Пустой пул не сохраняется.
func (s *Service) GetPool(ctx context.Context, productID string) (model.Pool, error) {
	if !validation.IsValidID(productID) {
		return model.Pool{}, invalid("invalid product id")
	}

	pool, _, err := s.repo.GetPool(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.EmptyPool(productID), nil
		}
		return model.Pool{}, unavailable("get pool", err)
	}
	return pool, nil
}

// JoinPool добавляет пользователя в пул или перезаписывает его количество.
// Повторное вступление с тем же количеством ничего не записывает.
// При первом достижении максимального уровня скидки уведомляет администраторов.
func (s *Service) JoinPool(ctx context.Context, productID, userID string, quantity int) (model.Pool, error) {
	if !validation.IsValidID(productID) {
		return model.Pool{}, invalid("invalid product id")
	}
	if quantity < 1 {
		return model.Pool{}, invalid("quantity must be a positive integer")
	}
	if quantity > s.maxJoinQuantity {
		return model.Pool{}, invalid("quantity must be at most %d", s.maxJoinQuantity)
	}

	product, hasProduct, err := s.lookupProduct(ctx, productID)
	if err != nil {
		return model.Pool{}, err
	}
	if hasProduct && product.Stock > 0 && quantity > product.Stock {
		return model.Pool{}, invalid("quantity must not exceed stock of %d", product.Stock)
	}

	change, err := s.mutatePool(ctx, productID, func(p *model.Pool) bool {
		for i := range p.Participants {
			if p.Participants[i].UserID == userID {
				if p.Participants[i].Quantity == quantity {
					return false
				}
				p.Participants[i].Quantity = quantity
				return true
			}
		}
		p.Participants = append(p.Participants, model.Participant{UserID: userID, Quantity: quantity})
		return true
	})
	if err != nil {
		return model.Pool{}, err
	}

	s.metrics.IncJoin()

	if crossedMaxTier(change.before.DiscountTier, change.after.DiscountTier) {
		s.metrics.IncTierReached()
		name := productID
		if hasProduct {
			name = product.Name
		}
		s.notifyMaxTier(ctx, change.after, name)
	}

	return change.after, nil
}

// LeavePool удаляет пользователя из пула. Выход не участника ничего не меняет
// и возвращает wasInGroup == false.
func (s *Service) LeavePool(ctx context.Context, productID, userID string) (model.Pool, bool, error) {
	if !validation.IsValidID(productID) {
		return model.Pool{}, false, invalid("invalid product id")
	}

	change, err := s.mutatePool(ctx, productID, func(p *model.Pool) bool {
		kept := p.Participants[:0]
		removed := false
		for _, participant := range p.Participants {
			if participant.UserID == userID {
				removed = true
				continue
			}
			kept = append(kept, participant)
		}
		p.Participants = kept
		return removed
	})
	if err != nil {
		return model.Pool{}, false, err
	}

	if change.changed {
		s.metrics.IncLeave()
	}

	return change.after, change.changed, nil
}

// mutatePool применяет изменение к пулу как один атомарный переход:
// под блокировкой товара и с проверкой версии записи при сохранении.
// apply возвращает false, если пул не изменился; тогда запись не выполняется.
func (s *Service) mutatePool(ctx context.Context, productID string, apply func(*model.Pool) bool) (poolChange, error) {
	unlock, err := s.locker.Lock(ctx, productID)
	if err != nil {
		return poolChange{}, unavailable("lock pool", err)
	}
	defer unlock()

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		current, version, err := s.repo.GetPool(ctx, productID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				return poolChange{}, unavailable("get pool", err)
			}
			current, version = model.EmptyPool(productID), 0
		}

		next := clonePool(current)
		if !apply(&next) {
			return poolChange{before: current, after: current}, nil
		}

		if s.freezeAtMaxTier && current.DiscountTier == tier.Max {
			return poolChange{}, ErrPoolClosed
		}

		recompute(&next)
		next.UpdatedAt = s.now().UTC()

		if _, err := s.repo.SavePool(ctx, next, version); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				s.metrics.IncConflict()
				s.logger.Debug("pool version conflict, retrying",
					zap.String("productID", productID), zap.Int("attempt", attempt+1))
				continue
			}
			return poolChange{}, unavailable("save pool", err)
		}

		return poolChange{before: current, after: next, changed: true}, nil
	}

	return poolChange{}, ErrConflict
}

// recompute пересчитывает производные поля пула полным суммированием.
func recompute(p *model.Pool) {
	total := 0
	for _, participant := range p.Participants {
		total += participant.Quantity
	}
	p.TotalQuantity = total
	p.DiscountTier = tier.For(total)
}

func clonePool(p model.Pool) model.Pool {
	out := p
	out.Participants = make([]model.Participant, len(p.Participants))
	copy(out.Participants, p.Participants)
	return out
}

func (s *Service) lookupProduct(ctx context.Context, productID string) (model.Product, bool, error) {
	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Product{}, false, nil
		}
		return model.Product{}, false, unavailable("get product", err)
	}
	return p, true, nil
}

// DiscountTiers возвращает таблицу уровней скидки по возрастанию порога.
func (s *Service) DiscountTiers() []tier.Step {
	return tier.Steps()
}

// ListPools возвращает пулы, дополненные названием товара и данными участников.
// Не администратор видит только пулы, в которых участвует сам.
func (s *Service) ListPools(ctx context.Context, userID string) ([]model.PoolView, error) {
	admin, err := s.isAdmin(ctx, userID)
	if err != nil {
		return nil, err
	}

	pools, err := s.repo.ListPools(ctx)
	if err != nil {
		return nil, unavailable("list pools", err)
	}

	visible := pools[:0]
	for _, p := range pools {
		if admin || p.Has(userID) {
			visible = append(visible, p)
		}
	}
	if len(visible) == 0 {
		return []model.PoolView{}, nil
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, unavailable("list products", err)
	}
	productsByID := make(map[string]model.Product, len(products))
	for _, p := range products {
		productsByID[p.ID] = p
	}

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, unavailable("list users", err)
	}
	usersByID := make(map[string]model.User, len(users))
	for _, u := range users {
		usersByID[u.ID] = u
	}

	views := make([]model.PoolView, 0, len(visible))
	for _, p := range visible {
		views = append(views, poolView(p, productsByID, usersByID))
	}
	return views, nil
}

func poolView(p model.Pool, products map[string]model.Product, users map[string]model.User) model.PoolView {
	v := model.PoolView{
		ProductID:     p.ProductID,
		ProductName:   p.ProductID,
		Participants:  make([]model.ParticipantView, 0, len(p.Participants)),
		TotalQuantity: p.TotalQuantity,
		DiscountTier:  p.DiscountTier,
		UpdatedAt:     p.UpdatedAt,
	}

	if next, ok := tier.Next(p.TotalQuantity); ok {
		v.NextTier = &model.NextTier{
			Percent:       next.Percent,
			MinQuantity:   next.MinQuantity,
			UnitsRequired: next.MinQuantity - p.TotalQuantity,
		}
	}

	if product, ok := products[p.ProductID]; ok {
		v.ProductName = product.Name
		price := product.Price
		discounted := price.Mul(hundred.Sub(decimal.NewFromInt(int64(p.DiscountTier)))).Div(hundred).Round(2)
		v.UnitPrice = &price
		v.DiscountedPrice = &discounted
	}

	for _, participant := range p.Participants {
		pv := model.ParticipantView{UserID: participant.UserID, Quantity: participant.Quantity}
		if u, ok := users[participant.UserID]; ok {
			pv.Email = u.Email
			pv.Name = u.Name
		}
		v.Participants = append(v.Participants, pv)
	}

	return v
}
