package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/groupbuy/internal/model"
	"github.com/mmeshcher/groupbuy/internal/repository"
	"github.com/mmeshcher/groupbuy/internal/validation"
)

const maxCartItems = 100

// GetCart возвращает корзину пользователя с ценами каталога.
// Пустая корзина не сохраняется.
func (s *Service) GetCart(ctx context.Context, userID string) (model.CartView, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return model.CartView{}, unavailable("get cart", err)
		}
		cart = model.Cart{UserID: userID, Items: []model.CartItem{}}
	}
	return s.cartView(ctx, cart)
}

// ReplaceCart заменяет содержимое корзины пользователя.
// Пустой список очищает корзину.
func (s *Service) ReplaceCart(ctx context.Context, userID string, items []model.CartItem) (model.CartView, error) {
	if len(items) > maxCartItems {
		return model.CartView{}, invalid("cart must contain at most %d items", maxCartItems)
	}

	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if !validation.IsValidID(item.ProductID) {
			return model.CartView{}, invalid("invalid product id")
		}
		if _, dup := seen[item.ProductID]; dup {
			return model.CartView{}, invalid("product %s is listed twice", item.ProductID)
		}
		seen[item.ProductID] = struct{}{}

		if item.Quantity < 1 || item.Quantity > s.maxJoinQuantity {
			return model.CartView{}, invalid("quantity must be between 1 and %d", s.maxJoinQuantity)
		}

		product, found, err := s.lookupProduct(ctx, item.ProductID)
		if err != nil {
			return model.CartView{}, err
		}
		if !found {
			return model.CartView{}, invalid("product %s does not exist", item.ProductID)
		}
		if product.Stock > 0 && item.Quantity > product.Stock {
			return model.CartView{}, invalid("quantity must not exceed stock of %d", product.Stock)
		}
	}

	cart := model.Cart{
		UserID:    userID,
		Items:     append([]model.CartItem{}, items...),
		UpdatedAt: s.now().UTC(),
	}
	if err := s.repo.SaveCart(ctx, cart); err != nil {
		return model.CartView{}, unavailable("save cart", err)
	}

	return s.cartView(ctx, cart)
}

func (s *Service) cartView(ctx context.Context, cart model.Cart) (model.CartView, error) {
	v := model.CartView{
		Items: make([]model.CartLine, 0, len(cart.Items)),
		Total: decimal.Zero,
	}
	if !cart.UpdatedAt.IsZero() {
		updatedAt := cart.UpdatedAt
		v.UpdatedAt = &updatedAt
	}

	for _, item := range cart.Items {
		line := model.CartLine{ProductID: item.ProductID, Name: item.ProductID, Quantity: item.Quantity}

		product, found, err := s.lookupProduct(ctx, item.ProductID)
		if err != nil {
			return model.CartView{}, err
		}
		if found {
			price := product.Price
			total := price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			line.Name = product.Name
			line.UnitPrice = &price
			line.LineTotal = &total
			v.Total = v.Total.Add(total)
		}

		v.Items = append(v.Items, line)
	}

	return v, nil
}
