package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/groupbuy/internal/model"
	"github.com/mmeshcher/groupbuy/internal/validation"
)

// ProductInput содержит поля товара, задаваемые администратором.
// Nil-поля при обновлении не меняются.
type ProductInput struct {
	Name              *string
	Description       *string
	Price             *decimal.Decimal
	Category          *string
	Image             *string
	Stock             *int
	SuperSaverEnabled *bool
}

func (in ProductInput) apply(p *model.Product) error {
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		if in.Price.IsNegative() {
			return invalid("price must not be negative")
		}
		p.Price = *in.Price
	}
	if in.Category != nil {
		p.Category = *in.Category
	}
	if in.Image != nil {
		p.Image = *in.Image
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return invalid("stock must not be negative")
		}
		p.Stock = *in.Stock
	}
	if in.SuperSaverEnabled != nil {
		p.SuperSaverEnabled = *in.SuperSaverEnabled
	}
	if p.Name == "" {
		return invalid("name is required")
	}
	return nil
}

// ListProducts возвращает каталог товаров.
func (s *Service) ListProducts(ctx context.Context) ([]model.Product, error) {
	res, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, unavailable("list products", err)
	}
	return res, nil
}

// GetProduct возвращает товар по идентификатору.
func (s *Service) GetProduct(ctx context.Context, id string) (model.Product, error) {
	if !validation.IsValidID(id) {
		return model.Product{}, ErrNotFound
	}

	p, found, err := s.lookupProduct(ctx, id)
	if err != nil {
		return model.Product{}, err
	}
	if !found {
		return model.Product{}, ErrNotFound
	}
	return p, nil
}

// CreateProduct создаёт товар. Доступно только администратору.
func (s *Service) CreateProduct(ctx context.Context, userID string, in ProductInput) (model.Product, error) {
	if err := s.requireAdmin(ctx, userID); err != nil {
		return model.Product{}, err
	}

	p := model.Product{
		ID:        "prod_" + uuid.NewString(),
		CreatedAt: s.now().UTC(),
	}
	if err := in.apply(&p); err != nil {
		return model.Product{}, err
	}

	if err := s.repo.SaveProduct(ctx, p); err != nil {
		return model.Product{}, unavailable("save product", err)
	}
	return p, nil
}

// UpdateProduct обновляет переданные поля товара. Доступно только администратору.
func (s *Service) UpdateProduct(ctx context.Context, userID, id string, in ProductInput) (model.Product, error) {
	if err := s.requireAdmin(ctx, userID); err != nil {
		return model.Product{}, err
	}

	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return model.Product{}, err
	}
	if err := in.apply(&p); err != nil {
		return model.Product{}, err
	}
	updatedAt := s.now().UTC()
	p.UpdatedAt = &updatedAt

	if err := s.repo.SaveProduct(ctx, p); err != nil {
		return model.Product{}, unavailable("save product", err)
	}
	return p, nil
}

// DeleteProduct удаляет товар. Пул товара и уведомления по нему не удаляются.
func (s *Service) DeleteProduct(ctx context.Context, userID, id string) error {
	if err := s.requireAdmin(ctx, userID); err != nil {
		return err
	}
	if _, err := s.GetProduct(ctx, id); err != nil {
		return err
	}

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return unavailable("delete product", err)
	}
	return nil
}
