package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/groupbuy/internal/service"
)

type productRequest struct {
	Name              *string          `json:"name" validate:"omitempty,max=200"`
	Description       *string          `json:"description" validate:"omitempty,max=5000"`
	Price             *decimal.Decimal `json:"price"`
	Category          *string          `json:"category" validate:"omitempty,max=100"`
	Image             *string          `json:"image" validate:"omitempty,max=2048"`
	Stock             *int             `json:"stock" validate:"omitempty,gte=0"`
	SuperSaverEnabled *bool            `json:"superSaverEnabled"`
}

func (p productRequest) input() service.ProductInput {
	return service.ProductInput{
		Name:              p.Name,
		Description:       p.Description,
		Price:             p.Price,
		Category:          p.Category,
		Image:             p.Image,
		Stock:             p.Stock,
		SuperSaverEnabled: p.SuperSaverEnabled,
	}
}

// ListProducts возвращает каталог товаров.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.writeError(w, err, "list products")
		return
	}

	writeJSON(w, http.StatusOK, products)
}

// GetProduct возвращает товар.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "get product", zap.String("productID", id))
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// CreateProduct создаёт товар.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.CreateProduct(r.Context(), userID, req.input())
	if err != nil {
		h.writeError(w, err, "create product", zap.String("userID", userID))
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// UpdateProduct обновляет переданные поля товара.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.UpdateProduct(r.Context(), userID, id, req.input())
	if err != nil {
		h.writeError(w, err, "update product", zap.String("userID", userID), zap.String("productID", id))
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// DeleteProduct удаляет товар.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteProduct(r.Context(), userID, id); err != nil {
		h.writeError(w, err, "delete product", zap.String("userID", userID), zap.String("productID", id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
