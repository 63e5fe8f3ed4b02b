package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/groupbuy/internal/model"
)

type cartItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  *int   `json:"quantity" validate:"required"`
}

type cartRequest struct {
	Items []cartItemRequest `json:"items" validate:"required,dive"`
}

// GetCart возвращает корзину текущего пользователя.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	cart, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "get cart", zap.String("userID", userID))
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

// ReplaceCart заменяет содержимое корзины текущего пользователя.
func (h *Handler) ReplaceCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req cartRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	items := make([]model.CartItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, model.CartItem{ProductID: item.ProductID, Quantity: *item.Quantity})
	}

	cart, err := h.service.ReplaceCart(r.Context(), userID, items)
	if err != nil {
		h.writeError(w, err, "replace cart", zap.String("userID", userID), zap.Int("items", len(items)))
		return
	}

	writeJSON(w, http.StatusOK, cart)
}
