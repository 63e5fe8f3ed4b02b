package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/groupbuy/internal/model"
)

type joinRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type leaveResponse struct {
	Pool       model.Pool `json:"pool"`
	WasInGroup bool       `json:"wasInGroup"`
}

// GetPool возвращает пул товара. Аутентификация не требуется.
func (h *Handler) GetPool(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	pool, err := h.service.GetPool(r.Context(), productID)
	if err != nil {
		h.writeError(w, err, "get pool", zap.String("productID", productID))
		return
	}

	writeJSON(w, http.StatusOK, pool)
}

// ListTiers возвращает таблицу уровней скидки. Аутентификация не требуется.
func (h *Handler) ListTiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.DiscountTiers())
}

// ListPools возвращает пулы, видимые текущему пользователю.
func (h *Handler) ListPools(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	pools, err := h.service.ListPools(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "list pools", zap.String("userID", userID))
		return
	}

	writeJSON(w, http.StatusOK, pools)
}

// JoinPool добавляет текущего пользователя в пул или меняет его количество.
func (h *Handler) JoinPool(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productId")

	var req joinRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pool, err := h.service.JoinPool(r.Context(), productID, userID, *req.Quantity)
	if err != nil {
		h.writeError(w, err, "join pool", zap.String("userID", userID), zap.String("productID", productID))
		return
	}

	writeJSON(w, http.StatusOK, pool)
}

// LeavePool удаляет текущего пользователя из пула.
func (h *Handler) LeavePool(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productId")

	pool, wasInGroup, err := h.service.LeavePool(r.Context(), productID, userID)
	if err != nil {
		h.writeError(w, err, "leave pool", zap.String("userID", userID), zap.String("productID", productID))
		return
	}

	writeJSON(w, http.StatusOK, leaveResponse{Pool: pool, WasInGroup: wasInGroup})
}

// ListNotifications возвращает уведомления текущего пользователя.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListNotifications(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "list notifications", zap.String("userID", userID))
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// MarkNotificationRead отмечает уведомление текущего пользователя прочитанным.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	notificationID := chi.URLParam(r, "id")

	n, err := h.service.MarkNotificationRead(r.Context(), userID, notificationID)
	if err != nil {
		h.writeError(w, err, "mark notification read",
			zap.String("userID", userID), zap.String("notificationID", notificationID))
		return
	}

	writeJSON(w, http.StatusOK, n)
}
