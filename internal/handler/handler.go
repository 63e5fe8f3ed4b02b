// Package handler содержит HTTP-обработчики API сервиса совместных покупок.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/groupbuy/internal/middleware"
	"github.com/mmeshcher/groupbuy/internal/model"
	"github.com/mmeshcher/groupbuy/internal/service"
	"github.com/mmeshcher/groupbuy/internal/tier"
	"github.com/mmeshcher/groupbuy/internal/validation"
)

const maxBodyBytes = 1 << 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, email, password, name string) (model.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (model.User, error)
	GetUser(ctx context.Context, userID string) (model.User, error)

	GetPool(ctx context.Context, productID string) (model.Pool, error)
	JoinPool(ctx context.Context, productID, userID string, quantity int) (model.Pool, error)
	LeavePool(ctx context.Context, productID, userID string) (model.Pool, bool, error)
	ListPools(ctx context.Context, userID string) ([]model.PoolView, error)
	DiscountTiers() []tier.Step

	ListNotifications(ctx context.Context, userID string) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) (model.Notification, error)

	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id string) (model.Product, error)
	CreateProduct(ctx context.Context, userID string, in service.ProductInput) (model.Product, error)
	UpdateProduct(ctx context.Context, userID, id string, in service.ProductInput) (model.Product, error)
	DeleteProduct(ctx context.Context, userID, id string) error

	GetCart(ctx context.Context, userID string) (model.CartView, error)
	ReplaceCart(ctx context.Context, userID string, items []model.CartItem) (model.CartView, error)

	GetAnalytics(ctx context.Context, userID string) (model.Analytics, error)
}

// TokenIssuer выпускает токены доступа для локальной регистрации и входа.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// Handler реализует HTTP-обработчики API сервиса совместных покупок.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	issuer         TokenIssuer
	metrics        http.Handler
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// При issuer == nil маршруты регистрации и входа не подключаются,
// при metrics == nil не подключается /metrics.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, issuer TokenIssuer, metrics http.Handler) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		issuer:         issuer,
		metrics:        metrics,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON читает тело запроса и проверяет его по тегам validate.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "validation", "malformed request body", false)
		return false
	}
	if err := validation.Struct(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "validation", err.Error(), false)
		return false
	}
	return true
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, service.ErrUnauthenticated, "")
	}
	return userID, ok
}

// writeError переводит ошибку сервиса в HTTP-статус и код ошибки.
// Подробности сбоев хранилища только логируются.
func (h *Handler) writeError(w http.ResponseWriter, err error, op string, fields ...zap.Field) {
	var verr *service.ValidationError

	switch {
	case errors.As(err, &verr):
		middleware.WriteError(w, http.StatusBadRequest, "validation", verr.Reason, false)
	case errors.Is(err, service.ErrValidation):
		middleware.WriteError(w, http.StatusBadRequest, "validation", "invalid input", false)
	case errors.Is(err, service.ErrUnauthenticated):
		middleware.WriteError(w, http.StatusUnauthorized, "unauthenticated", "authentication required", false)
	case errors.Is(err, service.ErrInvalidCredentials):
		middleware.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", false)
	case errors.Is(err, service.ErrForbidden):
		middleware.WriteError(w, http.StatusForbidden, "forbidden", "administrator access required", false)
	case errors.Is(err, service.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "not_found", "resource not found", false)
	case errors.Is(err, service.ErrUserExists):
		middleware.WriteError(w, http.StatusConflict, "user_exists", "user already exists", false)
	case errors.Is(err, service.ErrPoolClosed):
		middleware.WriteError(w, http.StatusConflict, "pool_closed", "pool reached the maximum tier and is closed", false)
	case errors.Is(err, service.ErrConflict):
		h.logger.Warn(op+" conflict", append(fields, zap.Error(err))...)
		middleware.WriteError(w, http.StatusConflict, "conflict", "concurrent update, retry the request", true)
	case errors.Is(err, service.ErrUnavailable):
		h.logger.Error(op+" error", append(fields, zap.Error(err))...)
		middleware.WriteError(w, http.StatusServiceUnavailable, "unavailable", "service temporarily unavailable", true)
	default:
		h.logger.Error(op+" error", append(fields, zap.Error(err))...)
		middleware.WriteError(w, http.StatusInternalServerError, "internal", "internal error", false)
	}
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

func newUserResponse(u model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"max=200"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Signup регистрирует пользователя и возвращает токен доступа.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.service.RegisterUser(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.writeError(w, err, "register user")
		return
	}

	h.writeSession(w, http.StatusCreated, u)
}

// Login выполняет аутентификацию пользователя и возвращает токен доступа.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err, "login user")
		return
	}

	h.writeSession(w, http.StatusOK, u)
}

func (h *Handler) writeSession(w http.ResponseWriter, status int, u model.User) {
	token, err := h.issuer.Issue(u.ID)
	if err != nil {
		h.writeError(w, err, "issue token", zap.String("userID", u.ID))
		return
	}
	writeJSON(w, status, sessionResponse{Token: token, User: newUserResponse(u)})
}

// Me возвращает профиль текущего пользователя.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	u, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "get user", zap.String("userID", userID))
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(u))
}

// GetAnalytics возвращает сводные показатели для администратора.
func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	a, err := h.service.GetAnalytics(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "get analytics", zap.String("userID", userID))
		return
	}

	writeJSON(w, http.StatusOK, a)
}
