// Package middleware содержит HTTP middleware сервиса совместных покупок.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/groupbuy/internal/identity"
)

type contextKey string

const userIDKey contextKey = "userID"

// ErrorBody описывает тело ответа с ошибкой.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail описывает ошибку, различимую клиентом.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// WriteError пишет ошибку в формате JSON.
func WriteError(w http.ResponseWriter, status int, code, message string, retryable bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		Retryable: retryable,
	}})
}

// Provisioner заводит профиль владельца токена, если его ещё нет.
type Provisioner interface {
	EnsureUser(ctx context.Context, p identity.Principal) error
}

// AuthMiddleware проверяет bearer-токен запроса через Resolver.
type AuthMiddleware struct {
	resolver    identity.Resolver
	provisioner Provisioner
	logger      *zap.Logger
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware.
// provisioner может быть nil, тогда профили не создаются.
func NewAuthMiddleware(resolver identity.Resolver, provisioner Provisioner, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{
		resolver:    resolver,
		provisioner: provisioner,
		logger:      logger,
	}
}

// Middleware разрешает токен из заголовка Authorization и добавляет идентификатор пользователя в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			WriteError(w, http.StatusUnauthorized, "unauthenticated", "missing bearer token", false)
			return
		}

		principal, err := a.resolver.Resolve(r.Context(), token)
		if err != nil {
			if errors.Is(err, identity.ErrProviderUnavailable) {
				a.logger.Error("identity provider unavailable", zap.Error(err))
				WriteError(w, http.StatusServiceUnavailable, "unavailable", "identity provider unavailable", true)
				return
			}
			WriteError(w, http.StatusUnauthorized, "unauthenticated", "invalid credential", false)
			return
		}

		if a.provisioner != nil {
			if err := a.provisioner.EnsureUser(r.Context(), principal); err != nil {
				if errors.Is(err, identity.ErrProfileConflict) {
					WriteError(w, http.StatusConflict, "user_exists", "email belongs to another account", false)
					return
				}
				a.logger.Error("provision user profile", zap.String("userID", principal.UserID), zap.Error(err))
				WriteError(w, http.StatusServiceUnavailable, "unavailable", "user profile unavailable", true)
				return
			}
		}

		ctx := context.WithValue(r.Context(), userIDKey, principal.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) < len("bearer ") || !strings.EqualFold(raw[:len("bearer ")], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(raw[len("bearer "):])
	return token, token != ""
}

// WithUserID возвращает контекст с идентификатором пользователя.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserIDFromContext извлекает идентификатор пользователя из контекста запроса.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}
