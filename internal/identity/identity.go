// Package identity разрешает bearer-токены в идентификаторы пользователей.
package identity

import (
	"context"
	"errors"
)

var (
	// ErrInvalidCredential возвращается для отсутствующего, просроченного или поддельного токена.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrProviderUnavailable возвращается, если внешний провайдер не ответил корректно.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	// ErrProfileConflict возвращается, если email из токена уже принадлежит другому профилю.
	ErrProfileConflict = errors.New("email belongs to another profile")
)

// Principal описывает владельца токена.
// Email и Name заполняет только внешний провайдер.
type Principal struct {
	UserID string
	Email  string
	Name   string
}

// Resolver разрешает токен во владельца.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (Principal, error)
}
