package service

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated возвращается, если вызывающий не аутентифицирован.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden возвращается, если у аутентифицированного пользователя нет прав администратора.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound возвращается, если запрошенный товар или уведомление не найдены.
	ErrNotFound = errors.New("not found")
	// ErrValidation возвращается при некорректных входных данных до любых изменений хранилища.
	ErrValidation = errors.New("validation failed")
	// ErrUnavailable возвращается при сбое хранилища. Операцию можно повторить.
	ErrUnavailable = errors.New("service unavailable")
	// ErrConflict возвращается, если запись пула не удалось сохранить из-за конкурентных изменений.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrPoolClosed возвращается при изменении пула, закрытого политикой максимального уровня.
	ErrPoolClosed = errors.New("pool is closed")
	// ErrUserExists возвращается при регистрации с занятым email.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials возвращается при неверной паре email/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError описывает причину отклонения входных данных.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// Is позволяет сравнивать ValidationError с ErrValidation через errors.Is.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
