package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/groupbuy/internal/identity"
	"github.com/mmeshcher/groupbuy/internal/model"
	"github.com/mmeshcher/groupbuy/internal/repository"
)

const minPasswordLength = 6

// RegisterUser регистрирует нового пользователя.
// Права администратора выдаются только адресам из списка администраторов.
func (s *Service) RegisterUser(ctx context.Context, email, password, name string) (model.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return model.User{}, invalid("email is required")
	}
	if len(password) < minPasswordLength {
		return model.User{}, invalid("password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, invalid("password cannot be hashed")
	}

	_, admin := s.adminEmails[email]
	u := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		IsAdmin:      admin,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.repo.CreateUser(ctx, u); err != nil {
		switch {
		case errors.Is(err, repository.ErrKeyExists):
			return model.User{}, ErrUserExists
		case errors.Is(err, repository.ErrInvalidRecord):
			return model.User{}, invalid("email must be a valid email")
		}
		return model.User{}, unavailable("create user", err)
	}

	return u, nil
}

// AuthenticateUser проверяет email и пароль пользователя и возвращает его профиль.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, ErrInvalidCredentials
		}
		return model.User{}, unavailable("get user", err)
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return model.User{}, ErrInvalidCredentials
	}

	return u, nil
}

// GetUser возвращает профиль пользователя.
func (s *Service) GetUser(ctx context.Context, userID string) (model.User, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, unavailable("get user", err)
	}
	return u, nil
}

// EnsureUser заводит профиль пользователя, разрешённого внешним провайдером,
// при его первом обращении. Права администратора выдаются по списку администраторов
// и пересматриваются при каждом обращении, как и отображаемое имя.
// Владелец локального токена без email уже имеет профиль, и вызов ничего не делает.
func (s *Service) EnsureUser(ctx context.Context, p identity.Principal) error {
	email := normalizeEmail(p.Email)
	if email == "" {
		return nil
	}

	u, err := s.repo.GetUser(ctx, p.UserID)
	switch {
	case err == nil:
		return s.refreshUser(ctx, u, p.Name)
	case !errors.Is(err, repository.ErrNotFound):
		return unavailable("get user", err)
	}

	_, admin := s.adminEmails[email]
	u = model.User{
		ID:        p.UserID,
		Email:     email,
		Name:      p.Name,
		IsAdmin:   admin,
		CreatedAt: s.now().UTC(),
	}

	err = s.repo.CreateUser(ctx, u)
	switch {
	case err == nil:
		s.logger.Info("user profile provisioned",
			zap.String("userID", u.ID), zap.Bool("admin", u.IsAdmin))
		return nil
	case errors.Is(err, repository.ErrInvalidRecord):
		s.logger.Warn("provider email rejected, profile not provisioned",
			zap.String("userID", p.UserID), zap.Error(err))
		return nil
	case !errors.Is(err, repository.ErrKeyExists):
		return unavailable("create user", err)
	}

	owner, err := s.repo.GetUserByEmail(ctx, email)
	switch {
	case err == nil && owner.ID == p.UserID:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		// профиль создаётся параллельным запросом
		return nil
	case err != nil:
		return unavailable("get user by email", err)
	}
	return fmt.Errorf("%w: %s", identity.ErrProfileConflict, email)
}

func (s *Service) refreshUser(ctx context.Context, u model.User, name string) error {
	_, admin := s.adminEmails[normalizeEmail(u.Email)]
	if u.IsAdmin == admin && (name == "" || name == u.Name) {
		return nil
	}

	if u.IsAdmin != admin {
		s.logger.Info("user admin flag changed",
			zap.String("userID", u.ID), zap.Bool("admin", admin))
	}
	u.IsAdmin = admin
	if name != "" {
		u.Name = name
	}

	if err := s.repo.SaveUser(ctx, u); err != nil {
		return unavailable("save user", err)
	}
	return nil
}
