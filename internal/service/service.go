// Package service реализует бизнес-логику сервиса совместных покупок.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/groupbuy/internal/lock"
	"github.com/mmeshcher/groupbuy/internal/metrics"
	"github.com/mmeshcher/groupbuy/internal/model"
	"github.com/mmeshcher/groupbuy/internal/repository"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	GetPool(ctx context.Context, productID string) (model.Pool, int64, error)
	SavePool(ctx context.Context, pool model.Pool, version int64) (int64, error)
	ListPools(ctx context.Context) ([]model.Pool, error)

	GetProduct(ctx context.Context, id string) (model.Product, error)
	SaveProduct(ctx context.Context, p model.Product) error
	DeleteProduct(ctx context.Context, id string) error
	ListProducts(ctx context.Context) ([]model.Product, error)

	CreateUser(ctx context.Context, u model.User) error
	SaveUser(ctx context.Context, u model.User) error
	GetUser(ctx context.Context, id string) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	GetCart(ctx context.Context, userID string) (model.Cart, error)
	SaveCart(ctx context.Context, c model.Cart) error

	CreateNotification(ctx context.Context, n model.Notification) error
	GetNotification(ctx context.Context, recipientID, id string) (model.Notification, int64, error)
	SaveNotification(ctx context.Context, n model.Notification, version int64) error
	DeleteNotification(ctx context.Context, recipientID, id string) error
	ListNotifications(ctx context.Context, recipientID string) ([]model.Notification, error)
}

// MaxTierPolicy определяет, что происходит с пулом, достигшим максимального уровня скидки.
type MaxTierPolicy string

const (
	// MaxTierOpen оставляет пул открытым для вступления и выхода.
	MaxTierOpen MaxTierPolicy = "open"
	// MaxTierFreeze запрещает изменять пул на максимальном уровне.
	MaxTierFreeze MaxTierPolicy = "freeze"
)

// Options содержит настройки сервиса.
type Options struct {
	MaxJoinQuantity       int
	MaxTierPolicy         MaxTierPolicy
	AdminEmails           []string
	NotificationRetention time.Duration
	SweepInterval         time.Duration

	Locker  lock.Locker
	Metrics *metrics.PoolMetrics
	Logger  *zap.Logger
}

// Service содержит бизнес-логику сервиса совместных покупок.
type Service struct {
	repo    Repository
	locker  lock.Locker
	metrics *metrics.PoolMetrics
	logger  *zap.Logger
	now     func() time.Time

	maxJoinQuantity int
	freezeAtMaxTier bool
	adminEmails     map[string]struct{}
	retention       time.Duration
	sweepInterval   time.Duration
}

// NewService создаёт новый сервис с указанным репозиторием и настройками.
func NewService(repo Repository, opts Options) *Service {
	s := &Service{
		repo:            repo,
		locker:          opts.Locker,
		metrics:         opts.Metrics,
		logger:          opts.Logger,
		now:             time.Now,
		maxJoinQuantity: opts.MaxJoinQuantity,
		freezeAtMaxTier: opts.MaxTierPolicy == MaxTierFreeze,
		adminEmails:     make(map[string]struct{}, len(opts.AdminEmails)),
		retention:       opts.NotificationRetention,
		sweepInterval:   opts.SweepInterval,
	}

	if s.locker == nil {
		s.locker = lock.NewKeyedMutex()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.maxJoinQuantity <= 0 {
		s.maxJoinQuantity = 1000
	}
	if s.sweepInterval <= 0 {
		s.sweepInterval = time.Hour
	}
	for _, e := range opts.AdminEmails {
		if e = normalizeEmail(e); e != "" {
			s.adminEmails[e] = struct{}{}
		}
	}

	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func (s *Service) isAdmin(ctx context.Context, userID string) (bool, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, unavailable("get user", err)
	}
	return u.IsAdmin, nil
}

func (s *Service) requireAdmin(ctx context.Context, userID string) error {
	admin, err := s.isAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if !admin {
		return ErrForbidden
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
