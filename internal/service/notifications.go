package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/groupbuy/internal/model"
	"github.com/mmeshcher/groupbuy/internal/repository"
	"github.com/mmeshcher/groupbuy/internal/tier"
)

// crossedMaxTier срабатывает по фронту: только когда уровень стал максимальным на этой мутации.
// Выход из пула уровень не повышает, поэтому проверяется только при вступлении.
func crossedMaxTier(before, after int) bool {
	return before != tier.Max && after == tier.Max
}

// notifyMaxTier создаёт по уведомлению на каждого текущего администратора.
// Каждая запись сохраняется независимо, частичный сбой не откатывается.
func (s *Service) notifyMaxTier(ctx context.Context, pool model.Pool, productName string) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		s.logger.Warn("list administrators for notification failed",
			zap.Error(err), zap.String("productID", pool.ProductID))
		return
	}

	message := fmt.Sprintf("Group buy for %q reached the maximum %d%% discount with %d units committed",
		productName, tier.Max, pool.TotalQuantity)
	now := s.now().UTC()

	for _, u := range users {
		if !u.IsAdmin {
			continue
		}

		id, err := uuid.NewV7()
		if err != nil {
			s.metrics.IncNotificationFailed()
			s.logger.Warn("generate notification id failed", zap.Error(err))
			continue
		}

		n := model.Notification{
			ID:              id.String(),
			Type:            model.NotificationPoolMaxTier,
			ProductID:       pool.ProductID,
			RecipientUserID: u.ID,
			Message:         message,
			CreatedAt:       now,
		}
		if err := s.repo.CreateNotification(ctx, n); err != nil {
			s.metrics.IncNotificationFailed()
			s.logger.Warn("persist notification failed",
				zap.Error(err), zap.String("productID", pool.ProductID), zap.String("recipient", u.ID))
			continue
		}
		s.metrics.IncNotificationSent()
	}
}

// ListNotifications возвращает уведомления пользователя. Администратор получает все уведомления.
func (s *Service) ListNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	admin, err := s.isAdmin(ctx, userID)
	if err != nil {
		return nil, err
	}

	recipient := userID
	if admin {
		recipient = ""
	}

	res, err := s.repo.ListNotifications(ctx, recipient)
	if err != nil {
		return nil, unavailable("list notifications", err)
	}
	return res, nil
}

// MarkNotificationRead отмечает уведомление получателя прочитанным.
// Повторная отметка возвращает уведомление без изменений.
func (s *Service) MarkNotificationRead(ctx context.Context, userID, notificationID string) (model.Notification, error) {
	if _, err := uuid.Parse(notificationID); err != nil {
		return model.Notification{}, invalid("invalid notification id")
	}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		n, version, err := s.repo.GetNotification(ctx, userID, notificationID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return model.Notification{}, ErrNotFound
			}
			return model.Notification{}, unavailable("get notification", err)
		}

		if n.Read {
			return n, nil
		}

		readAt := s.now().UTC()
		n.Read = true
		n.ReadAt = &readAt

		if err := s.repo.SaveNotification(ctx, n, version); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				continue
			}
			return model.Notification{}, unavailable("save notification", err)
		}
		return n, nil
	}

	return model.Notification{}, ErrConflict
}

// StartNotificationSweeper периодически удаляет прочитанные уведомления старше срока хранения.
// Блокируется до отмены контекста. Нулевой срок хранения отключает очистку.
func (s *Service) StartNotificationSweeper(ctx context.Context) {
	if s.retention <= 0 {
		return
	}

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.sweepNotifications(ctx)
			if err != nil {
				s.logger.Warn("notification sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("notifications swept", zap.Int("count", n))
			}
		}
	}
}

func (s *Service) sweepNotifications(ctx context.Context) (int, error) {
	all, err := s.repo.ListNotifications(ctx, "")
	if err != nil {
		return 0, unavailable("list notifications", err)
	}

	cutoff := s.now().Add(-s.retention)
	swept := 0
	for _, n := range all {
		if !n.Read || n.ReadAt == nil || n.ReadAt.After(cutoff) {
			continue
		}
		if err := s.repo.DeleteNotification(ctx, n.RecipientUserID, n.ID); err != nil {
			s.metrics.AddSwept(swept)
			return swept, unavailable("delete notification", err)
		}
		swept++
	}

	s.metrics.AddSwept(swept)
	return swept, nil
}
