// Package main запускает HTTP-сервер сервиса совместных покупок.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/groupbuy/internal/config"
	"github.com/mmeshcher/groupbuy/internal/handler"
	"github.com/mmeshcher/groupbuy/internal/identity"
	"github.com/mmeshcher/groupbuy/internal/lock"
	"github.com/mmeshcher/groupbuy/internal/metrics"
	"github.com/mmeshcher/groupbuy/internal/middleware"
	"github.com/mmeshcher/groupbuy/internal/repository"
	"github.com/mmeshcher/groupbuy/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	store, err := newStore(cfg)
	if err != nil {
		sugar.Fatalw("record store initialization error", "error", err.Error())
	}

	locker, closeLocker, err := newLocker(cfg)
	if err != nil {
		sugar.Fatalw("pool lock initialization error", "error", err.Error())
	}
	defer closeLocker()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := service.NewService(repository.NewRecords(store), service.Options{
		MaxJoinQuantity:       cfg.MaxJoinQuantity,
		MaxTierPolicy:         cfg.MaxTierPolicy,
		AdminEmails:           cfg.AdminEmails,
		NotificationRetention: cfg.NotificationRetention,
		SweepInterval:         cfg.SweepInterval,
		Locker:                locker,
		Metrics:               metrics.NewPoolMetrics(reg),
		Logger:                logger.Named("service"),
	})
	defer svc.Close()

	resolver, issuer, err := newIdentity(cfg, sugar)
	if err != nil {
		sugar.Fatalw("identity initialization error", "error", err.Error())
	}

	authMiddleware := middleware.NewAuthMiddleware(resolver, svc, logger.Named("auth"))
	metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})

	var tokenIssuer handler.TokenIssuer
	if issuer != nil {
		tokenIssuer = issuer
	}
	h := handler.NewHandler(svc, logger, authMiddleware, tokenIssuer, metricsHandler)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Фоновая очистка прочитанных уведомлений
	g.Go(func() error {
		svc.StartNotificationSweeper(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting groupbuy server",
			"addr", cfg.RunAddress,
			"persistent", cfg.DatabaseURI != "",
			"distributedLocks", cfg.RedisURL != "",
			"maxTierPolicy", cfg.MaxTierPolicy,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

func newStore(cfg *config.Config) (repository.Store, error) {
	if cfg.DatabaseURI == "" {
		return repository.NewMemoryStore(), nil
	}
	return repository.NewPostgresStore(cfg.DatabaseURI)
}

func newLocker(cfg *config.Config) (lock.Locker, func(), error) {
	if cfg.RedisURL == "" {
		return lock.NewKeyedMutex(), func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	l, err := lock.NewRedisLocker(ctx, cfg.RedisURL, cfg.PoolLockTTL)
	if err != nil {
		return nil, nil, err
	}
	return l, func() { _ = l.Close() }, nil
}

// newIdentity выбирает внешний провайдер, если он настроен, иначе локальный издатель токенов.
func newIdentity(cfg *config.Config, sugar *zap.SugaredLogger) (identity.Resolver, *identity.TokenIssuer, error) {
	if cfg.AuthProviderURL != "" {
		return identity.NewRemoteResolver(cfg.AuthProviderURL), nil, nil
	}

	secret := cfg.AuthSecret
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, nil, fmt.Errorf("generate token secret: %w", err)
		}
		secret = hex.EncodeToString(buf)
		sugar.Warn("AUTH_SECRET is not set, issued tokens will not survive a restart")
	}

	issuer, err := identity.NewTokenIssuer(secret, cfg.TokenTTL)
	if err != nil {
		return nil, nil, err
	}
	return issuer, issuer, nil
}
