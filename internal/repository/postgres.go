package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var retryDelays = []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 1 * time.Second}

// PostgresStore хранит записи в таблице kv_store PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore создаёт хранилище и инициализирует схему БД через миграции.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}

	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при временных ошибках соединения и сериализации.
func (s *PostgresStore) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i <= len(retryDelays); i++ {
		err = fn()
		if err == nil || !isTransient(err) || i == len(retryDelays) {
			return err
		}

		timer := time.NewTimer(retryDelays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure ||
			pgErr.Code == pgerrcode.DeadlockDetected ||
			pgerrcode.IsConnectionException(pgErr.Code)
	}

	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Get возвращает запись по ключу.
func (s *PostgresStore) Get(ctx context.Context, key string) (Entry, error) {
	e := Entry{Key: key}
	err := s.withRetry(ctx, func() error {
		return s.pool.QueryRow(ctx,
			`SELECT value, version FROM kv_store WHERE key = $1`,
			key,
		).Scan(&e.Value, &e.Version)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("get %s: %w", key, err)
	}
	return e, nil
}

// Set безусловно записывает значение.
func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	err := s.withRetry(ctx, func() error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO kv_store (key, value) VALUES ($1, $2)
			 ON CONFLICT (key) DO UPDATE
			 SET value = EXCLUDED.value, version = kv_store.version + 1, updated_at = now()`,
			key, value,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// CompareAndSet записывает значение, только если версия записи не изменилась.
func (s *PostgresStore) CompareAndSet(ctx context.Context, key string, value []byte, expected int64) (int64, error) {
	if expected == 0 {
		var inserted bool
		err := s.withRetry(ctx, func() error {
			tag, err := s.pool.Exec(ctx,
				`INSERT INTO kv_store (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
				key, value,
			)
			if err != nil {
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
					return nil
				}
				return err
			}
			inserted = tag.RowsAffected() == 1
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", key, err)
		}
		if !inserted {
			return 0, ErrKeyExists
		}
		return 1, nil
	}

	var next int64
	err := s.withRetry(ctx, func() error {
		return s.pool.QueryRow(ctx,
			`UPDATE kv_store
			 SET value = $2, version = version + 1, updated_at = now()
			 WHERE key = $1 AND version = $3
			 RETURNING version`,
			key, value, expected,
		).Scan(&next)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrVersionConflict
		}
		return 0, fmt.Errorf("compare and set %s: %w", key, err)
	}
	return next, nil
}

// Delete удаляет запись.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	err := s.withRetry(ctx, func() error {
		_, err := s.pool.Exec(ctx, `DELETE FROM kv_store WHERE key = $1`, key)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// ScanPrefix возвращает все записи, ключ которых начинается с prefix.
func (s *PostgresStore) ScanPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	var res []Entry
	err := s.withRetry(ctx, func() error {
		res = res[:0]

		rows, err := s.pool.Query(ctx,
			`SELECT key, value, version FROM kv_store WHERE key LIKE $1 ESCAPE '\' ORDER BY key`,
			likePrefix(prefix),
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var e Entry
			if err := rows.Scan(&e.Key, &e.Value, &e.Version); err != nil {
				return fmt.Errorf("scan entry: %w", err)
			}
			res = append(res, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("scan prefix %s: %w", prefix, err)
	}
	return res, nil
}

func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
