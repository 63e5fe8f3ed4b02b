package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestLikePrefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "group:", want: "group:%"},
		{prefix: "notification:user_1:", want: `notification:user\_1:%`},
		{prefix: `a%b\`, want: `a\%b\\%`},
		{prefix: "", want: "%"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			assert.Equal(t, tt.want, likePrefix(tt.prefix))
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "serialization failure", err: &pgconn.PgError{Code: pgerrcode.SerializationFailure}, want: true},
		{name: "deadlock", err: &pgconn.PgError{Code: pgerrcode.DeadlockDetected}, want: true},
		{name: "connection exception", err: &pgconn.PgError{Code: pgerrcode.ConnectionFailure}, want: true},
		{name: "wrapped connection refused", err: fmt.Errorf("dial: %w", errors.New("connection refused")), want: true},
		{name: "unique violation", err: &pgconn.PgError{Code: pgerrcode.UniqueViolation}, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "deadline", err: fmt.Errorf("query: %w", context.DeadlineExceeded), want: false},
		{name: "other", err: errors.New("syntax error"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransient(tt.err))
		})
	}
}

func TestWithRetry(t *testing.T) {
	orig := retryDelays
	retryDelays = []time.Duration{time.Millisecond, time.Millisecond}
	t.Cleanup(func() { retryDelays = orig })

	s := &PostgresStore{}

	calls := 0
	err := s.withRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: pgerrcode.SerializationFailure}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = s.withRetry(context.Background(), func() error {
		calls++
		return &pgconn.PgError{Code: pgerrcode.UniqueViolation}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "permanent errors are not retried")

	calls = 0
	err = s.withRetry(context.Background(), func() error {
		calls++
		return errors.New("connection reset by peer")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls, "gives up after the last delay")
}
