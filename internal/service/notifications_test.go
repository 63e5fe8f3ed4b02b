package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/groupbuy/internal/model"
	"github.com/mmeshcher/groupbuy/internal/repository"
)

type notificationFixture struct {
	svc    *Service
	store  *repository.MemoryStore
	admins []model.User
	buyer  model.User
}

func newNotificationFixture(t *testing.T, opts Options) notificationFixture {
	t.Helper()
	ctx := context.Background()

	store := repository.NewMemoryStore()
	opts.AdminEmails = []string{"first@admin.io", "Second@Admin.io"}
	svc := newTestService(t, store, opts)

	f := notificationFixture{svc: svc, store: store}

	for _, email := range []string{"first@admin.io", "second@admin.io"} {
		u, err := svc.RegisterUser(ctx, email, "password", "Admin")
		require.NoError(t, err)
		require.True(t, u.IsAdmin)
		f.admins = append(f.admins, u)
	}

	buyer, err := svc.RegisterUser(ctx, "buyer@example.com", "password", "Buyer")
	require.NoError(t, err)
	require.False(t, buyer.IsAdmin)
	f.buyer = buyer

	require.NoError(t, repository.NewRecords(store).SaveProduct(ctx, model.Product{
		ID: "prod-1", Name: "Smart Fitness Watch",
	}))

	return f
}

func (f notificationFixture) count(t *testing.T) int {
	t.Helper()
	entries, err := f.store.ScanPrefix(context.Background(), "notification:")
	require.NoError(t, err)
	return len(entries)
}

func (f notificationFixture) join(t *testing.T, userID string, qty int) model.Pool {
	t.Helper()
	p, err := f.svc.JoinPool(context.Background(), "prod-1", userID, qty)
	require.NoError(t, err)
	return p
}

func (f notificationFixture) leave(t *testing.T, userID string) {
	t.Helper()
	_, _, err := f.svc.LeavePool(context.Background(), "prod-1", userID)
	require.NoError(t, err)
}

func TestCrossedMaxTier(t *testing.T) {
	assert.True(t, crossedMaxTier(15, 20))
	assert.True(t, crossedMaxTier(0, 20))
	assert.False(t, crossedMaxTier(20, 20))
	assert.False(t, crossedMaxTier(10, 15))
	assert.False(t, crossedMaxTier(20, 15))
}

func TestNotifications_EdgeTriggered(t *testing.T) {
	f := newNotificationFixture(t, Options{})

	f.join(t, "a", 40)
	p := f.join(t, "b", 5)
	require.Equal(t, 45, p.TotalQuantity)
	assert.Zero(t, f.count(t))

	p = f.join(t, "c", 5)
	require.Equal(t, 20, p.DiscountTier)
	assert.Equal(t, len(f.admins), f.count(t), "one notification per administrator")

	p = f.join(t, "d", 5)
	require.Equal(t, 55, p.TotalQuantity)
	assert.Equal(t, len(f.admins), f.count(t), "staying at max tier does not notify")

	f.leave(t, "d")
	f.leave(t, "c")
	f.leave(t, "b")
	assert.Equal(t, len(f.admins), f.count(t), "leaving never notifies")

	p = f.join(t, "b", 10)
	require.Equal(t, 50, p.TotalQuantity)
	assert.Equal(t, 2*len(f.admins), f.count(t), "re-entering max tier notifies again")
}

func TestNotifications_RecipientsAndMessage(t *testing.T) {
	ctx := context.Background()
	f := newNotificationFixture(t, Options{})

	f.join(t, f.buyer.ID, 50)

	for _, admin := range f.admins {
		list, err := f.svc.ListNotifications(ctx, admin.ID)
		require.NoError(t, err)
		require.Len(t, list, len(f.admins), "administrators see every notification")
	}

	for _, admin := range f.admins {
		list, err := repository.NewRecords(f.store).ListNotifications(ctx, admin.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)

		n := list[0]
		assert.Equal(t, model.NotificationPoolMaxTier, n.Type)
		assert.Equal(t, "prod-1", n.ProductID)
		assert.Equal(t, admin.ID, n.RecipientUserID)
		assert.Contains(t, n.Message, "Smart Fitness Watch")
		assert.Contains(t, n.Message, "50 units")
		assert.False(t, n.Read)
		assert.Nil(t, n.ReadAt)
	}

	list, err := f.svc.ListNotifications(ctx, f.buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, list, "buyers are not notified")
}

func TestNotifications_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newNotificationFixture(t, Options{})
	admin := f.admins[0]

	f.join(t, "a", 50)
	f.leave(t, "a")
	f.join(t, "b", 60)

	list, err := repository.NewRecords(f.store).ListNotifications(ctx, admin.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Greater(t, list[0].ID, list[1].ID)
	assert.Contains(t, list[0].Message, "60 units")
}

func TestListNotifications_OnlyOwnRecipient(t *testing.T) {
	ctx := context.Background()
	f := newNotificationFixture(t, Options{})

	id, err := uuid.NewV7()
	require.NoError(t, err)
	require.NoError(t, repository.NewRecords(f.store).CreateNotification(ctx, model.Notification{
		ID:              id.String(),
		Type:            model.NotificationPoolMaxTier,
		ProductID:       "prod-1",
		RecipientUserID: "a:b",
		Message:         "Smart Fitness Watch reached the maximum discount",
		CreatedAt:       time.Now(),
	}))

	got, err := f.svc.ListNotifications(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = f.svc.MarkNotificationRead(ctx, "a", id.String())
	require.ErrorIs(t, err, ErrNotFound)
}

type failingNotificationStore struct {
	*repository.MemoryStore
}

func (s failingNotificationStore) CompareAndSet(ctx context.Context, key string, value []byte, expected int64) (int64, error) {
	if strings.HasPrefix(key, "notification:") {
		return 0, assert.AnError
	}
	return s.MemoryStore.CompareAndSet(ctx, key, value, expected)
}

func TestNotifications_FailureDoesNotFailJoin(t *testing.T) {
	ctx := context.Background()
	store := failingNotificationStore{MemoryStore: repository.NewMemoryStore()}
	svc := newTestService(t, store, Options{AdminEmails: []string{"admin@example.com"}})

	_, err := svc.RegisterUser(ctx, "admin@example.com", "password", "Admin")
	require.NoError(t, err)

	p, err := svc.JoinPool(ctx, "prod-1", "buyer", 50)
	require.NoError(t, err)
	assert.Equal(t, 20, p.DiscountTier)

	got, err := svc.GetPool(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 50, got.TotalQuantity, "pool write is kept")
}

func TestMarkNotificationRead(t *testing.T) {
	ctx := context.Background()
	f := newNotificationFixture(t, Options{})
	admin := f.admins[0]

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	f.join(t, "a", 50)

	list, err := repository.NewRecords(f.store).ListNotifications(ctx, admin.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	id := list[0].ID

	n, err := f.svc.MarkNotificationRead(ctx, admin.ID, id)
	require.NoError(t, err)
	assert.True(t, n.Read)
	require.NotNil(t, n.ReadAt)
	assert.True(t, now.Equal(*n.ReadAt))

	f.svc.now = func() time.Time { return now.Add(time.Hour) }
	again, err := f.svc.MarkNotificationRead(ctx, admin.ID, id)
	require.NoError(t, err)
	require.NotNil(t, again.ReadAt)
	assert.True(t, now.Equal(*again.ReadAt), "repeated mark keeps the first read time")

	_, err = f.svc.MarkNotificationRead(ctx, f.admins[1].ID, id)
	assert.ErrorIs(t, err, ErrNotFound, "notification of another recipient")

	_, err = f.svc.MarkNotificationRead(ctx, admin.ID, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.MarkNotificationRead(ctx, admin.ID, "not-a-uuid")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSweepNotifications(t *testing.T) {
	ctx := context.Background()
	f := newNotificationFixture(t, Options{NotificationRetention: 24 * time.Hour})

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return start }

	f.join(t, "a", 50)
	require.Equal(t, 2, f.count(t))

	list, err := repository.NewRecords(f.store).ListNotifications(ctx, f.admins[0].ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	_, err = f.svc.MarkNotificationRead(ctx, f.admins[0].ID, list[0].ID)
	require.NoError(t, err)

	f.svc.now = func() time.Time { return start.Add(time.Hour) }
	swept, err := f.svc.sweepNotifications(ctx)
	require.NoError(t, err)
	assert.Zero(t, swept, "read notification is still within retention")

	f.svc.now = func() time.Time { return start.Add(48 * time.Hour) }
	swept, err = f.svc.sweepNotifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	assert.Equal(t, 1, f.count(t), "unread notification is kept")
}

func TestStartNotificationSweeper_DisabledReturns(t *testing.T) {
	svc := newTestService(t, nil, Options{})

	done := make(chan struct{})
	go func() {
		svc.StartNotificationSweeper(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper without retention should return immediately")
	}
}

func TestStartNotificationSweeper_StopsOnCancel(t *testing.T) {
	svc := newTestService(t, nil, Options{
		NotificationRetention: time.Hour,
		SweepInterval:         10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.StartNotificationSweeper(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
