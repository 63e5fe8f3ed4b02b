package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mmeshcher/groupbuy/internal/model"
)

const (
	poolPrefix         = "group:"
	productPrefix      = "product:"
	userPrefix         = "user:"
	userEmailPrefix    = "user_email:"
	notificationPrefix = "notification:"
	cartPrefix         = "cart:"
)

var validate = validator.New()

// Records предоставляет типизированный доступ к записям хранилища.
// Каждая прочитанная запись проверяется по схеме своего вида.
type Records struct {
	store Store
}

// NewRecords создаёт типизированный слой над хранилищем.
func NewRecords(store Store) *Records {
	return &Records{store: store}
}

// Close закрывает нижележащее хранилище.
func (r *Records) Close() error {
	return r.store.Close()
}

// PoolKey возвращает ключ записи пула товара.
func PoolKey(productID string) string { return poolPrefix + productID }

// NotificationKey возвращает ключ уведомления получателя.
func NotificationKey(recipientID, id string) string {
	return notificationPrefix + recipientID + ":" + id
}

func decode[T any](e Entry) (T, error) {
	var v T
	if err := json.Unmarshal(e.Value, &v); err != nil {
		return v, fmt.Errorf("%w: %s: %v", ErrInvalidRecord, e.Key, err)
	}
	if err := validate.Struct(v); err != nil {
		return v, fmt.Errorf("%w: %s: %v", ErrInvalidRecord, e.Key, err)
	}
	return v, nil
}

func encode(v any) ([]byte, error) {
	if err := validate.Struct(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return b, nil
}

func get[T any](ctx context.Context, s Store, key string) (T, int64, error) {
	var zero T
	e, err := s.Get(ctx, key)
	if err != nil {
		return zero, 0, err
	}
	v, err := decode[T](e)
	if err != nil {
		return zero, 0, err
	}
	return v, e.Version, nil
}

func scan[T any](ctx context.Context, s Store, prefix string) ([]T, error) {
	entries, err := s.ScanPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}

	res := make([]T, 0, len(entries))
	for _, e := range entries {
		v, err := decode[T](e)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, nil
}

func put(ctx context.Context, s Store, key string, v any) error {
	b, err := encode(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, b)
}

func compareAndSet(ctx context.Context, s Store, key string, v any, version int64) (int64, error) {
	b, err := encode(v)
	if err != nil {
		return 0, err
	}
	return s.CompareAndSet(ctx, key, b, version)
}

// GetPool возвращает пул товара и версию записи. Отсутствующий пул даёт ErrNotFound.
func (r *Records) GetPool(ctx context.Context, productID string) (model.Pool, int64, error) {
	return get[model.Pool](ctx, r.store, PoolKey(productID))
}

// SavePool сохраняет пул, если его версия не изменилась с момента чтения.
// version == 0 создаёт новую запись.
func (r *Records) SavePool(ctx context.Context, pool model.Pool, version int64) (int64, error) {
	next, err := compareAndSet(ctx, r.store, PoolKey(pool.ProductID), pool, version)
	if errors.Is(err, ErrKeyExists) {
		return 0, ErrVersionConflict
	}
	return next, err
}

// ListPools возвращает все пулы.
func (r *Records) ListPools(ctx context.Context) ([]model.Pool, error) {
	return scan[model.Pool](ctx, r.store, poolPrefix)
}

// GetProduct возвращает товар по идентификатору.
func (r *Records) GetProduct(ctx context.Context, id string) (model.Product, error) {
	p, _, err := get[model.Product](ctx, r.store, productPrefix+id)
	return p, err
}

// SaveProduct сохраняет товар.
func (r *Records) SaveProduct(ctx context.Context, p model.Product) error {
	return put(ctx, r.store, productPrefix+p.ID, p)
}

// DeleteProduct удаляет товар.
func (r *Records) DeleteProduct(ctx context.Context, id string) error {
	return r.store.Delete(ctx, productPrefix+id)
}

// ListProducts возвращает все товары.
func (r *Records) ListProducts(ctx context.Context) ([]model.Product, error) {
	return scan[model.Product](ctx, r.store, productPrefix)
}

// CreateUser сохраняет профиль пользователя, резервируя email.
// Занятый email даёт ErrKeyExists.
func (r *Records) CreateUser(ctx context.Context, u model.User) error {
	if _, err := r.store.CompareAndSet(ctx, emailKey(u.Email), []byte(`"`+u.ID+`"`), 0); err != nil {
		return err
	}
	if err := put(ctx, r.store, userPrefix+u.ID, u); err != nil {
		_ = r.store.Delete(ctx, emailKey(u.Email))
		return err
	}
	return nil
}

// SaveUser перезаписывает профиль пользователя.
func (r *Records) SaveUser(ctx context.Context, u model.User) error {
	return put(ctx, r.store, userPrefix+u.ID, u)
}

// GetUser возвращает профиль пользователя.
func (r *Records) GetUser(ctx context.Context, id string) (model.User, error) {
	u, _, err := get[model.User](ctx, r.store, userPrefix+id)
	return u, err
}

// GetUserByEmail возвращает профиль пользователя по email.
func (r *Records) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	e, err := r.store.Get(ctx, emailKey(email))
	if err != nil {
		return model.User{}, err
	}

	var id string
	if err := json.Unmarshal(e.Value, &id); err != nil || id == "" {
		return model.User{}, fmt.Errorf("%w: %s", ErrInvalidRecord, e.Key)
	}
	return r.GetUser(ctx, id)
}

// ListUsers возвращает все профили пользователей.
func (r *Records) ListUsers(ctx context.Context) ([]model.User, error) {
	return scan[model.User](ctx, r.store, userPrefix)
}

func emailKey(email string) string {
	return userEmailPrefix + strings.ToLower(strings.TrimSpace(email))
}

// GetCart возвращает корзину пользователя. Отсутствующая корзина даёт ErrNotFound.
func (r *Records) GetCart(ctx context.Context, userID string) (model.Cart, error) {
	c, _, err := get[model.Cart](ctx, r.store, cartPrefix+userID)
	return c, err
}

// SaveCart перезаписывает корзину пользователя.
func (r *Records) SaveCart(ctx context.Context, c model.Cart) error {
	return put(ctx, r.store, cartPrefix+c.UserID, c)
}

// CreateNotification сохраняет новое уведомление.
func (r *Records) CreateNotification(ctx context.Context, n model.Notification) error {
	_, err := compareAndSet(ctx, r.store, NotificationKey(n.RecipientUserID, n.ID), n, 0)
	return err
}

// GetNotification возвращает уведомление получателя и версию записи.
func (r *Records) GetNotification(ctx context.Context, recipientID, id string) (model.Notification, int64, error) {
	return get[model.Notification](ctx, r.store, NotificationKey(recipientID, id))
}

// SaveNotification обновляет уведомление при совпадении версии.
func (r *Records) SaveNotification(ctx context.Context, n model.Notification, version int64) error {
	_, err := compareAndSet(ctx, r.store, NotificationKey(n.RecipientUserID, n.ID), n, version)
	return err
}

// DeleteNotification удаляет уведомление.
func (r *Records) DeleteNotification(ctx context.Context, recipientID, id string) error {
	return r.store.Delete(ctx, NotificationKey(recipientID, id))
}

// ListNotifications возвращает уведомления получателя, новые первыми.
// Пустой recipientID возвращает уведомления всех получателей.
func (r *Records) ListNotifications(ctx context.Context, recipientID string) ([]model.Notification, error) {
	prefix := notificationPrefix
	if recipientID != "" {
		prefix = notificationPrefix + recipientID + ":"
	}

	res, err := scan[model.Notification](ctx, r.store, prefix)
	if err != nil {
		return nil, err
	}

	// префикс "notification:a:" захватывает и ключи получателя "a:b"
	if recipientID != "" {
		own := res[:0]
		for _, n := range res {
			if n.RecipientUserID == recipientID {
				own = append(own, n)
			}
		}
		res = own
	}

	sort.Slice(res, func(i, j int) bool { return res[i].ID > res[j].ID })
	return res, nil
}
