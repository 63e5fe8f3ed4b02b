// Package lock содержит блокировки по ключу для сериализации изменений пула.
package lock

import (
	"context"
	"sync"
)

// Locker захватывает блокировку по ключу. Возвращённая функция освобождает её.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// KeyedMutex реализует блокировку по ключу в пределах одного процесса.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex создаёт блокировку по ключу в памяти процесса.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock ждёт освобождения ключа или отмены контекста.
func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			k.release(key, e)
		})
	}, nil
}

func (k *KeyedMutex) release(key string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}

// Nop не блокирует ничего. Корректность тогда обеспечивает только проверка версии записи.
type Nop struct{}

// Lock сразу возвращает управление.
func (Nop) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}
