package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore хранит записи в памяти процесса. Используется в тестах и при запуске без БД.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore создаёт пустое хранилище в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Get возвращает запись по ключу.
func (s *MemoryStore) Get(ctx context.Context, key string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return cloneEntry(e), nil
}

// Set безусловно записывает значение и увеличивает версию.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.entries[key]
	s.entries[key] = Entry{Key: key, Value: cloneBytes(value), Version: prev.Version + 1}
	return nil
}

// CompareAndSet записывает значение при совпадении версии.
func (s *MemoryStore) CompareAndSet(ctx context.Context, key string, value []byte, expected int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.entries[key]
	if expected == 0 && ok {
		return 0, ErrKeyExists
	}
	if expected != 0 && (!ok || prev.Version != expected) {
		return 0, ErrVersionConflict
	}

	next := prev.Version + 1
	s.entries[key] = Entry{Key: key, Value: cloneBytes(value), Version: next}
	return next, nil
}

// Delete удаляет запись. Удаление отсутствующего ключа не является ошибкой.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// ScanPrefix возвращает записи с ключами, начинающимися с prefix, упорядоченные по ключу.
func (s *MemoryStore) ScanPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []Entry
	for k, e := range s.entries {
		if strings.HasPrefix(k, prefix) {
			res = append(res, cloneEntry(e))
		}
	}

	sort.Slice(res, func(i, j int) bool { return res[i].Key < res[j].Key })
	return res, nil
}

// Close ничего не делает.
func (s *MemoryStore) Close() error {
	return nil
}

func cloneEntry(e Entry) Entry {
	e.Value = cloneBytes(e.Value)
	return e
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
