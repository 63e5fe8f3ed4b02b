// Package repository содержит хранилище записей ключ-значение и типизированный слой над ним.
package repository

import (
	"context"
	"errors"
)

var (
	// ErrNotFound возвращается, если запись по ключу отсутствует.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict возвращается, если версия записи изменилась с момента чтения.
	ErrVersionConflict = errors.New("record version conflict")
	// ErrKeyExists возвращается при попытке создать уже существующую запись.
	ErrKeyExists = errors.New("record already exists")
	// ErrInvalidRecord возвращается, если сохранённое значение не проходит проверку схемы.
	ErrInvalidRecord = errors.New("invalid record")
)

// Entry хранит значение записи вместе с её версией.
type Entry struct {
	Key     string
	Value   []byte
	Version int64
}

// Store описывает хранилище записей ключ-значение.
//
// Операции над одним ключом атомарны, транзакций между ключами нет.
type Store interface {
	Get(ctx context.Context, key string) (Entry, error)
	Set(ctx context.Context, key string, value []byte) error
	// CompareAndSet записывает значение, только если текущая версия равна expected.
	// expected == 0 означает, что записи ещё не должно существовать.
	CompareAndSet(ctx context.Context, key string, value []byte, expected int64) (int64, error)
	Delete(ctx context.Context, key string) error
	ScanPrefix(ctx context.Context, prefix string) ([]Entry, error)
	Close() error
}
