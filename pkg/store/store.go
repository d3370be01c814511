package store

import (
	"context"
	"errors"
)

// Keys under which the reading list persists its blobs.
const (
	BooksKey    = "readlog.books.v1"
	SettingsKey = "readlog.settings.v1"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("key not found")

// Store is an opaque key-value blob store. Values are JSON documents but
// backends treat them as bytes.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}
