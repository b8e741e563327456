// Package kv provides the small key-value cache shared by the foreground
// publisher and the background reminder worker.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("kv: key not found")

// Store is a persistent key-value cache. Keys are plain strings, usually
// "<cache-name>/<entry>".
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists all keys starting with prefix. An empty prefix lists everything.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
