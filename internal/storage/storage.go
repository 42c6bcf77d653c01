// Package storage provides the durable client-side storage that session
// state lives in. It is the Go analogue of origin-scoped browser storage:
// a small key/value surface that survives restarts, is shared by every
// foodlog process pointed at the same backend, and carries a named
// broadcast channel for change signals.
//
// Two backends implement the Store interface:
//   - RedisStore: shared across processes, with the auth-changed signal
//     delivered through Redis pub/sub (the storage medium's native change
//     notification).
//   - FileStore: a JSON file for daemonless use; durable, but its change
//     signal only reaches subscribers in the current process.
//
// Writes are last-write-wins per key; no locking is layered on top of the
// medium's own per-key atomicity.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound indicates the requested key is absent from storage.
// This is expected behavior for unauthenticated sessions, not a failure.
var ErrNotFound = errors.New("storage: key not found")

// Store is the durable key/value surface plus the broadcast channel used
// to propagate change signals between contexts sharing the storage.
//
// Get returns ErrNotFound for absent keys. Delete ignores absent keys.
// Subscribe delivers every payload published on the named channel after
// the subscription is established; the returned stop function releases
// the subscription and closes the channel.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error

	Publish(ctx context.Context, channel, payload string) error
	Subscribe(ctx context.Context, channel string) (<-chan string, func(), error)

	Ping(ctx context.Context) error
	Close() error
}
