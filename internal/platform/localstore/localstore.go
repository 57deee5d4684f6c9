// Package localstore persists named blobs for the local (single-device)
// variant of the Record Store. Writes of several keys are atomic, so a
// patient deletion and its note cascade either both land or neither does.
package localstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrKeyNotFound is returned by Get for a key that was never written.
var ErrKeyNotFound = errors.New("key not found")

// KV is a durable key/blob store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Put writes every entry in a single transaction.
	Put(ctx context.Context, entries map[string][]byte) error
	Close() error
}

const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

// Open returns the KV for driver rooted at path.
func Open(driver, path string) (KV, error) {
	switch driver {
	case DriverSQLite:
		return OpenSQLite(path)
	case DriverBadger:
		cfg := DefaultBadgerConfig()
		cfg.Path = path
		return OpenBadger(cfg)
	}
	return nil, fmt.Errorf("unknown local store driver %q", driver)
}
