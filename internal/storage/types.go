package storage

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// Driver values:
//   - "file": JSON snapshot plus JSON Lines journal next to Path
//   - "sqlite": SQLite database file at Path
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store keeps expiring markers.
type Store interface {
	// Mark records key until the given instant, replacing any previous expiry.
	Mark(ctx context.Context, key string, until time.Time) error
	// Marked reports whether key is recorded and not yet expired.
	Marked(ctx context.Context, key string) (until time.Time, ok bool, err error)
	Close() error
}
