package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/igwedaniel/dripper/internal/types"
)

// ErrCacheMiss is returned by GetCache for an absent or expired key
var ErrCacheMiss = errors.New("cache miss")

// Ledger records every generated wallet. Append must succeed before the
// wallet is used on the network.
type Ledger interface {
	Append(ctx context.Context, cred types.WalletCredential) error
	Close() error
}

// Cache is a small TTL key/value store for lookups
type Cache interface {
	SetCache(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetCache(ctx context.Context, key string, dest interface{}) error
}

// PersistenceError reports a ledger write that did not complete
type PersistenceError struct {
	Target string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist wallet to %s: %v", e.Target, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
