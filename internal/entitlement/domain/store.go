package domain

import "context"

// LedgerStore is a flat string key/value scope. Implementations give no
// guarantees across keys; every ledger field is an independent key.
type LedgerStore interface {
	// GetString returns the value and whether the key exists.
	GetString(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key, value string) error
	// Remove deletes the key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}
