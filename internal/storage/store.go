package storage

import "errors"

// ErrMiss is returned by Load when key has no value.
var ErrMiss = errors.New("storage: cache miss")

// Cache is a small key-value store the client uses to keep copies of server
// state between runs. Every method reports failure to the caller; callers that
// treat the cache as advisory are expected to log and carry on.
type Cache interface {
	Load(key string) ([]byte, error)
	Store(key string, val []byte) error
	Delete(key string) error
	Close() error
}
