// Package storage provides blob storage for uploaded datasets.
package storage

import (
	"context"
	"errors"
)

// Error definitions for the storage package.
var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid object key")
)

// Store defines the interface for interacting with a key-value blob store.
type Store interface {
	Upload(ctx context.Context, key string, data []byte) error
	Download(ctx context.Context, key string) ([]byte, error)
	// Location returns where key is stored, as reported to API clients.
	Location(key string) string
}
