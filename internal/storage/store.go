// Package storage persists small keyed values across process restarts.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Keys used by the session manager and the blog mirror.
const (
	KeyToken    = "token"
	KeyUser     = "user"
	KeyAllBlogs = "allBlogs"
)

var ErrNotFound = errors.New("storage: key not found")

type Entry struct {
	Key   string
	Value []byte
}

type Store interface {
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put writes all entries or none of them.
	Put(ctx context.Context, entries ...Entry) error
	// Delete ignores keys that are absent.
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

type Config struct {
	Backend Backend
	// Path is the sqlite database file.
	Path string
	// DSN is the postgres connection string.
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// Open returns the store selected by cfg.Backend.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite, "":
		return NewSQLiteStore(cfg.Path, logger)
	case BackendPostgres:
		return NewPostgresStore(ctx, cfg.DSN, cfg.MaxOpenConns, cfg.MaxIdleConns)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}
