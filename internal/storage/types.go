package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnknownDriver = errors.New("unknown storage driver")
	ErrClosed        = errors.New("storage closed")
)

// Config configures a backend.
type Config struct {
	Driver      string
	Path        string        // file, sqlite
	BusyTimeout time.Duration // sqlite only; 0 means default
	RedisURL    string
	RedisKey    string
}

// Backend loads and saves the link list.
type Backend interface {
	// Load returns the persisted links, oldest first. A backend that has
	// never been saved returns an empty list.
	Load(ctx context.Context) ([]string, error)
	// Save replaces the persisted list with links (oldest first).
	Save(ctx context.Context, links []string) error
	Close() error
}
