package storage

import (
	"context"
	"errors"
	"strings"

	logx "rankwatch/pkg/logx"
)

// Store is the minimal persistence API under the ranking store and the
// subscriber registry. Save must replace the document atomically: a
// concurrent reader sees either the old or the new document, never a
// torn one.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, doc []byte) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
