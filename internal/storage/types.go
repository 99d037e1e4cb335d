package storage

import (
	"errors"
	"time"
)

// ErrNotFound reports a document that has never been saved. Callers treat
// this as their empty default, not as a fault.
var ErrNotFound = errors.New("document not found")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (default)
//   - "sqlite": SQLite database file (optional build tag)
type Config struct {
	Driver      string
	Dir         string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Document keys used by this process.
const (
	KeyLeaderboard = "leaderboard"
	KeySubscribers = "subscribers"
)
