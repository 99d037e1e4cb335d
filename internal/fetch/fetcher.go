// Package fetch obtains the current leaderboard top entries over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"rankwatch/internal/leaderboard"
	logx "rankwatch/pkg/logx"
)

// ErrExhausted reports that every fetch attempt failed. The cycle treats
// this as terminal for the tick, not for the process.
var ErrExhausted = errors.New("all fetch attempts failed")

// maxBody caps how much of a response we are willing to read.
const maxBody = 1 << 20

// Fetcher obtains the current ranking. Implementations retry internally;
// callers see either a ranking (possibly empty) or one terminal error.
type Fetcher interface {
	Fetch(ctx context.Context) (leaderboard.Ranking, error)
}

type Config struct {
	URL      string
	Attempts int           // tries before giving up
	Timeout  time.Duration // per-attempt deadline
	Backoff  time.Duration // base delay between attempts, grows linearly
}

func (c *Config) normalize() {
	if c.Attempts < 1 {
		c.Attempts = 3
	}
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	if c.Backoff <= 0 {
		c.Backoff = 2 * time.Second
	}
}

// HTTP fetches the ranking document ({"top3": [...]}) from a JSON
// endpoint. Entries beyond the tracked top positions are dropped.
type HTTP struct {
	mu     sync.Mutex
	cfg    Config
	client *http.Client
	log    logx.Logger
}

// NewHTTP builds the fetcher. A nil client gets a default one; the seam
// exists for tests.
func NewHTTP(cfg Config, client *http.Client, log logx.Logger) *HTTP {
	cfg.normalize()
	if client == nil {
		client = &http.Client{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &HTTP{cfg: cfg, client: client, log: log}
}

// Apply replaces the fetch settings. A fetch already in flight keeps
// the settings it started with.
func (h *HTTP) Apply(cfg Config) {
	cfg.normalize()
	h.mu.Lock()
	h.cfg = cfg
	h.mu.Unlock()
}

// Fetch tries up to cfg.Attempts times with an increasing delay between
// attempts (backoff, 2*backoff, ...). Every attempt is bounded by
// cfg.Timeout. Returns ErrExhausted wrapping the last cause once all
// attempts fail.
func (h *HTTP) Fetch(ctx context.Context) (leaderboard.Ranking, error) {
	h.mu.Lock()
	cfg := h.cfg
	h.mu.Unlock()

	var last error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		start := time.Now()
		r, err := h.fetchOnce(ctx, cfg)
		if err == nil {
			h.log.Debug("fetch succeeded",
				logx.Int("attempt", attempt),
				logx.Int("entries", len(r)),
				logx.Duration("took", time.Since(start)))
			return r, nil
		}
		last = err
		h.log.Warn("fetch attempt failed",
			logx.Int("attempt", attempt),
			logx.Int("of", cfg.Attempts),
			logx.Err(err))

		if attempt == cfg.Attempts {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * cfg.Backoff):
		case <-ctx.Done():
			return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
		}
	}
	return nil, fmt.Errorf("%w (%d attempts): %v", ErrExhausted, cfg.Attempts, last)
}

func (h *HTTP) fetchOnce(ctx context.Context, cfg Config) (leaderboard.Ranking, error) {
	actx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "rankwatch/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("leaderboard endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	r, err := leaderboard.DecodeDocument(body)
	if err != nil {
		return nil, err
	}
	if len(r) > leaderboard.TopSize {
		r = r[:leaderboard.TopSize]
	}
	return r, nil
}
