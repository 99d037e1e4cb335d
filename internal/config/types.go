package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"rankwatch/internal/schedule"
)

// Config is the on-disk configuration. Duration fields are Go duration
// strings (e.g. "500ms", "10s", "2m") so both JSON and YAML configs
// stay readable.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Board    BoardConfig    `json:"board"`
	Storage  *StorageConfig `json:"storage,omitempty"`
	Notify   *NotifyConfig  `json:"notify,omitempty"`
	Logging  LoggingConfig  `json:"logging"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

// BoardConfig describes the leaderboard to watch and how often.
//
// Defaults (when fields are omitted/zero):
//   - name: "LM Arena"
//   - schedule: "@every 10m"
//   - fetch_attempts: 3
//   - fetch_timeout: "20s"
//   - fetch_backoff: "2s"
//   - cycle_timeout: "2m"
type BoardConfig struct {
	Name          string `json:"name,omitempty"`
	URL           string `json:"url"`
	Schedule      string `json:"schedule,omitempty"`
	Timezone      string `json:"timezone,omitempty"` // IANA TZ for cron schedules
	FetchAttempts int    `json:"fetch_attempts,omitempty"`
	FetchTimeout  string `json:"fetch_timeout,omitempty"`
	FetchBackoff  string `json:"fetch_backoff,omitempty"`
	CycleTimeout  string `json:"cycle_timeout,omitempty"`
}

// StorageConfig controls the persistence layer. A nil section means
// the file driver under "./data".
type StorageConfig struct {
	Driver      string `json:"driver"`
	Dir         string `json:"dir"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// NotifyConfig controls subscriber delivery pacing and operator alerts.
// An AdminChat of zero disables operator alerts.
type NotifyConfig struct {
	SendTimeout string `json:"send_timeout,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	Burst       int    `json:"burst,omitempty"`
	AdminChat   int64  `json:"admin_chat,omitempty"`
	DedupWindow string `json:"dedup_window,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

var validLevels = map[string]struct{}{
	"": {}, "trace": {}, "debug": {}, "info": {}, "warn": {}, "error": {},
}

// Validate checks structural correctness without applying defaults.
// It is the hook the watcher runs before committing a reload.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token: required")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}

	rawURL := strings.TrimSpace(c.Board.URL)
	if rawURL == "" {
		return errors.New("board.url: required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("board.url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("board.url: unsupported scheme %q", u.Scheme)
	}
	if spec := strings.TrimSpace(c.Board.Schedule); spec != "" {
		if _, err := schedule.Parse(spec); err != nil {
			return fmt.Errorf("board.schedule: %w", err)
		}
	}
	if tz := strings.TrimSpace(c.Board.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("board.timezone: %w", err)
		}
	}
	if c.Board.FetchAttempts < 0 {
		return errors.New("board.fetch_attempts: must be >= 0")
	}
	for _, f := range []struct{ path, raw string }{
		{"board.fetch_timeout", c.Board.FetchTimeout},
		{"board.fetch_backoff", c.Board.FetchBackoff},
		{"board.cycle_timeout", c.Board.CycleTimeout},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}

	if s := c.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "file", "sqlite", "sqlite3":
		default:
			return fmt.Errorf("storage.driver: unsupported driver %q", s.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			return err
		}
	}

	if n := c.Notify; n != nil {
		if n.RatePerSec < 0 {
			return errors.New("notify.rate_per_sec: must be >= 0")
		}
		if n.Burst < 0 {
			return errors.New("notify.burst: must be >= 0")
		}
		for _, f := range []struct{ path, raw string }{
			{"notify.send_timeout", n.SendTimeout},
			{"notify.dedup_window", n.DedupWindow},
		} {
			if _, err := ParseDurationField(f.path, f.raw); err != nil {
				return err
			}
		}
	}

	if _, ok := validLevels[strings.ToLower(strings.TrimSpace(c.Logging.Level))]; !ok {
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	return nil
}
