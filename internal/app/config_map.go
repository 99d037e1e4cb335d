package app

import (
	"strings"
	"time"

	"rankwatch/internal/alerts"
	"rankwatch/internal/config"
	"rankwatch/internal/dispatch"
	"rankwatch/internal/fetch"
	"rankwatch/internal/schedule"
	"rankwatch/internal/storage"
)

// Defaults filled in when config fields are omitted. Validation already
// happened at load time; mapping only closes gaps.
const (
	defaultBoardName    = "LM Arena"
	defaultSchedule     = "@every 10m"
	defaultPollTimeout  = 10 * time.Second
	defaultCycleTimeout = 2 * time.Minute
	defaultDedupWindow  = 10 * time.Minute
)

func boardName(cfg *config.Config) string {
	if cfg == nil {
		return defaultBoardName
	}
	if name := strings.TrimSpace(cfg.Board.Name); name != "" {
		return name
	}
	return defaultBoardName
}

func adminChat(cfg *config.Config) int64 {
	if cfg == nil || cfg.Notify == nil {
		return 0
	}
	return cfg.Notify.AdminChat
}

// mapStorageConfig translates the storage section. A missing section
// means the file driver with its default directory.
func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{Driver: "file"}, nil
	}
	sc := cfg.Storage
	busy, err := config.ParseDurationField("storage.busy_timeout", sc.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(sc.Driver)),
		Dir:         strings.TrimSpace(sc.Dir),
		BusyTimeout: busy,
	}, nil
}

// mapFetchConfig translates the board fetch settings. Zero values pass
// through; the fetcher applies its own defaults.
func mapFetchConfig(cfg *config.Config) (fetch.Config, error) {
	timeout, err := config.ParseDurationField("board.fetch_timeout", cfg.Board.FetchTimeout)
	if err != nil {
		return fetch.Config{}, err
	}
	backoff, err := config.ParseDurationField("board.fetch_backoff", cfg.Board.FetchBackoff)
	if err != nil {
		return fetch.Config{}, err
	}
	return fetch.Config{
		URL:      strings.TrimSpace(cfg.Board.URL),
		Attempts: cfg.Board.FetchAttempts,
		Timeout:  timeout,
		Backoff:  backoff,
	}, nil
}

func mapDispatchConfig(cfg *config.Config) (dispatch.Config, error) {
	n := cfg.Notify
	if n == nil {
		return dispatch.Config{}, nil
	}
	sendTimeout, err := config.ParseDurationField("notify.send_timeout", n.SendTimeout)
	if err != nil {
		return dispatch.Config{}, err
	}
	return dispatch.Config{
		RatePerSec:  n.RatePerSec,
		Burst:       n.Burst,
		SendTimeout: sendTimeout,
	}, nil
}

func mapAlertsConfig(cfg *config.Config) (alerts.Config, error) {
	n := cfg.Notify
	if n == nil {
		return alerts.Config{}, nil
	}
	window, err := config.ParseDurationOrDefault("notify.dedup_window", n.DedupWindow, defaultDedupWindow)
	if err != nil {
		return alerts.Config{}, err
	}
	return alerts.Config{
		AdminChat:   n.AdminChat,
		DedupWindow: window,
	}, nil
}

func mapScheduleConfig(cfg *config.Config) (schedule.Config, error) {
	spec := strings.TrimSpace(cfg.Board.Schedule)
	if spec == "" {
		spec = defaultSchedule
	}
	runTimeout, err := config.ParseDurationOrDefault("board.cycle_timeout", cfg.Board.CycleTimeout, defaultCycleTimeout)
	if err != nil {
		return schedule.Config{}, err
	}
	return schedule.Config{
		Spec:       spec,
		Timezone:   strings.TrimSpace(cfg.Board.Timezone),
		RunTimeout: runTimeout,
	}, nil
}
