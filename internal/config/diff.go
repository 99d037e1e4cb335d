package config

import (
	"sort"
	"strings"

	"rankwatch/pkg/logx"
)

// SummarizeChange returns (1) a compact list of changed sections and
// (2) safe structured attrs for logging. It never includes secrets
// like the bot token.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	// Telegram (never log token)
	tokenChanged := strings.TrimSpace(oldCfg.Telegram.Token) != strings.TrimSpace(newCfg.Telegram.Token)
	if tokenChanged ||
		strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_changed", tokenChanged),
			logx.String("telegram.poll_timeout", strings.TrimSpace(newCfg.Telegram.PollTimeout)),
		)
	}

	// Board
	if oldCfg.Board != newCfg.Board {
		changed = append(changed, "board")
		attrs = append(attrs,
			logx.String("board.name", strings.TrimSpace(newCfg.Board.Name)),
			logx.String("board.url", strings.TrimSpace(newCfg.Board.URL)),
			logx.String("board.schedule", strings.TrimSpace(newCfg.Board.Schedule)),
			logx.String("board.timezone", strings.TrimSpace(newCfg.Board.Timezone)),
			logx.Int("board.fetch_attempts", newCfg.Board.FetchAttempts),
			logx.String("board.fetch_timeout", strings.TrimSpace(newCfg.Board.FetchTimeout)),
			logx.String("board.cycle_timeout", strings.TrimSpace(newCfg.Board.CycleTimeout)),
		)
	}

	// Storage. Nil means file driver defaults.
	oldS := derefStorage(oldCfg.Storage)
	newS := derefStorage(newCfg.Storage)
	if oldS != newS {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newS.Driver)),
			logx.Bool("storage.dir_set", strings.TrimSpace(newS.Dir) != ""),
			logx.String("storage.busy_timeout", strings.TrimSpace(newS.BusyTimeout)),
		)
	}

	// Notify. Nil means runtime defaults with alerts disabled.
	oldN := derefNotify(oldCfg.Notify)
	newN := derefNotify(newCfg.Notify)
	if oldN != newN {
		changed = append(changed, "notify")
		attrs = append(attrs,
			logx.String("notify.send_timeout", strings.TrimSpace(newN.SendTimeout)),
			logx.Int("notify.rate_per_sec", newN.RatePerSec),
			logx.Int("notify.burst", newN.Burst),
			logx.Bool("notify.admin_chat_set", newN.AdminChat != 0),
			logx.String("notify.dedup_window", strings.TrimSpace(newN.DedupWindow)),
		)
	}

	// Logging
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func derefStorage(s *StorageConfig) StorageConfig {
	if s == nil {
		return StorageConfig{}
	}
	return *s
}

func derefNotify(n *NotifyConfig) NotifyConfig {
	if n == nil {
		return NotifyConfig{}
	}
	return *n
}
