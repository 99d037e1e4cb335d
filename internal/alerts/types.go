package alerts

import "time"

// Severity ranks an alert for operators.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarn:
		return "warn"
	default:
		return "info"
	}
}

func (s Severity) prefix() string {
	switch s {
	case SeverityError:
		return "🚨 "
	case SeverityWarn:
		return "⚠️ "
	default:
		return "ℹ️ "
	}
}

// Alert is one operator-facing message.
type Alert struct {
	Severity Severity
	Text     string
}

// Config controls the alert pipeline. An AdminChat of zero disables
// the pipeline entirely.
type Config struct {
	AdminChat     int64
	QueueSize     int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	DedupWindow   time.Duration
}

// AlertEvent is emitted on the event bus for alert lifecycle events.
// Keep it small; Data may be logged or serialized by subscribers.
type AlertEvent struct {
	Severity string    `json:"severity"`
	Key      string    `json:"key"`
	At       time.Time `json:"at"`
	Error    string    `json:"error,omitempty"`
}
