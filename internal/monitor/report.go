package monitor

import "time"

// State is the terminal state of a cycle.
type State string

const (
	// StateSkipped means a previous cycle was still running at the tick.
	StateSkipped State = "skipped"
	// StateFetchFailed means every fetch attempt failed. Terminal for
	// the cycle, not for the process; the next tick retries from scratch.
	StateFetchFailed State = "fetch_failed"
	// StateFailed means a storage or registry fault aborted the cycle.
	StateFailed State = "failed"
	// StateNoChange means the rankings matched; nothing sent, nothing written.
	StateNoChange State = "no_change"
	// StateUpdated means a change was dispatched and the snapshot persisted.
	StateUpdated State = "updated"
)

// CycleReport summarizes one cycle. Published on the event bus and kept
// by the app for the /status reply.
type CycleReport struct {
	State   State         `json:"state"`
	Changed bool          `json:"changed"`
	Sent    int           `json:"sent"`
	Failed  int           `json:"failed"`
	Took    time.Duration `json:"took"`
	At      time.Time     `json:"at"`
	Error   string        `json:"error,omitempty"`
}
