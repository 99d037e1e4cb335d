package app

// StopReason records why the process is shutting down. It only feeds
// the final log line; no behavior branches on it.
type StopReason string

const (
	StopUnknown    StopReason = "unknown"
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
	StopAppStop    StopReason = "app_stop"
)
