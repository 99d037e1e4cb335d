package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rankwatch/internal/alerts"
	"rankwatch/internal/eventbus"
	"rankwatch/internal/fetch"
	"rankwatch/internal/leaderboard"
	"rankwatch/internal/subscriber"
	logx "rankwatch/pkg/logx"
)

// Dispatcher fans one message out to all subscribers and reports the
// per-subscriber outcome. Partial failure is data, not an error.
type Dispatcher interface {
	Dispatch(ctx context.Context, subscribers []int64, text string) map[int64]bool
}

// Alerter queues an operator-facing alert. Optional; nil disables.
type Alerter interface {
	Notify(ctx context.Context, a alerts.Alert) error
}

type Config struct {
	// Board is the display name used in outbound messages.
	Board string
}

type Deps struct {
	Fetcher  fetch.Fetcher
	Store    *leaderboard.Store
	Registry *subscriber.Registry
	Dispatch Dispatcher
	Alerts   Alerter      // optional
	Bus      eventbus.Bus // optional
}

// Monitor owns the fetch -> detect -> notify -> persist cycle.
type Monitor struct {
	runMu sync.Mutex // held for the whole cycle; TryLock implements skip-if-running

	cfgMu sync.RWMutex
	cfg   Config

	fetcher  fetch.Fetcher
	store    *leaderboard.Store
	registry *subscriber.Registry
	dispatch Dispatcher
	alerts   Alerter
	bus      eventbus.Bus
	log      logx.Logger
}

func New(cfg Config, deps Deps, log logx.Logger) *Monitor {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Monitor{
		cfg:      cfg,
		fetcher:  deps.Fetcher,
		store:    deps.Store,
		registry: deps.Registry,
		dispatch: deps.Dispatch,
		alerts:   deps.Alerts,
		bus:      deps.Bus,
		log:      log,
	}
}

// Apply updates the config. Safe during hot-reload; the running cycle
// keeps the values it started with.
func (m *Monitor) Apply(cfg Config) {
	m.cfgMu.Lock()
	m.cfg = cfg
	m.cfgMu.Unlock()
}

func (m *Monitor) board() string {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.cfg.Board
}

// RunCycle runs one check cycle and reports how it ended.
//
// The ranking snapshot is persisted only after dispatch completes
// (write-after-notify): a crash between notify and persist re-notifies
// on the next cycle rather than silently missing an update. Per-subscriber
// delivery failures never fail the cycle; fetch exhaustion ends the cycle
// without touching state; storage and registry faults abort it and
// propagate as the cycle error.
func (m *Monitor) RunCycle(ctx context.Context) (CycleReport, error) {
	if !m.runMu.TryLock() {
		m.log.Debug("cycle still running, tick skipped")
		return CycleReport{State: StateSkipped, At: time.Now()}, nil
	}
	defer m.runMu.Unlock()

	start := time.Now()
	rep := CycleReport{At: start}
	board := m.board()

	finish := func(err error) (CycleReport, error) {
		rep.Took = time.Since(start)
		if err != nil {
			rep.Error = err.Error()
		}
		m.logCycle(rep, err)
		m.publish(rep, err)
		return rep, err
	}

	current, err := m.fetcher.Fetch(ctx)
	if err != nil {
		rep.State = StateFetchFailed
		m.alert(ctx, fmt.Sprintf("%s fetch failed: %v", board, err))
		return finish(err)
	}

	previous, err := m.store.Load(ctx)
	if err != nil {
		rep.State = StateFailed
		m.alert(ctx, fmt.Sprintf("%s ranking store read failed: %v", board, err))
		return finish(err)
	}

	if !leaderboard.Differs(previous, current) {
		rep.State = StateNoChange
		return finish(nil)
	}
	rep.Changed = true
	m.log.Info("leaderboard changes detected",
		logx.Int("entries", len(current)),
		logx.Int("previous_entries", len(previous)))

	// Read fresh every cycle; the command surface mutates the registry
	// between ticks. A corrupt registry aborts before any send.
	subs, err := m.registry.All(ctx)
	if err != nil {
		rep.State = StateFailed
		m.alert(ctx, fmt.Sprintf("%s subscriber registry read failed: %v", board, err))
		return finish(err)
	}

	outcome := m.dispatch.Dispatch(ctx, subs, leaderboard.FormatUpdate(board, previous, current))
	for _, ok := range outcome {
		if ok {
			rep.Sent++
		} else {
			rep.Failed++
		}
	}

	// Announced to whoever could be reached; the change is committed
	// regardless of individual delivery outcomes.
	if err := m.store.Save(ctx, current); err != nil {
		rep.State = StateFailed
		m.alert(ctx, fmt.Sprintf("%s ranking store write failed: %v", board, err))
		return finish(err)
	}

	rep.State = StateUpdated
	return finish(nil)
}

func (m *Monitor) logCycle(rep CycleReport, err error) {
	fields := []logx.Field{
		logx.String("state", string(rep.State)),
		logx.Bool("changed", rep.Changed),
		logx.Int("sent", rep.Sent),
		logx.Int("failed", rep.Failed),
		logx.Duration("took", rep.Took),
	}
	switch {
	case err != nil:
		m.log.Error("cycle failed", append(fields, logx.Err(err))...)
	case rep.State == StateNoChange:
		m.log.Debug("no leaderboard changes detected", fields...)
	default:
		m.log.Info("cycle finished", fields...)
	}
}

func (m *Monitor) publish(rep CycleReport, err error) {
	if m.bus == nil {
		return
	}
	topic := eventbus.TopicCycleFinished
	if err != nil {
		topic = eventbus.TopicCycleFailed
	}
	m.bus.Publish(eventbus.Event{Type: topic, Data: rep})
}

func (m *Monitor) alert(ctx context.Context, text string) {
	if m.alerts == nil {
		return
	}
	if err := m.alerts.Notify(ctx, alerts.Alert{Severity: alerts.SeverityError, Text: text}); err != nil {
		m.log.Debug("operator alert not queued", logx.Err(err))
	}
}
