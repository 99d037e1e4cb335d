// Package app wires the services into one process: config, logging,
// storage, transport, the command router, the check cycle, and the
// startup/shutdown ordering between them.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"rankwatch/internal/alerts"
	"rankwatch/internal/commands"
	"rankwatch/internal/config"
	"rankwatch/internal/dispatch"
	"rankwatch/internal/eventbus"
	"rankwatch/internal/fetch"
	"rankwatch/internal/leaderboard"
	"rankwatch/internal/monitor"
	"rankwatch/internal/runtime/supervisor"
	"rankwatch/internal/schedule"
	"rankwatch/internal/storage"
	"rankwatch/internal/subscriber"
	"rankwatch/internal/transport"
	"rankwatch/internal/transport/telegram"
	logx "rankwatch/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store    storage.Store
	rankings *leaderboard.Store
	registry *subscriber.Registry

	adapter  *telegram.Adapter
	fetcher  *fetch.HTTP
	dispatch *dispatch.Dispatcher
	alerts   *alerts.Service
	mon      *monitor.Monitor
	sched    *schedule.Service
	router   *commands.Router

	// Last finished cycle, recorded by the event drain for /status.
	statusMu  sync.Mutex
	lastCycle monitor.CycleReport
	hasCycle  bool

	updates chan transport.Message
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, defaultPollTimeout)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, logSvc.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, logSvc.Logger().With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	rankings := leaderboard.NewStore(store)
	registry := subscriber.NewRegistry(store, logSvc.Logger().With(logx.String("comp", "subscribers")))

	fc, err := mapFetchConfig(cfg)
	if err != nil {
		return nil, err
	}
	fetcher := fetch.NewHTTP(fc, nil, logSvc.Logger().With(logx.String("comp", "fetch")))

	dc, err := mapDispatchConfig(cfg)
	if err != nil {
		return nil, err
	}
	disp := dispatch.New(dc, ad, logSvc.Logger().With(logx.String("comp", "dispatch")))

	ac, err := mapAlertsConfig(cfg)
	if err != nil {
		return nil, err
	}
	// The alert pipeline is always wired; without an admin chat it
	// drops alerts silently.
	alertSvc := alerts.New(ac, ad, logSvc.Logger().With(logx.String("comp", "alerts")), bus)

	mon := monitor.New(monitor.Config{Board: boardName(cfg)}, monitor.Deps{
		Fetcher:  fetcher,
		Store:    rankings,
		Registry: registry,
		Dispatch: disp,
		Alerts:   alertSvc,
		Bus:      bus,
	}, logSvc.Logger().With(logx.String("comp", "monitor")))

	schedCfg, err := mapScheduleConfig(cfg)
	if err != nil {
		return nil, err
	}
	sched := schedule.New(schedCfg, func(ctx context.Context) error {
		_, err := mon.RunCycle(ctx)
		return err
	}, logSvc.Logger().With(logx.String("comp", "schedule")))

	router := commands.New(logSvc.Logger().With(logx.String("comp", "commands")), ad, adminChat(cfg))

	a := &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		rankings: rankings,
		registry: registry,
		adapter:  ad,
		fetcher:  fetcher,
		dispatch: disp,
		alerts:   alertSvc,
		mon:      mon,
		sched:    sched,
		router:   router,
		updates:  make(chan transport.Message, 256),
	}

	router.SetCommands(commands.Defaults(commands.Deps{
		Board:     a.board,
		Registry:  registry,
		Rankings:  rankings,
		LastCycle: a.lastCycleReport,
		NextRun:   sched.Next,
	}))

	return a, nil
}

// Done is closed when the app supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.NewSupervisor(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// Transactional config reload: validate before commit/publish.
	a.cfgm.SetLogger(a.logs.Logger().With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return cfg.Validate()
	})

	// A corrupt subscriber registry is fatal at startup; a registry that
	// has never been written is just empty.
	probeCtx, cancel := context.WithTimeout(a.sup.Context(), 5*time.Second)
	_, err := a.registry.All(probeCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("subscriber registry unreadable: %w", err)
	}

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	if a.alerts.Enabled() {
		a.alerts.Start(a.sup.Context())
	}

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	})

	// Event drain: records the last cycle report for /status and keeps a
	// debug trail of everything on the bus.
	events, unsub := a.bus.Subscribe(64)
	a.sup.Go0("eventbus.track", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				if rep, ok := e.Data.(monitor.CycleReport); ok {
					a.setLastCycle(rep)
				}
				// Keep this at debug to stay quiet on tight schedules.
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	a.sched.Start(a.sup.Context())

	// Hot reload fan-out.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the newest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started", logx.String("board", boardName(a.cfgm.Get())))
	return nil
}

// applyConfig applies a validated config snapshot to the running
// services. Storage changes require a restart and are only logged.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	for _, s := range sections {
		if s == "storage" {
			a.log.Warn("storage config changed; restart required for changes to take effect")
			break
		}
	}

	a.logs.Apply(logx.Config{
		Level:   newCfg.Logging.Level,
		Console: newCfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: newCfg.Logging.File.Enabled,
			Path:    newCfg.Logging.File.Path,
		},
	})

	if fc, err := mapFetchConfig(newCfg); err != nil {
		a.log.Warn("invalid fetch config; keeping previous", logx.Err(err))
	} else {
		a.fetcher.Apply(fc)
	}

	if dc, err := mapDispatchConfig(newCfg); err != nil {
		a.log.Warn("invalid dispatch config; keeping previous", logx.Err(err))
	} else {
		a.dispatch.Apply(dc)
	}

	// Operator alerts may flip between enabled and disabled at runtime.
	prevAlerts := a.alerts.Enabled()
	if ac, err := mapAlertsConfig(newCfg); err != nil {
		a.log.Warn("invalid alerts config; keeping previous", logx.Err(err))
	} else {
		a.alerts.Apply(ac)
		switch now := a.alerts.Enabled(); {
		case prevAlerts && !now:
			a.log.Info("operator alerts disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.alerts.Stop(stopCtx)
			cancel()
		case !prevAlerts && now:
			a.log.Info("operator alerts enabled via config")
			a.alerts.Start(ctx)
		}
	}

	a.mon.Apply(monitor.Config{Board: boardName(newCfg)})

	if sc, err := mapScheduleConfig(newCfg); err != nil {
		a.log.Warn("invalid schedule config; keeping previous", logx.Err(err))
	} else {
		a.sched.Apply(sc)
	}

	a.router.SetAdmin(adminChat(newCfg))

	// Keep the final line concise; details are in the debug summary.
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel the run context first so background loops start unwinding
	// immediately; an in-flight cycle aborts and re-notifies next start.
	a.sup.Cancel()

	// step runs a shutdown stage with an upper bound so one component
	// can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// Respect the caller's deadline; never extend it.
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			// Contract: fn must honor stepCtx and return promptly. If it
			// doesn't, log a leak signal when it eventually finishes.
			elapsed := time.Since(start)
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", elapsed))
			go func() {
				err := <-done
				took := time.Since(start)
				if err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", took))
				} else {
					a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
				}
			}()
		}
	}

	// The schedule goes first so no new cycle fires while the rest
	// shuts down; adapter before storage so late sends still resolve.
	step("schedule", 3*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("alerts", 2*time.Second, func(c context.Context) error { a.alerts.Stop(c); return nil })
	step("storage", 1*time.Second, func(c context.Context) error { return a.store.Close() })

	// Finally, wait for supervised goroutines (config watch/reload,
	// command dispatcher, event drain).
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}

func (a *App) board() string { return boardName(a.cfgm.Get()) }

func (a *App) setLastCycle(rep monitor.CycleReport) {
	a.statusMu.Lock()
	a.lastCycle = rep
	a.hasCycle = true
	a.statusMu.Unlock()
}

func (a *App) lastCycleReport() (monitor.CycleReport, bool) {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	return a.lastCycle, a.hasCycle
}
