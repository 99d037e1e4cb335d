package schedule

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"rankwatch/pkg/logx"
)

// Config controls the trigger service.
type Config struct {
	Spec       string
	Timezone   string // IANA TZ, e.g. "Asia/Jakarta"; empty means local
	RunTimeout time.Duration
}

// Service triggers the poll job on a cron or interval schedule. It
// owns no execution policy beyond the per-run timeout; overlap
// handling lives with the job itself.
type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	job func(ctx context.Context) error

	parser  cron.Parser
	loc     *time.Location
	c       *cron.Cron
	entryID cron.EntryID

	runCtx context.Context
}

func New(cfg Config, job func(ctx context.Context) error, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg: cfg,
		job: job,
		log: log,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Apply updates the schedule. A spec or timezone change restarts the
// cron runner with the new registration.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldSpec := strings.TrimSpace(s.cfg.Spec)
	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	s.cfg = cfg

	if s.c == nil {
		return
	}
	if oldSpec != strings.TrimSpace(cfg.Spec) || oldTZ != strings.TrimSpace(cfg.Timezone) {
		s.restartLocked()
	}
}

// Start begins triggering. ctx bounds every run the service fires.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.runCtx = ctx

	loc := s.loadLocationLocked()
	s.loc = loc
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	s.registerLocked()
	s.c.Start()

	args := []logx.Field{logx.String("spec", s.cfg.Spec), logx.String("tz", loc.String())}
	if next := s.nextLocked(); !next.IsZero() {
		args = append(args, logx.Time("next", next))
	}
	s.log.Info("service started", args...)
}

// Stop halts triggering and waits for an in-flight run best-effort
// until ctx expires.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	s.mu.Lock()
	c := s.c
	s.c = nil
	s.entryID = 0
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			// best-effort
		}
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

// Next reports the next scheduled run, or zero when not running.
func (s *Service) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextLocked()
}

func (s *Service) nextLocked() time.Time {
	if s.c == nil || s.entryID == 0 {
		return time.Time{}
	}
	return s.c.Entry(s.entryID).Next
}

// registerLocked adds the single poll entry. Call with s.mu held.
func (s *Service) registerLocked() {
	spec, err := Parse(s.cfg.Spec)
	if err != nil {
		s.log.Error("schedule register failed", logx.String("spec", s.cfg.Spec), logx.Err(err))
		return
	}
	eid, err := s.c.AddFunc(spec.cronSpec(), s.run)
	if err != nil {
		s.log.Error("schedule register failed", logx.String("spec", spec.cronSpec()), logx.Err(err))
		return
	}
	s.entryID = eid
}

func (s *Service) restartLocked() {
	if s.c != nil {
		<-s.c.Stop().Done()
	}
	loc := s.loadLocationLocked()
	s.loc = loc
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	s.entryID = 0
	s.registerLocked()
	s.c.Start()
	s.log.Info("service restarted", logx.String("spec", s.cfg.Spec), logx.String("tz", loc.String()))
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone, using local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) run() {
	s.mu.Lock()
	job := s.job
	timeout := s.cfg.RunTimeout
	base := s.runCtx
	s.mu.Unlock()

	if job == nil {
		return
	}
	if base == nil {
		base = context.Background()
	}
	if base.Err() != nil {
		return
	}

	ctx := base
	cancel := func() {}
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(base, timeout)
	}
	defer cancel()

	start := time.Now()
	if err := job(ctx); err != nil {
		s.log.Warn("scheduled run failed", logx.Err(err), logx.Duration("took", time.Since(start)))
	}
}
