// Package dispatch fans a notification out to every subscriber
// concurrently and reports the per-subscriber outcome.
package dispatch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"rankwatch/internal/transport"
	"rankwatch/pkg/logx"
)

const (
	defaultRatePerSec  = 25
	defaultBurst       = 5
	defaultSendTimeout = 10 * time.Second
)

// Sender is the outbound send primitive. The telegram adapter
// satisfies it.
type Sender interface {
	SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error
}

// Config tunes delivery pacing.
type Config struct {
	RatePerSec  int
	Burst       int
	SendTimeout time.Duration
}

func (c *Config) normalize() {
	if c.RatePerSec <= 0 {
		c.RatePerSec = defaultRatePerSec
	}
	if c.Burst <= 0 {
		c.Burst = defaultBurst
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = defaultSendTimeout
	}
}

// Dispatcher delivers one text to many chats. Every subscriber gets
// its own goroutine so a slow or failing chat never delays the rest;
// a shared limiter keeps the aggregate send rate inside platform
// limits.
type Dispatcher struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
	sender  Sender
	log     logx.Logger
}

func New(cfg Config, sender Sender, log logx.Logger) *Dispatcher {
	cfg.normalize()
	return &Dispatcher{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		sender:  sender,
		log:     log,
	}
}

// Apply replaces the pacing configuration. In-flight dispatches keep
// the limiter they started with.
func (d *Dispatcher) Apply(cfg Config) {
	cfg.normalize()
	d.mu.Lock()
	d.cfg = cfg
	d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst)
	d.mu.Unlock()
}

// Dispatch sends text to every subscriber and returns one outcome per
// subscriber. Partial failure is not an error: a chat that could not
// be reached is reported as false and the remaining sends proceed.
func (d *Dispatcher) Dispatch(ctx context.Context, subscribers []int64, text string) map[int64]bool {
	results := make(map[int64]bool, len(subscribers))
	if len(subscribers) == 0 {
		return results
	}

	d.mu.Lock()
	limiter := d.limiter
	sender := d.sender
	timeout := d.cfg.SendTimeout
	d.mu.Unlock()

	start := time.Now()
	d.log.Debug("dispatch started", logx.Int("subscribers", len(subscribers)))

	type outcome struct {
		chat int64
		ok   bool
	}
	outcomes := make([]outcome, len(subscribers))

	var wg sync.WaitGroup
	for i, chat := range subscribers {
		wg.Add(1)
		go func(slot int, chat int64) {
			defer wg.Done()
			ok := d.sendOne(ctx, limiter, sender, timeout, chat, text)
			outcomes[slot] = outcome{chat: chat, ok: ok}
		}(i, chat)
	}
	wg.Wait()

	sent := 0
	for _, o := range outcomes {
		results[o.chat] = o.ok
		if o.ok {
			sent++
		}
	}

	if sent < len(subscribers) {
		d.log.Warn("dispatch finished with failures",
			logx.Int("sent", sent),
			logx.Int("total", len(subscribers)),
			logx.Duration("took", time.Since(start)))
	} else {
		d.log.Info("dispatch finished",
			logx.Int("sent", sent),
			logx.Int("total", len(subscribers)),
			logx.Duration("took", time.Since(start)))
	}
	return results
}

// sendOne delivers to a single chat. A panicking sender counts as a
// failed delivery for that chat only.
func (d *Dispatcher) sendOne(ctx context.Context, limiter *rate.Limiter, sender Sender, timeout time.Duration, chat int64, text string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("send panicked", logx.Int64("chat", chat), logx.Any("panic", r))
			ok = false
		}
	}()

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			d.log.Warn("send aborted before pacing", logx.Int64("chat", chat), logx.Err(err))
			return false
		}
	}

	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := sender.SendText(sctx, transport.ChatTarget{ChatID: chat}, text, nil); err != nil {
		d.log.Warn("notification send failed", logx.Int64("chat", chat), logx.Err(err))
		return false
	}
	d.log.Debug("notification sent", logx.Int64("chat", chat))
	return true
}
