package commands

import (
	"context"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"rankwatch/internal/runtime/supervisor"
	"rankwatch/internal/transport"
	logx "rankwatch/pkg/logx"
)

const (
	unknownReply = "Unknown command. Try /help."
	busyReply    = "Busy, try again in a moment."
	deniedReply  = "unauthorized"
)

// Command is one entry in the flat command table.
type Command struct {
	Name        string // bare command word, e.g. "subscribe"
	Description string
	AdminOnly   bool
	Timeout     time.Duration // 0 means no per-command deadline
	Handle      HandlerFunc
}

// Request carries one inbound command through the middleware chain.
type Request struct {
	Msg     transport.Message
	Chat    transport.ChatTarget
	FromID  int64
	Command string
	Args    []string
	ReqID   string

	Adapter transport.Adapter
	Logger  logx.Logger
}

// Router matches inbound messages against the command table and runs
// the handlers on a bounded worker pool.
type Router struct {
	mu    sync.RWMutex
	cmds  map[string]Command
	order []string
	admin int64

	log     logx.Logger
	adapter transport.Adapter

	runMu   sync.Mutex
	running bool
	sup     *supervisor.Supervisor

	jobs chan func()
}

func New(log logx.Logger, adapter transport.Adapter, admin int64) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		cmds:    map[string]Command{},
		admin:   admin,
		log:     log,
		adapter: adapter,
		jobs:    make(chan func(), 64),
	}
}

// SetCommands replaces the command table. A /help command rendering the
// table is always appended; the Telegram command menu is refreshed
// best-effort in the background.
func (r *Router) SetCommands(cmds []Command) {
	all := make([]Command, 0, len(cmds)+1)
	for _, c := range cmds {
		if strings.TrimSpace(c.Name) == "" || c.Handle == nil {
			continue
		}
		all = append(all, c)
	}
	all = append(all, Command{
		Name:        "help",
		Description: "List commands",
		Timeout:     10 * time.Second,
		Handle: func(ctx context.Context, req *Request) error {
			return req.Adapter.SendText(ctx, req.Chat, r.helpText(req.FromID), nil)
		},
	})

	table := make(map[string]Command, len(all))
	order := make([]string, 0, len(all))
	for _, c := range all {
		if _, dup := table[c.Name]; dup {
			continue
		}
		table[c.Name] = c
		order = append(order, c.Name)
	}

	r.mu.Lock()
	r.cmds = table
	r.order = order
	r.mu.Unlock()

	r.publishMenu(all)
}

// SetAdmin updates the admin chat used for AdminOnly checks. Safe to
// call during hot-reload; 0 disables admin commands.
func (r *Router) SetAdmin(id int64) {
	r.mu.Lock()
	r.admin = id
	r.mu.Unlock()
}

func (r *Router) isAdmin(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.admin != 0 && id == r.admin
}

// tryEnqueue is a panic-safe enqueue helper (handles the jobs channel
// being closed during shutdown).
func (r *Router) tryEnqueue(fn func()) (ok bool) {
	if fn == nil {
		return false
	}
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
		}
	}()
	select {
	case r.jobs <- fn:
		return true
	default:
		return false
	}
}

// Run consumes inbound messages until ctx ends or the channel closes.
// Handlers execute on a small worker pool so a slow reply cannot stall
// routing.
func (r *Router) Run(ctx context.Context, updates <-chan transport.Message) error {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}

	sup := supervisor.NewSupervisor(ctx,
		supervisor.WithLogger(r.log.With(logx.String("comp", "commands"))),
		supervisor.WithCancelOnError(false),
	)
	r.setSupervisor(sup, true)

	r.log.Info("command dispatcher started",
		logx.Int("workers", workers),
		logx.Int("job_queue_cap", cap(r.jobs)))

	var closeOnce sync.Once
	closeJobs := func() {
		closeOnce.Do(func() {
			// Stop accepting before closing so enqueue degrades to a
			// busy reply instead of a panic.
			r.setSupervisor(sup, false)
			close(r.jobs)
		})
	}

	for i := 0; i < workers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-r.jobs:
					if !ok {
						return nil
					}
					if job == nil {
						continue
					}
					// Middleware already recovers; keep the worker alive
					// if a job slips through without it.
					func() {
						defer func() {
							if rec := recover(); rec != nil {
								r.log.Error("panic in command job",
									logx.Int("worker", idx),
									logx.Any("panic", rec),
									logx.String("stack", string(debug.Stack())))
							}
						}()
						job()
					}()
				}
			}
		},
			supervisor.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			supervisor.WithPublishFirstError(true),
			supervisor.WithStopOnCleanExit(true),
		)
	}

	defer func() {
		closeJobs()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		r.setSupervisor(nil, false)
		r.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-updates:
			if !ok {
				r.log.Info("command dispatcher stopped (updates channel closed)")
				return nil
			}
			r.route(ctx, msg)
		}
	}
}

func (r *Router) setSupervisor(sup *supervisor.Supervisor, running bool) {
	r.runMu.Lock()
	r.sup = sup
	r.running = running
	r.runMu.Unlock()
}

func (r *Router) route(root context.Context, msg transport.Message) {
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return
	}
	word := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	word = strings.ToLower(word)
	if word == "" {
		return
	}
	args := parts[1:]

	r.mu.RLock()
	cmd, ok := r.cmds[word]
	r.mu.RUnlock()
	if !ok {
		// Group chats see every slash command; only answer unknown ones
		// in private chats to avoid crosstalk with other bots.
		if !msg.IsGroup {
			_ = r.adapter.SendText(root, transport.ChatTarget{ChatID: msg.ChatID}, unknownReply, nil)
		}
		return
	}

	r.enqueue(root, msg, cmd, args)
}

func (r *Router) enqueue(root context.Context, msg transport.Message, cmd Command, args []string) {
	chat := transport.ChatTarget{ChatID: msg.ChatID}

	if cmd.AdminOnly && !r.isAdmin(msg.FromID) {
		_ = r.adapter.SendText(root, chat, deniedReply, nil)
		return
	}

	rid := newReqID()
	reqLog := r.log.With(
		logx.String("rid", rid),
		logx.Int64("chat_id", msg.ChatID),
		logx.Int64("from_id", msg.FromID),
		logx.String("cmd", cmd.Name),
	)

	req := &Request{
		Msg:     msg,
		Chat:    chat,
		FromID:  msg.FromID,
		Command: cmd.Name,
		Args:    args,
		ReqID:   rid,
		Adapter: r.adapter,
		Logger:  reqLog,
	}

	final := Chain(
		cmd.Handle,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWTimeout(cmd.Timeout),
	)

	if !r.tryEnqueue(func() { _ = final(root, req) }) {
		_ = r.adapter.SendText(root, chat, busyReply, nil)
	}
}

// helpText renders the command table, hiding admin commands from
// everyone but the admin.
func (r *Router) helpText(fromID int64) string {
	r.mu.RLock()
	admin := r.admin != 0 && fromID == r.admin
	order := r.order
	cmds := r.cmds
	r.mu.RUnlock()

	lines := make([]string, 0, len(order)+1)
	lines = append(lines, "Commands:")
	for _, name := range order {
		c := cmds[name]
		if c.AdminOnly && !admin {
			continue
		}
		lines = append(lines, "/"+name+" - "+c.Description)
	}
	return strings.Join(lines, "\n")
}

// publishMenu refreshes the Telegram command menu (best-effort, bounded).
// Admin commands stay out of the public autocomplete.
func (r *Router) publishMenu(cmds []Command) {
	up, ok := r.adapter.(transport.CommandMenuUpdater)
	if !ok {
		return
	}
	menu := make([]transport.BotCommand, 0, len(cmds))
	for _, c := range cmds {
		if c.AdminOnly {
			continue
		}
		menu = append(menu, transport.BotCommand{Command: c.Name, Description: c.Description})
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := up.UpdateMenuCommands(ctx, menu); err != nil {
			r.log.Warn("menu update failed", logx.Err(err))
		}
	}()
}
