package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rankwatch/internal/leaderboard"
	"rankwatch/internal/monitor"
	"rankwatch/internal/subscriber"
	logx "rankwatch/pkg/logx"
)

// Reply texts shared by the subscription surface.
const (
	errorReply    = "Something went wrong. Please try again later."
	fetchingReply = "Fetching current leaderboard..."
	noDataReply   = "Sorry, no leaderboard data is available. Try again later."

	alreadySubscribedReply = "You're already subscribed!"
	notSubscribedReply     = "You're not subscribed."
)

func subscribedReply(board string) string {
	return "You've been subscribed to " + board + " updates!"
}

func unsubscribedReply(board string) string {
	return "You've been unsubscribed from " + board + " updates."
}

func startText(board string) string {
	return "Welcome to " + board + " Monitor Bot!\n\n" +
		"I'll notify you when the top 3 on " + board + " change.\n\n" +
		"Commands:\n" +
		"/subscribe - Get notifications\n" +
		"/unsubscribe - Stop notifications\n" +
		"/current - Show current top 3"
}

// Deps are the domain collaborators behind the command handlers.
type Deps struct {
	// Board returns the leaderboard display name used in replies.
	// A func so hot-reloaded renames take effect without rewiring.
	Board    func() string
	Registry *subscriber.Registry
	Rankings *leaderboard.Store

	// LastCycle and NextRun feed the admin /status reply; either may
	// be nil in minimal setups.
	LastCycle func() (monitor.CycleReport, bool)
	NextRun   func() time.Time
}

// Defaults is the bot's command table. /help is appended by the router.
func Defaults(d Deps) []Command {
	const timeout = 10 * time.Second
	return []Command{
		{Name: "start", Description: "Welcome and basics", Timeout: timeout, Handle: d.start},
		{Name: "subscribe", Description: "Get notifications", Timeout: timeout, Handle: d.subscribe},
		{Name: "unsubscribe", Description: "Stop notifications", Timeout: timeout, Handle: d.unsubscribe},
		{Name: "current", Description: "Show current top 3", Timeout: timeout, Handle: d.current},
		{Name: "status", Description: "Last check cycle summary", AdminOnly: true, Timeout: timeout, Handle: d.status},
	}
}

func (d Deps) start(ctx context.Context, req *Request) error {
	return req.Adapter.SendText(ctx, req.Chat, startText(d.Board()), nil)
}

func (d Deps) subscribe(ctx context.Context, req *Request) error {
	added, err := d.Registry.Add(ctx, req.Chat.ChatID)
	if err != nil {
		_ = req.Adapter.SendText(ctx, req.Chat, errorReply, nil)
		return err
	}
	if !added {
		return req.Adapter.SendText(ctx, req.Chat, alreadySubscribedReply, nil)
	}
	req.Logger.Info("subscribed")
	return req.Adapter.SendText(ctx, req.Chat, subscribedReply(d.Board()), nil)
}

func (d Deps) unsubscribe(ctx context.Context, req *Request) error {
	removed, err := d.Registry.Remove(ctx, req.Chat.ChatID)
	if err != nil {
		_ = req.Adapter.SendText(ctx, req.Chat, errorReply, nil)
		return err
	}
	if !removed {
		return req.Adapter.SendText(ctx, req.Chat, notSubscribedReply, nil)
	}
	req.Logger.Info("unsubscribed")
	return req.Adapter.SendText(ctx, req.Chat, unsubscribedReply(d.Board()), nil)
}

// current reads the stored snapshot; it never re-fetches.
func (d Deps) current(ctx context.Context, req *Request) error {
	_ = req.Adapter.SendText(ctx, req.Chat, fetchingReply, nil)

	r, err := d.Rankings.Load(ctx)
	if err != nil {
		_ = req.Adapter.SendText(ctx, req.Chat, errorReply, nil)
		return err
	}
	if r.Empty() {
		return req.Adapter.SendText(ctx, req.Chat, noDataReply, nil)
	}
	return req.Adapter.SendText(ctx, req.Chat, leaderboard.FormatCurrent(d.Board(), r), nil)
}

func (d Deps) status(ctx context.Context, req *Request) error {
	var b strings.Builder

	var rep monitor.CycleReport
	ok := false
	if d.LastCycle != nil {
		rep, ok = d.LastCycle()
	}
	if !ok {
		b.WriteString("No check cycle has run yet.\n")
	} else {
		fmt.Fprintf(&b, "Last cycle: %s at %s (took %s)\n",
			rep.State, rep.At.Format("2006-01-02 15:04:05"), rep.Took.Round(time.Millisecond))
		if rep.Changed {
			fmt.Fprintf(&b, "Change dispatched to %d of %d subscribers\n", rep.Sent, rep.Sent+rep.Failed)
		}
		if rep.Error != "" {
			fmt.Fprintf(&b, "Error: %s\n", rep.Error)
		}
	}

	if d.NextRun != nil {
		if next := d.NextRun(); !next.IsZero() {
			fmt.Fprintf(&b, "Next run: %s\n", next.Format("2006-01-02 15:04:05"))
		}
	}

	subs, err := d.Registry.All(ctx)
	if err != nil {
		req.Logger.Warn("status: registry read failed", logx.Err(err))
		b.WriteString("Subscribers: unavailable\n")
	} else {
		fmt.Fprintf(&b, "Subscribers: %d\n", len(subs))
	}

	return req.Adapter.SendText(ctx, req.Chat, strings.TrimRight(b.String(), "\n"), nil)
}
