package commands

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"rankwatch/internal/transport"
	logx "rankwatch/pkg/logx"
)

type sentMsg struct {
	chat int64
	text string
}

type fakeAdapter struct {
	mu    sync.Mutex
	sends []sentMsg
	err   error

	sendCh chan sentMsg
	menuCh chan []transport.BotCommand
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		sendCh: make(chan sentMsg, 32),
		menuCh: make(chan []transport.BotCommand, 4),
	}
}

func (a *fakeAdapter) Start(ctx context.Context, out chan<- transport.Message) error { return nil }

func (a *fakeAdapter) Stop(ctx context.Context) error { return nil }

func (a *fakeAdapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error {
	a.mu.Lock()
	a.sends = append(a.sends, sentMsg{chat: to.ChatID, text: text})
	err := a.err
	a.mu.Unlock()
	select {
	case a.sendCh <- sentMsg{chat: to.ChatID, text: text}:
	default:
	}
	return err
}

func (a *fakeAdapter) UpdateMenuCommands(ctx context.Context, cmds []transport.BotCommand) error {
	select {
	case a.menuCh <- cmds:
	default:
	}
	return nil
}

func (a *fakeAdapter) texts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.sends))
	for i, s := range a.sends {
		out[i] = s.text
	}
	return out
}

func (a *fakeAdapter) waitSend(t *testing.T) sentMsg {
	t.Helper()
	select {
	case s := <-a.sendCh:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no reply sent")
		return sentMsg{}
	}
}

func (a *fakeAdapter) expectSilence(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case s := <-a.sendCh:
		t.Fatalf("unexpected reply %q to chat %d", s.text, s.chat)
	case <-time.After(d):
	}
}

// startRouter runs the dispatch loop and returns the inbound channel
// plus a stop func that waits for the loop to exit.
func startRouter(t *testing.T, r *Router) (chan transport.Message, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan transport.Message, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := r.Run(ctx, updates); err != nil {
			t.Errorf("Run: %v", err)
		}
	}()
	return updates, func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("router did not stop")
		}
	}
}

func pingCommand(reply string) Command {
	return Command{
		Name:        "ping",
		Description: "Liveness probe",
		Timeout:     time.Second,
		Handle: func(ctx context.Context, req *Request) error {
			return req.Adapter.SendText(ctx, req.Chat, reply, nil)
		},
	}
}

func TestRouteDispatchesToHandler(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	r := New(logx.Nop(), ad, 0)
	r.SetCommands([]Command{pingCommand("pong")})

	updates, stop := startRouter(t, r)
	defer stop()

	updates <- transport.Message{ChatID: 7, FromID: 7, Text: "/ping"}
	if got := ad.waitSend(t); got.text != "pong" || got.chat != 7 {
		t.Fatalf("reply = %+v, want pong to chat 7", got)
	}
}

func TestRouteStripsBotNameSuffix(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	r := New(logx.Nop(), ad, 0)
	r.SetCommands([]Command{pingCommand("pong")})

	updates, stop := startRouter(t, r)
	defer stop()

	updates <- transport.Message{ChatID: 7, FromID: 7, Text: "/ping@rankwatch_bot", IsGroup: true}
	if got := ad.waitSend(t); got.text != "pong" {
		t.Fatalf("reply = %q, want pong", got.text)
	}
}

func TestRouteUnknownCommand(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	r := New(logx.Nop(), ad, 0)
	r.SetCommands([]Command{pingCommand("pong")})

	updates, stop := startRouter(t, r)
	defer stop()

	// Private chats get a hint.
	updates <- transport.Message{ChatID: 7, FromID: 7, Text: "/nope"}
	if got := ad.waitSend(t); got.text != unknownReply {
		t.Fatalf("reply = %q, want %q", got.text, unknownReply)
	}

	// Group chats stay silent; other bots own their own commands.
	updates <- transport.Message{ChatID: -100, FromID: 7, Text: "/nope", IsGroup: true}
	ad.expectSilence(t, 150*time.Millisecond)
}

func TestRouteIgnoresPlainText(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	r := New(logx.Nop(), ad, 0)
	r.SetCommands([]Command{pingCommand("pong")})

	updates, stop := startRouter(t, r)
	defer stop()

	updates <- transport.Message{ChatID: 7, FromID: 7, Text: "hello there"}
	ad.expectSilence(t, 150*time.Millisecond)
}

func TestAdminOnlyGate(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	r := New(logx.Nop(), ad, 99)
	r.SetCommands([]Command{{
		Name:        "secret",
		Description: "Admin probe",
		AdminOnly:   true,
		Timeout:     time.Second,
		Handle: func(ctx context.Context, req *Request) error {
			return req.Adapter.SendText(ctx, req.Chat, "granted", nil)
		},
	}})

	updates, stop := startRouter(t, r)
	defer stop()

	updates <- transport.Message{ChatID: 55, FromID: 55, Text: "/secret"}
	if got := ad.waitSend(t); got.text != deniedReply {
		t.Fatalf("reply = %q, want %q", got.text, deniedReply)
	}

	updates <- transport.Message{ChatID: 99, FromID: 99, Text: "/secret"}
	if got := ad.waitSend(t); got.text != "granted" {
		t.Fatalf("reply = %q, want granted", got.text)
	}
}

func TestHelpHidesAdminCommands(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	r := New(logx.Nop(), ad, 99)
	r.SetCommands([]Command{
		pingCommand("pong"),
		{
			Name:        "secret",
			Description: "Admin probe",
			AdminOnly:   true,
			Timeout:     time.Second,
			Handle:      func(ctx context.Context, req *Request) error { return nil },
		},
	})

	updates, stop := startRouter(t, r)
	defer stop()

	updates <- transport.Message{ChatID: 7, FromID: 7, Text: "/help"}
	got := ad.waitSend(t)
	if !strings.Contains(got.text, "/ping - Liveness probe") {
		t.Fatalf("help missing public command:\n%s", got.text)
	}
	if strings.Contains(got.text, "/secret") {
		t.Fatalf("help leaked admin command to non-admin:\n%s", got.text)
	}

	updates <- transport.Message{ChatID: 99, FromID: 99, Text: "/help"}
	got = ad.waitSend(t)
	if !strings.Contains(got.text, "/secret - Admin probe") {
		t.Fatalf("help missing admin command for admin:\n%s", got.text)
	}
}

func TestSetCommandsPublishesMenu(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	r := New(logx.Nop(), ad, 99)
	r.SetCommands([]Command{
		pingCommand("pong"),
		{
			Name:        "secret",
			Description: "Admin probe",
			AdminOnly:   true,
			Timeout:     time.Second,
			Handle:      func(ctx context.Context, req *Request) error { return nil },
		},
	})

	select {
	case menu := <-ad.menuCh:
		names := make([]string, len(menu))
		for i, c := range menu {
			names[i] = c.Command
		}
		want := []string{"ping", "help"}
		if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
			t.Fatalf("menu = %v, want %v", names, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("menu never published")
	}
}

func TestBusyReplyWhenQueueFull(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	r := New(logx.Nop(), ad, 0)
	r.SetCommands([]Command{pingCommand("pong")})

	// No dispatch loop running, so jobs only pile up.
	ctx := context.Background()
	for i := 0; i < cap(r.jobs); i++ {
		r.route(ctx, transport.Message{ChatID: 7, FromID: 7, Text: "/ping"})
	}
	if len(ad.texts()) != 0 {
		t.Fatalf("unexpected replies before queue full: %v", ad.texts())
	}

	r.route(ctx, transport.Message{ChatID: 7, FromID: 7, Text: "/ping"})
	texts := ad.texts()
	if len(texts) != 1 || texts[0] != busyReply {
		t.Fatalf("replies = %v, want single busy reply", texts)
	}
}

func TestSetAdminHotSwap(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	r := New(logx.Nop(), ad, 0)

	if r.isAdmin(42) {
		t.Fatal("admin gate open with no admin configured")
	}
	r.SetAdmin(42)
	if !r.isAdmin(42) {
		t.Fatal("admin not recognized after SetAdmin")
	}
	if r.isAdmin(7) {
		t.Fatal("non-admin recognized as admin")
	}
}
