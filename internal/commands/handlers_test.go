package commands

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"rankwatch/internal/leaderboard"
	"rankwatch/internal/monitor"
	"rankwatch/internal/storage"
	"rankwatch/internal/subscriber"
	"rankwatch/internal/transport"
	logx "rankwatch/pkg/logx"
)

func testDeps(t *testing.T) Deps {
	t.Helper()
	st, err := storage.Open(storage.Config{Driver: "file", Dir: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return Deps{
		Board:    func() string { return "LM Arena" },
		Registry: subscriber.NewRegistry(st, logx.Nop()),
		Rankings: leaderboard.NewStore(st),
	}
}

func testReq(ad *fakeAdapter, chat int64) *Request {
	return &Request{
		Msg:     transport.Message{ChatID: chat, FromID: chat},
		Chat:    transport.ChatTarget{ChatID: chat},
		FromID:  chat,
		Command: "test",
		ReqID:   "t-1",
		Adapter: ad,
		Logger:  logx.Nop(),
	}
}

func TestStartReplyText(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := testDeps(t)
	ad := newFakeAdapter()

	if err := d.start(ctx, testReq(ad, 7)); err != nil {
		t.Fatalf("start: %v", err)
	}

	want := "Welcome to LM Arena Monitor Bot!\n\n" +
		"I'll notify you when the top 3 on LM Arena change.\n\n" +
		"Commands:\n" +
		"/subscribe - Get notifications\n" +
		"/unsubscribe - Stop notifications\n" +
		"/current - Show current top 3"
	if got := ad.texts(); len(got) != 1 || got[0] != want {
		t.Fatalf("start reply = %q, want %q", got, want)
	}
}

func TestSubscribeReplies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := testDeps(t)
	ad := newFakeAdapter()

	if err := d.subscribe(ctx, testReq(ad, 7)); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := d.subscribe(ctx, testReq(ad, 7)); err != nil {
		t.Fatalf("subscribe again: %v", err)
	}

	got := ad.texts()
	if len(got) != 2 {
		t.Fatalf("replies = %d, want 2", len(got))
	}
	if got[0] != "You've been subscribed to LM Arena updates!" {
		t.Fatalf("first reply = %q", got[0])
	}
	if got[1] != alreadySubscribedReply {
		t.Fatalf("second reply = %q, want %q", got[1], alreadySubscribedReply)
	}

	subs, err := d.Registry.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(subs) != 1 || subs[0] != 7 {
		t.Fatalf("registry = %v, want [7]", subs)
	}
}

func TestUnsubscribeReplies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := testDeps(t)
	ad := newFakeAdapter()

	if err := d.unsubscribe(ctx, testReq(ad, 7)); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if _, err := d.Registry.Add(ctx, 7); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := d.unsubscribe(ctx, testReq(ad, 7)); err != nil {
		t.Fatalf("unsubscribe subscribed: %v", err)
	}

	got := ad.texts()
	if len(got) != 2 {
		t.Fatalf("replies = %d, want 2", len(got))
	}
	if got[0] != notSubscribedReply {
		t.Fatalf("first reply = %q, want %q", got[0], notSubscribedReply)
	}
	if got[1] != "You've been unsubscribed from LM Arena updates." {
		t.Fatalf("second reply = %q", got[1])
	}
}

func TestCurrentEmptyStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := testDeps(t)
	ad := newFakeAdapter()

	if err := d.current(ctx, testReq(ad, 7)); err != nil {
		t.Fatalf("current: %v", err)
	}

	got := ad.texts()
	if len(got) != 2 {
		t.Fatalf("replies = %d, want 2", len(got))
	}
	if got[0] != fetchingReply {
		t.Fatalf("first reply = %q, want %q", got[0], fetchingReply)
	}
	if got[1] != noDataReply {
		t.Fatalf("second reply = %q, want %q", got[1], noDataReply)
	}
}

func TestCurrentWithData(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := testDeps(t)
	ad := newFakeAdapter()

	r := leaderboard.Ranking{
		{Rank: 1, Name: "A", Score: 100},
		{Rank: 2, Name: "B", Score: 90.5},
		{Rank: 3, Name: "C", Score: 80},
	}
	if err := d.Rankings.Save(ctx, r); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	if err := d.current(ctx, testReq(ad, 7)); err != nil {
		t.Fatalf("current: %v", err)
	}

	got := ad.texts()
	if len(got) != 2 {
		t.Fatalf("replies = %d, want 2", len(got))
	}
	want := leaderboard.FormatCurrent("LM Arena", r)
	if got[1] != want {
		t.Fatalf("reply = %q, want %q", got[1], want)
	}
	if !strings.HasPrefix(got[1], "Current Top 3 on LM Arena:\n\n1. A - Score: 100\n") {
		t.Fatalf("reply body = %q", got[1])
	}
}

type brokenStore struct{}

func (brokenStore) Load(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("bad sector")
}
func (brokenStore) Save(ctx context.Context, key string, doc []byte) error {
	return errors.New("bad sector")
}
func (brokenStore) Close() error { return nil }

func TestSubscribeStorageFaultRepliesGeneric(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := Deps{
		Board:    func() string { return "LM Arena" },
		Registry: subscriber.NewRegistry(brokenStore{}, logx.Nop()),
		Rankings: leaderboard.NewStore(brokenStore{}),
	}
	ad := newFakeAdapter()

	err := d.subscribe(ctx, testReq(ad, 7))
	if err == nil || !strings.Contains(err.Error(), "bad sector") {
		t.Fatalf("subscribe err = %v, want bad sector", err)
	}
	got := ad.texts()
	if len(got) != 1 || got[0] != errorReply {
		t.Fatalf("replies = %q, want generic error reply", got)
	}
}

func TestStatusBeforeFirstCycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := testDeps(t)
	ad := newFakeAdapter()

	if err := d.status(ctx, testReq(ad, 99)); err != nil {
		t.Fatalf("status: %v", err)
	}
	got := ad.texts()
	if len(got) != 1 {
		t.Fatalf("replies = %d, want 1", len(got))
	}
	if !strings.Contains(got[0], "No check cycle has run yet.") {
		t.Fatalf("status reply = %q", got[0])
	}
	if !strings.Contains(got[0], "Subscribers: 0") {
		t.Fatalf("status reply missing subscriber count: %q", got[0])
	}
}

func TestStatusWithLastCycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := testDeps(t)
	if _, err := d.Registry.Add(ctx, 7); err != nil {
		t.Fatalf("Add: %v", err)
	}

	at := time.Date(2026, 8, 22, 14, 3, 5, 0, time.UTC)
	d.LastCycle = func() (monitor.CycleReport, bool) {
		return monitor.CycleReport{
			State:   monitor.StateUpdated,
			Changed: true,
			Sent:    2,
			Failed:  1,
			Took:    340 * time.Millisecond,
			At:      at,
		}, true
	}
	d.NextRun = func() time.Time { return at.Add(10 * time.Minute) }

	ad := newFakeAdapter()
	if err := d.status(ctx, testReq(ad, 99)); err != nil {
		t.Fatalf("status: %v", err)
	}

	got := ad.texts()[0]
	for _, want := range []string{
		"Last cycle: updated at 2026-08-22 14:03:05 (took 340ms)",
		"Change dispatched to 2 of 3 subscribers",
		"Next run: 2026-08-22 14:13:05",
		"Subscribers: 1",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("status reply missing %q:\n%s", want, got)
		}
	}
}
