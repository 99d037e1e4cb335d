package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rankwatch/internal/transport"
	"rankwatch/pkg/logx"
)

type senderFunc func(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error

func (f senderFunc) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error {
	return f(ctx, to, text, opt)
}

func TestDispatchReportsPerSubscriberOutcome(t *testing.T) {
	t.Parallel()

	failing := map[int64]bool{2: true, 4: true}
	var mu sync.Mutex
	var texts []string

	sender := senderFunc(func(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error {
		mu.Lock()
		texts = append(texts, text)
		mu.Unlock()
		if failing[to.ChatID] {
			return errors.New("forbidden: bot was blocked by the user")
		}
		return nil
	})

	d := New(Config{RatePerSec: 1000, Burst: 10}, sender, logx.Nop())
	subs := []int64{1, 2, 3, 4, 5}
	got := d.Dispatch(context.Background(), subs, "hello")

	if len(got) != len(subs) {
		t.Fatalf("len(results) = %d, want %d", len(got), len(subs))
	}
	for _, chat := range subs {
		ok, present := got[chat]
		if !present {
			t.Fatalf("results missing chat %d", chat)
		}
		if want := !failing[chat]; ok != want {
			t.Fatalf("results[%d] = %v, want %v", chat, ok, want)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if len(texts) != len(subs) {
		t.Fatalf("sends = %d, want %d", len(texts), len(subs))
	}
	for _, text := range texts {
		if text != "hello" {
			t.Fatalf("sent text = %q, want %q", text, "hello")
		}
	}
}

func TestDispatchEmptySubscribers(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	sender := senderFunc(func(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error {
		calls.Add(1)
		return nil
	})

	d := New(Config{}, sender, logx.Nop())
	got := d.Dispatch(context.Background(), nil, "hello")

	if len(got) != 0 {
		t.Fatalf("len(results) = %d, want 0", len(got))
	}
	if n := calls.Load(); n != 0 {
		t.Fatalf("sends = %d, want 0", n)
	}
}

func TestDispatchSendsConcurrently(t *testing.T) {
	t.Parallel()

	const n = 8
	var started atomic.Int32
	release := make(chan struct{})

	// Every send blocks until all n have started, so the dispatch can
	// only finish cleanly when the sends overlap.
	sender := senderFunc(func(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error {
		if started.Add(1) == n {
			close(release)
		}
		select {
		case <-release:
			return nil
		case <-time.After(3 * time.Second):
			return errors.New("send never overlapped")
		}
	})

	d := New(Config{RatePerSec: 1000, Burst: n}, sender, logx.Nop())
	subs := make([]int64, 0, n)
	for i := int64(1); i <= n; i++ {
		subs = append(subs, i)
	}

	got := d.Dispatch(context.Background(), subs, "hello")
	for _, chat := range subs {
		if !got[chat] {
			t.Fatalf("results[%d] = false, want true", chat)
		}
	}
}

func TestDispatchSendTimeout(t *testing.T) {
	t.Parallel()

	sender := senderFunc(func(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error {
		<-ctx.Done()
		return ctx.Err()
	})

	d := New(Config{RatePerSec: 1000, Burst: 10, SendTimeout: 50 * time.Millisecond}, sender, logx.Nop())
	got := d.Dispatch(context.Background(), []int64{7}, "hello")

	if got[7] {
		t.Fatalf("results[7] = true, want false after send timeout")
	}
}

func TestDispatchSurvivesPanickingSender(t *testing.T) {
	t.Parallel()

	sender := senderFunc(func(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error {
		if to.ChatID == 2 {
			panic("sender blew up")
		}
		return nil
	})

	d := New(Config{RatePerSec: 1000, Burst: 10}, sender, logx.Nop())
	got := d.Dispatch(context.Background(), []int64{1, 2, 3}, "hello")

	want := map[int64]bool{1: true, 2: false, 3: true}
	for chat, ok := range want {
		if got[chat] != ok {
			t.Fatalf("results[%d] = %v, want %v", chat, got[chat], ok)
		}
	}
}

func TestDispatchCanceledContext(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	sender := senderFunc(func(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error {
		calls.Add(1)
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := New(Config{RatePerSec: 1, Burst: 1}, sender, logx.Nop())
	got := d.Dispatch(ctx, []int64{1, 2}, "hello")

	for chat, ok := range got {
		if ok {
			t.Fatalf("results[%d] = true, want false under canceled context", chat)
		}
	}
	if len(got) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(got))
	}
}
