package schedule

import (
	"context"
	"testing"
	"time"

	"rankwatch/pkg/logx"
)

func TestServiceFiresJob(t *testing.T) {
	t.Parallel()

	fired := make(chan struct{}, 4)
	s := New(Config{Spec: "@every 50ms"}, func(ctx context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}, logx.Nop())

	s.Start(context.Background())
	defer s.Stop(context.Background())

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job never fired")
	}

	if s.Next().IsZero() {
		t.Fatal("Next() = zero, want a scheduled time while running")
	}
}

func TestServiceRunTimeout(t *testing.T) {
	t.Parallel()

	done := make(chan error, 1)
	s := New(Config{Spec: "@every 30ms", RunTimeout: 40 * time.Millisecond}, func(ctx context.Context) error {
		<-ctx.Done()
		select {
		case done <- ctx.Err():
		default:
		}
		return ctx.Err()
	}, logx.Nop())

	s.Start(context.Background())
	defer s.Stop(context.Background())

	select {
	case err := <-done:
		if err != context.DeadlineExceeded {
			t.Fatalf("run ctx error = %v, want deadline exceeded", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("run was never cut off")
	}
}

func TestApplyReschedules(t *testing.T) {
	t.Parallel()

	fired := make(chan struct{}, 1)
	s := New(Config{Spec: "@every 1h"}, func(ctx context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}, logx.Nop())

	s.Start(context.Background())
	defer s.Stop(context.Background())

	select {
	case <-fired:
		t.Fatal("job fired on the hourly schedule already")
	case <-time.After(100 * time.Millisecond):
	}

	s.Apply(Config{Spec: "@every 30ms"})

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job never fired after reschedule")
	}
}

func TestStopPreventsFurtherRuns(t *testing.T) {
	t.Parallel()

	fired := make(chan struct{}, 16)
	s := New(Config{Spec: "@every 30ms"}, func(ctx context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}, logx.Nop())

	s.Start(context.Background())
	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job never fired")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	// Drain anything that landed before Stop finished.
	for {
		select {
		case <-fired:
			continue
		default:
		}
		break
	}

	select {
	case <-fired:
		t.Fatal("job fired after Stop")
	case <-time.After(150 * time.Millisecond):
	}
}
