package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	logx "rankwatch/pkg/logx"
)

const goodDoc = `{"top3":[{"rank":1,"name":"A","score":100},{"rank":2,"name":"B","score":90},{"rank":3,"name":"C","score":80}]}`

func newTestFetcher(t *testing.T, url string, attempts int) *HTTP {
	t.Helper()
	return NewHTTP(Config{
		URL:      url,
		Attempts: attempts,
		Timeout:  2 * time.Second,
		Backoff:  time.Millisecond,
	}, nil, logx.Nop())
}

func TestFetchFirstAttempt(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(goodDoc))
	}))
	defer srv.Close()

	got, err := newTestFetcher(t, srv.URL, 3).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 3 || got[0].Name != "A" || got[2].Rank != 3 {
		t.Fatalf("unexpected ranking: %+v", got)
	}
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(goodDoc))
	}))
	defer srv.Close()

	got, err := newTestFetcher(t, srv.URL, 3).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ranking length = %d, want 3", len(got))
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("server calls = %d, want 3", n)
	}
}

func TestFetchExhaustsAttempts(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestFetcher(t, srv.URL, 2).Fetch(context.Background())
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Fetch error = %v, want ErrExhausted", err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("server calls = %d, want 2", n)
	}
}

func TestFetchBadDocumentFails(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"top3":[{"rank":0,"name":"","score":1}]}`))
	}))
	defer srv.Close()

	_, err := newTestFetcher(t, srv.URL, 1).Fetch(context.Background())
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Fetch error = %v, want ErrExhausted", err)
	}
}

func TestFetchEmptyRankingIsValid(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"top3":[]}`))
	}))
	defer srv.Close()

	got, err := newTestFetcher(t, srv.URL, 1).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !got.Empty() {
		t.Fatalf("expected empty ranking, got %+v", got)
	}
}

func TestFetchTruncatesToTop3(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"top3":[` +
			`{"rank":1,"name":"A","score":5},` +
			`{"rank":2,"name":"B","score":4},` +
			`{"rank":3,"name":"C","score":3},` +
			`{"rank":4,"name":"D","score":2},` +
			`{"rank":5,"name":"E","score":1}]}`))
	}))
	defer srv.Close()

	got, err := newTestFetcher(t, srv.URL, 1).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 3 || got[2].Name != "C" {
		t.Fatalf("unexpected ranking: %+v", got)
	}
}

func TestFetchAttemptTimeout(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	f := NewHTTP(Config{
		URL:      srv.URL,
		Attempts: 1,
		Timeout:  50 * time.Millisecond,
		Backoff:  time.Millisecond,
	}, nil, logx.Nop())

	if _, err := f.Fetch(context.Background()); !errors.Is(err, ErrExhausted) {
		t.Fatalf("Fetch error = %v, want ErrExhausted", err)
	}
}

func TestFetchCanceledContext(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(t, srv.URL, 3).Fetch(ctx)
	if err == nil {
		t.Fatal("expected error with canceled context")
	}
}

func TestApplySwapsSettings(t *testing.T) {
	t.Parallel()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(goodDoc))
	}))
	defer good.Close()

	f := newTestFetcher(t, broken.URL, 1)
	if _, err := f.Fetch(context.Background()); !errors.Is(err, ErrExhausted) {
		t.Fatalf("Fetch error = %v, want ErrExhausted", err)
	}

	f.Apply(Config{URL: good.URL, Attempts: 1, Timeout: 2 * time.Second, Backoff: time.Millisecond})
	got, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch after Apply: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ranking length = %d, want 3", len(got))
	}
}
