// Package subscriber keeps the durable set of chats that receive
// leaderboard updates.
package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"rankwatch/internal/storage"
	logx "rankwatch/pkg/logx"
)

// ErrCorrupt reports an unparseable subscriber document. This is an
// operator-level fault: an existing-but-broken registry must never be
// silently treated as empty, or a restart would drop every subscriber.
var ErrCorrupt = errors.New("subscriber registry corrupt")

// Registry is the single source of truth for subscriptions. Every read
// goes to the store (no caching across cycles); writes are serialized
// in-process and atomic on disk.
type Registry struct {
	store storage.Store
	log   logx.Logger

	mu sync.Mutex // serializes read-modify-write sequences
}

func NewRegistry(store storage.Store, log logx.Logger) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{store: store, log: log}
}

// All returns the current subscriber set, loaded fresh.
func (r *Registry) All(ctx context.Context) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

// Add registers a chat. Returns true when newly added, false when the
// chat was already subscribed. Idempotent.
func (r *Registry) Add(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.load(ctx)
	if err != nil {
		return false, err
	}
	if contains(ids, id) {
		return false, nil
	}
	ids = append(ids, id)
	if err := r.save(ctx, ids); err != nil {
		return false, err
	}
	r.log.Debug("subscriber added", logx.Int64("chat", id), logx.Int("total", len(ids)))
	return true, nil
}

// Remove drops a chat. Returns true when it was present, false when it
// was not. Idempotent.
func (r *Registry) Remove(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.load(ctx)
	if err != nil {
		return false, err
	}
	if !contains(ids, id) {
		return false, nil
	}
	kept := ids[:0]
	for _, v := range ids {
		if v != id {
			kept = append(kept, v)
		}
	}
	if err := r.save(ctx, kept); err != nil {
		return false, err
	}
	r.log.Debug("subscriber removed", logx.Int64("chat", id), logx.Int("total", len(kept)))
	return true, nil
}

// load distinguishes three outcomes: absent document (empty set),
// readable document (the set), unparseable document (ErrCorrupt).
func (r *Registry) load(ctx context.Context) ([]int64, error) {
	doc, err := r.store.Load(ctx, storage.KeySubscribers)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load subscribers: %w", err)
	}
	var ids []int64
	if err := json.Unmarshal(doc, &ids); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return ids, nil
}

// save writes the bare JSON list ([1,2,3]); the empty set persists as [].
func (r *Registry) save(ctx context.Context, ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	doc, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode subscribers: %w", err)
	}
	if err := r.store.Save(ctx, storage.KeySubscribers, doc); err != nil {
		return fmt.Errorf("save subscribers: %w", err)
	}
	return nil
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
