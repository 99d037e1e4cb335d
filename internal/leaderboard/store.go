package leaderboard

import (
	"context"
	"errors"
	"fmt"

	"rankwatch/internal/storage"
)

// Store persists the last announced snapshot.
type Store struct {
	docs storage.Store
}

func NewStore(docs storage.Store) *Store {
	return &Store{docs: docs}
}

// Load returns the last persisted ranking. A snapshot that was never
// written is the empty ranking, not an error; anything else that goes
// wrong (I/O fault, unparseable document) propagates.
func (s *Store) Load(ctx context.Context) (Ranking, error) {
	doc, err := s.docs.Load(ctx, storage.KeyLeaderboard)
	if errors.Is(err, storage.ErrNotFound) {
		return Ranking{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load ranking: %w", err)
	}
	r, err := DecodeDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("load ranking: %w", err)
	}
	return r, nil
}

// Save atomically replaces the persisted snapshot.
func (s *Store) Save(ctx context.Context, r Ranking) error {
	doc, err := EncodeDocument(r)
	if err != nil {
		return fmt.Errorf("save ranking: %w", err)
	}
	if err := s.docs.Save(ctx, storage.KeyLeaderboard, doc); err != nil {
		return fmt.Errorf("save ranking: %w", err)
	}
	return nil
}
