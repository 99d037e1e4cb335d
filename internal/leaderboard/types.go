// Package leaderboard defines the ranking snapshot model, the change
// policy between two snapshots, and the user-facing message formats.
package leaderboard

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TopSize is the number of leaderboard positions the monitor tracks.
const TopSize = 3

// Entry is one leaderboard position.
type Entry struct {
	Rank  int     `json:"rank"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Ranking is an ordered top-N snapshot, ranks ascending.
// An empty Ranking means "no data" and is a valid value.
type Ranking []Entry

func (r Ranking) Empty() bool { return len(r) == 0 }

// Validate checks the snapshot invariant: every entry has a positive rank
// and a non-empty name, and ranks strictly increase with position.
// Applied to every ranking that crosses a process boundary (fetched or
// loaded from disk).
func (r Ranking) Validate() error {
	for i, e := range r {
		if e.Rank < 1 {
			return fmt.Errorf("entry %d: rank %d must be positive", i, e.Rank)
		}
		if strings.TrimSpace(e.Name) == "" {
			return fmt.Errorf("entry %d: empty name", i)
		}
		if i > 0 && e.Rank <= r[i-1].Rank {
			return fmt.Errorf("entry %d: rank %d not above previous rank %d", i, e.Rank, r[i-1].Rank)
		}
	}
	return nil
}

// document is the persisted and fetched wire form: {"top3": [...]}.
type document struct {
	Top3 []Entry `json:"top3"`
}

// EncodeDocument renders a ranking in its wire form. The empty ranking
// encodes as {"top3":[]}, never null, so the document round-trips exactly.
func EncodeDocument(r Ranking) ([]byte, error) {
	doc := document{Top3: []Entry(r)}
	if doc.Top3 == nil {
		doc.Top3 = []Entry{}
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode ranking document: %w", err)
	}
	return b, nil
}

// DecodeDocument parses the wire form and validates the snapshot
// invariant. A missing or null "top3" decodes as the empty ranking.
func DecodeDocument(b []byte) (Ranking, error) {
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode ranking document: %w", err)
	}
	r := Ranking(doc.Top3)
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("decode ranking document: %w", err)
	}
	return r, nil
}
