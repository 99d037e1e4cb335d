package leaderboard

import "testing"

func TestRankingValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		r       Ranking
		wantErr bool
	}{
		{name: "empty is valid", r: Ranking{}},
		{name: "well formed", r: Ranking{{Rank: 1, Name: "A", Score: 1}, {Rank: 2, Name: "B", Score: 2}}},
		{name: "gap in ranks is fine", r: Ranking{{Rank: 1, Name: "A"}, {Rank: 4, Name: "B"}}},
		{name: "zero rank", r: Ranking{{Rank: 0, Name: "A"}}, wantErr: true},
		{name: "blank name", r: Ranking{{Rank: 1, Name: "  "}}, wantErr: true},
		{name: "duplicate rank", r: Ranking{{Rank: 1, Name: "A"}, {Rank: 1, Name: "B"}}, wantErr: true},
		{name: "descending rank", r: Ranking{{Rank: 2, Name: "A"}, {Rank: 1, Name: "B"}}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		r    Ranking
	}{
		{name: "empty", r: Ranking{}},
		{name: "nil", r: nil},
		{name: "full", r: Ranking{{Rank: 1, Name: "A", Score: 95.2}, {Rank: 2, Name: "B", Score: 90}, {Rank: 3, Name: "C", Score: 80.75}}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			b, err := EncodeDocument(tt.r)
			if err != nil {
				t.Fatalf("EncodeDocument: %v", err)
			}
			got, err := DecodeDocument(b)
			if err != nil {
				t.Fatalf("DecodeDocument: %v", err)
			}
			if len(got) != len(tt.r) {
				t.Fatalf("round-trip length = %d, want %d", len(got), len(tt.r))
			}
			for i := range got {
				if got[i] != tt.r[i] {
					t.Fatalf("entry %d = %+v, want %+v", i, got[i], tt.r[i])
				}
			}
		})
	}
}

func TestEncodeDocumentEmptyShape(t *testing.T) {
	t.Parallel()
	b, err := EncodeDocument(nil)
	if err != nil {
		t.Fatalf("EncodeDocument: %v", err)
	}
	if string(b) != `{"top3":[]}` {
		t.Fatalf("empty document = %s, want {\"top3\":[]}", b)
	}
}

func TestDecodeDocumentRejectsInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
	}{
		{name: "not json", in: "{nope"},
		{name: "bad rank", in: `{"top3":[{"rank":0,"name":"A","score":1}]}`},
		{name: "unordered", in: `{"top3":[{"rank":2,"name":"A","score":1},{"rank":1,"name":"B","score":1}]}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeDocument([]byte(tt.in)); err == nil {
				t.Fatal("expected decode error")
			}
		})
	}
}

func TestDecodeDocumentMissingTop3(t *testing.T) {
	t.Parallel()
	r, err := DecodeDocument([]byte(`{}`))
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}
	if !r.Empty() {
		t.Fatalf("expected empty ranking, got %+v", r)
	}
}
