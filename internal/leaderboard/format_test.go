package leaderboard

import "testing"

func TestFormatUpdate(t *testing.T) {
	t.Parallel()
	previous := Ranking{
		{Rank: 1, Name: "A", Score: 100},
		{Rank: 2, Name: "B", Score: 90},
		{Rank: 3, Name: "C", Score: 80},
	}
	current := Ranking{
		{Rank: 1, Name: "B", Score: 95.5},
		{Rank: 2, Name: "A", Score: 93},
		{Rank: 3, Name: "C", Score: 80},
	}

	got := FormatUpdate("LM Arena", previous, current)
	want := "🔄 LM Arena Leaderboard Update! 🔄\n\n" +
		"New Top 3:\n" +
		"1. B - Score: 95.5\n" +
		"2. A - Score: 93\n" +
		"3. C - Score: 80\n" +
		"\nPrevious Top 3:\n" +
		"1. A - Score: 100\n" +
		"2. B - Score: 90\n" +
		"3. C - Score: 80\n"
	if got != want {
		t.Fatalf("FormatUpdate mismatch:\ngot:\n%q\nwant:\n%q", got, want)
	}
}

func TestFormatUpdateEmptyPrevious(t *testing.T) {
	t.Parallel()
	current := Ranking{{Rank: 1, Name: "A", Score: 100}}

	got := FormatUpdate("LM Arena", Ranking{}, current)
	want := "🔄 LM Arena Leaderboard Update! 🔄\n\n" +
		"New Top 3:\n" +
		"1. A - Score: 100\n" +
		"\nPrevious Top 3:\n"
	if got != want {
		t.Fatalf("FormatUpdate mismatch:\ngot:\n%q\nwant:\n%q", got, want)
	}
}

func TestFormatCurrent(t *testing.T) {
	t.Parallel()
	r := Ranking{
		{Rank: 1, Name: "A", Score: 1402},
		{Rank: 2, Name: "B", Score: 1390.25},
	}

	got := FormatCurrent("LM Arena", r)
	want := "Current Top 3 on LM Arena:\n\n" +
		"1. A - Score: 1402\n" +
		"2. B - Score: 1390.25\n"
	if got != want {
		t.Fatalf("FormatCurrent mismatch:\ngot:\n%q\nwant:\n%q", got, want)
	}
}
