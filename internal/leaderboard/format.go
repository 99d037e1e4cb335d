package leaderboard

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatUpdate builds the change notification sent to every subscriber:
// the new top entries followed by the previous ones. An empty previous
// snapshot keeps its header with no entries underneath (first backfill).
func FormatUpdate(board string, previous, current Ranking) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔄 %s Leaderboard Update! 🔄\n\n", board)
	b.WriteString("New Top 3:\n")
	writeEntries(&b, current)
	b.WriteString("\nPrevious Top 3:\n")
	writeEntries(&b, previous)
	return b.String()
}

// FormatCurrent builds the /current reply body. Callers are expected to
// handle the empty snapshot with dedicated messaging before calling this.
func FormatCurrent(board string, r Ranking) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current Top 3 on %s:\n\n", board)
	writeEntries(&b, r)
	return b.String()
}

func writeEntries(b *strings.Builder, r Ranking) {
	for _, e := range r {
		fmt.Fprintf(b, "%d. %s - Score: %s\n", e.Rank, e.Name, formatScore(e.Score))
	}
}

// formatScore renders without trailing zeros ("95.2", "1402").
func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
