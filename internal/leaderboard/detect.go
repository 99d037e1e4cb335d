package leaderboard

// Differs reports whether two snapshots differ in a way worth announcing.
//
// Policy:
//  1. If either snapshot is empty, they differ. Absence of data counts as
//     change, so the first successful fetch after an empty store always
//     notifies.
//  2. If the snapshots have different lengths, they differ.
//  3. Otherwise entries are compared pairwise in order; any name or rank
//     mismatch is a difference. Scores are excluded on purpose: score
//     drift alone never triggers a notification.
//
// Pure and deterministic; no I/O, no state.
func Differs(previous, current Ranking) bool {
	if previous.Empty() || current.Empty() {
		return true
	}
	if len(previous) != len(current) {
		return true
	}
	for i := range previous {
		if previous[i].Name != current[i].Name || previous[i].Rank != current[i].Rank {
			return true
		}
	}
	return false
}
