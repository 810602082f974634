package game

import "sort"

// LeaderboardEntry is one ranked row, derived purely from the current tick
// snapshot — no leaderboard state is kept between ticks, since the core's
// non-goals exclude anything beyond what a snapshot trivially yields.
type LeaderboardEntry struct {
	Username string `json:"username"`
	Kills    int    `json:"kills"`
	Rank     int    `json:"rank"`
}

// Leaderboard sorts players by kill count descending, breaking ties by
// username for a stable, deterministic order.
func Leaderboard(players []*Player) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(players))
	for _, p := range players {
		entries = append(entries, LeaderboardEntry{
			Username: p.Account.Username,
			Kills:    p.Kills,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Kills != entries[j].Kills {
			return entries[i].Kills > entries[j].Kills
		}
		return entries[i].Username < entries[j].Username
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
