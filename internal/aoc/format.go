package aoc

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FormatTop renders the leaderboard's top members as a code block, highest
// local score first.
func FormatTop(board *Leaderboard, limit int) string {
	members := make([]Member, 0, len(board.Members))
	for _, member := range board.Members {
		members = append(members, member)
	}
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].LocalScore > members[j].LocalScore
	})
	if len(members) > limit {
		members = members[:limit]
	}

	var lines strings.Builder
	lines.WriteString("```py\n")
	for i, member := range members {
		name := member.Name
		if name == "" {
			name = "(anonymous)"
		}
		fmt.Fprintf(&lines, "%d. %4dp %-4s %s\n", i+1, member.LocalScore, "★"+fmt.Sprint(member.Stars), name)
	}
	lines.WriteString("```")
	return lines.String()
}

// puzzleZone is the timezone puzzles unlock in (EST, no DST during December).
var puzzleZone = time.FixedZone("EST", -5*60*60)

// Countdown reports the current puzzle day and the time until the next one
// unlocks. active is false outside December.
func Countdown(now time.Time) (day int, remaining time.Duration, active bool) {
	local := now.In(puzzleZone)
	if local.Month() != time.December {
		return 0, 0, false
	}
	day = local.Day()
	next := time.Date(local.Year(), time.December, day+1, 0, 0, 0, 0, puzzleZone)
	return day, next.Sub(local), true
}
