package server

import (
	"slices"
	"time"

	"github.com/brk3/flux/pkg/flux"
)

const daySec int64 = 24 * 60 * 60

// dayNumber counts calendar days in loc, so consecutive local days differ
// by exactly one regardless of DST.
func dayNumber(t time.Time, loc *time.Location) int64 {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / daySec
}

// computeStreaks returns the current and longest run of consecutive days
// with at least one timestamp. A run is current if it reaches today or
// yesterday.
func computeStreaks(timestamps []int64, now time.Time, loc *time.Location) (current, longest int) {
	// collect unique days
	uniq := make(map[int64]struct{}, len(timestamps))
	for _, ms := range timestamps {
		uniq[dayNumber(time.UnixMilli(ms), loc)] = struct{}{}
	}

	if len(uniq) == 0 {
		return 0, 0
	}

	days := make([]int64, 0, len(uniq))
	for d := range uniq {
		days = append(days, d)
	}
	slices.Sort(days)
	slices.Reverse(days)

	today := dayNumber(now, loc)

	streakOngoing := days[0] == today || days[0] == today-1
	longest = 1
	run := 1
	if streakOngoing {
		current = 1
	}

	for i := 0; i < len(days)-1; i++ {
		if days[i]-days[i+1] == 1 {
			run++
			longest = max(longest, run)
			if streakOngoing {
				current++
			}
		} else {
			run = 1
			streakOngoing = false
		}
	}

	return current, longest
}

func computeTotals(logs []flux.Log, transfers []flux.Transfer) flux.Totals {
	var t flux.Totals
	for _, l := range logs {
		t.EarnedMicros += l.EarningsMicros
	}
	for _, tr := range transfers {
		t.TransferredMicros += tr.AmountMicros
	}
	t.PendingMicros = t.EarnedMicros - t.TransferredMicros
	return t
}

// computeStats sums earnings for today and the seven days ending today.
func computeStats(logs []flux.Log, now time.Time, loc *time.Location) flux.Stats {
	var s flux.Stats
	today := dayNumber(now, loc)
	for _, l := range logs {
		d := dayNumber(time.UnixMilli(l.Timestamp), loc)
		if d == today {
			s.TodayEarnedMicros += l.EarningsMicros
		}
		if d > today-7 && d <= today {
			s.WeekEarnedMicros += l.EarningsMicros
		}
	}
	return s
}

// computeFlux scores each habit by its current streak. The portfolio is the
// sum of all scores.
func computeFlux(habits []flux.Habit, logs []flux.Log, now time.Time, loc *time.Location) flux.Flux {
	byHabit := make(map[string][]int64, len(habits))
	for _, l := range logs {
		byHabit[l.HabitID] = append(byHabit[l.HabitID], l.Timestamp)
	}

	out := flux.Flux{ByHabit: make([]flux.HabitScore, 0, len(habits))}
	for _, h := range habits {
		current, _ := computeStreaks(byHabit[h.ID], now, loc)
		score := float64(current)
		out.ByHabit = append(out.ByHabit, flux.HabitScore{HabitID: h.ID, Score: score})
		out.Portfolio += score
	}
	return out
}
