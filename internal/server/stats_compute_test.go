package server

import (
	"testing"
	"time"

	"github.com/brk3/flux/pkg/flux"
)

func daysAgo(now time.Time, n int) int64 {
	return now.AddDate(0, 0, -n).UnixMilli()
}

func TestComputeStreaks(t *testing.T) {
	now := time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		name        string
		ts          []int64
		wantCurrent int
		wantLongest int
	}{
		{"empty", nil, 0, 0},
		{"today only", []int64{daysAgo(now, 0)}, 1, 1},
		{"yesterday keeps streak", []int64{daysAgo(now, 1), daysAgo(now, 2)}, 2, 2},
		{"broken streak", []int64{daysAgo(now, 3), daysAgo(now, 4)}, 0, 2},
		{"duplicates same day", []int64{daysAgo(now, 0), daysAgo(now, 0), daysAgo(now, 1)}, 2, 2},
		{"old run longer", []int64{daysAgo(now, 0), daysAgo(now, 5), daysAgo(now, 6), daysAgo(now, 7)}, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur, longest := computeStreaks(tt.ts, now, time.UTC)
			if cur != tt.wantCurrent || longest != tt.wantLongest {
				t.Fatalf("got (%d, %d) want (%d, %d)", cur, longest, tt.wantCurrent, tt.wantLongest)
			}
		})
	}
}

func TestComputeFlux(t *testing.T) {
	now := time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)
	habits := []flux.Habit{{ID: "a"}, {ID: "b"}}
	logs := []flux.Log{
		{HabitID: "a", Timestamp: daysAgo(now, 0)},
		{HabitID: "a", Timestamp: daysAgo(now, 1)},
		{HabitID: "b", Timestamp: daysAgo(now, 9)},
	}
	f := computeFlux(habits, logs, now, time.UTC)
	if len(f.ByHabit) != 2 || f.ByHabit[0].Score != 2 || f.ByHabit[1].Score != 0 {
		t.Fatalf("unexpected scores %+v", f.ByHabit)
	}
	if f.Portfolio != 2 {
		t.Fatalf("portfolio = %v, want 2", f.Portfolio)
	}
}

func TestComputeStats_Week(t *testing.T) {
	now := time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)
	logs := []flux.Log{
		{EarningsMicros: 1, Timestamp: daysAgo(now, 0)},
		{EarningsMicros: 10, Timestamp: daysAgo(now, 6)},
		{EarningsMicros: 100, Timestamp: daysAgo(now, 7)},
	}
	s := computeStats(logs, now, time.UTC)
	if s.TodayEarnedMicros != 1 || s.WeekEarnedMicros != 11 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestParseCatalog(t *testing.T) {
	entries, err := parseCatalog([]byte(`
habits:
  - id: walk
    name: Walk
    rate_type: distance
    rate_options: [0.1, 0.25]
`))
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].RateType != flux.RateDistance || entries[0].RateOptionsMicros[1] != 250_000 {
		t.Fatalf("unexpected entry %+v", entries[0])
	}

	if _, err := parseCatalog([]byte("habits:\n  - id: a\n    rate_type: COUNT\n  - id: a\n    rate_type: COUNT\n")); err == nil {
		t.Fatal("duplicate ids accepted")
	}
	if _, err := parseCatalog([]byte("habits:\n  - id: a\n    rate_type: HOURLY\n")); err == nil {
		t.Fatal("unknown rate type accepted")
	}
}
