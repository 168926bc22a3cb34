package server

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/brk3/flux/pkg/flux"
)

func newTestLedger(t *testing.T, now *time.Time) *Ledger {
	t.Helper()
	catalog, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	l := NewLedger(catalog)
	l.now = func() time.Time { return *now }
	n := 0
	l.newID = func() string { n++; return fmt.Sprintf("id-%d", n) }
	return l
}

func TestLedger_BinaryHabitIgnoresUnits(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLedger(t, &now)

	s, err := l.AddHabit("u1", flux.NewHabit{LibraryID: "floss", RateMicros: 1_000_000})
	if err != nil {
		t.Fatal(err)
	}
	if s.Habits[0].RateType != flux.RateBinary {
		t.Fatalf("rate type = %s", s.Habits[0].RateType)
	}

	s, err = l.AddLog("u1", flux.NewLog{HabitID: "id-1", UnitsMicros: 7_000_000})
	if err != nil {
		t.Fatal(err)
	}
	if s.Logs[0].EarningsMicros != 1_000_000 {
		t.Fatalf("earnings = %d, want the flat rate", s.Logs[0].EarningsMicros)
	}
}

func TestLedger_CustomEarnings(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLedger(t, &now)
	if _, err := l.AddHabit("u1", flux.NewHabit{LibraryID: "run"}); err != nil {
		t.Fatal(err)
	}

	custom := int64(4_200_000)
	s, err := l.AddLog("u1", flux.NewLog{HabitID: "id-1", UnitsMicros: 1_000_000, CustomEarningsMicros: &custom})
	if err != nil {
		t.Fatal(err)
	}
	if s.Logs[0].EarningsMicros != custom {
		t.Fatalf("earnings = %d, want %d", s.Logs[0].EarningsMicros, custom)
	}

	neg := int64(-1)
	if _, err := l.AddLog("u1", flux.NewLog{HabitID: "id-1", CustomEarningsMicros: &neg}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("negative earnings err = %v", err)
	}
}

func TestLedger_DefaultRateFromCatalog(t *testing.T) {
	now := time.Now()
	l := newTestLedger(t, &now)
	s, err := l.AddHabit("u1", flux.NewHabit{LibraryID: "run"})
	if err != nil {
		t.Fatal(err)
	}
	if s.Habits[0].RateMicros != 250_000 {
		t.Fatalf("rate = %d, want first catalog option", s.Habits[0].RateMicros)
	}
	if s.Habits[0].Goal.Period != "day" {
		t.Fatalf("goal period = %q", s.Habits[0].Goal.Period)
	}
}

func TestLedger_StatsUseUserTimezone(t *testing.T) {
	// 23:30 UTC on March 1st is 12:30 March 2nd in Auckland.
	now := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	l := newTestLedger(t, &now)
	if _, err := l.AddHabit("u1", flux.NewHabit{LibraryID: "floss", RateMicros: 1_000_000}); err != nil {
		t.Fatal(err)
	}

	// 11:30 UTC March 1st, 00:30 March 2nd in Auckland
	current := now
	now = now.Add(-12 * time.Hour)
	if _, err := l.AddLog("u1", flux.NewLog{HabitID: "id-1"}); err != nil {
		t.Fatal(err)
	}
	now = current

	s := l.Snapshot("u1")
	if s.Stats.TodayEarnedMicros != 1_000_000 {
		t.Fatalf("UTC today = %d, want 1000000", s.Stats.TodayEarnedMicros)
	}

	tz := "Pacific/Auckland"
	if _, err := l.PatchUser("u1", flux.UserPatch{Timezone: &tz}); err != nil {
		t.Fatal(err)
	}
	s = l.Snapshot("u1")
	if s.Stats.TodayEarnedMicros != 1_000_000 || s.Stats.WeekEarnedMicros != 1_000_000 {
		t.Fatalf("Auckland stats = %+v", s.Stats)
	}
}

func TestLedger_SnapshotIsACopy(t *testing.T) {
	now := time.Now()
	l := newTestLedger(t, &now)
	s, _ := l.AddHabit("u1", flux.NewHabit{LibraryID: "run"})
	s.Habits[0].RateMicros = 99
	s.User.DisplayName = "mutated"

	again := l.Snapshot("u1")
	if again.Habits[0].RateMicros == 99 || again.User.DisplayName == "mutated" {
		t.Fatal("snapshot shares memory with the ledger")
	}
}
