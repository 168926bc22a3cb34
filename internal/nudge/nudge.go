package nudge

import (
	"context"
	"fmt"
	"time"

	"github.com/brk3/flux/internal/logger"
	"github.com/brk3/flux/internal/normalize"
	"github.com/brk3/flux/pkg/micros"
)

// Reminder is one nudge: the habits still open today and the balance
// waiting to be transferred.
type Reminder struct {
	Day     string
	Habits  []string
	Pending string
}

type Notifier interface {
	SendNudge(ctx context.Context, r Reminder) error
}

// PendingToday lists the names of habits with no log on now's day in loc.
// A nil loc uses the view's location.
func PendingToday(v *normalize.View, now time.Time, loc *time.Location) []string {
	if v == nil {
		return nil
	}
	if loc == nil {
		loc = v.Location
	}
	today := normalize.DayKey(now, loc)

	logged := v.LoggedOn
	if loc != v.Location {
		// The view's day keys are in another zone; rebuild them in loc.
		done := make(map[string]bool)
		for _, l := range v.Logs {
			if !l.Time.IsZero() && normalize.DayKey(l.Time, loc) == today {
				done[l.HabitID] = true
			}
		}
		logged = func(habitID, _ string) bool { return done[habitID] }
	}

	var out []string
	for _, h := range v.Habits {
		if !logged(h.ID, today) {
			out = append(out, h.Name)
		}
	}
	return out
}

// Nudge fetches the snapshot and sends a reminder when any habit is still
// open today. Days follow the user's timezone when set, otherwise loc. It
// returns the habits it reminded about.
func Nudge(ctx context.Context, q Querier, token string, n Notifier, now time.Time, loc *time.Location) ([]string, error) {
	snap, err := q.Bootstrap(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	if snap.User != nil && snap.User.Timezone != "" {
		if userLoc, err := time.LoadLocation(snap.User.Timezone); err == nil {
			loc = userLoc
		}
	}
	if loc == nil {
		loc = time.Local
	}

	v := normalize.Build(snap, loc)
	pending := PendingToday(v, now, loc)
	if len(pending) == 0 {
		logger.Info("All habits logged today, no nudge needed")
		return nil, nil
	}

	r := Reminder{
		Day:     normalize.DayKey(now, loc),
		Habits:  pending,
		Pending: micros.FormatMicros(snap.Totals.PendingMicros),
	}
	logger.Info("Sending nudge", "habits", len(pending), "day", r.Day)
	if err := n.SendNudge(ctx, r); err != nil {
		return nil, fmt.Errorf("send nudge: %w", err)
	}
	return pending, nil
}
