package normalize

import (
	"time"

	"github.com/brk3/flux/pkg/flux"
	"github.com/brk3/flux/pkg/micros"
)

// HabitView is a habit enriched with its catalog entry and display values.
type HabitView struct {
	flux.Habit
	Name        string
	Ticker      string
	Icon        string
	Unit        string
	Rate        float64
	RateOptions []float64
	Created     time.Time
	CreatedISO  string
	Score       float64
}

type LogView struct {
	flux.Log
	HabitName string
	Units     float64
	Earnings  float64
	Time      time.Time
	ISO       string
	DayKey    string
}

type TransferView struct {
	flux.Transfer
	Amount float64
	Time   time.Time
	ISO    string
}

// View is everything the CLI renders, derived from one snapshot.
type View struct {
	User        *flux.User
	Catalog     []flux.CatalogEntry
	CatalogByID map[string]flux.CatalogEntry
	Habits      []HabitView
	Logs        []LogView
	Transfers   []TransferView

	Earned      float64
	Transferred float64
	Pending     float64
	TodayEarned float64
	WeekEarned  float64
	Portfolio   float64

	Location *time.Location

	habitIdx map[string]int
	logged   map[dayHabit]struct{}
}

type dayHabit struct {
	day   string
	habit string
}

// Build derives a View from s with day keys computed in loc (time.Local when
// nil). It reads s without modifying it and keeps no state between calls.
func Build(s *flux.Snapshot, loc *time.Location) *View {
	if loc == nil {
		loc = time.Local
	}
	if s == nil {
		s = &flux.Snapshot{}
	}

	v := &View{
		User:        s.User,
		Catalog:     s.Catalog,
		CatalogByID: make(map[string]flux.CatalogEntry, len(s.Catalog)),
		Habits:      make([]HabitView, 0, len(s.Habits)),
		Logs:        make([]LogView, 0, len(s.Logs)),
		Transfers:   make([]TransferView, 0, len(s.Transfers)),
		Earned:      micros.ToDisplay(s.Totals.EarnedMicros),
		Transferred: micros.ToDisplay(s.Totals.TransferredMicros),
		Pending:     micros.ToDisplay(s.Totals.PendingMicros),
		TodayEarned: micros.ToDisplay(s.Stats.TodayEarnedMicros),
		WeekEarned:  micros.ToDisplay(s.Stats.WeekEarnedMicros),
		Portfolio:   s.Flux.Portfolio,
		Location:    loc,
		habitIdx:    make(map[string]int, len(s.Habits)),
		logged:      make(map[dayHabit]struct{}, len(s.Logs)),
	}
	if v.Catalog == nil {
		v.Catalog = []flux.CatalogEntry{}
	}
	for _, c := range s.Catalog {
		v.CatalogByID[c.ID] = c
	}

	scores := make(map[string]float64, len(s.Flux.ByHabit))
	for _, sc := range s.Flux.ByHabit {
		scores[sc.HabitID] = sc.Score
	}

	for _, h := range s.Habits {
		hv := HabitView{
			Habit:      h,
			Name:       h.LibraryID,
			Rate:       micros.ToDisplay(h.RateMicros),
			Created:    timeOf(h.CreatedAt),
			CreatedISO: ISO(h.CreatedAt),
			Score:      scores[h.ID],
		}
		if c, ok := v.CatalogByID[h.LibraryID]; ok {
			hv.Name = c.Name
			hv.Ticker = c.Ticker
			hv.Icon = c.Icon
			hv.Unit = c.Unit
			hv.RateOptions = make([]float64, 0, len(c.RateOptionsMicros))
			for _, r := range c.RateOptionsMicros {
				hv.RateOptions = append(hv.RateOptions, micros.ToDisplay(r))
			}
		}
		v.habitIdx[h.ID] = len(v.Habits)
		v.Habits = append(v.Habits, hv)
	}

	for _, l := range s.Logs {
		lv := LogView{
			Log:      l,
			Units:    micros.ToDisplay(l.UnitsMicros),
			Earnings: micros.ToDisplay(l.EarningsMicros),
			Time:     timeOf(l.Timestamp),
			ISO:      ISO(l.Timestamp),
		}
		if !lv.Time.IsZero() {
			lv.DayKey = DayKey(lv.Time, loc)
			v.logged[dayHabit{day: lv.DayKey, habit: l.HabitID}] = struct{}{}
		}
		if i, ok := v.habitIdx[l.HabitID]; ok {
			lv.HabitName = v.Habits[i].Name
		}
		v.Logs = append(v.Logs, lv)
	}

	for _, t := range s.Transfers {
		v.Transfers = append(v.Transfers, TransferView{
			Transfer: t,
			Amount:   micros.ToDisplay(t.AmountMicros),
			Time:     timeOf(t.Timestamp),
			ISO:      ISO(t.Timestamp),
		})
	}

	return v
}

// Habit looks a habit up by id.
func (v *View) Habit(id string) (HabitView, bool) {
	i, ok := v.habitIdx[id]
	if !ok {
		return HabitView{}, false
	}
	return v.Habits[i], true
}

// LoggedOn reports whether habitID has a log on the day identified by dayKey.
func (v *View) LoggedOn(habitID, dayKey string) bool {
	_, ok := v.logged[dayHabit{day: dayKey, habit: habitID}]
	return ok
}

// Today is the day key for now in the view's location.
func (v *View) Today(now time.Time) string {
	return DayKey(now, v.Location)
}
