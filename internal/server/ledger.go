package server

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/brk3/flux/pkg/flux"
	"github.com/brk3/flux/pkg/micros"
	"github.com/google/uuid"
)

var (
	ErrInvalid           = errors.New("invalid request")
	ErrUnknownHabit      = errors.New("unknown habit")
	ErrNothingToTransfer = errors.New("nothing to transfer")
)

const (
	maxNoteLength = 1024
	maxNameLength = 64
)

type account struct {
	user      flux.User
	habits    []flux.Habit
	logs      []flux.Log
	transfers []flux.Transfer
}

// Ledger holds every user's habits, logs and transfers in memory.
type Ledger struct {
	catalog []flux.CatalogEntry
	byID    map[string]flux.CatalogEntry
	now     func() time.Time
	newID   func() string

	mu       sync.Mutex
	accounts map[string]*account
}

func NewLedger(catalog []flux.CatalogEntry) *Ledger {
	l := &Ledger{
		catalog:  catalog,
		byID:     make(map[string]flux.CatalogEntry, len(catalog)),
		now:      time.Now,
		newID:    uuid.NewString,
		accounts: map[string]*account{},
	}
	for _, c := range catalog {
		l.byID[c.ID] = c
	}
	return l
}

// Snapshot returns the user's full state, creating the account on first use.
func (l *Ledger) Snapshot(userID string) *flux.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked(l.accountLocked(userID))
}

func (l *Ledger) AddHabit(userID string, nh flux.NewHabit) (*flux.Snapshot, error) {
	tmpl, ok := l.byID[nh.LibraryID]
	if !ok {
		return nil, fmt.Errorf("%w: no catalog entry %q", ErrInvalid, nh.LibraryID)
	}
	rateType := tmpl.RateType
	if nh.RateType != "" {
		if !validRateType(nh.RateType) {
			return nil, fmt.Errorf("%w: unknown rate type %q", ErrInvalid, nh.RateType)
		}
		rateType = nh.RateType
	}
	rate := nh.RateMicros
	if rate < 0 {
		return nil, fmt.Errorf("%w: rate must not be negative", ErrInvalid)
	}
	if rate == 0 && len(tmpl.RateOptionsMicros) > 0 {
		rate = tmpl.RateOptionsMicros[0]
	}
	goal := nh.Goal
	if goal.Period == "" {
		goal.Period = "day"
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.accountLocked(userID)
	acc.habits = append(acc.habits, flux.Habit{
		ID:         l.newID(),
		LibraryID:  tmpl.ID,
		RateType:   rateType,
		RateMicros: rate,
		Goal:       goal,
		CreatedAt:  l.now().UnixMilli(),
	})
	return l.snapshotLocked(acc), nil
}

// AddLog records progress on a habit. Earnings follow the habit's rate
// unless the request names its own.
func (l *Ledger) AddLog(userID string, nl flux.NewLog) (*flux.Snapshot, error) {
	if nl.UnitsMicros < 0 {
		return nil, fmt.Errorf("%w: units must not be negative", ErrInvalid)
	}
	if nl.CustomEarningsMicros != nil && *nl.CustomEarningsMicros < 0 {
		return nil, fmt.Errorf("%w: earnings must not be negative", ErrInvalid)
	}
	if len(nl.Notes) > maxNoteLength {
		return nil, fmt.Errorf("%w: notes must be 0-%d characters", ErrInvalid, maxNoteLength)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.accountLocked(userID)
	i := slices.IndexFunc(acc.habits, func(h flux.Habit) bool { return h.ID == nl.HabitID })
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHabit, nl.HabitID)
	}
	h := acc.habits[i]

	units := nl.UnitsMicros
	if units == 0 && h.RateType == flux.RateBinary {
		units = micros.PerUnit
	}
	earnings := micros.ComputeEarnings(h.RateType, h.RateMicros, units)
	if nl.CustomEarningsMicros != nil {
		earnings = *nl.CustomEarningsMicros
	}

	acc.logs = append(acc.logs, flux.Log{
		ID:             l.newID(),
		HabitID:        h.ID,
		UnitsMicros:    units,
		EarningsMicros: earnings,
		Timestamp:      l.now().UnixMilli(),
		Notes:          nl.Notes,
	})
	return l.snapshotLocked(acc), nil
}

// Transfer pays out the whole pending balance.
func (l *Ledger) Transfer(userID string) (*flux.Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.accountLocked(userID)
	pending := computeTotals(acc.logs, acc.transfers).PendingMicros
	if pending <= 0 {
		return nil, ErrNothingToTransfer
	}
	acc.transfers = append(acc.transfers, flux.Transfer{
		ID:           l.newID(),
		AmountMicros: pending,
		Timestamp:    l.now().UnixMilli(),
		Status:       "COMPLETED",
	})
	return l.snapshotLocked(acc), nil
}

func (l *Ledger) PatchUser(userID string, p flux.UserPatch) (*flux.User, error) {
	if p.DisplayName != nil && len(*p.DisplayName) > maxNameLength {
		return nil, fmt.Errorf("%w: display name must be 0-%d characters", ErrInvalid, maxNameLength)
	}
	if p.Timezone != nil {
		if _, err := time.LoadLocation(*p.Timezone); err != nil || *p.Timezone == "" {
			return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalid, *p.Timezone)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.accountLocked(userID)
	if p.DisplayName != nil {
		acc.user.DisplayName = *p.DisplayName
	}
	if p.Timezone != nil {
		acc.user.Timezone = *p.Timezone
	}
	u := acc.user
	return &u, nil
}

func (l *Ledger) CompleteOnboarding(userID string) *flux.User {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.accountLocked(userID)
	acc.user.OnboardingComplete = true
	u := acc.user
	return &u
}

func (l *Ledger) HabitCount(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if acc, ok := l.accounts[userID]; ok {
		return len(acc.habits)
	}
	return 0
}

func (l *Ledger) accountLocked(userID string) *account {
	acc, ok := l.accounts[userID]
	if !ok {
		acc = &account{user: flux.User{
			ID:        userID,
			Timezone:  "UTC",
			CreatedAt: l.now().UnixMilli(),
		}}
		l.accounts[userID] = acc
	}
	return acc
}

func (l *Ledger) snapshotLocked(acc *account) *flux.Snapshot {
	loc, err := time.LoadLocation(acc.user.Timezone)
	if err != nil {
		loc = time.UTC
	}
	now := l.now()
	u := acc.user
	logs := slices.Clone(acc.logs)
	habits := slices.Clone(acc.habits)
	transfers := slices.Clone(acc.transfers)
	return &flux.Snapshot{
		User:      &u,
		Catalog:   l.catalog,
		Habits:    nonNil(habits),
		Logs:      nonNil(logs),
		Transfers: nonNil(transfers),
		Totals:    computeTotals(logs, transfers),
		Stats:     computeStats(logs, now, loc),
		Flux:      computeFlux(habits, logs, now, loc),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
