// Package normalize turns bootstrap payloads into flux.Snapshot values and
// derives the display view the CLI renders.
//
// The backend has shipped several spellings of the same snapshot (lower and
// upper camel root keys, a wrapped or bare catalog, byHabit as a list or a
// map). Decode resolves every section from a fixed priority list of keys and
// takes the first one that is populated; nothing past this package sees the
// variants.
package normalize

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/brk3/flux/pkg/flux"
	"github.com/brk3/flux/pkg/micros"
	jsoniter "github.com/json-iterator/go"
)

// Field matching is case-insensitive and numbers decode as json.Number so
// micro amounts above 2^53 survive.
var json = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

var (
	catalogKeys   = []string{"catalog", "Catalog"}
	habitKeys     = []string{"habits", "Habits"}
	logKeys       = []string{"logs", "Logs"}
	transferKeys  = []string{"transfers", "Transfers"}
	fluxKeys      = []string{"flux", "Flux"}
	byHabitKeys   = []string{"byHabit", "ByHabit"}
	portfolioKeys = []string{"portfolio", "Portfolio"}
	totalsKeys    = []string{"totals", "Totals"}
	statsKeys     = []string{"stats", "Stats"}
	userKeys      = []string{"user", "User"}
)

var ErrNotObject = errors.New("payload is not a JSON object")

type object = map[string]jsoniter.RawMessage

// Decode parses a bootstrap payload. It fails only when raw is not a JSON
// object; missing or malformed sections come back empty.
func Decode(raw []byte) (*flux.Snapshot, error) {
	root, err := decodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &flux.Snapshot{
		User:      userSection(root),
		Catalog:   catalogSection(root),
		Habits:    section(root, habitKeys, habitOf),
		Logs:      section(root, logKeys, logOf),
		Transfers: section(root, transferKeys, transferOf),
		Totals:    totalsSection(root),
		Stats:     statsSection(root),
		Flux:      fluxSection(root),
	}, nil
}

// DecodeUser parses a user response, bare or wrapped in {"user": ...}.
func DecodeUser(raw []byte) (*flux.User, error) {
	root, err := decodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	if u := userSection(root); u != nil {
		return u, nil
	}
	u, ok := userOf(raw)
	if !ok {
		return nil, fmt.Errorf("decode user: %w", ErrNotObject)
	}
	return u, nil
}

func decodeObject(raw []byte) (object, error) {
	var root object
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, err
	}
	if root == nil {
		return nil, ErrNotObject
	}
	return root, nil
}

func isObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

// section returns the items of the first key in keys that holds a non-empty
// array. Items conv rejects are dropped.
func section[T any](root object, keys []string, conv func([]byte) (T, bool)) []T {
	for _, k := range keys {
		raw, ok := root[k]
		if !ok {
			continue
		}
		if got := items(raw, conv); len(got) > 0 {
			return got
		}
	}
	return []T{}
}

func items[T any](raw []byte, conv func([]byte) (T, bool)) []T {
	var elems []jsoniter.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil
	}
	out := make([]T, 0, len(elems))
	for _, e := range elems {
		if v, ok := conv(e); ok {
			out = append(out, v)
		}
	}
	return out
}

// firstObject returns the first key in keys that holds a JSON object.
func firstObject(root object, keys []string) (object, bool) {
	for _, k := range keys {
		raw, ok := root[k]
		if !ok || !isObject(raw) {
			continue
		}
		var obj object
		if err := json.Unmarshal(raw, &obj); err == nil && obj != nil {
			return obj, true
		}
	}
	return nil, false
}

func catalogSection(root object) []flux.CatalogEntry {
	for _, k := range catalogKeys {
		raw, ok := root[k]
		if !ok {
			continue
		}
		var entries []flux.CatalogEntry
		if isObject(raw) {
			var wrapper object
			if err := json.Unmarshal(raw, &wrapper); err == nil {
				entries = section(wrapper, habitKeys, catalogEntryOf)
			}
		} else {
			entries = items(raw, catalogEntryOf)
		}
		if len(entries) > 0 {
			return entries
		}
	}
	return []flux.CatalogEntry{}
}

type rawCatalogEntry struct {
	ID                any    `json:"id"`
	Name              string `json:"name"`
	Ticker            string `json:"ticker"`
	Icon              string `json:"icon"`
	Unit              string `json:"unit"`
	RateType          string `json:"rateType"`
	RateOptionsMicros []any  `json:"rateOptionsMicros"`
	RateOptions       []any  `json:"rateOptions"`
}

func catalogEntryOf(raw []byte) (flux.CatalogEntry, bool) {
	var r rawCatalogEntry
	if err := json.Unmarshal(raw, &r); err != nil {
		return flux.CatalogEntry{}, false
	}
	id := idOf(r.ID)
	if id == "" {
		return flux.CatalogEntry{}, false
	}
	opts := r.RateOptionsMicros
	if len(opts) == 0 {
		opts = r.RateOptions
	}
	rates := make([]int64, 0, len(opts))
	for _, o := range opts {
		rates = append(rates, micros.ToIntMicros(o, 0))
	}
	return flux.CatalogEntry{
		ID:                id,
		Name:              r.Name,
		Ticker:            r.Ticker,
		Icon:              r.Icon,
		Unit:              r.Unit,
		RateType:          r.RateType,
		RateOptionsMicros: rates,
	}, true
}

type rawHabit struct {
	ID         any    `json:"id"`
	LibraryID  any    `json:"libraryId"`
	RateType   string `json:"rateType"`
	RateMicros any    `json:"rateMicros"`
	Goal       *struct {
		Amount any    `json:"amount"`
		Period string `json:"period"`
	} `json:"goal"`
	CreatedAt any `json:"createdAt"`
}

func habitOf(raw []byte) (flux.Habit, bool) {
	var r rawHabit
	if err := json.Unmarshal(raw, &r); err != nil {
		return flux.Habit{}, false
	}
	h := flux.Habit{
		ID:         idOf(r.ID),
		LibraryID:  idOf(r.LibraryID),
		RateType:   r.RateType,
		RateMicros: micros.ToIntMicros(r.RateMicros, 0),
		CreatedAt:  micros.ToIntMicros(r.CreatedAt, 0),
	}
	if h.ID == "" {
		return flux.Habit{}, false
	}
	if r.Goal != nil {
		h.Goal = flux.Goal{Amount: floatOf(r.Goal.Amount), Period: r.Goal.Period}
	}
	return h, true
}

type rawLog struct {
	ID             any    `json:"id"`
	HabitID        any    `json:"habitId"`
	UnitsMicros    any    `json:"unitsMicros"`
	EarningsMicros any    `json:"earningsMicros"`
	Timestamp      any    `json:"timestamp"`
	Notes          string `json:"notes"`
}

func logOf(raw []byte) (flux.Log, bool) {
	var r rawLog
	if err := json.Unmarshal(raw, &r); err != nil {
		return flux.Log{}, false
	}
	l := flux.Log{
		ID:             idOf(r.ID),
		HabitID:        idOf(r.HabitID),
		UnitsMicros:    micros.ToIntMicros(r.UnitsMicros, 0),
		EarningsMicros: micros.ToIntMicros(r.EarningsMicros, 0),
		Timestamp:      micros.ToIntMicros(r.Timestamp, 0),
		Notes:          r.Notes,
	}
	if l.HabitID == "" {
		return flux.Log{}, false
	}
	return l, true
}

type rawTransfer struct {
	ID           any    `json:"id"`
	AmountMicros any    `json:"amountMicros"`
	Timestamp    any    `json:"timestamp"`
	Status       string `json:"status"`
}

func transferOf(raw []byte) (flux.Transfer, bool) {
	var r rawTransfer
	if err := json.Unmarshal(raw, &r); err != nil {
		return flux.Transfer{}, false
	}
	return flux.Transfer{
		ID:           idOf(r.ID),
		AmountMicros: micros.ToIntMicros(r.AmountMicros, 0),
		Timestamp:    micros.ToIntMicros(r.Timestamp, 0),
		Status:       r.Status,
	}, true
}

type rawTotals struct {
	EarnedMicros      any `json:"earnedMicros"`
	TransferredMicros any `json:"transferredMicros"`
	PendingMicros     any `json:"pendingMicros"`
}

func totalsSection(root object) flux.Totals {
	for _, k := range totalsKeys {
		var r rawTotals
		if raw, ok := root[k]; !ok || !isObject(raw) || json.Unmarshal(raw, &r) != nil {
			continue
		}
		return flux.Totals{
			EarnedMicros:      micros.ToIntMicros(r.EarnedMicros, 0),
			TransferredMicros: micros.ToIntMicros(r.TransferredMicros, 0),
			PendingMicros:     micros.ToIntMicros(r.PendingMicros, 0),
		}
	}
	return flux.Totals{}
}

type rawStats struct {
	TodayEarnedMicros any `json:"todayEarnedMicros"`
	WeekEarnedMicros  any `json:"weekEarnedMicros"`
}

func statsSection(root object) flux.Stats {
	for _, k := range statsKeys {
		var r rawStats
		if raw, ok := root[k]; !ok || !isObject(raw) || json.Unmarshal(raw, &r) != nil {
			continue
		}
		return flux.Stats{
			TodayEarnedMicros: micros.ToIntMicros(r.TodayEarnedMicros, 0),
			WeekEarnedMicros:  micros.ToIntMicros(r.WeekEarnedMicros, 0),
		}
	}
	return flux.Stats{}
}

func fluxSection(root object) flux.Flux {
	out := flux.Flux{ByHabit: []flux.HabitScore{}}
	obj, ok := firstObject(root, fluxKeys)
	if !ok {
		return out
	}
	for _, k := range portfolioKeys {
		if raw, ok := obj[k]; ok {
			var v any
			if json.Unmarshal(raw, &v) == nil {
				out.Portfolio = floatOf(v)
				break
			}
		}
	}
	for _, k := range byHabitKeys {
		raw, ok := obj[k]
		if !ok {
			continue
		}
		var scores []flux.HabitScore
		if isObject(raw) {
			scores = scoresByID(raw)
		} else {
			scores = items(raw, scoreOf)
		}
		if len(scores) > 0 {
			out.ByHabit = scores
			break
		}
	}
	return out
}

type rawScore struct {
	HabitID any `json:"habitId"`
	Score   any `json:"score"`
}

func scoreOf(raw []byte) (flux.HabitScore, bool) {
	var r rawScore
	if err := json.Unmarshal(raw, &r); err != nil {
		return flux.HabitScore{}, false
	}
	id := idOf(r.HabitID)
	if id == "" {
		return flux.HabitScore{}, false
	}
	return flux.HabitScore{HabitID: id, Score: floatOf(r.Score)}, true
}

// scoresByID reads the {"<habitId>": score | {"score": n}} form, ordered by id.
func scoresByID(raw []byte) []flux.HabitScore {
	var m map[string]jsoniter.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]flux.HabitScore, 0, len(ids))
	for _, id := range ids {
		var score float64
		if isObject(m[id]) {
			var r rawScore
			if json.Unmarshal(m[id], &r) != nil {
				continue
			}
			score = floatOf(r.Score)
		} else {
			var v any
			if json.Unmarshal(m[id], &v) != nil {
				continue
			}
			score = floatOf(v)
		}
		out = append(out, flux.HabitScore{HabitID: id, Score: score})
	}
	return out
}

type rawUser struct {
	ID                 any    `json:"id"`
	Email              string `json:"email"`
	DisplayName        string `json:"displayName"`
	Timezone           string `json:"timezone"`
	OnboardingComplete any    `json:"onboardingComplete"`
	CreatedAt          any    `json:"createdAt"`
}

func userSection(root object) *flux.User {
	for _, k := range userKeys {
		raw, ok := root[k]
		if !ok || !isObject(raw) {
			continue
		}
		if u, ok := userOf(raw); ok {
			return u
		}
	}
	return nil
}

func userOf(raw []byte) (*flux.User, bool) {
	var r rawUser
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, false
	}
	return &flux.User{
		ID:                 idOf(r.ID),
		Email:              r.Email,
		DisplayName:        r.DisplayName,
		Timezone:           r.Timezone,
		OnboardingComplete: boolOf(r.OnboardingComplete),
		CreatedAt:          micros.ToIntMicros(r.CreatedAt, 0),
	}, true
}

// idOf accepts string or numeric ids.
func idOf(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case fmt.Stringer:
		return id.String()
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	}
	return ""
}

func floatOf(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case fmt.Stringer:
		f, _ := strconv.ParseFloat(n.String(), 64)
		return f
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}

func boolOf(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		ok, _ := strconv.ParseBool(b)
		return ok
	}
	return false
}
