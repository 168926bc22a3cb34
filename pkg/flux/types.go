package flux

// Rate types understood by the backend. Anything other than RateBinary is
// paid per unit logged.
const (
	RateBinary   = "BINARY"
	RateCount    = "COUNT"
	RateDistance = "DISTANCE"
	RateDuration = "DURATION"
)

type User struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	DisplayName        string `json:"displayName"`
	Timezone           string `json:"timezone"`
	OnboardingComplete bool   `json:"onboardingComplete"`
	CreatedAt          int64  `json:"createdAt"`
}

// CatalogEntry is a habit template. Habits reference it by LibraryID.
type CatalogEntry struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Ticker            string  `json:"ticker"`
	Icon              string  `json:"icon"`
	Unit              string  `json:"unit"`
	RateType          string  `json:"rateType"`
	RateOptionsMicros []int64 `json:"rateOptionsMicros"`
}

type Goal struct {
	Amount float64 `json:"amount"`
	Period string  `json:"period"`
}

type Habit struct {
	ID         string `json:"id"`
	LibraryID  string `json:"libraryId"`
	RateType   string `json:"rateType"`
	RateMicros int64  `json:"rateMicros"`
	Goal       Goal   `json:"goal"`
	CreatedAt  int64  `json:"createdAt"`
}

type Log struct {
	ID             string `json:"id"`
	HabitID        string `json:"habitId"`
	UnitsMicros    int64  `json:"unitsMicros"`
	EarningsMicros int64  `json:"earningsMicros"`
	Timestamp      int64  `json:"timestamp"`
	Notes          string `json:"notes"`
}

type Transfer struct {
	ID           string `json:"id"`
	AmountMicros int64  `json:"amountMicros"`
	Timestamp    int64  `json:"timestamp"`
	Status       string `json:"status"`
}

type Totals struct {
	EarnedMicros      int64 `json:"earnedMicros"`
	TransferredMicros int64 `json:"transferredMicros"`
	PendingMicros     int64 `json:"pendingMicros"`
}

type Stats struct {
	TodayEarnedMicros int64 `json:"todayEarnedMicros"`
	WeekEarnedMicros  int64 `json:"weekEarnedMicros"`
}

type HabitScore struct {
	HabitID string  `json:"habitId"`
	Score   float64 `json:"score"`
}

type Flux struct {
	Portfolio float64      `json:"portfolio"`
	ByHabit   []HabitScore `json:"byHabit"`
}

// Snapshot is the full server state for one user. It is replaced as a whole
// on every refresh or mutation and never edited in place.
type Snapshot struct {
	User      *User          `json:"user"`
	Catalog   []CatalogEntry `json:"catalog"`
	Habits    []Habit        `json:"habits"`
	Logs      []Log          `json:"logs"`
	Transfers []Transfer     `json:"transfers"`
	Totals    Totals         `json:"totals"`
	Stats     Stats          `json:"stats"`
	Flux      Flux           `json:"flux"`
}

// WithUser returns a shallow copy of s carrying u.
func (s *Snapshot) WithUser(u *User) *Snapshot {
	if s == nil {
		return &Snapshot{User: u}
	}
	cp := *s
	cp.User = u
	return &cp
}

type NewHabit struct {
	LibraryID  string `json:"libraryId"`
	RateType   string `json:"rateType"`
	RateMicros int64  `json:"rateMicros"`
	Goal       Goal   `json:"goal"`
}

// NewLog is the body of a log submission. Units are micro-units.
type NewLog struct {
	HabitID              string `json:"habitId"`
	UnitsMicros          int64  `json:"units"`
	Notes                string `json:"notes"`
	CustomEarningsMicros *int64 `json:"customEarningsMicros,omitempty"`
}

// UserPatch carries the fields to change; nil fields are left alone.
type UserPatch struct {
	DisplayName *string `json:"displayName,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
}
