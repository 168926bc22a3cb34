package server

import (
	"net/http"

	"github.com/brk3/flux/internal/logger"
	"github.com/brk3/flux/pkg/flux"
)

type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

type UserResponse struct {
	User *flux.User `json:"user"`
}

func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	if err := writeJSON(w, status, ErrorResponse{Code: code, Error: msg}); err != nil {
		logger.Error("Failed to write error response", "status", status, "error", err)
	}
}

// legacySnapshot renders s the way older backends did: upper camel root
// keys, the catalog wrapped in an object and flux scores keyed by habit id.
func legacySnapshot(s *flux.Snapshot) map[string]any {
	scores := make(map[string]float64, len(s.Flux.ByHabit))
	for _, sc := range s.Flux.ByHabit {
		scores[sc.HabitID] = sc.Score
	}
	return map[string]any{
		"User":      s.User,
		"Catalog":   map[string]any{"Habits": s.Catalog},
		"Habits":    s.Habits,
		"Logs":      s.Logs,
		"Transfers": s.Transfers,
		"Totals":    s.Totals,
		"Stats":     s.Stats,
		"Flux":      map[string]any{"Portfolio": s.Flux.Portfolio, "ByHabit": scores},
	}
}
