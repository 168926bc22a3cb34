package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/brk3/flux/internal/logger"
	"github.com/brk3/flux/pkg/flux"
	"github.com/brk3/flux/pkg/versioninfo"
)

func (s *Server) getVersionInfo(w http.ResponseWriter, _ *http.Request) {
	info := versioninfo.VersionInfo{
		Version:   versioninfo.Version,
		BuildDate: versioninfo.BuildDate,
	}
	if err := writeJSON(w, http.StatusOK, info); err != nil {
		logger.Error("Failed to serialize version info response", "error", err)
	}
}

func (s *Server) getBootstrap(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r)
	logger.Debug("Building bootstrap snapshot", "user_id", userID)
	s.writeSnapshot(w, http.StatusOK, userID, s.ledger.Snapshot(userID))
}

func (s *Server) createHabit(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r)
	var nh flux.NewHabit
	if err := decodeBody(r, &nh); err != nil {
		logger.Warn("Invalid JSON in create habit request", "user_id", userID, "error", err)
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON")
		return
	}

	snap, err := s.ledger.AddHabit(userID, nh)
	if err != nil {
		s.ledgerError(w, userID, "create habit", err)
		return
	}
	logger.Info("Habit created", "user_id", userID, "library_id", nh.LibraryID)
	ledgerEventsTotal.WithLabelValues("habit").Inc()
	UpdateActiveHabitsForUser(userID, s.ledger.HabitCount(userID))
	s.writeSnapshot(w, http.StatusCreated, userID, snap)
}

func (s *Server) createLog(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r)
	var nl flux.NewLog
	if err := decodeBody(r, &nl); err != nil {
		logger.Warn("Invalid JSON in create log request", "user_id", userID, "error", err)
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON")
		return
	}

	snap, err := s.ledger.AddLog(userID, nl)
	if err != nil {
		s.ledgerError(w, userID, "create log", err)
		return
	}
	logger.Info("Log recorded", "user_id", userID, "habit_id", nl.HabitID, "units_micros", nl.UnitsMicros)
	ledgerEventsTotal.WithLabelValues("log").Inc()
	s.writeSnapshot(w, http.StatusCreated, userID, snap)
}

func (s *Server) createTransfer(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r)
	snap, err := s.ledger.Transfer(userID)
	if err != nil {
		s.ledgerError(w, userID, "create transfer", err)
		return
	}
	logger.Info("Transfer created", "user_id", userID, "transferred_micros", snap.Totals.TransferredMicros)
	ledgerEventsTotal.WithLabelValues("transfer").Inc()
	s.writeSnapshot(w, http.StatusCreated, userID, snap)
}

func (s *Server) patchUser(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r)
	var p flux.UserPatch
	if err := decodeBody(r, &p); err != nil {
		logger.Warn("Invalid JSON in patch user request", "user_id", userID, "error", err)
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON")
		return
	}

	u, err := s.ledger.PatchUser(userID, p)
	if err != nil {
		s.ledgerError(w, userID, "patch user", err)
		return
	}
	s.writeUser(w, u)
}

func (s *Server) completeOnboarding(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r)
	u := s.ledger.CompleteOnboarding(userID)
	logger.Info("Onboarding completed", "user_id", userID)
	s.writeUser(w, u)
}

func (s *Server) writeSnapshot(w http.ResponseWriter, code int, userID string, snap *flux.Snapshot) {
	var body any = snap
	if s.cfg.LegacyKeys {
		body = legacySnapshot(snap)
	}
	if err := writeJSON(w, code, body); err != nil {
		logger.Error("Failed to serialize snapshot response", "user_id", userID, "error", err)
	}
}

func (s *Server) writeUser(w http.ResponseWriter, u *flux.User) {
	var body any = UserResponse{User: u}
	if s.cfg.LegacyKeys {
		body = map[string]any{"User": u}
	}
	if err := writeJSON(w, http.StatusOK, body); err != nil {
		logger.Error("Failed to serialize user response", "user_id", u.ID, "error", err)
	}
}

func (s *Server) ledgerError(w http.ResponseWriter, userID, op string, err error) {
	switch {
	case errors.Is(err, ErrUnknownHabit):
		writeError(w, http.StatusNotFound, "unknown_habit", err.Error())
	case errors.Is(err, ErrNothingToTransfer):
		writeError(w, http.StatusConflict, "nothing_to_transfer", err.Error())
	case errors.Is(err, ErrInvalid):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		logger.Error("Ledger operation failed", "op", op, "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	logger.Debug("Rejected request", "op", op, "user_id", userID, "error", err)
}

// decodeBody tolerates an empty body.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
