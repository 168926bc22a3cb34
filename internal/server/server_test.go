package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/brk3/flux/internal/config"
	"github.com/brk3/flux/pkg/flux"
)

func newTestServer(t *testing.T, cfg config.ServerConfig) http.Handler {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s.Router()
}

func mockRequest(h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	return rr
}

func decodeSnapshot(t *testing.T, rr *httptest.ResponseRecorder) flux.Snapshot {
	t.Helper()
	var s flux.Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &s); err != nil {
		t.Fatalf("unmarshal error: %v (body %s)", err, rr.Body.String())
	}
	return s
}

func TestBootstrap_RequiresToken(t *testing.T) {
	h := newTestServer(t, config.ServerConfig{})
	rr := mockRequest(h, http.MethodGet, "/bootstrap", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("got %d want 401", rr.Code)
	}
	if got := rr.Header().Get("WWW-Authenticate"); !strings.HasPrefix(got, "Bearer") {
		t.Fatalf("WWW-Authenticate = %q", got)
	}
}

func TestBootstrap_NewUser(t *testing.T) {
	h := newTestServer(t, config.ServerConfig{})
	rr := mockRequest(h, http.MethodGet, "/bootstrap", "tok", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d want 200", rr.Code)
	}
	s := decodeSnapshot(t, rr)
	if s.User == nil || !strings.HasPrefix(s.User.ID, "user-") {
		t.Fatalf("unexpected user %+v", s.User)
	}
	if len(s.Catalog) == 0 {
		t.Fatal("expected built-in catalog")
	}
	if s.Habits == nil || len(s.Habits) != 0 {
		t.Fatalf("habits = %v, want empty array", s.Habits)
	}
}

func TestTokensAreSeparateAccounts(t *testing.T) {
	h := newTestServer(t, config.ServerConfig{})
	rr := mockRequest(h, http.MethodPost, "/habits", "alice", flux.NewHabit{LibraryID: "run"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("got %d want 201: %s", rr.Code, rr.Body.String())
	}

	bob := decodeSnapshot(t, mockRequest(h, http.MethodGet, "/bootstrap", "bob", nil))
	if len(bob.Habits) != 0 {
		t.Fatalf("bob sees %d habits, want 0", len(bob.Habits))
	}
}

func TestHabitLogTransferFlow(t *testing.T) {
	h := newTestServer(t, config.ServerConfig{})

	rr := mockRequest(h, http.MethodPost, "/habits", "tok", flux.NewHabit{LibraryID: "read", RateMicros: 100_000})
	s := decodeSnapshot(t, rr)
	if len(s.Habits) != 1 || s.Habits[0].RateType != flux.RateCount {
		t.Fatalf("unexpected habits %+v", s.Habits)
	}
	habitID := s.Habits[0].ID

	rr = mockRequest(h, http.MethodPost, "/logs", "tok", flux.NewLog{HabitID: habitID, UnitsMicros: 25_000_000, Notes: "novel"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("got %d want 201: %s", rr.Code, rr.Body.String())
	}
	s = decodeSnapshot(t, rr)
	if s.Logs[0].EarningsMicros != 2_500_000 {
		t.Fatalf("earnings = %d, want 2500000", s.Logs[0].EarningsMicros)
	}
	if s.Totals.PendingMicros != 2_500_000 || s.Stats.TodayEarnedMicros != 2_500_000 {
		t.Fatalf("unexpected totals %+v stats %+v", s.Totals, s.Stats)
	}
	if len(s.Flux.ByHabit) != 1 || s.Flux.ByHabit[0].Score != 1 {
		t.Fatalf("unexpected flux %+v", s.Flux)
	}

	rr = mockRequest(h, http.MethodPost, "/transfers", "tok", nil)
	s = decodeSnapshot(t, rr)
	if s.Totals.PendingMicros != 0 || s.Totals.TransferredMicros != 2_500_000 || len(s.Transfers) != 1 {
		t.Fatalf("unexpected totals after transfer %+v", s.Totals)
	}

	rr = mockRequest(h, http.MethodPost, "/transfers", "tok", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("second transfer got %d want 409", rr.Code)
	}
}

func TestCreateLog_Errors(t *testing.T) {
	h := newTestServer(t, config.ServerConfig{})

	rr := mockRequest(h, http.MethodPost, "/logs", "tok", flux.NewLog{HabitID: "missing"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown habit got %d want 404", rr.Code)
	}
	var e ErrorResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &e)
	if e.Code != "unknown_habit" {
		t.Fatalf("code = %q", e.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/logs", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer tok")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad JSON got %d want 400", rr.Code)
	}
}

func TestCreateHabit_UnknownTemplate(t *testing.T) {
	h := newTestServer(t, config.ServerConfig{})
	rr := mockRequest(h, http.MethodPost, "/habits", "tok", flux.NewHabit{LibraryID: "skydiving"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d want 400", rr.Code)
	}
}

func TestUserRoutes(t *testing.T) {
	h := newTestServer(t, config.ServerConfig{})

	name, tz := "Ann", "Pacific/Auckland"
	rr := mockRequest(h, http.MethodPatch, "/user", "tok", flux.UserPatch{DisplayName: &name, Timezone: &tz})
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d want 200: %s", rr.Code, rr.Body.String())
	}
	var resp UserResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.User.DisplayName != "Ann" || resp.User.Timezone != tz {
		t.Fatalf("unexpected user %+v", resp.User)
	}

	bad := "Mars/Olympus"
	rr = mockRequest(h, http.MethodPatch, "/user", "tok", flux.UserPatch{Timezone: &bad})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad timezone got %d want 400", rr.Code)
	}

	rr = mockRequest(h, http.MethodPost, "/onboarding/complete", "tok", nil)
	resp = UserResponse{}
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if !resp.User.OnboardingComplete {
		t.Fatal("onboarding not marked complete")
	}
}

func TestLegacyKeys(t *testing.T) {
	h := newTestServer(t, config.ServerConfig{LegacyKeys: true})
	mockRequest(h, http.MethodPost, "/habits", "tok", flux.NewHabit{LibraryID: "floss"})

	rr := mockRequest(h, http.MethodGet, "/bootstrap", "tok", nil)
	var root map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &root); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"User", "Catalog", "Habits", "Logs", "Transfers", "Totals", "Stats", "Flux"} {
		if _, ok := root[k]; !ok {
			t.Errorf("missing legacy key %s", k)
		}
	}
	if _, ok := root["habits"]; ok {
		t.Error("unexpected lower camel key habits")
	}
	if _, ok := root["Catalog"].(map[string]any)["Habits"]; !ok {
		t.Error("catalog should be wrapped")
	}
}

func TestVersionAndMetrics(t *testing.T) {
	h := newTestServer(t, config.ServerConfig{})
	if rr := mockRequest(h, http.MethodGet, "/version", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("version got %d", rr.Code)
	}
	mockRequest(h, http.MethodGet, "/bootstrap", "tok", nil)
	rr := mockRequest(h, http.MethodGet, "/metrics", "", nil)
	if !strings.Contains(rr.Body.String(), "flux_http_requests_total") {
		t.Fatal("metrics output missing flux_http_requests_total")
	}
}
