// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

package matcher

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"meshmatch/platform/matcher/engine"
	"meshmatch/platform/matcher/inference"
	"meshmatch/platform/matcher/matches"
	"meshmatch/platform/matcher/profile"
)

// stubInference returns one fixed scoring/enrichment response
type stubInference struct {
	fail bool
}

func (s *stubInference) Name() string  { return "stub" }
func (s *stubInference) Model() string { return "test-model" }

func (s *stubInference) Request(ctx context.Context, req inference.Request) (*inference.Result, error) {
	if s.fail {
		return nil, context.DeadlineExceeded
	}
	body := map[string]any{
		// Scoring fields
		"overall_score": 1,
		"compatibility_factors": map[string]int{
			"personality": 84, "goals": 84, "communication": 84, "collaboration": 84,
			"networking_style": 84, "geographic": 84, "industry": 84,
		},
		"reasoning":               "aligned goals",
		"recommended_topics":      []string{"hiring"},
		"mutual_goals":            []string{"growth"},
		"collaboration_potential": "partnership",
		"meeting_suggestion":      map[string]any{"format": "video_call", "duration_minutes": 30},
		// Enrichment fields
		"openness": 70, "conscientiousness": 70, "extraversion": 70,
		"agreeableness": 70, "emotional_stability": 70,
		"communication_style": "direct", "work_style": "flexible",
		"decision_making": "decisive", "networking_motivation": "business_growth",
		"primary_goals": []string{"find clients"}, "career_stage": "senior",
		"business_objective": "find_clients", "time_horizon": "quarter",
	}
	data, _ := json.Marshal(body)
	return &inference.Result{
		Raw:   data,
		Model: "test-model",
		Usage: inference.UsageStats{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}, nil
}

func (s *stubInference) HealthCheck(ctx context.Context) error { return nil }

// memStore is an in-memory profile store
type memStore struct {
	mu       sync.RWMutex
	profiles []*profile.UserProfile
}

func (m *memStore) Get(ctx context.Context, userID string) (*profile.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.profiles {
		if p.ID == userID {
			return p, nil
		}
	}
	return nil, profile.ErrProfileNotFound
}

func (m *memStore) ListCandidates(ctx context.Context, limit int) ([]*profile.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.profiles) > limit {
		return m.profiles[:limit], nil
	}
	return m.profiles, nil
}

func (m *memStore) SavePersonality(ctx context.Context, userID string, p *profile.PersonalityProfile) error {
	return nil
}

func (m *memStore) SaveGoalAnalysis(ctx context.Context, userID string, g *profile.GoalAnalysis) error {
	return nil
}

func (m *memStore) Ping(ctx context.Context) error { return nil }

// memMatches is an in-memory match repository
type memMatches struct {
	mu      sync.Mutex
	records map[string]*matches.Match
}

func newMemMatches() *memMatches {
	return &memMatches{records: make(map[string]*matches.Match)}
}

func (m *memMatches) CreateMatch(ctx context.Context, rec *matches.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	return nil
}

func (m *memMatches) GetMatch(ctx context.Context, id string) (*matches.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, matches.ErrMatchNotFound
	}
	return rec, nil
}

func (m *memMatches) ListMatches(ctx context.Context, userID string, limit int) ([]*matches.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*matches.Match
	for _, rec := range m.records {
		if rec.UserID == userID && len(out) < limit {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memMatches) UpdateStatus(ctx context.Context, id string, status matches.MatchStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return matches.ErrMatchNotFound
	}
	rec.Status = status
	return nil
}

func member(id string) *profile.UserProfile {
	return &profile.UserProfile{
		ID:                id,
		FullName:          "Member " + id,
		Discoverable:      true,
		ConsentAIMatching: true,
		ProfileVersion:    1,
	}
}

func newTestServer(t *testing.T, inf inference.Service, store profile.Store, repo matches.Repository) *mux.Router {
	t.Helper()
	eng, err := engine.New(engine.Config{Inference: inf, Store: store})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	r := mux.NewRouter()
	h := NewHandler(eng, repo, nil)
	r.HandleFunc("/health", h.Health).Methods("GET")
	h.RegisterRoutes(r)
	return r
}

func TestFindMatchesHandler(t *testing.T) {
	store := &memStore{profiles: []*profile.UserProfile{member("target"), member("a"), member("b")}}
	router := newTestServer(t, &stubInference{}, store, newMemMatches())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/matching/target/matches?limit=5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Matches []struct {
			Profile  *profile.UserProfile  `json:"profile"`
			Analysis *engine.MatchAnalysis `json:"analysis"`
		} `json:"matches"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(resp.Matches))
	}
	for _, m := range resp.Matches {
		if m.Profile.ID == "target" {
			t.Error("ranking must not include the querying user")
		}
		if m.Analysis.OverallScore != 84 {
			t.Errorf("OverallScore = %d, want 84 (factor mean)", m.Analysis.OverallScore)
		}
	}
}

func TestFindMatchesHandler_UnknownUser(t *testing.T) {
	router := newTestServer(t, &stubInference{}, &memStore{}, newMemMatches())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/matching/ghost/matches", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestScorePairHandler_Persist(t *testing.T) {
	store := &memStore{profiles: []*profile.UserProfile{member("a"), member("b")}}
	repo := newMemMatches()
	router := newTestServer(t, &stubInference{}, store, repo)

	body, _ := json.Marshal(scoreRequest{UserID: "a", CandidateID: "b", Persist: true})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/matching/score", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		MatchID string `json:"match_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	stored, err := repo.GetMatch(context.Background(), resp.MatchID)
	if err != nil {
		t.Fatalf("persisted match not found: %v", err)
	}
	if stored.Score != 84 || stored.Status != matches.StatusSuggested {
		t.Errorf("stored match = %+v", stored)
	}
}

func TestScorePairHandler_IneligibleCandidate(t *testing.T) {
	noConsent := member("b")
	noConsent.ConsentAIMatching = false
	store := &memStore{profiles: []*profile.UserProfile{member("a"), noConsent}}
	router := newTestServer(t, &stubInference{}, store, newMemMatches())

	body, _ := json.Marshal(scoreRequest{UserID: "a", CandidateID: "b"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/matching/score", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestEnrichHandler_ReportsFallbackSource(t *testing.T) {
	store := &memStore{profiles: []*profile.UserProfile{member("a")}}
	router := newTestServer(t, &stubInference{fail: true}, store, newMemMatches())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/matching/a/enrich", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Personality *engine.PersonalityResult `json:"personality"`
		Goals       *engine.GoalResult        `json:"goals"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Personality.Source != engine.SourceFallback || resp.Goals.Source != engine.SourceFallback {
		t.Errorf("sources = %q/%q, want fallback", resp.Personality.Source, resp.Goals.Source)
	}
	if resp.Personality.Profile.Openness != 50 {
		t.Errorf("fallback Openness = %d, want 50", resp.Personality.Profile.Openness)
	}
}

func TestUpdateMatchStatusHandler(t *testing.T) {
	repo := newMemMatches()
	rec0 := &matches.Match{ID: "m-1", UserID: "a", MatchedUserID: "b", Status: matches.StatusSuggested}
	_ = repo.CreateMatch(context.Background(), rec0)

	store := &memStore{profiles: []*profile.UserProfile{member("a")}}
	router := newTestServer(t, &stubInference{}, store, repo)

	body := bytes.NewReader([]byte(`{"status": "accepted"}`))
	req := httptest.NewRequest(http.MethodPut, "/api/v1/matches/m-1/status", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	if rec0.Status != matches.StatusAccepted {
		t.Errorf("Status = %q, want accepted", rec0.Status)
	}

	body = bytes.NewReader([]byte(`{"status": "bogus"}`))
	req = httptest.NewRequest(http.MethodPut, "/api/v1/matches/m-1/status", body)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for invalid status", rec.Code)
	}
}

func TestGetMatchHandler_NotFound(t *testing.T) {
	store := &memStore{profiles: []*profile.UserProfile{member("a")}}
	router := newTestServer(t, &stubInference{}, store, newMemMatches())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/matches/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	store := &memStore{}
	router := newTestServer(t, &stubInference{}, store, newMemMatches())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
