// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

package matcher

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"meshmatch/platform/matcher/engine"
	"meshmatch/platform/matcher/matches"
	"meshmatch/platform/matcher/profile"
	"meshmatch/platform/shared/logger"
)

// Handler provides the matching HTTP API
type Handler struct {
	engine  *engine.Engine
	matches matches.Repository
	log     *logger.Logger
}

// NewHandler creates a matcher handler
func NewHandler(eng *engine.Engine, repo matches.Repository, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.New("matchd")
	}
	return &Handler{engine: eng, matches: repo, log: log}
}

// RegisterRoutes registers all matching routes with a gorilla/mux router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/matching/{userID}/enrich", h.Enrich).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/matching/{userID}/matches", h.FindMatches).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/matching/score", h.ScorePair).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/matches", h.CreateMatch).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/matches/{id}", h.GetMatch).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/matches/{id}/status", h.UpdateMatchStatus).Methods("PUT", "OPTIONS")
	r.HandleFunc("/api/v1/users/{userID}/matches", h.ListMatches).Methods("GET", "OPTIONS")
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := h.engine.HealthCheck(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, map[string]any{
		"status":    status,
		"service":   "matchd",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Enrich handles POST /api/v1/matching/{userID}/enrich.
// It recomputes both enrichments for the member and returns them with
// their provenance tags.
func (h *Handler) Enrich(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	start := time.Now()

	target, err := h.engine.Profile(r.Context(), userID)
	if err != nil {
		h.profileError(w, err)
		return
	}

	personality := h.engine.EnrichPersonality(r.Context(), target)
	goals := h.engine.AnalyzeGoals(r.Context(), target)

	h.log.InfoWithDuration(userID, "", "Profile enrichment completed", float64(time.Since(start).Milliseconds()), map[string]interface{}{
		"personality_source": personality.Source,
		"goals_source":       goals.Source,
	})

	h.writeJSON(w, http.StatusOK, map[string]any{
		"personality": personality,
		"goals":       goals,
	})
}

// FindMatches handles GET /api/v1/matching/{userID}/matches
func (h *Handler) FindMatches(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	start := time.Now()

	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, _ = strconv.Atoi(l)
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	results, err := h.engine.RankForUser(r.Context(), userID, limit)
	if err != nil {
		h.profileError(w, err)
		return
	}

	h.log.InfoWithDuration(userID, "", "Candidate ranking completed", float64(time.Since(start).Milliseconds()), map[string]interface{}{
		"matches": len(results),
		"limit":   limit,
	})

	h.writeJSON(w, http.StatusOK, map[string]any{
		"matches": results,
		"limit":   limit,
	})
}

type scoreRequest struct {
	UserID      string `json:"user_id"`
	CandidateID string `json:"candidate_id"`

	// Persist stores the analysis as a match record when true
	Persist bool `json:"persist"`
}

// ScorePair handles POST /api/v1/matching/score
func (h *Handler) ScorePair(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.CandidateID == "" || req.UserID == req.CandidateID {
		h.writeError(w, "user_id and candidate_id must be distinct and non-empty", http.StatusBadRequest)
		return
	}

	target, err := h.engine.Profile(r.Context(), req.UserID)
	if err != nil {
		h.profileError(w, err)
		return
	}
	candidate, err := h.engine.Profile(r.Context(), req.CandidateID)
	if err != nil {
		h.profileError(w, err)
		return
	}
	if !candidate.Discoverable || !candidate.ConsentAIMatching {
		h.writeError(w, "Candidate is not eligible for matching", http.StatusForbidden)
		return
	}

	analysis := h.engine.Score(r.Context(), target, candidate)

	if req.Persist {
		record := matches.FromAnalysis(analysis)
		if err := h.matches.CreateMatch(r.Context(), record); err != nil {
			h.log.ErrorWithErr(req.UserID, "", "Failed to persist match", err, nil)
			h.writeError(w, "Failed to persist match", http.StatusInternalServerError)
			return
		}
		h.writeJSON(w, http.StatusCreated, map[string]any{
			"analysis": analysis,
			"match_id": record.ID,
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"analysis": analysis})
}

// CreateMatch handles POST /api/v1/matches. The body is a full analysis
// the caller obtained earlier and now wants made durable.
func (h *Handler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var analysis engine.MatchAnalysis
	if err := json.NewDecoder(r.Body).Decode(&analysis); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if analysis.UserID == "" || analysis.MatchedUserID == "" {
		h.writeError(w, "user_id and matched_user_id are required", http.StatusBadRequest)
		return
	}

	record := matches.FromAnalysis(&analysis)
	if err := h.matches.CreateMatch(r.Context(), record); err != nil {
		h.log.ErrorWithErr(analysis.UserID, "", "Failed to create match", err, nil)
		h.writeError(w, "Failed to create match", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, record)
}

// GetMatch handles GET /api/v1/matches/{id}
func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	m, err := h.matches.GetMatch(r.Context(), id)
	if err == matches.ErrMatchNotFound {
		h.writeError(w, "Match not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.writeError(w, "Failed to load match", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, m)
}

type statusRequest struct {
	Status matches.MatchStatus `json:"status"`
}

// UpdateMatchStatus handles PUT /api/v1/matches/{id}/status
func (h *Handler) UpdateMatchStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	switch req.Status {
	case matches.StatusSuggested, matches.StatusAccepted, matches.StatusDeclined:
	default:
		h.writeError(w, "Invalid status", http.StatusBadRequest)
		return
	}

	if err := h.matches.UpdateStatus(r.Context(), id, req.Status); err != nil {
		if err == matches.ErrMatchNotFound {
			h.writeError(w, "Match not found", http.StatusNotFound)
			return
		}
		h.writeError(w, "Failed to update match", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(req.Status)})
}

// ListMatches handles GET /api/v1/users/{userID}/matches
func (h *Handler) ListMatches(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, _ = strconv.Atoi(l)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	records, err := h.matches.ListMatches(r.Context(), userID, limit)
	if err != nil {
		h.writeError(w, "Failed to list matches", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"matches": records,
		"limit":   limit,
	})
}

func (h *Handler) profileError(w http.ResponseWriter, err error) {
	if errors.Is(err, profile.ErrProfileNotFound) {
		h.writeError(w, "Profile not found", http.StatusNotFound)
		return
	}
	h.writeError(w, err.Error(), http.StatusInternalServerError)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
