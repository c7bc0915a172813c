// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

package billing

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// Handler provides HTTP handlers for billing and usage APIs
type Handler struct {
	service *Service
}

// NewHandler creates a new billing handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers all billing routes with a gorilla/mux router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/billing/{userID}/allowance", h.GetAllowance).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/billing/{userID}/overage", h.GetOverage).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/billing/{userID}/usage", h.GetMonthlyStats).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/billing/{userID}/usage/history", h.GetUsageHistory).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/pricing", h.GetPricing).Methods("GET", "OPTIONS")
}

// GetAllowance handles GET /api/v1/billing/{userID}/allowance
func (h *Handler) GetAllowance(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID := mux.Vars(r)["userID"]

	status, err := h.service.CheckAllowance(r.Context(), userID)
	if err != nil {
		if err == ErrInvalidUserID {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

// GetOverage handles GET /api/v1/billing/{userID}/overage
func (h *Handler) GetOverage(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID := mux.Vars(r)["userID"]

	report, err := h.service.CalculateOverage(r.Context(), userID)
	if err != nil {
		if err == ErrInvalidUserID {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}

// GetMonthlyStats handles GET /api/v1/billing/{userID}/usage
func (h *Handler) GetMonthlyStats(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID := mux.Vars(r)["userID"]

	stats, err := h.service.GetMonthlyUsageStats(r.Context(), userID)
	if err != nil {
		if err == ErrInvalidUserID {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

// GetUsageHistory handles GET /api/v1/billing/{userID}/usage/history
func (h *Handler) GetUsageHistory(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID := mux.Vars(r)["userID"]

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, _ = strconv.Atoi(l)
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	records, err := h.service.GetUsageHistory(r.Context(), userID, limit)
	if err != nil {
		if err == ErrInvalidUserID {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"records": records,
		"limit":   limit,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

// GetPricing handles GET /api/v1/pricing
func (h *Handler) GetPricing(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	pricing := h.service.Pricing()

	if model := r.URL.Query().Get("model"); model != "" {
		rate, err := pricing.Rate(model)
		if err != nil {
			h.writeError(w, "Model pricing not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model": model,
			"rate":  rate,
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"models":          pricing.Models,
		"reference_model": pricing.ReferenceModel,
	})
}

// setCORSHeaders sets CORS headers for browser clients
func (h *Handler) setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")
}

// writeError writes a JSON error response
func (h *Handler) writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
