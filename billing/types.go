// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

package billing

import (
	"time"
)

// Feature identifies the platform feature that consumed inference tokens
type Feature string

const (
	FeatureAIMatching        Feature = "ai_matching"
	FeatureProfileEnrichment Feature = "profile_enrichment"
	FeatureGoalAnalysis      Feature = "goal_analysis"
)

// Plan identifies a subscription plan
type Plan string

const (
	PlanFree         Plan = "free"
	PlanProfessional Plan = "professional"
	PlanEnterprise   Plan = "enterprise"
)

// UsageRecord represents a single inference call's token consumption.
// Records are append-only; rates are pinned at record time and never
// recalculated if the pricing table later changes.
type UsageRecord struct {
	ID              int64     `json:"id,omitempty"`
	RequestID       string    `json:"request_id"`
	UserID          string    `json:"user_id"`
	Feature         Feature   `json:"feature"`
	Model           string    `json:"model"`
	TokensIn        int       `json:"tokens_in"`
	TokensOut       int       `json:"tokens_out"`
	TotalTokens     int       `json:"total_tokens"`
	InputRatePer1K  float64   `json:"input_rate_per_1k"`
	OutputRatePer1K float64   `json:"output_rate_per_1k"`
	InputCostUSD    float64   `json:"input_cost_usd"`
	OutputCostUSD   float64   `json:"output_cost_usd"`
	TotalCostUSD    float64   `json:"total_cost_usd"`
	Timestamp       time.Time `json:"timestamp"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}

// BillingAccount tracks a user's token allowance for the current billing
// cycle. Cycles are calendar-month windows; the counter resets when a new
// month begins.
type BillingAccount struct {
	UserID                string    `json:"user_id"`
	Plan                  Plan      `json:"plan"`
	MonthlyTokenAllowance int64     `json:"monthly_token_allowance"`
	TokensUsedThisMonth   int64     `json:"tokens_used_this_month"`
	CycleStart            time.Time `json:"cycle_start"`
	CycleEnd              time.Time `json:"cycle_end"`
	NextBillingDate       time.Time `json:"next_billing_date"`
	CreatedAt             time.Time `json:"created_at,omitempty"`
	UpdatedAt             time.Time `json:"updated_at,omitempty"`
}

// AllowanceStatus is the result of an allowance check. It never enforces
// anything itself; refusing further AI calls is the caller's decision.
type AllowanceStatus struct {
	UserID         string `json:"user_id"`
	Plan           Plan   `json:"plan"`
	HasAllowance   bool   `json:"has_allowance"`
	TokensUsed     int64  `json:"tokens_used"`
	TokenAllowance int64  `json:"token_allowance"`
}

// OverageReport describes token consumption beyond the monthly allowance,
// billed at the blended rate of a fixed reference model.
type OverageReport struct {
	UserID           string  `json:"user_id"`
	OverageTokens    int64   `json:"overage_tokens"`
	ReferenceModel   string  `json:"reference_model"`
	BlendedRatePer1K float64 `json:"blended_rate_per_1k"`
	OverageCostUSD   float64 `json:"overage_cost_usd"`
}

// FeatureUsage is one row of a per-feature usage breakdown
type FeatureUsage struct {
	Feature      Feature `json:"feature"`
	TotalTokens  int64   `json:"total_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	RequestCount int     `json:"request_count"`
}

// MonthlyUsageStats aggregates a user's usage for the current calendar month
type MonthlyUsageStats struct {
	UserID       string         `json:"user_id"`
	PeriodStart  time.Time      `json:"period_start"`
	PeriodEnd    time.Time      `json:"period_end"`
	TotalTokens  int64          `json:"total_tokens"`
	TotalCostUSD float64        `json:"total_cost_usd"`
	TotalCalls   int            `json:"total_calls"`
	ByFeature    []FeatureUsage `json:"by_feature"`
}

// Total returns total tokens recorded on the usage record
func (r *UsageRecord) Total() int {
	return r.TokensIn + r.TokensOut
}

// monthStart returns the first instant of t's calendar month in UTC
func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// monthEnd returns the first instant of the month after t's, in UTC
func monthEnd(t time.Time) time.Time {
	return monthStart(t).AddDate(0, 1, 0)
}
