// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"meshmatch/platform/shared/logger"
)

const (
	// DefaultMonthlyTokenAllowance is the allowance granted to accounts
	// created lazily on first usage
	DefaultMonthlyTokenAllowance = 100000

	// DefaultPlan is the plan assigned to lazily created accounts
	DefaultPlan = PlanFree

	// cycleUpdateAttempts bounds the optimistic-concurrency retry loop for
	// the cycle counter update
	cycleUpdateAttempts = 3
)

// Service provides usage metering and billing-cycle accounting
type Service struct {
	repo             Repository
	pricing          *PricingTable
	log              *logger.Logger
	defaultAllowance int64
}

// NewService creates a new billing service
func NewService(repo Repository, pricing *PricingTable) *Service {
	if pricing == nil {
		pricing = NewPricingTable()
	}
	return &Service{
		repo:             repo,
		pricing:          pricing,
		log:              logger.New("billing"),
		defaultAllowance: DefaultMonthlyTokenAllowance,
	}
}

// NewServiceWithOptions creates a service with a custom default allowance
func NewServiceWithOptions(repo Repository, pricing *PricingTable, defaultAllowance int64) *Service {
	s := NewService(repo, pricing)
	if defaultAllowance > 0 {
		s.defaultAllowance = defaultAllowance
	}
	return s
}

// RecordUsage records one inference call's token consumption: it pins the
// model's current rates on an immutable usage record and applies the
// billing-cycle counter update. An unknown model is a hard failure.
func (s *Service) RecordUsage(ctx context.Context, userID string, feature Feature, model string, tokensIn, tokensOut int) (*UsageRecord, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	if tokensIn < 0 || tokensOut < 0 {
		return nil, ErrInvalidTokenCount
	}

	rate, err := s.pricing.Rate(model)
	if err != nil {
		return nil, fmt.Errorf("cannot record usage for model %q: %w", model, err)
	}

	inputCost := float64(tokensIn) / 1000.0 * rate.InputPer1K
	outputCost := float64(tokensOut) / 1000.0 * rate.OutputPer1K

	record := &UsageRecord{
		RequestID:       uuid.NewString(),
		UserID:          userID,
		Feature:         feature,
		Model:           model,
		TokensIn:        tokensIn,
		TokensOut:       tokensOut,
		TotalTokens:     tokensIn + tokensOut,
		InputRatePer1K:  rate.InputPer1K,
		OutputRatePer1K: rate.OutputPer1K,
		InputCostUSD:    inputCost,
		OutputCostUSD:   outputCost,
		TotalCostUSD:    inputCost + outputCost,
		Timestamp:       time.Now().UTC(),
	}

	if err := s.repo.InsertUsage(ctx, record); err != nil {
		s.log.ErrorWithErr(userID, record.RequestID, "Failed to insert usage record", err, nil)
		return nil, fmt.Errorf("failed to record usage: %w", err)
	}

	if err := s.applyCycleUsage(ctx, userID, int64(record.TotalTokens)); err != nil {
		s.log.ErrorWithErr(userID, record.RequestID, "Failed to update billing cycle counter", err, nil)
		return nil, err
	}

	s.log.Info(userID, record.RequestID, "Recorded usage", map[string]interface{}{
		"feature":  string(feature),
		"model":    model,
		"tokens":   record.TotalTokens,
		"cost_usd": record.TotalCostUSD,
	})

	return record, nil
}

// applyCycleUsage applies the two-branch rollover state transition:
// accounts with a current cycle accumulate, accounts with a cycle started
// in a prior calendar month reset to this call's tokens alone. Missing
// accounts are created lazily with the default allowance. Each branch is a
// guarded single-statement update; a missed guard means another writer got
// there first, so the decision is retried.
func (s *Service) applyCycleUsage(ctx context.Context, userID string, tokens int64) error {
	now := time.Now().UTC()
	start := monthStart(now)
	end := monthEnd(now)

	for attempt := 0; attempt < cycleUpdateAttempts; attempt++ {
		ok, err := s.repo.AddUsageInCycle(ctx, userID, tokens, start)
		if err != nil {
			return fmt.Errorf("failed to apply cycle usage: %w", err)
		}
		if ok {
			return nil
		}

		// Account missing or stale cycle. Try lazy creation first.
		account := &BillingAccount{
			UserID:                userID,
			Plan:                  DefaultPlan,
			MonthlyTokenAllowance: s.defaultAllowance,
			TokensUsedThisMonth:   tokens,
			CycleStart:            start,
			CycleEnd:              end,
			NextBillingDate:       end,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		created, err := s.repo.CreateAccount(ctx, account)
		if err != nil {
			return fmt.Errorf("failed to create billing account: %w", err)
		}
		if created {
			return nil
		}

		ok, err = s.repo.ResetCycle(ctx, userID, tokens, start, end, end)
		if err != nil {
			return fmt.Errorf("failed to reset billing cycle: %w", err)
		}
		if ok {
			return nil
		}
	}

	return ErrConcurrentUpdate
}

// CheckAllowance reports whether a user's consumption is within their
// plan's monthly limit. It never enforces anything itself.
func (s *Service) CheckAllowance(ctx context.Context, userID string) (*AllowanceStatus, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	account, err := s.repo.GetAccount(ctx, userID)
	if err == ErrAccountNotFound {
		// No usage yet: full default allowance available
		return &AllowanceStatus{
			UserID:         userID,
			Plan:           DefaultPlan,
			HasAllowance:   true,
			TokensUsed:     0,
			TokenAllowance: s.defaultAllowance,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check allowance: %w", err)
	}

	return &AllowanceStatus{
		UserID:         userID,
		Plan:           account.Plan,
		HasAllowance:   account.TokensUsedThisMonth < account.MonthlyTokenAllowance,
		TokensUsed:     account.TokensUsedThisMonth,
		TokenAllowance: account.MonthlyTokenAllowance,
	}, nil
}

// CalculateOverage reports consumption beyond the monthly allowance,
// billed at the blended rate of the fixed reference model regardless of
// which models actually produced the overage tokens.
func (s *Service) CalculateOverage(ctx context.Context, userID string) (*OverageReport, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	blended, err := s.pricing.BlendedRate()
	if err != nil {
		return nil, fmt.Errorf("reference model has no pricing: %w", err)
	}

	report := &OverageReport{
		UserID:           userID,
		ReferenceModel:   s.pricing.refModel(),
		BlendedRatePer1K: blended,
	}

	account, err := s.repo.GetAccount(ctx, userID)
	if err == ErrAccountNotFound {
		return report, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to calculate overage: %w", err)
	}

	if account.TokensUsedThisMonth > account.MonthlyTokenAllowance {
		report.OverageTokens = account.TokensUsedThisMonth - account.MonthlyTokenAllowance
		report.OverageCostUSD = float64(report.OverageTokens) / 1000.0 * blended
	}

	return report, nil
}

// GetMonthlyUsageStats aggregates the user's usage for the current
// calendar month, grouped by feature
func (s *Service) GetMonthlyUsageStats(ctx context.Context, userID string) (*MonthlyUsageStats, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	now := time.Now().UTC()
	return s.repo.GetMonthlyStats(ctx, userID, monthStart(now), monthEnd(now))
}

// GetUsageHistory returns the user's most recent usage records
func (s *Service) GetUsageHistory(ctx context.Context, userID string, limit int) ([]UsageRecord, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	return s.repo.ListRecentUsage(ctx, userID, limit)
}

// Pricing returns the pricing table
func (s *Service) Pricing() *PricingTable {
	return s.pricing
}

// IsHealthy checks if the service can reach its storage
func (s *Service) IsHealthy(ctx context.Context) bool {
	return s.repo.Ping(ctx) == nil
}
