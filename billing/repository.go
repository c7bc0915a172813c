// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

package billing

import (
	"context"
	"time"
)

// Repository defines the interface for billing data persistence.
//
// The cycle-counter operations are deliberately split into guarded
// single-statement updates so that concurrent RecordUsage calls for the
// same user cannot lose increments: each branch of the rollover decision
// is conditional on the stored cycle_start, and the service retries
// through the decision when a guard misses.
type Repository interface {
	// Usage records (append-only)
	InsertUsage(ctx context.Context, record *UsageRecord) error
	GetMonthlyStats(ctx context.Context, userID string, periodStart, periodEnd time.Time) (*MonthlyUsageStats, error)
	ListRecentUsage(ctx context.Context, userID string, limit int) ([]UsageRecord, error)

	// Billing accounts
	GetAccount(ctx context.Context, userID string) (*BillingAccount, error)
	// CreateAccount inserts the account if absent. Returns false without
	// error when another writer created it first.
	CreateAccount(ctx context.Context, account *BillingAccount) (bool, error)
	// AddUsageInCycle atomically adds tokens to the counter, guarded by
	// cycle_start >= monthStart. Returns false when the account is missing
	// or its cycle is stale.
	AddUsageInCycle(ctx context.Context, userID string, tokens int64, monthStart time.Time) (bool, error)
	// ResetCycle atomically resets the counter to tokens and advances the
	// cycle bounds, guarded by cycle_start < newStart. Returns false when
	// another writer already advanced the cycle.
	ResetCycle(ctx context.Context, userID string, tokens int64, newStart, newEnd, nextBilling time.Time) (bool, error)

	// Utility
	Ping(ctx context.Context) error
}
