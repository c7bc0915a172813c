// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

package billing

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// InsertUsage appends an immutable usage record
func (r *PostgresRepository) InsertUsage(ctx context.Context, record *UsageRecord) error {
	query := `
		INSERT INTO usage_records (
			request_id, user_id, feature, model, tokens_in, tokens_out,
			total_tokens, input_rate_per_1k, output_rate_per_1k,
			input_cost_usd, output_cost_usd, total_cost_usd, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		record.RequestID, record.UserID, record.Feature, record.Model,
		record.TokensIn, record.TokensOut, record.TotalTokens,
		record.InputRatePer1K, record.OutputRatePer1K,
		record.InputCostUSD, record.OutputCostUSD, record.TotalCostUSD,
		record.Timestamp,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}

	return nil
}

// GetMonthlyStats aggregates a user's usage within a period, grouped by feature
func (r *PostgresRepository) GetMonthlyStats(ctx context.Context, userID string, periodStart, periodEnd time.Time) (*MonthlyUsageStats, error) {
	query := `
		SELECT feature,
			   COALESCE(SUM(total_tokens), 0) AS total_tokens,
			   COALESCE(SUM(total_cost_usd), 0) AS total_cost,
			   COUNT(*) AS request_count
		FROM usage_records
		WHERE user_id = $1 AND timestamp >= $2 AND timestamp < $3
		GROUP BY feature
		ORDER BY total_cost DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, periodStart, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to get monthly stats: %w", err)
	}
	defer rows.Close()

	stats := &MonthlyUsageStats{
		UserID:      userID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}

	for rows.Next() {
		var fu FeatureUsage
		if err := rows.Scan(&fu.Feature, &fu.TotalTokens, &fu.TotalCostUSD, &fu.RequestCount); err != nil {
			return nil, fmt.Errorf("failed to scan feature usage: %w", err)
		}
		stats.ByFeature = append(stats.ByFeature, fu)
		stats.TotalTokens += fu.TotalTokens
		stats.TotalCostUSD += fu.TotalCostUSD
		stats.TotalCalls += fu.RequestCount
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read monthly stats: %w", err)
	}

	return stats, nil
}

// ListRecentUsage returns the most recent usage records for a user
func (r *PostgresRepository) ListRecentUsage(ctx context.Context, userID string, limit int) ([]UsageRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, request_id, user_id, feature, model, tokens_in, tokens_out,
			   total_tokens, input_rate_per_1k, output_rate_per_1k,
			   input_cost_usd, output_cost_usd, total_cost_usd, timestamp, created_at
		FROM usage_records
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}
	defer rows.Close()

	var records []UsageRecord
	for rows.Next() {
		var record UsageRecord
		if err := rows.Scan(
			&record.ID, &record.RequestID, &record.UserID, &record.Feature,
			&record.Model, &record.TokensIn, &record.TokensOut,
			&record.TotalTokens, &record.InputRatePer1K, &record.OutputRatePer1K,
			&record.InputCostUSD, &record.OutputCostUSD, &record.TotalCostUSD,
			&record.Timestamp, &record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read usage records: %w", err)
	}

	return records, nil
}

// GetAccount retrieves a billing account by user ID
func (r *PostgresRepository) GetAccount(ctx context.Context, userID string) (*BillingAccount, error) {
	query := `
		SELECT user_id, plan, monthly_token_allowance, tokens_used_this_month,
			   cycle_start, cycle_end, next_billing_date, created_at, updated_at
		FROM billing_accounts
		WHERE user_id = $1
	`

	var account BillingAccount
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&account.UserID, &account.Plan, &account.MonthlyTokenAllowance,
		&account.TokensUsedThisMonth, &account.CycleStart, &account.CycleEnd,
		&account.NextBillingDate, &account.CreatedAt, &account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get billing account: %w", err)
	}

	return &account, nil
}

// CreateAccount inserts an account if absent. ON CONFLICT DO NOTHING keeps
// lazy creation race-free across concurrent writers.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *BillingAccount) (bool, error) {
	query := `
		INSERT INTO billing_accounts (
			user_id, plan, monthly_token_allowance, tokens_used_this_month,
			cycle_start, cycle_end, next_billing_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		account.UserID, account.Plan, account.MonthlyTokenAllowance,
		account.TokensUsedThisMonth, account.CycleStart, account.CycleEnd,
		account.NextBillingDate, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create billing account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}

	return rows > 0, nil
}

// AddUsageInCycle adds tokens to the counter for an account whose cycle is
// current. The cycle_start guard makes the increment atomic with the
// rollover decision.
func (r *PostgresRepository) AddUsageInCycle(ctx context.Context, userID string, tokens int64, monthStart time.Time) (bool, error) {
	query := `
		UPDATE billing_accounts
		SET tokens_used_this_month = tokens_used_this_month + $2,
			updated_at = $3
		WHERE user_id = $1 AND cycle_start >= $4
	`

	result, err := r.db.ExecContext(ctx, query, userID, tokens, time.Now().UTC(), monthStart)
	if err != nil {
		return false, fmt.Errorf("failed to add cycle usage: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}

	return rows > 0, nil
}

// ResetCycle resets the counter to the current call's tokens alone and
// advances the cycle bounds. Prior accumulated usage for the stale cycle
// is discarded, not carried forward.
func (r *PostgresRepository) ResetCycle(ctx context.Context, userID string, tokens int64, newStart, newEnd, nextBilling time.Time) (bool, error) {
	query := `
		UPDATE billing_accounts
		SET tokens_used_this_month = $2,
			cycle_start = $3,
			cycle_end = $4,
			next_billing_date = $5,
			updated_at = $6
		WHERE user_id = $1 AND cycle_start < $3
	`

	result, err := r.db.ExecContext(ctx, query, userID, tokens, newStart, newEnd, nextBilling, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to reset billing cycle: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}

	return rows > 0, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
