// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// MockRepository implements Repository for testing. Its guarded update
// methods mirror the conditional SQL of the Postgres implementation.
type MockRepository struct {
	mu sync.RWMutex

	accounts map[string]*BillingAccount
	records  []UsageRecord

	// Error injection
	insertUsageErr error
	pingErr        error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		accounts: make(map[string]*BillingAccount),
	}
}

func (m *MockRepository) InsertUsage(ctx context.Context, record *UsageRecord) error {
	if m.insertUsageErr != nil {
		return m.insertUsageErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	record.ID = int64(len(m.records) + 1)
	m.records = append(m.records, *record)
	return nil
}

func (m *MockRepository) GetMonthlyStats(ctx context.Context, userID string, periodStart, periodEnd time.Time) (*MonthlyUsageStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &MonthlyUsageStats{
		UserID:      userID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}
	byFeature := make(map[Feature]*FeatureUsage)

	for _, r := range m.records {
		if r.UserID != userID {
			continue
		}
		if r.Timestamp.Before(periodStart) || !r.Timestamp.Before(periodEnd) {
			continue
		}
		fu, ok := byFeature[r.Feature]
		if !ok {
			fu = &FeatureUsage{Feature: r.Feature}
			byFeature[r.Feature] = fu
		}
		fu.TotalTokens += int64(r.TotalTokens)
		fu.TotalCostUSD += r.TotalCostUSD
		fu.RequestCount++
		stats.TotalTokens += int64(r.TotalTokens)
		stats.TotalCostUSD += r.TotalCostUSD
		stats.TotalCalls++
	}

	for _, fu := range byFeature {
		stats.ByFeature = append(stats.ByFeature, *fu)
	}
	return stats, nil
}

func (m *MockRepository) ListRecentUsage(ctx context.Context, userID string, limit int) ([]UsageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []UsageRecord
	for i := len(m.records) - 1; i >= 0 && len(result) < limit; i-- {
		if m.records[i].UserID == userID {
			result = append(result, m.records[i])
		}
	}
	return result, nil
}

func (m *MockRepository) GetAccount(ctx context.Context, userID string) (*BillingAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if account, ok := m.accounts[userID]; ok {
		copied := *account
		return &copied, nil
	}
	return nil, ErrAccountNotFound
}

func (m *MockRepository) CreateAccount(ctx context.Context, account *BillingAccount) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[account.UserID]; exists {
		return false, nil
	}
	copied := *account
	m.accounts[account.UserID] = &copied
	return true, nil
}

func (m *MockRepository) AddUsageInCycle(ctx context.Context, userID string, tokens int64, monthStart time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[userID]
	if !ok || account.CycleStart.Before(monthStart) {
		return false, nil
	}
	account.TokensUsedThisMonth += tokens
	account.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MockRepository) ResetCycle(ctx context.Context, userID string, tokens int64, newStart, newEnd, nextBilling time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[userID]
	if !ok || !account.CycleStart.Before(newStart) {
		return false, nil
	}
	account.TokensUsedThisMonth = tokens
	account.CycleStart = newStart
	account.CycleEnd = newEnd
	account.NextBillingDate = nextBilling
	account.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MockRepository) Ping(ctx context.Context) error {
	return m.pingErr
}

// seedAccount installs an account directly, bypassing the guarded updates
func (m *MockRepository) seedAccount(account *BillingAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *account
	m.accounts[account.UserID] = &copied
}

func testPricing() *PricingTable {
	table := NewPricingTable()
	table.SetModelRate("test-model", ModelRate{InputPer1K: 1.0, OutputPer1K: 2.0})
	return table
}

func TestRecordUsage_UnknownModelIsFatal(t *testing.T) {
	repo := NewMockRepository()
	svc := NewService(repo, testPricing())

	_, err := svc.RecordUsage(context.Background(), "user-1", FeatureAIMatching, "no-such-model", 100, 100)
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}

	if len(repo.records) != 0 {
		t.Error("no usage record should be written for an unknown model")
	}
}

func TestRecordUsage_PinsRatesAndComputesCost(t *testing.T) {
	repo := NewMockRepository()
	svc := NewService(repo, testPricing())

	record, err := svc.RecordUsage(context.Background(), "user-1", FeatureAIMatching, "test-model", 1500, 500)
	if err != nil {
		t.Fatalf("RecordUsage failed: %v", err)
	}

	if record.TotalTokens != 2000 {
		t.Errorf("TotalTokens = %d, want 2000", record.TotalTokens)
	}
	if record.InputRatePer1K != 1.0 || record.OutputRatePer1K != 2.0 {
		t.Errorf("pinned rates = (%v, %v), want (1.0, 2.0)", record.InputRatePer1K, record.OutputRatePer1K)
	}
	// 1500/1000*1.0 + 500/1000*2.0 = 1.5 + 1.0
	if record.InputCostUSD != 1.5 {
		t.Errorf("InputCostUSD = %v, want 1.5", record.InputCostUSD)
	}
	if record.OutputCostUSD != 1.0 {
		t.Errorf("OutputCostUSD = %v, want 1.0", record.OutputCostUSD)
	}
	if record.TotalCostUSD != 2.5 {
		t.Errorf("TotalCostUSD = %v, want 2.5", record.TotalCostUSD)
	}
	if record.RequestID == "" {
		t.Error("RequestID should be set")
	}
}

func TestRecordUsage_PinnedRatesSurviveRepricing(t *testing.T) {
	repo := NewMockRepository()
	pricing := testPricing()
	svc := NewService(repo, pricing)

	record, err := svc.RecordUsage(context.Background(), "user-1", FeatureAIMatching, "test-model", 1000, 1000)
	if err != nil {
		t.Fatalf("RecordUsage failed: %v", err)
	}

	pricing.SetModelRate("test-model", ModelRate{InputPer1K: 99, OutputPer1K: 99})

	stored := repo.records[0]
	if stored.TotalCostUSD != record.TotalCostUSD || stored.TotalCostUSD != 3.0 {
		t.Errorf("stored cost = %v, want 3.0 (computed from rates pinned at call time)", stored.TotalCostUSD)
	}
}

func TestRecordUsage_CreatesAccountLazily(t *testing.T) {
	repo := NewMockRepository()
	svc := NewService(repo, testPricing())

	if _, err := svc.RecordUsage(context.Background(), "user-1", FeatureProfileEnrichment, "test-model", 300, 200); err != nil {
		t.Fatalf("RecordUsage failed: %v", err)
	}

	account, err := repo.GetAccount(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected account to be created lazily: %v", err)
	}
	if account.TokensUsedThisMonth != 500 {
		t.Errorf("TokensUsedThisMonth = %d, want 500", account.TokensUsedThisMonth)
	}
	if account.MonthlyTokenAllowance != DefaultMonthlyTokenAllowance {
		t.Errorf("MonthlyTokenAllowance = %d, want default %d", account.MonthlyTokenAllowance, DefaultMonthlyTokenAllowance)
	}
	if account.Plan != DefaultPlan {
		t.Errorf("Plan = %q, want %q", account.Plan, DefaultPlan)
	}
}

func TestRecordUsage_SameCycleAccumulates(t *testing.T) {
	repo := NewMockRepository()
	svc := NewService(repo, testPricing())

	now := time.Now().UTC()
	repo.seedAccount(&BillingAccount{
		UserID:                "user-1",
		Plan:                  PlanProfessional,
		MonthlyTokenAllowance: 50000,
		TokensUsedThisMonth:   1200,
		CycleStart:            monthStart(now),
		CycleEnd:              monthEnd(now),
		NextBillingDate:       monthEnd(now),
	})

	if _, err := svc.RecordUsage(context.Background(), "user-1", FeatureAIMatching, "test-model", 100, 200); err != nil {
		t.Fatalf("RecordUsage failed: %v", err)
	}

	account, _ := repo.GetAccount(context.Background(), "user-1")
	if account.TokensUsedThisMonth != 1500 {
		t.Errorf("TokensUsedThisMonth = %d, want 1500", account.TokensUsedThisMonth)
	}
	if !account.CycleStart.Equal(monthStart(now)) {
		t.Error("cycle bounds must not change within the same month")
	}
}

func TestRecordUsage_StaleCycleResets(t *testing.T) {
	repo := NewMockRepository()
	svc := NewService(repo, testPricing())

	now := time.Now().UTC()
	staleStart := monthStart(now).AddDate(0, -1, 0)
	repo.seedAccount(&BillingAccount{
		UserID:                "user-1",
		Plan:                  PlanProfessional,
		MonthlyTokenAllowance: 50000,
		TokensUsedThisMonth:   48000,
		CycleStart:            staleStart,
		CycleEnd:              monthStart(now),
		NextBillingDate:       monthStart(now),
	})

	if _, err := svc.RecordUsage(context.Background(), "user-1", FeatureAIMatching, "test-model", 150, 50); err != nil {
		t.Fatalf("RecordUsage failed: %v", err)
	}

	account, _ := repo.GetAccount(context.Background(), "user-1")
	// Prior usage (48000) is discarded, not carried forward
	if account.TokensUsedThisMonth != 200 {
		t.Errorf("TokensUsedThisMonth = %d, want 200", account.TokensUsedThisMonth)
	}
	if !account.CycleStart.Equal(monthStart(now)) {
		t.Errorf("CycleStart = %v, want %v", account.CycleStart, monthStart(now))
	}
	if !account.CycleEnd.Equal(monthEnd(now)) {
		t.Errorf("CycleEnd = %v, want %v", account.CycleEnd, monthEnd(now))
	}
}

func TestCheckAllowance(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name          string
		used          int64
		allowance     int64
		wantAllowance bool
	}{
		{"well within limit", 100, 10000, true},
		{"one token below limit", 9999, 10000, true},
		{"exactly at limit", 10000, 10000, false},
		{"over limit", 12000, 10000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockRepository()
			svc := NewService(repo, testPricing())
			repo.seedAccount(&BillingAccount{
				UserID:                "user-1",
				Plan:                  PlanFree,
				MonthlyTokenAllowance: tt.allowance,
				TokensUsedThisMonth:   tt.used,
				CycleStart:            monthStart(now),
				CycleEnd:              monthEnd(now),
			})

			status, err := svc.CheckAllowance(context.Background(), "user-1")
			if err != nil {
				t.Fatalf("CheckAllowance failed: %v", err)
			}
			if status.HasAllowance != tt.wantAllowance {
				t.Errorf("HasAllowance = %v, want %v", status.HasAllowance, tt.wantAllowance)
			}
			if status.TokensUsed != tt.used {
				t.Errorf("TokensUsed = %d, want %d", status.TokensUsed, tt.used)
			}
			if status.TokenAllowance != tt.allowance {
				t.Errorf("TokenAllowance = %d, want %d", status.TokenAllowance, tt.allowance)
			}
		})
	}
}

func TestCheckAllowance_MissingAccountDefaults(t *testing.T) {
	repo := NewMockRepository()
	svc := NewService(repo, testPricing())

	status, err := svc.CheckAllowance(context.Background(), "new-user")
	if err != nil {
		t.Fatalf("CheckAllowance failed: %v", err)
	}
	if !status.HasAllowance {
		t.Error("a user with no usage yet should have allowance")
	}
	if status.TokenAllowance != DefaultMonthlyTokenAllowance {
		t.Errorf("TokenAllowance = %d, want default", status.TokenAllowance)
	}
	if _, err := repo.GetAccount(context.Background(), "new-user"); err != ErrAccountNotFound {
		t.Error("CheckAllowance must not create accounts")
	}
}

func TestCalculateOverage(t *testing.T) {
	now := time.Now().UTC()
	pricing := testPricing()
	pricing.ReferenceModel = "test-model" // blended rate (1.0+2.0)/2 = 1.5

	tests := []struct {
		name       string
		used       int64
		allowance  int64
		wantTokens int64
		wantCost   float64
	}{
		{"within allowance", 5000, 10000, 0, 0},
		{"exactly at allowance", 10000, 10000, 0, 0},
		{"over allowance", 12000, 10000, 2000, 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockRepository()
			svc := NewService(repo, pricing)
			repo.seedAccount(&BillingAccount{
				UserID:                "user-1",
				MonthlyTokenAllowance: tt.allowance,
				TokensUsedThisMonth:   tt.used,
				CycleStart:            monthStart(now),
			})

			report, err := svc.CalculateOverage(context.Background(), "user-1")
			if err != nil {
				t.Fatalf("CalculateOverage failed: %v", err)
			}
			if report.OverageTokens != tt.wantTokens {
				t.Errorf("OverageTokens = %d, want %d", report.OverageTokens, tt.wantTokens)
			}
			if report.OverageCostUSD != tt.wantCost {
				t.Errorf("OverageCostUSD = %v, want %v", report.OverageCostUSD, tt.wantCost)
			}
			if report.ReferenceModel != "test-model" {
				t.Errorf("ReferenceModel = %q, want test-model", report.ReferenceModel)
			}
			if report.BlendedRatePer1K != 1.5 {
				t.Errorf("BlendedRatePer1K = %v, want 1.5", report.BlendedRatePer1K)
			}
		})
	}
}

// TestAllowanceLifecycle walks the worked example: a 10000-token allowance
// with 9500 used, a 500-token call exhausting it, then a rollover call in
// the next month leaving only the new call's tokens on the counter.
func TestAllowanceLifecycle(t *testing.T) {
	repo := NewMockRepository()
	svc := NewService(repo, testPricing())
	ctx := context.Background()

	now := time.Now().UTC()
	repo.seedAccount(&BillingAccount{
		UserID:                "user-1",
		Plan:                  PlanFree,
		MonthlyTokenAllowance: 10000,
		TokensUsedThisMonth:   9500,
		CycleStart:            monthStart(now),
		CycleEnd:              monthEnd(now),
		NextBillingDate:       monthEnd(now),
	})

	if _, err := svc.RecordUsage(ctx, "user-1", FeatureAIMatching, "test-model", 400, 100); err != nil {
		t.Fatalf("RecordUsage failed: %v", err)
	}

	status, err := svc.CheckAllowance(ctx, "user-1")
	if err != nil {
		t.Fatalf("CheckAllowance failed: %v", err)
	}
	if status.TokensUsed != 10000 {
		t.Errorf("TokensUsed = %d, want 10000", status.TokensUsed)
	}
	if status.HasAllowance {
		t.Error("allowance should be exhausted at exactly the limit")
	}

	// One calendar month later: backdate the stored cycle
	repo.seedAccount(&BillingAccount{
		UserID:                "user-1",
		Plan:                  PlanFree,
		MonthlyTokenAllowance: 10000,
		TokensUsedThisMonth:   10000,
		CycleStart:            monthStart(now).AddDate(0, -1, 0),
		CycleEnd:              monthStart(now),
		NextBillingDate:       monthStart(now),
	})

	if _, err := svc.RecordUsage(ctx, "user-1", FeatureAIMatching, "test-model", 150, 50); err != nil {
		t.Fatalf("RecordUsage failed: %v", err)
	}

	status, err = svc.CheckAllowance(ctx, "user-1")
	if err != nil {
		t.Fatalf("CheckAllowance failed: %v", err)
	}
	if status.TokensUsed != 200 {
		t.Errorf("TokensUsed after rollover = %d, want 200 (not 10200)", status.TokensUsed)
	}
	if !status.HasAllowance {
		t.Error("allowance should be restored after rollover")
	}
}

func TestGetMonthlyUsageStats(t *testing.T) {
	repo := NewMockRepository()
	svc := NewService(repo, testPricing())
	ctx := context.Background()

	if _, err := svc.RecordUsage(ctx, "user-1", FeatureAIMatching, "test-model", 1000, 0); err != nil {
		t.Fatalf("RecordUsage failed: %v", err)
	}
	if _, err := svc.RecordUsage(ctx, "user-1", FeatureAIMatching, "test-model", 500, 0); err != nil {
		t.Fatalf("RecordUsage failed: %v", err)
	}
	if _, err := svc.RecordUsage(ctx, "user-1", FeatureProfileEnrichment, "test-model", 200, 0); err != nil {
		t.Fatalf("RecordUsage failed: %v", err)
	}
	if _, err := svc.RecordUsage(ctx, "user-2", FeatureAIMatching, "test-model", 999, 0); err != nil {
		t.Fatalf("RecordUsage failed: %v", err)
	}

	stats, err := svc.GetMonthlyUsageStats(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetMonthlyUsageStats failed: %v", err)
	}
	if stats.TotalTokens != 1700 {
		t.Errorf("TotalTokens = %d, want 1700", stats.TotalTokens)
	}
	if stats.TotalCalls != 3 {
		t.Errorf("TotalCalls = %d, want 3", stats.TotalCalls)
	}
	if len(stats.ByFeature) != 2 {
		t.Errorf("ByFeature groups = %d, want 2", len(stats.ByFeature))
	}
}

func TestGetUsageHistory(t *testing.T) {
	repo := NewMockRepository()
	svc := NewService(repo, testPricing())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := svc.RecordUsage(ctx, "user-1", FeatureAIMatching, "test-model", 100, 0); err != nil {
			t.Fatalf("RecordUsage failed: %v", err)
		}
	}

	records, err := svc.GetUsageHistory(ctx, "user-1", 3)
	if err != nil {
		t.Fatalf("GetUsageHistory failed: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("len(records) = %d, want 3", len(records))
	}
}

func TestRecordUsage_InvalidInput(t *testing.T) {
	svc := NewService(NewMockRepository(), testPricing())

	if _, err := svc.RecordUsage(context.Background(), "", FeatureAIMatching, "test-model", 1, 1); err != ErrInvalidUserID {
		t.Errorf("expected ErrInvalidUserID, got %v", err)
	}
	if _, err := svc.RecordUsage(context.Background(), "user-1", FeatureAIMatching, "test-model", -1, 1); err != ErrInvalidTokenCount {
		t.Errorf("expected ErrInvalidTokenCount, got %v", err)
	}
}

func TestRecordUsage_ConcurrentSameUser(t *testing.T) {
	repo := NewMockRepository()
	svc := NewService(repo, testPricing())
	ctx := context.Background()

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.RecordUsage(ctx, "user-1", FeatureAIMatching, "test-model", 50, 50); err != nil {
				t.Errorf("RecordUsage failed: %v", err)
			}
		}()
	}
	wg.Wait()

	account, err := repo.GetAccount(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if account.TokensUsedThisMonth != writers*100 {
		t.Errorf("TokensUsedThisMonth = %d, want %d (no lost increments)", account.TokensUsedThisMonth, writers*100)
	}
}
