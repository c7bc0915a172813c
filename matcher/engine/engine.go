// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

package engine

import (
	"context"
	"fmt"
	"time"

	"meshmatch/platform/billing"
	"meshmatch/platform/matcher/inference"
	"meshmatch/platform/matcher/profile"
	"meshmatch/platform/shared/logger"
)

const (
	// DefaultMaxConcurrentScores bounds ranking fan-out width
	DefaultMaxConcurrentScores = 8

	// DefaultCallTimeout bounds each inference round-trip
	DefaultCallTimeout = 30 * time.Second

	// defaultTemperature keeps analysis output mostly stable across runs
	defaultTemperature = 0.2
)

// UsageMeter records token consumption for every inference call.
// *billing.Service satisfies it.
type UsageMeter interface {
	RecordUsage(ctx context.Context, userID string, feature billing.Feature, model string, tokensIn, tokensOut int) (*billing.UsageRecord, error)
}

// Config assembles an Engine
type Config struct {
	Inference inference.Service
	Store     profile.Store

	// Cache is the optional versioned enrichment cache
	Cache *profile.EnrichmentCache

	// Meter records usage for every inference call; optional in tests
	Meter UsageMeter

	// MaxConcurrentScores bounds ranking fan-out (default 8)
	MaxConcurrentScores int

	// CallTimeout bounds each inference round-trip (default 30s)
	CallTimeout time.Duration

	Logger *logger.Logger
}

// Engine is the compatibility-matching core. All scoring entry points
// degrade to fixed defaults on inference failure instead of erroring, so
// the matching pipeline never blocks on a flaky model.
type Engine struct {
	inference     inference.Service
	store         profile.Store
	cache         *profile.EnrichmentCache
	meter         UsageMeter
	maxConcurrent int
	callTimeout   time.Duration
	log           *logger.Logger
}

// New creates an Engine
func New(cfg Config) (*Engine, error) {
	if cfg.Inference == nil {
		return nil, fmt.Errorf("inference service is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("profile store is required")
	}
	if cfg.MaxConcurrentScores <= 0 {
		cfg.MaxConcurrentScores = DefaultMaxConcurrentScores
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.New("matching-engine")
	}

	return &Engine{
		inference:     cfg.Inference,
		store:         cfg.Store,
		cache:         cfg.Cache,
		meter:         cfg.Meter,
		maxConcurrent: cfg.MaxConcurrentScores,
		callTimeout:   cfg.CallTimeout,
		log:           cfg.Logger,
	}, nil
}

// call runs one metered inference round-trip with a bounded timeout
func (e *Engine) call(ctx context.Context, userID string, feature billing.Feature, instructions, prompt, schema string) (*inference.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	start := time.Now()
	res, err := e.inference.Request(ctx, inference.Request{
		SystemInstructions: instructions,
		Prompt:             prompt,
		Schema:             schema,
		Temperature:        defaultTemperature,
	})
	observeInference(e.inference.Name(), string(feature), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if e.meter != nil {
		if _, err := e.meter.RecordUsage(ctx, userID, feature, e.inference.Model(), res.Usage.InputTokens, res.Usage.OutputTokens); err != nil {
			// Metering failure must not fail the analysis, but it can't
			// pass silently either.
			e.log.ErrorWithErr(userID, "", "Failed to record inference usage", err, map[string]interface{}{
				"feature": feature,
				"model":   e.inference.Model(),
			})
		}
	}
	return res, nil
}

// Profile loads one profile from the underlying store
func (e *Engine) Profile(ctx context.Context, userID string) (*profile.UserProfile, error) {
	return e.store.Get(ctx, userID)
}

// HealthCheck verifies the engine's collaborators are reachable
func (e *Engine) HealthCheck(ctx context.Context) error {
	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("profile store unavailable: %w", err)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
