// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultEnrichmentTTL bounds how long enrichment entries live even when
// the profile never changes.
const DefaultEnrichmentTTL = 30 * 24 * time.Hour

// EnrichmentCache caches enrichment results in Redis, keyed by
// (userID, profileVersion). A profile edit bumps the version, so stale
// enrichment simply stops being found; no invalidation traffic needed.
type EnrichmentCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEnrichmentCache creates an enrichment cache on an existing client
func NewEnrichmentCache(client *redis.Client, ttl time.Duration) *EnrichmentCache {
	if ttl <= 0 {
		ttl = DefaultEnrichmentTTL
	}
	return &EnrichmentCache{client: client, ttl: ttl}
}

// NewEnrichmentCacheFromURL connects to Redis and verifies the connection
func NewEnrichmentCacheFromURL(redisURL string, ttl time.Duration) (*EnrichmentCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewEnrichmentCache(client, ttl), nil
}

func personalityKey(userID string, version int) string {
	return fmt.Sprintf("enrichment:personality:%s:v%d", userID, version)
}

func goalsKey(userID string, version int) string {
	return fmt.Sprintf("enrichment:goals:%s:v%d", userID, version)
}

// GetPersonality returns the cached personality for this exact profile
// version, or (nil, nil) on a miss.
func (c *EnrichmentCache) GetPersonality(ctx context.Context, userID string, version int) (*PersonalityProfile, error) {
	data, err := c.client.Get(ctx, personalityKey(userID, version)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read personality cache: %w", err)
	}

	var p PersonalityProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode cached personality: %w", err)
	}
	return &p, nil
}

// SetPersonality caches a personality enrichment for one profile version
func (c *EnrichmentCache) SetPersonality(ctx context.Context, userID string, version int, p *PersonalityProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode personality: %w", err)
	}
	if err := c.client.Set(ctx, personalityKey(userID, version), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write personality cache: %w", err)
	}
	return nil
}

// GetGoals returns the cached goal analysis for this exact profile
// version, or (nil, nil) on a miss.
func (c *EnrichmentCache) GetGoals(ctx context.Context, userID string, version int) (*GoalAnalysis, error) {
	data, err := c.client.Get(ctx, goalsKey(userID, version)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read goals cache: %w", err)
	}

	var g GoalAnalysis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to decode cached goals: %w", err)
	}
	return &g, nil
}

// SetGoals caches a goal enrichment for one profile version
func (c *EnrichmentCache) SetGoals(ctx context.Context, userID string, version int, g *GoalAnalysis) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to encode goals: %w", err)
	}
	if err := c.client.Set(ctx, goalsKey(userID, version), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write goals cache: %w", err)
	}
	return nil
}

// Invalidate removes cached enrichment for one profile version.
// Used when an explicit recompute is requested.
func (c *EnrichmentCache) Invalidate(ctx context.Context, userID string, version int) error {
	if err := c.client.Del(ctx, personalityKey(userID, version), goalsKey(userID, version)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate enrichment cache: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection
func (c *EnrichmentCache) Close() error {
	return c.client.Close()
}
