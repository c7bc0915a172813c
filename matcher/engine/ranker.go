// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"meshmatch/platform/matcher/profile"
)

// candidatePoolLimit caps how many profiles a user-level ranking request
// pulls from the store.
const candidatePoolLimit = 500

// FindOptimalMatches ranks the candidate pool against the target and
// returns the top limit matches with their full analyses. Ineligible
// candidates (the target itself, non-discoverable members, members
// without AI-matching consent) are filtered before any scoring happens.
// Scoring fans out concurrently, bounded by MaxConcurrentScores, and
// waits for every candidate before sorting. Sort is stable descending
// by overall score, so pool-order ties stay deterministic.
func (e *Engine) FindOptimalMatches(ctx context.Context, target *profile.UserProfile, pool []*profile.UserProfile, limit int) []*ScoredMatch {
	eligible := make([]*profile.UserProfile, 0, len(pool))
	for _, c := range pool {
		if c.ID == target.ID || !c.Discoverable || !c.ConsentAIMatching {
			continue
		}
		eligible = append(eligible, c)
	}
	if len(eligible) == 0 {
		return nil
	}

	results := make([]*ScoredMatch, len(eligible))
	sem := make(chan struct{}, e.maxConcurrent)
	var wg sync.WaitGroup

	for i, candidate := range eligible {
		wg.Add(1)
		go func(i int, candidate *profile.UserProfile) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = &ScoredMatch{
				Profile:  candidate,
				Analysis: e.Score(ctx, target, candidate),
			}
		}(i, candidate)
	}
	wg.Wait()

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Analysis.OverallScore > results[b].Analysis.OverallScore
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// RankForUser loads the target profile and candidate pool from the
// store and ranks them.
func (e *Engine) RankForUser(ctx context.Context, userID string, limit int) ([]*ScoredMatch, error) {
	target, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load target profile: %w", err)
	}

	pool, err := e.store.ListCandidates(ctx, candidatePoolLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate pool: %w", err)
	}

	return e.FindOptimalMatches(ctx, target, pool, limit), nil
}
