// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

package engine

import (
	"context"
	"math"

	"meshmatch/platform/billing"
	"meshmatch/platform/matcher/profile"
)

// Score produces a pairwise compatibility analysis for (target, candidate).
// Enrichment is computed on demand when a profile carries none. The
// returned OverallScore is always the rounded mean of the seven factor
// scores; whatever the inference call proposed for overall is discarded.
// On any inference failure the fixed moderate default is returned,
// tagged SourceFallback. Score never returns an error.
func (e *Engine) Score(ctx context.Context, target, candidate *profile.UserProfile) *MatchAnalysis {
	pa, ga := e.enrichmentFor(ctx, target)
	pb, gb := e.enrichmentFor(ctx, candidate)

	prompt := matchPrompt(target, candidate, pa, pb, ga, gb)

	res, err := e.call(ctx, target.ID, billing.FeatureAIMatching, matchInstructions, prompt, matchSchema)
	if err != nil {
		e.log.Warn(target.ID, "", "Pairwise scoring failed, using default analysis", map[string]interface{}{
			"candidate_id": candidate.ID,
			"error":        err.Error(),
		})
		countFallback("match")
		return defaultMatchAnalysis(target.ID, candidate.ID)
	}

	var resp matchResponse
	if err := res.Decode(&resp); err != nil {
		e.log.Warn(target.ID, "", "Scoring response malformed, using default analysis", map[string]interface{}{
			"candidate_id": candidate.ID,
			"error":        err.Error(),
		})
		countFallback("match")
		return defaultMatchAnalysis(target.ID, candidate.ID)
	}
	if err := resp.validate(); err != nil {
		e.log.Warn(target.ID, "", "Scoring response did not match schema, using default analysis", map[string]interface{}{
			"candidate_id": candidate.ID,
			"error":        err.Error(),
		})
		countFallback("match")
		return defaultMatchAnalysis(target.ID, candidate.ID)
	}

	factors := clampFactors(resp.Factors)

	analysis := &MatchAnalysis{
		UserID:                 target.ID,
		MatchedUserID:          candidate.ID,
		OverallScore:           overallFromFactors(factors),
		Factors:                factors,
		Reasoning:              resp.Reasoning,
		RecommendedTopics:      resp.RecommendedTopics,
		MutualGoals:            resp.MutualGoals,
		CollaborationPotential: resp.CollaborationPotential,
		MeetingSuggestion:      resp.MeetingSuggestion,
		Source:                 SourceInference,
	}
	if !analysis.CollaborationPotential.Valid() {
		analysis.CollaborationPotential = CollaborationKnowledgeExchange
	}
	if !analysis.MeetingSuggestion.Format.Valid() {
		analysis.MeetingSuggestion = defaultMatchAnalysis(target.ID, candidate.ID).MeetingSuggestion
	}
	return analysis
}

// enrichmentFor returns the profile's enrichment, computing it lazily
// when the stored profile carries none.
func (e *Engine) enrichmentFor(ctx context.Context, p *profile.UserProfile) (*profile.PersonalityProfile, *profile.GoalAnalysis) {
	personality := p.Personality
	if personality == nil {
		personality = e.EnrichPersonality(ctx, p).Profile
	}
	goals := p.Goals
	if goals == nil {
		goals = e.AnalyzeGoals(ctx, p).Analysis
	}
	return personality, goals
}

// overallFromFactors derives the headline score from the seven factors
func overallFromFactors(f CompatibilityFactors) int {
	sum := 0
	for _, s := range f.Scores() {
		sum += s
	}
	return int(math.Round(float64(sum) / 7.0))
}

func clampFactors(f CompatibilityFactors) CompatibilityFactors {
	return CompatibilityFactors{
		Personality:     clamp(f.Personality, 1, 100),
		Goals:           clamp(f.Goals, 1, 100),
		Communication:   clamp(f.Communication, 1, 100),
		Collaboration:   clamp(f.Collaboration, 1, 100),
		NetworkingStyle: clamp(f.NetworkingStyle, 1, 100),
		Geographic:      clamp(f.Geographic, 1, 100),
		Industry:        clamp(f.Industry, 1, 100),
	}
}
