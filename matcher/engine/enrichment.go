// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

package engine

import (
	"context"

	"meshmatch/platform/billing"
	"meshmatch/platform/matcher/profile"
)

// EnrichPersonality derives a personality profile for one member via a
// single inference call. Genuine results are written back to the store
// and cache best effort. Any failure (transport, timeout, malformed or
// schema-mismatched response) yields the fixed neutral default, tagged
// SourceFallback and never persisted, and never an error.
func (e *Engine) EnrichPersonality(ctx context.Context, p *profile.UserProfile) *PersonalityResult {
	if e.cache != nil {
		cached, err := e.cache.GetPersonality(ctx, p.ID, p.ProfileVersion)
		if err != nil {
			e.log.Warn(p.ID, "", "Personality cache read failed", map[string]interface{}{"error": err.Error()})
		}
		if cached != nil {
			return &PersonalityResult{Profile: cached, Source: SourceInference}
		}
	}

	res, err := e.call(ctx, p.ID, billing.FeatureProfileEnrichment, personalityInstructions, profileSummary(p), personalitySchema)
	if err != nil {
		e.log.Warn(p.ID, "", "Personality enrichment failed, using neutral default", map[string]interface{}{"error": err.Error()})
		countFallback("personality")
		return &PersonalityResult{Profile: defaultPersonality(), Source: SourceFallback}
	}

	var wire personalityResponse
	if err := res.Decode(&wire); err != nil {
		e.log.Warn(p.ID, "", "Personality response malformed, using neutral default", map[string]interface{}{"error": err.Error()})
		countFallback("personality")
		return &PersonalityResult{Profile: defaultPersonality(), Source: SourceFallback}
	}
	pp, err := wire.toProfile()
	if err != nil {
		e.log.Warn(p.ID, "", "Personality response did not match schema, using neutral default", map[string]interface{}{"error": err.Error()})
		countFallback("personality")
		return &PersonalityResult{Profile: defaultPersonality(), Source: SourceFallback}
	}

	e.persistPersonality(ctx, p, pp)
	return &PersonalityResult{Profile: pp, Source: SourceInference}
}

// AnalyzeGoals derives a goal analysis for one member. Same failure
// contract as EnrichPersonality.
func (e *Engine) AnalyzeGoals(ctx context.Context, p *profile.UserProfile) *GoalResult {
	if e.cache != nil {
		cached, err := e.cache.GetGoals(ctx, p.ID, p.ProfileVersion)
		if err != nil {
			e.log.Warn(p.ID, "", "Goals cache read failed", map[string]interface{}{"error": err.Error()})
		}
		if cached != nil {
			return &GoalResult{Analysis: cached, Source: SourceInference}
		}
	}

	res, err := e.call(ctx, p.ID, billing.FeatureGoalAnalysis, goalInstructions, profileSummary(p), goalSchema)
	if err != nil {
		e.log.Warn(p.ID, "", "Goal analysis failed, using neutral default", map[string]interface{}{"error": err.Error()})
		countFallback("goals")
		return &GoalResult{Analysis: defaultGoalAnalysis(), Source: SourceFallback}
	}

	var ga profile.GoalAnalysis
	if err := res.Decode(&ga); err != nil {
		e.log.Warn(p.ID, "", "Goal response malformed, using neutral default", map[string]interface{}{"error": err.Error()})
		countFallback("goals")
		return &GoalResult{Analysis: defaultGoalAnalysis(), Source: SourceFallback}
	}
	if err := validateGoals(&ga); err != nil {
		e.log.Warn(p.ID, "", "Goal response did not match schema, using neutral default", map[string]interface{}{"error": err.Error()})
		countFallback("goals")
		return &GoalResult{Analysis: defaultGoalAnalysis(), Source: SourceFallback}
	}

	e.persistGoals(ctx, p, &ga)
	return &GoalResult{Analysis: &ga, Source: SourceInference}
}

// persistPersonality writes an enrichment result back to the store and
// cache. Best effort: a write failure only costs a recompute later.
func (e *Engine) persistPersonality(ctx context.Context, p *profile.UserProfile, pp *profile.PersonalityProfile) {
	if err := e.store.SavePersonality(ctx, p.ID, pp); err != nil {
		e.log.Warn(p.ID, "", "Failed to persist personality enrichment", map[string]interface{}{"error": err.Error()})
	}
	if e.cache != nil {
		if err := e.cache.SetPersonality(ctx, p.ID, p.ProfileVersion, pp); err != nil {
			e.log.Warn(p.ID, "", "Failed to cache personality enrichment", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (e *Engine) persistGoals(ctx context.Context, p *profile.UserProfile, ga *profile.GoalAnalysis) {
	if err := e.store.SaveGoalAnalysis(ctx, p.ID, ga); err != nil {
		e.log.Warn(p.ID, "", "Failed to persist goal enrichment", map[string]interface{}{"error": err.Error()})
	}
	if e.cache != nil {
		if err := e.cache.SetGoals(ctx, p.ID, p.ProfileVersion, ga); err != nil {
			e.log.Warn(p.ID, "", "Failed to cache goal enrichment", map[string]interface{}{"error": err.Error()})
		}
	}
}
