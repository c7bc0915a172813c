// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

package engine

import (
	"meshmatch/platform/matcher/profile"
)

// defaultFactorScore is the balanced factor value used when scoring
// falls back, chosen so the overall lands at a moderate 65.
const defaultFactorScore = 65

// defaultPersonality returns the fixed neutral personality substituted
// when enrichment fails. Always the same values, so fallbacks are
// deterministic and testable.
func defaultPersonality() *profile.PersonalityProfile {
	return &profile.PersonalityProfile{
		Openness:             50,
		Conscientiousness:    50,
		Extraversion:         50,
		Agreeableness:        50,
		EmotionalStability:   50,
		CommunicationStyle:   profile.CommunicationDiplomatic,
		WorkStyle:            profile.WorkFlexible,
		DecisionMaking:       profile.DecisionConsensus,
		NetworkingMotivation: profile.MotivationKnowledgeShare,
	}
}

// defaultGoalAnalysis returns the fixed neutral goal analysis
// substituted when goal enrichment fails.
func defaultGoalAnalysis() *profile.GoalAnalysis {
	return &profile.GoalAnalysis{
		PrimaryGoals:      []string{"expand professional network"},
		CareerStage:       profile.StageMid,
		BusinessObjective: profile.ObjectiveFindPartners,
		TimeHorizon:       profile.HorizonYear,
		SuccessMetrics:    []string{"meaningful new connections"},
		ChallengeAreas:    []string{"finding relevant contacts"},
	}
}

// defaultMatchAnalysis returns the fixed moderate-confidence analysis
// substituted when pairwise scoring fails. All seven factors sit at the
// default, so the derived overall equals it exactly.
func defaultMatchAnalysis(userID, matchedUserID string) *MatchAnalysis {
	return &MatchAnalysis{
		UserID:        userID,
		MatchedUserID: matchedUserID,
		OverallScore:  defaultFactorScore,
		Factors: CompatibilityFactors{
			Personality:     defaultFactorScore,
			Goals:           defaultFactorScore,
			Communication:   defaultFactorScore,
			Collaboration:   defaultFactorScore,
			NetworkingStyle: defaultFactorScore,
			Geographic:      defaultFactorScore,
			Industry:        defaultFactorScore,
		},
		Reasoning:              "Both members are active professionals on the platform with potentially complementary backgrounds.",
		RecommendedTopics:      []string{"professional background", "current projects", "industry trends"},
		MutualGoals:            []string{"grow professional network"},
		CollaborationPotential: CollaborationKnowledgeExchange,
		MeetingSuggestion: MeetingSuggestion{
			Format:          MeetingCoffeeChat,
			DurationMinutes: 30,
			SuggestedAgenda: []string{"introductions", "discuss shared interests", "explore collaboration"},
		},
		Source: SourceFallback,
	}
}
