// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

package engine

import (
	"errors"
	"fmt"

	"meshmatch/platform/matcher/profile"
)

// Response schemas sent with each inference request. Providers embed
// these in the system instructions; responses that do not parse into
// the matching wire struct, or that parse but miss required fields,
// count as inference failures.

const personalitySchema = `{
  "openness": "integer 0-100",
  "conscientiousness": "integer 0-100",
  "extraversion": "integer 0-100",
  "agreeableness": "integer 0-100",
  "emotional_stability": "integer 0-100",
  "communication_style": "string enum",
  "work_style": "string enum",
  "decision_making": "string enum",
  "networking_motivation": "string enum"
}`

const goalSchema = `{
  "primary_goals": ["string"],
  "career_stage": "string enum",
  "business_objective": "string enum",
  "time_horizon": "string enum",
  "success_metrics": ["string"],
  "challenge_areas": ["string"]
}`

const matchSchema = `{
  "overall_score": "integer 1-100",
  "compatibility_factors": {
    "personality": "integer 1-100",
    "goals": "integer 1-100",
    "communication": "integer 1-100",
    "collaboration": "integer 1-100",
    "networking_style": "integer 1-100",
    "geographic": "integer 1-100",
    "industry": "integer 1-100"
  },
  "reasoning": "string",
  "recommended_topics": ["string"],
  "mutual_goals": ["string"],
  "collaboration_potential": "string enum",
  "meeting_suggestion": {
    "format": "string enum",
    "duration_minutes": "integer",
    "suggested_agenda": ["string"],
    "ideal_location": "string, optional"
  }
}`

// matchResponse is the wire shape of a scoring response. The raw
// overall_score is parsed but always replaced by the factor mean.
type matchResponse struct {
	OverallScore int                  `json:"overall_score"`
	Factors      CompatibilityFactors `json:"compatibility_factors"`
	Reasoning    string               `json:"reasoning"`

	RecommendedTopics      []string          `json:"recommended_topics"`
	MutualGoals            []string          `json:"mutual_goals"`
	CollaborationPotential CollaborationType `json:"collaboration_potential"`
	MeetingSuggestion      MeetingSuggestion `json:"meeting_suggestion"`
}

// validate rejects well-formed JSON missing the required factor scores.
// Factors are 1-100 by contract, so a zero value means the field was
// absent from the response.
func (r *matchResponse) validate() error {
	for _, s := range r.Factors.Scores() {
		if s < 1 {
			return errors.New("compatibility factor missing or out of range")
		}
	}
	return nil
}

// personalityResponse is the wire shape of a personality enrichment
// response. Trait fields are pointers so a missing field is
// distinguishable from a legitimate zero score.
type personalityResponse struct {
	Openness           *int `json:"openness"`
	Conscientiousness  *int `json:"conscientiousness"`
	Extraversion       *int `json:"extraversion"`
	Agreeableness      *int `json:"agreeableness"`
	EmotionalStability *int `json:"emotional_stability"`

	CommunicationStyle   profile.CommunicationStyle   `json:"communication_style"`
	WorkStyle            profile.WorkStyle            `json:"work_style"`
	DecisionMaking       profile.DecisionMakingStyle  `json:"decision_making"`
	NetworkingMotivation profile.NetworkingMotivation `json:"networking_motivation"`
}

// toProfile validates the response against the schema and converts it,
// clamping trait scores into range.
func (r *personalityResponse) toProfile() (*profile.PersonalityProfile, error) {
	for _, trait := range []*int{r.Openness, r.Conscientiousness, r.Extraversion, r.Agreeableness, r.EmotionalStability} {
		if trait == nil {
			return nil, errors.New("trait score missing from response")
		}
	}
	switch {
	case !r.CommunicationStyle.Valid():
		return nil, fmt.Errorf("communication_style %q is not a known style", r.CommunicationStyle)
	case !r.WorkStyle.Valid():
		return nil, fmt.Errorf("work_style %q is not a known style", r.WorkStyle)
	case !r.DecisionMaking.Valid():
		return nil, fmt.Errorf("decision_making %q is not a known style", r.DecisionMaking)
	case !r.NetworkingMotivation.Valid():
		return nil, fmt.Errorf("networking_motivation %q is not a known motivation", r.NetworkingMotivation)
	}

	return &profile.PersonalityProfile{
		Openness:             clamp(*r.Openness, 0, 100),
		Conscientiousness:    clamp(*r.Conscientiousness, 0, 100),
		Extraversion:         clamp(*r.Extraversion, 0, 100),
		Agreeableness:        clamp(*r.Agreeableness, 0, 100),
		EmotionalStability:   clamp(*r.EmotionalStability, 0, 100),
		CommunicationStyle:   r.CommunicationStyle,
		WorkStyle:            r.WorkStyle,
		DecisionMaking:       r.DecisionMaking,
		NetworkingMotivation: r.NetworkingMotivation,
	}, nil
}

// validateGoals rejects a goal analysis whose categorical fields are
// missing or outside their enumerations.
func validateGoals(ga *profile.GoalAnalysis) error {
	if len(ga.PrimaryGoals) == 0 {
		return errors.New("primary_goals missing from response")
	}
	if !ga.CareerStage.Valid() {
		return fmt.Errorf("career_stage %q is not a known stage", ga.CareerStage)
	}
	if !ga.BusinessObjective.Valid() {
		return fmt.Errorf("business_objective %q is not a known objective", ga.BusinessObjective)
	}
	if !ga.TimeHorizon.Valid() {
		return fmt.Errorf("time_horizon %q is not a known horizon", ga.TimeHorizon)
	}
	return nil
}
