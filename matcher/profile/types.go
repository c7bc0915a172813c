// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

// Package profile defines user profiles and their AI-derived enrichment
// structures, plus the store that owns them.
package profile

import (
	"time"
)

// CommunicationStyle categorizes how a member prefers to communicate
type CommunicationStyle string

const (
	CommunicationDirect     CommunicationStyle = "direct"
	CommunicationDiplomatic CommunicationStyle = "diplomatic"
	CommunicationAnalytical CommunicationStyle = "analytical"
	CommunicationExpressive CommunicationStyle = "expressive"
)

// WorkStyle categorizes how a member prefers to work
type WorkStyle string

const (
	WorkCollaborative WorkStyle = "collaborative"
	WorkIndependent   WorkStyle = "independent"
	WorkStructured    WorkStyle = "structured"
	WorkFlexible      WorkStyle = "flexible"
)

// DecisionMakingStyle categorizes how a member approaches decisions
type DecisionMakingStyle string

const (
	DecisionDataDriven DecisionMakingStyle = "data_driven"
	DecisionIntuitive  DecisionMakingStyle = "intuitive"
	DecisionConsensus  DecisionMakingStyle = "consensus"
	DecisionDecisive   DecisionMakingStyle = "decisive"
)

// NetworkingMotivation categorizes why a member networks
type NetworkingMotivation string

const (
	MotivationBusinessGrowth  NetworkingMotivation = "business_growth"
	MotivationCareerChange    NetworkingMotivation = "career_change"
	MotivationKnowledgeShare  NetworkingMotivation = "knowledge_sharing"
	MotivationSocialExpansion NetworkingMotivation = "social_expansion"
)

// CareerStage categorizes where a member is in their career
type CareerStage string

const (
	StageEarly        CareerStage = "early_career"
	StageMid          CareerStage = "mid_career"
	StageSenior       CareerStage = "senior"
	StageExecutive    CareerStage = "executive"
	StageEntrepreneur CareerStage = "entrepreneur"
)

// BusinessObjective categorizes a member's dominant business goal
type BusinessObjective string

const (
	ObjectiveFindClients   BusinessObjective = "find_clients"
	ObjectiveFindPartners  BusinessObjective = "find_partners"
	ObjectiveFindInvestors BusinessObjective = "find_investors"
	ObjectiveFindMentor    BusinessObjective = "find_mentor"
	ObjectiveFindTalent    BusinessObjective = "find_talent"
)

// TimeHorizon categorizes the urgency of a member's goals
type TimeHorizon string

const (
	HorizonImmediate TimeHorizon = "immediate"
	HorizonQuarter   TimeHorizon = "quarter"
	HorizonYear      TimeHorizon = "year"
	HorizonLongTerm  TimeHorizon = "long_term"
)

// UserProfile is a member profile as held by the profile store.
// The matching core reads it and writes back enrichment results;
// everything else about it is owned elsewhere.
type UserProfile struct {
	ID             string   `json:"id"`
	FullName       string   `json:"full_name"`
	Headline       string   `json:"headline"`
	Bio            string   `json:"bio"`
	NetworkingGoal string   `json:"networking_goal"`
	Industries     []string `json:"industries"`
	Skills         []string `json:"skills"`
	Location       string   `json:"location"`

	// Discoverable controls whether the member appears in other
	// members' candidate pools.
	Discoverable bool `json:"discoverable"`

	// ConsentAIMatching records the member's opt-in to AI matching.
	// Members without consent are never scored.
	ConsentAIMatching bool `json:"consent_ai_matching"`

	// ProfileVersion increments on every profile edit. Enrichment cache
	// entries are keyed by it, so an edit makes cached enrichment stale
	// without any invalidation traffic.
	ProfileVersion int `json:"profile_version"`

	Personality *PersonalityProfile `json:"personality,omitempty"`
	Goals       *GoalAnalysis       `json:"goals,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PersonalityProfile is the AI-derived personality enrichment:
// five trait scores (0-100) and four categorical style fields.
type PersonalityProfile struct {
	Openness           int `json:"openness"`
	Conscientiousness  int `json:"conscientiousness"`
	Extraversion       int `json:"extraversion"`
	Agreeableness      int `json:"agreeableness"`
	EmotionalStability int `json:"emotional_stability"`

	CommunicationStyle   CommunicationStyle   `json:"communication_style"`
	WorkStyle            WorkStyle            `json:"work_style"`
	DecisionMaking       DecisionMakingStyle  `json:"decision_making"`
	NetworkingMotivation NetworkingMotivation `json:"networking_motivation"`
}

// GoalAnalysis is the AI-derived goal enrichment.
type GoalAnalysis struct {
	PrimaryGoals      []string          `json:"primary_goals"`
	CareerStage       CareerStage       `json:"career_stage"`
	BusinessObjective BusinessObjective `json:"business_objective"`
	TimeHorizon       TimeHorizon       `json:"time_horizon"`
	SuccessMetrics    []string          `json:"success_metrics"`
	ChallengeAreas    []string          `json:"challenge_areas"`
}

// Valid reports whether s is one of the defined communication styles.
func (s CommunicationStyle) Valid() bool {
	switch s {
	case CommunicationDirect, CommunicationDiplomatic, CommunicationAnalytical, CommunicationExpressive:
		return true
	}
	return false
}

// Valid reports whether s is one of the defined work styles.
func (s WorkStyle) Valid() bool {
	switch s {
	case WorkCollaborative, WorkIndependent, WorkStructured, WorkFlexible:
		return true
	}
	return false
}

// Valid reports whether s is one of the defined decision-making styles.
func (s DecisionMakingStyle) Valid() bool {
	switch s {
	case DecisionDataDriven, DecisionIntuitive, DecisionConsensus, DecisionDecisive:
		return true
	}
	return false
}

// Valid reports whether m is one of the defined networking motivations.
func (m NetworkingMotivation) Valid() bool {
	switch m {
	case MotivationBusinessGrowth, MotivationCareerChange, MotivationKnowledgeShare, MotivationSocialExpansion:
		return true
	}
	return false
}

// Valid reports whether s is one of the defined career stages.
func (s CareerStage) Valid() bool {
	switch s {
	case StageEarly, StageMid, StageSenior, StageExecutive, StageEntrepreneur:
		return true
	}
	return false
}

// Valid reports whether o is one of the defined business objectives.
func (o BusinessObjective) Valid() bool {
	switch o {
	case ObjectiveFindClients, ObjectiveFindPartners, ObjectiveFindInvestors, ObjectiveFindMentor, ObjectiveFindTalent:
		return true
	}
	return false
}

// Valid reports whether h is one of the defined time horizons.
func (h TimeHorizon) Valid() bool {
	switch h {
	case HorizonImmediate, HorizonQuarter, HorizonYear, HorizonLongTerm:
		return true
	}
	return false
}

// TraitScores returns the five trait values in a fixed order.
func (p *PersonalityProfile) TraitScores() [5]int {
	return [5]int{
		p.Openness,
		p.Conscientiousness,
		p.Extraversion,
		p.Agreeableness,
		p.EmotionalStability,
	}
}
