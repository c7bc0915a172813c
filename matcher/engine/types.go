// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

// Package engine implements the compatibility-matching core: profile
// enrichment, pairwise scoring, and concurrent candidate ranking.
package engine

import (
	"meshmatch/platform/matcher/profile"
)

// Source tags whether a result came from a live inference call or from
// the fixed fallback substituted after an inference failure. Callers can
// always tell the two apart.
type Source string

const (
	SourceInference Source = "inference"
	SourceFallback  Source = "fallback"
)

// CollaborationType labels the kind of collaboration a pair is suited for
type CollaborationType string

const (
	CollaborationMentorship        CollaborationType = "mentorship"
	CollaborationPartnership       CollaborationType = "partnership"
	CollaborationKnowledgeExchange CollaborationType = "knowledge_exchange"
	CollaborationClientVendor      CollaborationType = "client_vendor"
	CollaborationCoFounder         CollaborationType = "co_founder"
)

// Valid reports whether c is one of the defined collaboration types.
func (c CollaborationType) Valid() bool {
	switch c {
	case CollaborationMentorship, CollaborationPartnership, CollaborationKnowledgeExchange,
		CollaborationClientVendor, CollaborationCoFounder:
		return true
	}
	return false
}

// MeetingFormat labels the suggested first-meeting format
type MeetingFormat string

const (
	MeetingCoffeeChat    MeetingFormat = "coffee_chat"
	MeetingVideoCall     MeetingFormat = "video_call"
	MeetingLunch         MeetingFormat = "lunch"
	MeetingFormalMeeting MeetingFormat = "formal_meeting"
)

// Valid reports whether m is one of the defined meeting formats.
func (m MeetingFormat) Valid() bool {
	switch m {
	case MeetingCoffeeChat, MeetingVideoCall, MeetingLunch, MeetingFormalMeeting:
		return true
	}
	return false
}

// CompatibilityFactors are the seven named sub-scores (1-100) that
// compose a match's overall score.
type CompatibilityFactors struct {
	Personality     int `json:"personality"`
	Goals           int `json:"goals"`
	Communication   int `json:"communication"`
	Collaboration   int `json:"collaboration"`
	NetworkingStyle int `json:"networking_style"`
	Geographic      int `json:"geographic"`
	Industry        int `json:"industry"`
}

// Scores returns the seven factor values in a fixed order.
func (f CompatibilityFactors) Scores() [7]int {
	return [7]int{
		f.Personality,
		f.Goals,
		f.Communication,
		f.Collaboration,
		f.NetworkingStyle,
		f.Geographic,
		f.Industry,
	}
}

// MeetingSuggestion is the recommended first meeting for a pair
type MeetingSuggestion struct {
	Format          MeetingFormat `json:"format"`
	DurationMinutes int           `json:"duration_minutes"`
	SuggestedAgenda []string      `json:"suggested_agenda"`
	IdealLocation   string        `json:"ideal_location,omitempty"`
}

// MatchAnalysis is one pairwise compatibility analysis. OverallScore is
// always the rounded mean of the seven factors, never the raw value an
// inference call proposed.
type MatchAnalysis struct {
	UserID        string `json:"user_id"`
	MatchedUserID string `json:"matched_user_id"`

	OverallScore int                  `json:"overall_score"`
	Factors      CompatibilityFactors `json:"compatibility_factors"`

	Reasoning              string            `json:"reasoning"`
	RecommendedTopics      []string          `json:"recommended_topics"`
	MutualGoals            []string          `json:"mutual_goals"`
	CollaborationPotential CollaborationType `json:"collaboration_potential"`
	MeetingSuggestion      MeetingSuggestion `json:"meeting_suggestion"`

	Source Source `json:"source"`
}

// PersonalityResult is a personality enrichment with its provenance tag
type PersonalityResult struct {
	Profile *profile.PersonalityProfile `json:"profile"`
	Source  Source                      `json:"source"`
}

// GoalResult is a goal enrichment with its provenance tag
type GoalResult struct {
	Analysis *profile.GoalAnalysis `json:"analysis"`
	Source   Source                `json:"source"`
}

// ScoredMatch pairs a ranked candidate with its full analysis, so
// callers get the score breakdown without re-scoring.
type ScoredMatch struct {
	Profile  *profile.UserProfile `json:"profile"`
	Analysis *MatchAnalysis       `json:"analysis"`
}
