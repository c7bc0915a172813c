// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

package engine

import (
	"fmt"
	"strings"

	"meshmatch/platform/matcher/profile"
)

const personalityInstructions = `You are a professional-networking analyst. Given one member profile,
assess the member's personality for networking purposes. Score each trait 0-100 and pick exactly one
value for each categorical field from the allowed sets:
communication_style: direct, diplomatic, analytical, expressive
work_style: collaborative, independent, structured, flexible
decision_making: data_driven, intuitive, consensus, decisive
networking_motivation: business_growth, career_change, knowledge_sharing, social_expansion`

const goalInstructions = `You are a professional-networking analyst. Given one member profile,
extract the member's networking goals. Pick exactly one value for each enum field from the allowed sets:
career_stage: early_career, mid_career, senior, executive, entrepreneur
business_objective: find_clients, find_partners, find_investors, find_mentor, find_talent
time_horizon: immediate, quarter, year, long_term`

const matchInstructions = `You are a professional-networking analyst. Given two member profiles with
their personality and goal assessments, evaluate their compatibility as networking matches. Score the
overall match and each of the seven factors 1-100. Pick collaboration_potential from:
mentorship, partnership, knowledge_exchange, client_vendor, co_founder
and meeting format from: coffee_chat, video_call, lunch, formal_meeting.`

// profileSummary renders one profile as prompt text
func profileSummary(p *profile.UserProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", p.FullName)
	if p.Headline != "" {
		fmt.Fprintf(&b, "Headline: %s\n", p.Headline)
	}
	if p.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", p.Location)
	}
	if len(p.Industries) > 0 {
		fmt.Fprintf(&b, "Industries: %s\n", strings.Join(p.Industries, ", "))
	}
	if len(p.Skills) > 0 {
		fmt.Fprintf(&b, "Skills: %s\n", strings.Join(p.Skills, ", "))
	}
	if p.NetworkingGoal != "" {
		fmt.Fprintf(&b, "Networking goal: %s\n", p.NetworkingGoal)
	}
	if p.Bio != "" {
		fmt.Fprintf(&b, "Bio: %s\n", p.Bio)
	}
	return b.String()
}

// enrichedSummary renders a profile plus its enrichment as prompt text
func enrichedSummary(p *profile.UserProfile, personality *profile.PersonalityProfile, goals *profile.GoalAnalysis) string {
	var b strings.Builder
	b.WriteString(profileSummary(p))
	if personality != nil {
		fmt.Fprintf(&b, "Personality: openness %d, conscientiousness %d, extraversion %d, agreeableness %d, emotional stability %d; communicates %s, works %s, decides %s, networks for %s\n",
			personality.Openness, personality.Conscientiousness, personality.Extraversion,
			personality.Agreeableness, personality.EmotionalStability,
			personality.CommunicationStyle, personality.WorkStyle,
			personality.DecisionMaking, personality.NetworkingMotivation)
	}
	if goals != nil {
		fmt.Fprintf(&b, "Goals: %s; career stage %s, objective %s, horizon %s\n",
			strings.Join(goals.PrimaryGoals, ", "),
			goals.CareerStage, goals.BusinessObjective, goals.TimeHorizon)
	}
	return b.String()
}

// matchPrompt builds the pairwise scoring prompt from two enriched profiles
func matchPrompt(a, b *profile.UserProfile, pa, pb *profile.PersonalityProfile, ga, gb *profile.GoalAnalysis) string {
	var sb strings.Builder
	sb.WriteString("MEMBER A:\n")
	sb.WriteString(enrichedSummary(a, pa, ga))
	sb.WriteString("\nMEMBER B:\n")
	sb.WriteString(enrichedSummary(b, pb, gb))
	return sb.String()
}
