// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ErrProfileNotFound is returned when a user profile does not exist
var ErrProfileNotFound = errors.New("profile not found")

// Store abstracts the profile persistence layer
type Store interface {
	// Get returns one profile with any cached enrichment attached
	Get(ctx context.Context, userID string) (*UserProfile, error)

	// ListCandidates returns the candidate pool for matching: discoverable,
	// AI-matching-consenting profiles in a stable order.
	ListCandidates(ctx context.Context, limit int) ([]*UserProfile, error)

	// SavePersonality writes a personality enrichment back to the profile
	SavePersonality(ctx context.Context, userID string, p *PersonalityProfile) error

	// SaveGoalAnalysis writes a goal enrichment back to the profile
	SaveGoalAnalysis(ctx context.Context, userID string, g *GoalAnalysis) error

	// Ping checks store connectivity
	Ping(ctx context.Context) error
}

// PostgresStore implements Store backed by PostgreSQL.
// Enrichment structures are stored as JSONB alongside the profile row.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a profile store on an existing connection
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const profileColumns = `id, full_name, headline, bio, networking_goal, industries, skills,
	location, discoverable, consent_ai_matching, profile_version,
	personality, goals, created_at, updated_at`

// Get returns one profile with any cached enrichment attached
func (s *PostgresStore) Get(ctx context.Context, userID string) (*UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE id = $1`

	p, err := scanProfile(s.db.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// ListCandidates returns eligible profiles ordered by creation time,
// oldest first. The order is stable so ranking tie-breaks are
// deterministic. Ineligible rows are filtered here so they never crowd
// eligible members out of the pool limit.
func (s *PostgresStore) ListCandidates(ctx context.Context, limit int) ([]*UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE discoverable AND consent_ai_matching ORDER BY created_at, id LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var profiles []*UserProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate candidates: %w", err)
	}
	return profiles, nil
}

// SavePersonality writes a personality enrichment back to the profile
func (s *PostgresStore) SavePersonality(ctx context.Context, userID string, p *PersonalityProfile) error {
	return s.saveEnrichment(ctx, userID, "personality", p)
}

// SaveGoalAnalysis writes a goal enrichment back to the profile
func (s *PostgresStore) SaveGoalAnalysis(ctx context.Context, userID string, g *GoalAnalysis) error {
	return s.saveEnrichment(ctx, userID, "goals", g)
}

func (s *PostgresStore) saveEnrichment(ctx context.Context, userID, column string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal enrichment: %w", err)
	}

	// column is one of two compile-time constants, never user input
	query := fmt.Sprintf(`UPDATE user_profiles SET %s = $2, updated_at = $3 WHERE id = $1`, column)

	result, err := s.db.ExecContext(ctx, query, userID, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save enrichment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check enrichment update: %w", err)
	}
	if affected == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// Ping checks store connectivity
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*UserProfile, error) {
	var p UserProfile
	var industries, skills pq.StringArray
	var personality, goals []byte

	err := row.Scan(
		&p.ID, &p.FullName, &p.Headline, &p.Bio, &p.NetworkingGoal,
		&industries, &skills, &p.Location, &p.Discoverable,
		&p.ConsentAIMatching, &p.ProfileVersion,
		&personality, &goals, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Industries = industries
	p.Skills = skills

	if len(personality) > 0 {
		var pp PersonalityProfile
		if err := json.Unmarshal(personality, &pp); err != nil {
			return nil, fmt.Errorf("failed to decode personality enrichment: %w", err)
		}
		p.Personality = &pp
	}
	if len(goals) > 0 {
		var ga GoalAnalysis
		if err := json.Unmarshal(goals, &ga); err != nil {
			return nil, fmt.Errorf("failed to decode goal enrichment: %w", err)
		}
		p.Goals = &ga
	}
	return &p, nil
}
