// Copyright 2025 MeshMatch
// SPDX-License-Identifier: BUSL-1.1

// Package matches persists ranking results that callers choose to keep.
// The ranker never writes matches on its own; durability is an explicit
// caller decision.
package matches

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"meshmatch/platform/matcher/engine"
)

// MatchStatus tracks the lifecycle of a persisted match
type MatchStatus string

const (
	StatusSuggested MatchStatus = "suggested"
	StatusAccepted  MatchStatus = "accepted"
	StatusDeclined  MatchStatus = "declined"
)

// ErrMatchNotFound is returned when a match record does not exist
var ErrMatchNotFound = errors.New("match not found")

// Match is a durable record of one scored pair
type Match struct {
	ID            string                      `json:"id"`
	UserID        string                      `json:"user_id"`
	MatchedUserID string                      `json:"matched_user_id"`
	Score         int                         `json:"score"`
	Factors       engine.CompatibilityFactors `json:"factors"`
	Reasoning     string                      `json:"reasoning"`
	Topics        []string                    `json:"topics"`
	Goals         []string                    `json:"goals"`
	Collaboration engine.CollaborationType    `json:"collaboration"`
	Meeting       engine.MeetingSuggestion    `json:"meeting"`
	Source        engine.Source               `json:"source"`
	Status        MatchStatus                 `json:"status"`
	CreatedAt     time.Time                   `json:"created_at"`
}

// Repository persists match records
type Repository interface {
	CreateMatch(ctx context.Context, m *Match) error
	GetMatch(ctx context.Context, id string) (*Match, error)
	ListMatches(ctx context.Context, userID string, limit int) ([]*Match, error)
	UpdateStatus(ctx context.Context, id string, status MatchStatus) error
}

// FromAnalysis builds a match record from a scored pair
func FromAnalysis(a *engine.MatchAnalysis) *Match {
	return &Match{
		ID:            uuid.NewString(),
		UserID:        a.UserID,
		MatchedUserID: a.MatchedUserID,
		Score:         a.OverallScore,
		Factors:       a.Factors,
		Reasoning:     a.Reasoning,
		Topics:        a.RecommendedTopics,
		Goals:         a.MutualGoals,
		Collaboration: a.CollaborationPotential,
		Meeting:       a.MeetingSuggestion,
		Source:        a.Source,
		Status:        StatusSuggested,
		CreatedAt:     time.Now().UTC(),
	}
}

// PostgresRepository implements Repository backed by PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a match repository on an existing connection
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateMatch inserts one match record
func (r *PostgresRepository) CreateMatch(ctx context.Context, m *Match) error {
	factors, err := json.Marshal(m.Factors)
	if err != nil {
		return fmt.Errorf("failed to marshal factors: %w", err)
	}
	meeting, err := json.Marshal(m.Meeting)
	if err != nil {
		return fmt.Errorf("failed to marshal meeting suggestion: %w", err)
	}

	query := `
		INSERT INTO matches (
			id, user_id, matched_user_id, score, factors, reasoning,
			topics, goals, collaboration, meeting, source, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = r.db.ExecContext(ctx, query,
		m.ID, m.UserID, m.MatchedUserID, m.Score, factors, m.Reasoning,
		pq.Array(m.Topics), pq.Array(m.Goals), m.Collaboration, meeting,
		m.Source, m.Status, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

const matchColumns = `id, user_id, matched_user_id, score, factors, reasoning,
	topics, goals, collaboration, meeting, source, status, created_at`

// GetMatch returns one match by id
func (r *PostgresRepository) GetMatch(ctx context.Context, id string) (*Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	m, err := scanMatch(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

// ListMatches returns a user's most recent matches
func (r *PostgresRepository) ListMatches(ctx context.Context, userID string, limit int) ([]*Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []*Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate matches: %w", err)
	}
	return out, nil
}

// UpdateStatus transitions a match's lifecycle status
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status MatchStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE matches SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update match status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check status update: %w", err)
	}
	if affected == 0 {
		return ErrMatchNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (*Match, error) {
	var m Match
	var topics, goals pq.StringArray
	var factors, meeting []byte

	err := row.Scan(
		&m.ID, &m.UserID, &m.MatchedUserID, &m.Score, &factors, &m.Reasoning,
		&topics, &goals, &m.Collaboration, &meeting, &m.Source, &m.Status, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Topics = topics
	m.Goals = goals
	if len(factors) > 0 {
		if err := json.Unmarshal(factors, &m.Factors); err != nil {
			return nil, fmt.Errorf("failed to decode factors: %w", err)
		}
	}
	if len(meeting) > 0 {
		if err := json.Unmarshal(meeting, &m.Meeting); err != nil {
			return nil, fmt.Errorf("failed to decode meeting suggestion: %w", err)
		}
	}
	return &m, nil
}
