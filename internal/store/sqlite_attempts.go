package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/optima-study/optima/internal/domain/quiz"
)

// ============================================================================
// Quiz attempts
// ============================================================================

func (s *SQLiteStore) SaveAttempt(ctx context.Context, a quiz.Attempt) error {
	answersJSON, err := json.Marshal(a.Answers)
	if err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO quiz_attempts (id, material_id, title, correct, total, percentage, answers, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.MaterialID, a.Title, a.Score.Correct, a.Score.Total, a.Score.Percentage,
		string(answersJSON), a.CompletedAt.UTC().Format(timeLayout),
	)
	return err
}

// RecentAttempts returns up to limit attempts, most recent first.
func (s *SQLiteStore) RecentAttempts(ctx context.Context, limit int) ([]quiz.Attempt, error) {
	return s.queryAttempts(ctx,
		"SELECT id, material_id, title, correct, total, percentage, answers, completed_at FROM quiz_attempts ORDER BY completed_at DESC LIMIT ?",
		limit,
	)
}

// AttemptsForMaterial returns every attempt at one material's quiz, most
// recent first.
func (s *SQLiteStore) AttemptsForMaterial(ctx context.Context, materialID int64) ([]quiz.Attempt, error) {
	return s.queryAttempts(ctx,
		"SELECT id, material_id, title, correct, total, percentage, answers, completed_at FROM quiz_attempts WHERE material_id = ? ORDER BY completed_at DESC",
		materialID,
	)
}

// DeleteAttemptsForMaterial drops the attempts of a deleted material.
func (s *SQLiteStore) DeleteAttemptsForMaterial(ctx context.Context, materialID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM quiz_attempts WHERE material_id = ?", materialID)
	return err
}

func (s *SQLiteStore) queryAttempts(ctx context.Context, query string, args ...any) ([]quiz.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []quiz.Attempt
	for rows.Next() {
		var a quiz.Attempt
		var answersJSON, completedAt string
		if err := rows.Scan(&a.ID, &a.MaterialID, &a.Title,
			&a.Score.Correct, &a.Score.Total, &a.Score.Percentage,
			&answersJSON, &completedAt,
		); err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(answersJSON), &a.Answers); err != nil {
			return nil, fmt.Errorf("failed to decode answers of attempt %s: %w", a.ID, err)
		}
		if a.CompletedAt, err = time.Parse(timeLayout, completedAt); err != nil {
			return nil, fmt.Errorf("failed to parse completion time of attempt %s: %w", a.ID, err)
		}

		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
