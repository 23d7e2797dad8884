package quiz

import (
	"time"

	"github.com/optima-study/optima/internal/id"
)

// Attempt is a finished quiz kept in the local history.
type Attempt struct {
	ID          string         `json:"id" yaml:"id"`
	MaterialID  int64          `json:"material_id" yaml:"material_id"`
	Title       string         `json:"title" yaml:"title"`
	Score       Score          `json:"score" yaml:"score"`
	Answers     map[int]string `json:"answers" yaml:"answers"`
	CompletedAt time.Time      `json:"completed_at" yaml:"completed_at"`
}

// NewAttempt records the outcome of a completed session.
func NewAttempt(materialID int64, title string, score Score, answers map[int]string, at time.Time) Attempt {
	copied := make(map[int]string, len(answers))
	for k, v := range answers {
		copied[k] = v
	}
	return Attempt{
		ID:          id.AttemptID(),
		MaterialID:  materialID,
		Title:       title,
		Score:       score,
		Answers:     copied,
		CompletedAt: at.UTC(),
	}
}
