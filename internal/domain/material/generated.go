package material

import (
	"encoding/json"
	"strings"

	"github.com/optima-study/optima/internal/domain/quiz"
)

// GeneratedData holds the AI output for one material. The backend fills each
// field independently, so any subset may be missing.
//
// QuizQuestions and KeyConcepts are kept in their encoded form; use
// Questions and Concepts to read them.
type GeneratedData struct {
	ID            int64      `json:"id,omitempty"`
	MaterialID    int64      `json:"material_id,omitempty"`
	Summary       *string    `json:"summary,omitempty"`
	QuizQuestions *string    `json:"quiz_questions,omitempty"`
	KeyConcepts   *string    `json:"key_concepts,omitempty"`
	GeneratedAt   *Timestamp `json:"generated_at,omitempty"`
}

// UnmarshalJSON accepts quiz_questions and key_concepts either as a
// JSON-encoded string (stored records) or as a native array (the generate
// endpoints).
func (g *GeneratedData) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID            int64           `json:"id"`
		MaterialID    int64           `json:"material_id"`
		Summary       *string         `json:"summary"`
		QuizQuestions json.RawMessage `json:"quiz_questions"`
		KeyConcepts   json.RawMessage `json:"key_concepts"`
		GeneratedAt   *Timestamp      `json:"generated_at"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	g.ID = aux.ID
	g.MaterialID = aux.MaterialID
	g.Summary = aux.Summary
	g.QuizQuestions = EncodedField(aux.QuizQuestions)
	g.KeyConcepts = EncodedField(aux.KeyConcepts)
	g.GeneratedAt = aux.GeneratedAt
	return nil
}

// EncodedField normalizes a field that may be a JSON string holding JSON,
// or the JSON value itself. null and missing yield nil.
func EncodedField(raw json.RawMessage) *string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		return &s
	}
	return &trimmed
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func (g *GeneratedData) HasSummary() bool {
	return g != nil && present(g.Summary)
}

func (g *GeneratedData) HasQuiz() bool {
	return g != nil && present(g.QuizQuestions)
}

func (g *GeneratedData) HasConcepts() bool {
	return g != nil && present(g.KeyConcepts)
}

// HasAny reports whether any AI field is present. This is what "processing
// complete" means to the upload poller.
func (g *GeneratedData) HasAny() bool {
	return g.HasSummary() || g.HasQuiz() || g.HasConcepts()
}

// SummaryText returns the summary, or "" when absent.
func (g *GeneratedData) SummaryText() string {
	if !g.HasSummary() {
		return ""
	}
	return *g.Summary
}

// Questions decodes the quiz. A missing or malformed quiz yields (nil, false).
func (g *GeneratedData) Questions() ([]quiz.Question, bool) {
	if !g.HasQuiz() {
		return nil, false
	}
	return ParseQuizQuestions(*g.QuizQuestions)
}

// Concepts decodes the key concepts. A missing or malformed list yields
// (nil, false).
func (g *GeneratedData) Concepts() ([]Concept, bool) {
	if !g.HasConcepts() {
		return nil, false
	}
	return ParseKeyConcepts(*g.KeyConcepts)
}

// Merge copies the fields present in other over g. Used when a generate
// endpoint returns a single fresh field.
func (g *GeneratedData) Merge(other *GeneratedData) *GeneratedData {
	if other == nil {
		return g
	}
	out := GeneratedData{}
	if g != nil {
		out = *g
	}
	if other.Summary != nil {
		out.Summary = other.Summary
	}
	if other.QuizQuestions != nil {
		out.QuizQuestions = other.QuizQuestions
	}
	if other.KeyConcepts != nil {
		out.KeyConcepts = other.KeyConcepts
	}
	if other.GeneratedAt != nil {
		out.GeneratedAt = other.GeneratedAt
	}
	return &out
}
