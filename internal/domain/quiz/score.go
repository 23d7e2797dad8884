package quiz

import "strings"

// Score is the result of a completed quiz.
type Score struct {
	Correct    int `json:"correct" yaml:"correct"`
	Total      int `json:"total" yaml:"total"`
	Percentage int `json:"percentage" yaml:"percentage"`
}

// Message returns the encouragement shown next to a score.
func (s Score) Message() string {
	switch {
	case s.Percentage >= 90:
		return "Excellent work!"
	case s.Percentage >= 80:
		return "Great job!"
	case s.Percentage >= 70:
		return "Good effort!"
	case s.Percentage >= 60:
		return "Not bad, keep studying!"
	default:
		return "Keep practicing!"
	}
}

// Grader decides whether a recorded answer counts as correct.
// answered is false when the user left the question blank.
type Grader interface {
	IsCorrect(q Question, answer string, answered bool) bool
}

// RuleGrader is the default grading policy. Objective questions need an
// exact, case-sensitive match on the correct answer. Short answer questions
// count as correct whenever the trimmed answer is non-empty: there is no
// semantic grading.
type RuleGrader struct{}

var _ Grader = RuleGrader{}

func (RuleGrader) IsCorrect(q Question, answer string, answered bool) bool {
	if !answered {
		return false
	}
	switch q.Type {
	case TypeMultipleChoice, TypeTrueFalse:
		return q.CorrectAnswer != nil && answer == *q.CorrectAnswer
	case TypeShortAnswer:
		return strings.TrimSpace(answer) != ""
	default:
		return false
	}
}

// Calculate scores answers against questions. Answers are keyed by question
// index; missing keys are unanswered.
func Calculate(questions []Question, answers map[int]string, g Grader) Score {
	if g == nil {
		g = RuleGrader{}
	}

	correct := 0
	for i, q := range questions {
		answer, ok := answers[i]
		if g.IsCorrect(q, answer, ok) {
			correct++
		}
	}

	return Score{
		Correct:    correct,
		Total:      len(questions),
		Percentage: percentage(correct, len(questions)),
	}
}

// percentage rounds 100*correct/total half up. A zero total yields 0.
func percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*correct + total) / (2 * total)
}

// ReviewItem is one row of the post-quiz breakdown.
type ReviewItem struct {
	Index         int
	Question      Question
	Answer        string
	Answered      bool
	Correct       bool
	CorrectAnswer string
	Explanation   string
	SampleAnswer  string
}

// Review builds the per-question breakdown shown after a quiz.
func Review(questions []Question, answers map[int]string, g Grader) []ReviewItem {
	if g == nil {
		g = RuleGrader{}
	}

	items := make([]ReviewItem, len(questions))
	for i, q := range questions {
		answer, ok := answers[i]
		items[i] = ReviewItem{
			Index:         i,
			Question:      q,
			Answer:        answer,
			Answered:      ok,
			Correct:       g.IsCorrect(q, answer, ok),
			CorrectAnswer: deref(q.CorrectAnswer),
			Explanation:   deref(q.Explanation),
			SampleAnswer:  deref(q.SampleAnswer),
		}
	}
	return items
}
