package quiz

import "strings"

type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeTrueFalse      QuestionType = "true_false"
	TypeShortAnswer    QuestionType = "short_answer"
)

// True/false questions are answered with one of these literal strings.
const (
	AnswerTrue  = "True"
	AnswerFalse = "False"
)

// Question is one generated quiz question. Questions carry no stable ID;
// they are addressed by their position in the quiz.
type Question struct {
	Question      string       `json:"question" yaml:"question"`
	Type          QuestionType `json:"type" yaml:"type"`
	Options       []string     `json:"options,omitempty" yaml:"options,omitempty"`
	CorrectAnswer *string      `json:"correct_answer,omitempty" yaml:"correct_answer,omitempty"`
	Explanation   *string      `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	SampleAnswer  *string      `json:"sample_answer,omitempty" yaml:"sample_answer,omitempty"`
	Concept       *string      `json:"concept,omitempty" yaml:"concept,omitempty"`
}

// Choices returns the answers a user can pick from. Multiple choice
// questions offer their options, true/false questions the two literals, and
// short answer questions nothing (free text).
func (q Question) Choices() []string {
	switch q.Type {
	case TypeMultipleChoice:
		return q.Options
	case TypeTrueFalse:
		return []string{AnswerTrue, AnswerFalse}
	default:
		return nil
	}
}

// IsObjective reports whether the question has a single exact correct answer.
func (q Question) IsObjective() bool {
	return q.Type == TypeMultipleChoice || q.Type == TypeTrueFalse
}

// ResolveChoice maps user input to a choice. It accepts an option letter
// ("b"), a 1-based number ("2") or the full option text, case-insensitively.
// Short answer questions return the input unchanged.
func (q Question) ResolveChoice(input string) (string, bool) {
	choices := q.Choices()
	if choices == nil {
		return input, true
	}

	in := strings.TrimSpace(input)
	if in == "" {
		return "", false
	}

	if len(in) == 1 {
		c := in[0] | 0x20 // lowercase ASCII
		if c >= 'a' && int(c-'a') < len(choices) {
			return choices[c-'a'], true
		}
		if in[0] >= '1' && in[0] <= '9' && int(in[0]-'1') < len(choices) {
			return choices[in[0]-'1'], true
		}
	}

	if q.Type == TypeTrueFalse {
		switch strings.ToLower(in) {
		case "t", "true", "y", "yes":
			return AnswerTrue, true
		case "f", "false", "n", "no":
			return AnswerFalse, true
		}
	}

	for _, c := range choices {
		if strings.EqualFold(c, in) {
			return c, true
		}
	}
	return "", false
}

// OptionLetter returns the display letter for option i ("A", "B", ...).
func OptionLetter(i int) string {
	return string(rune('A' + i))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
