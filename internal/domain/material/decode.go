package material

import (
	"encoding/json"
	"strings"

	"github.com/optima-study/optima/internal/domain/quiz"
)

// Concept is one extracted key concept. Older records store plain strings,
// which decode with an empty Explanation.
type Concept struct {
	Name        string `json:"concept" yaml:"concept"`
	Explanation string `json:"explanation,omitempty" yaml:"explanation,omitempty"`
}

// ParseQuizQuestions decodes an encoded quiz. Anything that is not a JSON
// array of question objects yields (nil, false). Questions without text are
// dropped.
func ParseQuizQuestions(encoded string) ([]quiz.Question, bool) {
	payload := extractJSON(encoded, '[', ']')
	if payload == "" {
		return nil, false
	}

	var raw []quiz.Question
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, false
	}

	questions := make([]quiz.Question, 0, len(raw))
	for _, q := range raw {
		q.Question = strings.TrimSpace(q.Question)
		if q.Question == "" {
			continue
		}
		q.Type = quiz.QuestionType(strings.ToLower(strings.TrimSpace(string(q.Type))))
		if q.Type == "" {
			if len(q.Options) > 0 {
				q.Type = quiz.TypeMultipleChoice
			} else {
				q.Type = quiz.TypeShortAnswer
			}
		}
		questions = append(questions, q)
	}
	return questions, true
}

// ParseKeyConcepts decodes an encoded concept list. Elements may be strings
// or objects naming the concept under "concept", "name" or "term".
func ParseKeyConcepts(encoded string) ([]Concept, bool) {
	payload := extractJSON(encoded, '[', ']')
	if payload == "" {
		return nil, false
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &elems); err != nil {
		return nil, false
	}

	concepts := make([]Concept, 0, len(elems))
	for _, elem := range elems {
		if c, ok := decodeConcept(elem); ok {
			concepts = append(concepts, c)
		}
	}
	return concepts, true
}

func decodeConcept(elem json.RawMessage) (Concept, bool) {
	var s string
	if err := json.Unmarshal(elem, &s); err == nil {
		s = strings.TrimSpace(s)
		return Concept{Name: s}, s != ""
	}

	var obj map[string]any
	if err := json.Unmarshal(elem, &obj); err != nil {
		return Concept{}, false
	}
	c := Concept{
		Name:        firstString(obj, "concept", "name", "term", "title"),
		Explanation: firstString(obj, "explanation", "description", "definition"),
	}
	return c, c.Name != ""
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := obj[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// extractJSON finds the outermost openCh...closeCh span in s, skipping
// delimiters inside quoted strings. It tolerates Markdown code fences and
// prose around the payload, which LLM output often carries.
func extractJSON(s string, openCh, closeCh rune) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, ch := range s {
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' && start != -1 {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch ch {
		case openCh:
			if depth == 0 {
				start = i
			}
			depth++
		case closeCh:
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start != -1 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
