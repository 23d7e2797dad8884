package quiz_test

import (
	"testing"

	"github.com/optima-study/optima/internal/domain/quiz"
)

func TestResolveChoice(t *testing.T) {
	mc := quiz.Question{Type: quiz.TypeMultipleChoice, Options: []string{"Red", "Green", "Blue"}}
	tf := quiz.Question{Type: quiz.TypeTrueFalse}
	sa := quiz.Question{Type: quiz.TypeShortAnswer}

	tests := []struct {
		name  string
		q     quiz.Question
		input string
		want  string
		ok    bool
	}{
		{"letter", mc, "b", "Green", true},
		{"upper letter", mc, "C", "Blue", true},
		{"number", mc, "1", "Red", true},
		{"full text", mc, "blue", "Blue", true},
		{"out of range letter", mc, "d", "", false},
		{"unknown text", mc, "purple", "", false},
		{"blank", mc, "  ", "", false},
		{"true word", tf, "true", "True", true},
		{"false short", tf, "f", "False", true},
		{"true letter", tf, "a", "True", true},
		{"false letter", tf, "B", "False", true},
		{"yes", tf, "yes", "True", true},
		{"tf garbage", tf, "maybe", "", false},
		{"short answer passthrough", sa, " Paris ", " Paris ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.q.ResolveChoice(tt.input)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ResolveChoice(%q) = (%q, %v), expected (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestChoices(t *testing.T) {
	tf := quiz.Question{Type: quiz.TypeTrueFalse}
	if got := tf.Choices(); len(got) != 2 || got[0] != "True" || got[1] != "False" {
		t.Errorf("unexpected true/false choices: %v", got)
	}

	sa := quiz.Question{Type: quiz.TypeShortAnswer}
	if sa.Choices() != nil {
		t.Error("expected no choices for short answer")
	}
	if sa.IsObjective() {
		t.Error("short answer is not objective")
	}
}

func TestOptionLetter(t *testing.T) {
	if quiz.OptionLetter(0) != "A" || quiz.OptionLetter(3) != "D" {
		t.Errorf("unexpected letters %q %q", quiz.OptionLetter(0), quiz.OptionLetter(3))
	}
}
