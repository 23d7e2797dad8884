package quiz

// DefaultQuestionTime is the countdown, in ticks, given to each question.
const DefaultQuestionTime = 30

// Config holds the optional behaviour of a quiz session.
type Config struct {
	TimerEnabled bool // per-question countdown
	QuestionTime int  // ticks per question; 0 = DefaultQuestionTime
	MaxQuestions *int // nil = every question
	Shuffle      bool // randomize question order once, at construction

	Grader Grader // nil = RuleGrader

	// Callbacks run after the engine lock is released, so they may call
	// back into the engine.
	OnComplete func(Score)
	OnCancel   func()
	OnTimeout  func(expiredIndex int) // countdown moved the quiz on
}

// DefaultConfig returns a timed quiz over every question, in order.
func DefaultConfig() Config {
	return Config{
		TimerEnabled: true,
		QuestionTime: DefaultQuestionTime,
	}
}

func (c Config) questionTime() int {
	if c.QuestionTime <= 0 {
		return DefaultQuestionTime
	}
	return c.QuestionTime
}
