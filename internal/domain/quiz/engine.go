package quiz

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
)

var (
	ErrNoQuestions       = errors.New("quiz has no questions")
	ErrInvalidTransition = errors.New("invalid quiz transition")
)

type State int

const (
	NotStarted State = iota
	InProgress
	Completed
	Cancelled
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Session is a point-in-time copy of the engine state.
type Session struct {
	State                State
	CurrentQuestionIndex int
	Answers              map[int]string
	Started              bool
	Completed            bool
	TimeLeft             *int // nil when no countdown is running
	Total                int
}

// Engine runs one quiz over a fixed list of questions.
//
// Every transition holds the engine lock, so user input and the countdown
// can drive the same engine from different goroutines.
type Engine struct {
	mu        sync.Mutex
	questions []Question
	cfg       Config

	state    State
	current  int
	answers  map[int]string
	timeLeft *int
	score    *Score
}

// NewEngine creates an engine in the NotStarted state.
func NewEngine(questions []Question, cfg Config) (*Engine, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	qs := make([]Question, len(questions))
	copy(qs, questions)
	if cfg.Shuffle {
		rand.Shuffle(len(qs), func(i, j int) {
			qs[i], qs[j] = qs[j], qs[i]
		})
	}
	if cfg.MaxQuestions != nil && *cfg.MaxQuestions > 0 && *cfg.MaxQuestions < len(qs) {
		qs = qs[:*cfg.MaxQuestions]
	}
	if cfg.Grader == nil {
		cfg.Grader = RuleGrader{}
	}

	return &Engine{
		questions: qs,
		cfg:       cfg,
		state:     NotStarted,
		answers:   make(map[int]string),
	}, nil
}

// Questions returns the questions in session order.
func (e *Engine) Questions() []Question {
	out := make([]Question, len(e.questions))
	copy(out, e.questions)
	return out
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Snapshot returns a copy of the session state.
func (e *Engine) Snapshot() Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	answers := make(map[int]string, len(e.answers))
	for k, v := range e.answers {
		answers[k] = v
	}
	var timeLeft *int
	if e.timeLeft != nil {
		t := *e.timeLeft
		timeLeft = &t
	}

	return Session{
		State:                e.state,
		CurrentQuestionIndex: e.current,
		Answers:              answers,
		Started:              e.state == InProgress || e.state == Completed,
		Completed:            e.state == Completed,
		TimeLeft:             timeLeft,
		Total:                len(e.questions),
	}
}

// Current returns the question being shown and its index.
func (e *Engine) Current() (Question, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.questions[e.current], e.current
}

// Score returns the final score once the quiz is completed.
func (e *Engine) Score() (Score, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.score == nil {
		return Score{}, false
	}
	return *e.score, true
}

// Review returns the per-question breakdown of a completed quiz.
func (e *Engine) Review() ([]ReviewItem, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Completed {
		return nil, e.invalid("review")
	}
	return Review(e.questions, e.answers, e.cfg.Grader), nil
}

// Start begins the quiz at the first question with no answers.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != NotStarted {
		return e.invalid("start")
	}
	e.state = InProgress
	e.current = 0
	e.answers = make(map[int]string)
	e.score = nil
	e.resetCountdown()
	return nil
}

// SelectAnswer records the answer for the current question, replacing any
// earlier answer. It does not advance.
func (e *Engine) SelectAnswer(answer string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != InProgress {
		return e.invalid("select answer")
	}
	e.answers[e.current] = answer
	return nil
}

// Next moves to the following question, or finishes the quiz when the
// current question is the last one.
func (e *Engine) Next() error {
	e.mu.Lock()
	if e.state != InProgress {
		e.mu.Unlock()
		return e.invalid("next")
	}
	score, finished := e.advance()
	e.mu.Unlock()

	if finished {
		e.fireComplete(score)
	}
	return nil
}

// Previous moves back one question. Answers are kept.
func (e *Engine) Previous() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != InProgress || e.current == 0 {
		return e.invalid("previous")
	}
	e.current--
	e.resetCountdown()
	return nil
}

// Tick consumes one unit of the countdown. When it reaches zero the quiz
// moves on as if Next had been called. Without a running countdown Tick is
// a no-op while the quiz is in progress.
func (e *Engine) Tick() error {
	e.mu.Lock()
	if e.state != InProgress {
		e.mu.Unlock()
		return e.invalid("tick")
	}
	if e.timeLeft == nil {
		e.mu.Unlock()
		return nil
	}

	*e.timeLeft--
	if *e.timeLeft > 0 {
		e.mu.Unlock()
		return nil
	}

	expired := e.current
	score, finished := e.advance()
	e.mu.Unlock()

	if e.cfg.OnTimeout != nil {
		e.cfg.OnTimeout(expired)
	}
	if finished {
		e.fireComplete(score)
	}
	return nil
}

// Finish completes the quiz immediately and computes the score.
func (e *Engine) Finish() error {
	e.mu.Lock()
	if e.state != InProgress {
		e.mu.Unlock()
		return e.invalid("finish")
	}
	score := e.finish()
	e.mu.Unlock()

	e.fireComplete(score)
	return nil
}

// Cancel abandons the quiz without a score.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	if e.state != NotStarted && e.state != InProgress {
		e.mu.Unlock()
		return e.invalid("cancel")
	}
	e.state = Cancelled
	e.timeLeft = nil
	e.mu.Unlock()

	if e.cfg.OnCancel != nil {
		e.cfg.OnCancel()
	}
	return nil
}

// Retake returns a completed quiz to NotStarted, discarding answers and score.
func (e *Engine) Retake() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Completed {
		return e.invalid("retake")
	}
	e.state = NotStarted
	e.current = 0
	e.answers = make(map[int]string)
	e.score = nil
	e.timeLeft = nil
	return nil
}

// advance must be called with the lock held and the quiz in progress.
func (e *Engine) advance() (Score, bool) {
	if e.current >= len(e.questions)-1 {
		return e.finish(), true
	}
	e.current++
	e.resetCountdown()
	return Score{}, false
}

// finish must be called with the lock held and the quiz in progress.
func (e *Engine) finish() Score {
	score := Calculate(e.questions, e.answers, e.cfg.Grader)
	e.score = &score
	e.state = Completed
	e.timeLeft = nil
	return score
}

func (e *Engine) resetCountdown() {
	if !e.cfg.TimerEnabled {
		e.timeLeft = nil
		return
	}
	t := e.cfg.questionTime()
	e.timeLeft = &t
}

func (e *Engine) fireComplete(score Score) {
	if e.cfg.OnComplete != nil {
		e.cfg.OnComplete(score)
	}
}

func (e *Engine) invalid(op string) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, op, e.state)
}
