package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/optima-study/optima/internal/domain/quiz"
)

const quizHelp = `Type an option letter, its number or its text, then Enter.
Short answer questions take free text. Other commands:
  Enter   skip to the next question
  :p      previous question
  :f      finish now and see your score
  :q      quit without a score
  :h      this help`

var errInputClosed = errors.New("input closed before the quiz finished")

func newQuizCommand(app *App) *cobra.Command {
	var (
		limit        int
		shuffle      bool
		noTimer      bool
		questionTime int
	)

	cmd := &cobra.Command{
		Use:   "quiz ID",
		Short: "Take the generated quiz for a material",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			rec, offline, err := app.Library.View(cmd.Context(), id)
			if err != nil {
				return err
			}
			questions, ok := rec.GeneratedData.Questions()
			if !ok || len(questions) == 0 {
				return fmt.Errorf("no quiz for this material yet, run `optima generate %d --quiz`", id)
			}
			if offline {
				fmt.Fprintln(app.Out, "(offline, using cached quiz)")
			}

			run := &quizRun{
				app:        app,
				materialID: id,
				title:      rec.Material.Title,
				timeouts:   make(chan int, 1),
				completed:  make(chan quiz.Score, 1),
			}
			cfg := quiz.Config{
				TimerEnabled: app.Config.QuizTimer && !noTimer,
				QuestionTime: questionTime,
				Shuffle:      shuffle,
				OnComplete:   run.onComplete,
				OnTimeout:    run.onTimeout,
			}
			if limit > 0 {
				cfg.MaxQuestions = &limit
			}

			engine, err := quiz.NewEngine(questions, cfg)
			if err != nil {
				return err
			}
			run.engine = engine
			run.timed = cfg.TimerEnabled
			return run.loop(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&limit, "limit", "n", 0, "ask at most this many questions")
	flags.BoolVar(&shuffle, "shuffle", false, "randomize question order")
	flags.BoolVar(&noTimer, "no-timer", false, "disable the per-question countdown")
	flags.IntVar(&questionTime, "question-time", quiz.DefaultQuestionTime, "seconds per question")
	return cmd
}

// quizRun drives one engine from terminal input. The countdown goroutine
// reports through the buffered channels; everything else happens on the
// loop goroutine.
type quizRun struct {
	app        *App
	engine     *quiz.Engine
	materialID int64
	title      string
	timed      bool

	timeouts  chan int
	completed chan quiz.Score
}

func (r *quizRun) onComplete(s quiz.Score) {
	select {
	case r.completed <- s:
	default:
	}
}

func (r *quizRun) onTimeout(expired int) {
	select {
	case r.timeouts <- expired:
	default:
	}
}

func (r *quizRun) loop(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	input := r.app.lines(done)

	fmt.Fprintf(r.app.Out, "%s: %d questions. Type :h for help.\n", r.title, len(r.engine.Questions()))

	for {
		if err := r.engine.Start(); err != nil {
			return err
		}

		score, err := r.play(ctx, input)
		if err != nil || score == nil {
			return err
		}
		if err := r.results(ctx, *score); err != nil {
			return err
		}

		fmt.Fprint(r.app.Out, "Retake the quiz? [y/N] ")
		line, ok := <-input
		if !ok || !isYes(line) {
			return nil
		}
		if err := r.engine.Retake(); err != nil {
			return err
		}
	}
}

// play runs until the quiz completes. A nil score means the user quit.
func (r *quizRun) play(ctx context.Context, input <-chan string) (*quiz.Score, error) {
	select {
	case <-r.timeouts:
	default:
	}
	if r.timed {
		countdown := r.engine.RunCountdown(ctx, time.Second)
		defer countdown.Stop()
	}

	r.render()
	for {
		select {
		case <-ctx.Done():
			r.engine.Cancel()
			return nil, ctx.Err()

		case score := <-r.completed:
			return &score, nil

		case expired := <-r.timeouts:
			fmt.Fprintf(r.app.Out, "\nTime's up on question %d.\n", expired+1)
			if r.engine.State() == quiz.InProgress {
				r.render()
			}

		case line, ok := <-input:
			if !ok {
				r.engine.Cancel()
				return nil, errInputClosed
			}
			quit, err := r.handle(line)
			if err != nil {
				return nil, err
			}
			if quit {
				fmt.Fprintln(r.app.Out, "Quiz cancelled")
				return nil, nil
			}
			if r.engine.State() == quiz.Completed {
				score := <-r.completed
				return &score, nil
			}
		}
	}
}

// handle applies one line of input and reports whether the user quit.
func (r *quizRun) handle(line string) (bool, error) {
	cmd := strings.TrimSpace(line)
	if r.engine.State() != quiz.InProgress {
		return false, nil
	}

	switch strings.ToLower(cmd) {
	case ":q", ":quit":
		return true, r.ignoreTransition(r.engine.Cancel())
	case ":f", ":finish":
		return false, r.ignoreTransition(r.engine.Finish())
	case ":h", ":help", "?":
		fmt.Fprintln(r.app.Out, quizHelp)
		r.render()
		return false, nil
	case ":p", ":prev":
		if err := r.engine.Previous(); err != nil {
			fmt.Fprintln(r.app.Out, "Already at the first question.")
			return false, r.ignoreTransition(err)
		}
		r.render()
		return false, nil
	case "", ":n", ":next":
		return false, r.advance()
	}

	q, _ := r.engine.Current()
	answer, ok := q.ResolveChoice(line)
	if !ok {
		fmt.Fprintf(r.app.Out, "Pick %s, or :h for help.\n", choiceRange(len(q.Choices())))
		return false, nil
	}
	if err := r.ignoreTransition(r.engine.SelectAnswer(answer)); err != nil {
		return false, err
	}
	return false, r.advance()
}

func (r *quizRun) advance() error {
	if err := r.ignoreTransition(r.engine.Next()); err != nil {
		return err
	}
	if r.engine.State() == quiz.InProgress {
		r.render()
	}
	return nil
}

// ignoreTransition drops invalid-transition errors, which only mean the
// countdown moved the quiz on between reading input and applying it.
func (r *quizRun) ignoreTransition(err error) error {
	if errors.Is(err, quiz.ErrInvalidTransition) {
		r.app.Logger.Debug("quiz input ignored", "error", err)
		return nil
	}
	return err
}

func (r *quizRun) render() {
	q, idx := r.engine.Current()
	snap := r.engine.Snapshot()
	out := r.app.Out

	header := fmt.Sprintf("\nQuestion %d of %d", idx+1, snap.Total)
	if snap.TimeLeft != nil {
		header += fmt.Sprintf("  (%ds)", *snap.TimeLeft)
	}
	fmt.Fprintln(out, header)
	fmt.Fprintln(out, q.Question)

	choices := q.Choices()
	for i, c := range choices {
		fmt.Fprintf(out, "  %s) %s\n", quiz.OptionLetter(i), c)
	}
	if choices == nil {
		fmt.Fprintln(out, "  (short answer)")
	}
	if a, ok := snap.Answers[idx]; ok {
		fmt.Fprintf(out, "Current answer: %s\n", a)
	}
	fmt.Fprint(out, "> ")
}

func (r *quizRun) results(ctx context.Context, score quiz.Score) error {
	out := r.app.Out
	fmt.Fprintf(out, "\nScore: %d/%d (%d%%) %s\n\n", score.Correct, score.Total, score.Percentage, score.Message())

	items, err := r.engine.Review()
	if err != nil {
		return err
	}
	for _, it := range items {
		mark := "✗"
		if it.Correct {
			mark = "✓"
		}
		fmt.Fprintf(out, "%s %d. %s\n", mark, it.Index+1, it.Question.Question)
		answer := it.Answer
		if !it.Answered {
			answer = "(no answer)"
		}
		fmt.Fprintf(out, "    your answer: %s\n", answer)
		if !it.Correct && it.CorrectAnswer != "" {
			fmt.Fprintf(out, "    correct answer: %s\n", it.CorrectAnswer)
		}
		if it.SampleAnswer != "" {
			fmt.Fprintf(out, "    sample answer: %s\n", it.SampleAnswer)
		}
		if it.Explanation != "" {
			fmt.Fprintf(out, "    %s\n", it.Explanation)
		}
	}

	snap := r.engine.Snapshot()
	attempt := quiz.NewAttempt(r.materialID, r.title, score, snap.Answers, time.Now())
	if err := r.app.Library.RecordAttempt(ctx, attempt); err != nil {
		r.app.Logger.Error("failed to record quiz attempt", "material_id", r.materialID, "error", err)
	}
	fmt.Fprintln(out)
	return nil
}

func choiceRange(n int) string {
	if n == 0 {
		return "an answer"
	}
	return fmt.Sprintf("A-%s", quiz.OptionLetter(n-1))
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	}
	return false
}
