package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"mocktest-client/internal/app"
	"mocktest-client/internal/countdown"
	"mocktest-client/internal/domain"
)

// errQuit means the user left before submitting; progress is saved.
var errQuit = errors.New("test paused, resume it later with: mocktest resume")

const runnerHelp = `Commands:
  A-D         answer the current question
  n / p       next / previous question
  g <number>  go to question number
  s <subject> jump to a subject
  t           show time and progress
  submit      hand the test in
  q           save and quit`

// runner drives one session from a line-oriented terminal.
type runner struct {
	store *app.SessionStore
	in    io.Reader
	out   io.Writer

	confirmSubmit bool
}

func (r *runner) run(ctx context.Context) (domain.Results, error) {
	if _, err := r.store.StartTimer(); err != nil {
		return domain.Results{}, err
	}

	updates, cancel := r.store.Subscribe()
	defer cancel()
	defer r.store.Flush(context.Background())

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	view := r.store.State()
	fmt.Fprintln(r.out, runnerHelp)
	r.printQuestion(view)
	warned := view.Warning

	for {
		select {
		case <-ctx.Done():
			return domain.Results{}, ctx.Err()

		case v, ok := <-updates:
			if !ok {
				return domain.Results{}, errQuit
			}
			if v.Warning != warned && v.Warning != countdown.BandNone {
				warned = v.Warning
				fmt.Fprintf(r.out, "\n*** %s ***\n", v.Warning.Message())
			}
			if v.Status == domain.StatusCompleted && v.Results != nil {
				r.printResults(*v.Results)
				return *v.Results, nil
			}

		case line, ok := <-lines:
			if !ok {
				return domain.Results{}, errQuit
			}
			res, done, err := r.handle(ctx, line)
			if err != nil {
				if errors.Is(err, errQuit) {
					return domain.Results{}, err
				}
				fmt.Fprintf(r.out, "! %v\n", err)
				continue
			}
			if done {
				r.printResults(res)
				return res, nil
			}
		}
	}
}

// handle applies one command line and reports whether the test is finished.
func (r *runner) handle(ctx context.Context, line string) (domain.Results, bool, error) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	confirm := r.confirmSubmit
	r.confirmSubmit = false

	switch strings.ToLower(cmd) {
	case "":
		return domain.Results{}, false, nil
	case "n", "next":
		return domain.Results{}, false, r.move(r.store.Next())
	case "p", "prev", "previous":
		return domain.Results{}, false, r.move(r.store.Previous())
	case "g", "go":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return domain.Results{}, false, fmt.Errorf("usage: g <number>")
		}
		return domain.Results{}, false, r.move(r.store.Navigate(n - 1))
	case "s", "subject":
		return domain.Results{}, false, r.move(r.store.NavigateToSubject(arg))
	case "t", "time":
		r.printStatus(r.store.State())
		return domain.Results{}, false, nil
	case "h", "help", "?":
		fmt.Fprintln(r.out, runnerHelp)
		return domain.Results{}, false, nil
	case "q", "quit":
		return domain.Results{}, false, errQuit
	case "submit":
		v := r.store.State()
		if !v.CanSubmit && !confirm {
			r.confirmSubmit = true
			fmt.Fprintf(r.out, "%d of %d questions unanswered. Type submit again to hand in anyway.\n",
				v.Progress.Total-v.Progress.Answered, v.Progress.Total)
			return domain.Results{}, false, nil
		}
		res, err := r.store.Submit(ctx)
		if errors.Is(err, domain.ErrAlreadySubmitted) {
			err = nil
		}
		if err != nil {
			return domain.Results{}, false, fmt.Errorf("%w (type submit to retry)", err)
		}
		return res, true, nil
	}

	v := r.store.State()
	if v.CurrentQuestion == nil {
		return domain.Results{}, false, domain.ErrNoSession
	}
	key := strings.ToUpper(cmd)
	if err := r.store.RecordAnswer(v.CurrentQuestion.ID, key); err != nil {
		return domain.Results{}, false, err
	}
	fmt.Fprintf(r.out, "Answered %s.\n", key)
	return domain.Results{}, false, nil
}

func (r *runner) move(err error) error {
	if err != nil {
		return err
	}
	r.printQuestion(r.store.State())
	return nil
}

func (r *runner) printQuestion(v app.View) {
	q := v.CurrentQuestion
	if q == nil {
		return
	}
	fmt.Fprintf(r.out, "\n[%s] Question %d/%d  %s left  (%d answered)\n",
		q.Subject, v.CurrentIndex+1, len(v.Questions), countdown.FormatClock(v.RemainingSeconds), v.Progress.Answered)
	fmt.Fprintln(r.out, q.Text)
	keys := make([]string, 0, len(q.Options))
	for k := range q.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		mark := " "
		if v.Answers[q.ID] == k {
			mark = "*"
		}
		fmt.Fprintf(r.out, " %s %s) %s\n", mark, k, q.Options[k])
	}
}

func (r *runner) printStatus(v app.View) {
	fmt.Fprintf(r.out, "%s left, %d/%d answered (%d%%), autosave %s\n",
		countdown.FormatClock(v.RemainingSeconds), v.Progress.Answered, v.Progress.Total, v.Progress.Percentage, v.SaveStatus)
}

func (r *runner) printResults(res domain.Results) {
	printResults(r.out, res)
}

func printResults(out io.Writer, res domain.Results) {
	fmt.Fprintf(out, "\nTest %s\n", res.TestID)
	fmt.Fprintf(out, "Score: %d/%d correct (%.2f%%)", res.CorrectAnswers, res.TotalQuestions, res.Percentage)
	if res.PerformanceLevel != "" {
		fmt.Fprintf(out, ", %s", res.PerformanceLevel)
	}
	fmt.Fprintf(out, "\nTime taken: %s\n", countdown.FormatClock(res.TimeTaken))
	printBreakdown(out, "Subjects", res.SubjectBreakdown)
	printBreakdown(out, "Topics", res.TopicBreakdown)
}

func printBreakdown(out io.Writer, title string, m map[string]float64) {
	if len(m) == 0 {
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(out, "%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(out, "  %-20s %6.2f%%\n", k, m[k])
	}
}
