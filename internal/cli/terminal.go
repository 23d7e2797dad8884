package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// ReadLine prints prompt and reads one line of input, without its line
// ending. io.EOF is returned only when nothing was typed.
func (a *App) ReadLine(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(a.Out, prompt)
	}
	line, err := a.reader().ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *App) reader() *bufio.Reader {
	if a.input == nil {
		a.input = bufio.NewReader(a.In)
	}
	return a.input
}

// lines streams input lines until EOF or done is closed. The returned
// channel is closed at EOF.
func (a *App) lines(done <-chan struct{}) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for {
			line, err := a.ReadLine("")
			if err != nil {
				return
			}
			select {
			case out <- line:
			case <-done:
				return
			}
		}
	}()
	return out
}

// confirm asks a yes/no question. Anything but y/yes is a no.
func (a *App) confirm(question string) (bool, error) {
	answer, err := a.ReadLine(question + " [y/N] ")
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return isYes(answer), nil
}

func (a *App) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func check(ok bool) string {
	if ok {
		return "yes"
	}
	return "-"
}
