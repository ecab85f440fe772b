package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"
)

var errPromptAborted = errors.New("aborted")

// prompter asks the operator a single question.
type prompter interface {
	Prompt(question string) (string, error)
}

// newPrompter uses line editing when stdin is a terminal and a plain line
// reader otherwise (pipes, tests).
func newPrompter(in io.Reader, out io.Writer) prompter {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return linerPrompter{}
	}

	if in == nil {
		in = strings.NewReader("")
	}

	return &linePrompter{r: bufio.NewReader(in), out: out}
}

type linerPrompter struct{}

func (linerPrompter) Prompt(question string) (string, error) {
	state := liner.NewLiner()
	defer state.Close()

	state.SetCtrlCAborts(true)

	answer, err := state.Prompt(question)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return "", errPromptAborted
		}

		return "", fmt.Errorf("prompt: %w", err)
	}

	return strings.TrimSpace(answer), nil
}

type linePrompter struct {
	r   *bufio.Reader
	out io.Writer
}

func (p *linePrompter) Prompt(question string) (string, error) {
	_, _ = fmt.Fprint(p.out, question)

	line, err := p.r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("prompt: %w", err)
	}

	if errors.Is(err, io.EOF) && line == "" {
		return "", errPromptAborted
	}

	return strings.TrimSpace(line), nil
}
