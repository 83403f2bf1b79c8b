package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errNoInput = errors.New("no input available")

// prompter reads answers line by line from the terminal. It also serves as
// the delete confirmation.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (app *application) prompter() *prompter {
	if app.prompt == nil {
		app.prompt = &prompter{in: bufio.NewReader(app.stdin), out: app.stdout}
	}
	return app.prompt
}

func (p *prompter) Ask(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	return p.readLine()
}

// Confirm accepts only an explicit yes. Anything else, including end of
// input, is a refusal.
func (p *prompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	fmt.Fprintf(p.out, "%s [y/N]: ", prompt)

	answer, err := p.readLine()
	if err != nil {
		if errors.Is(err, errNoInput) {
			return false, nil
		}
		return false, err
	}

	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (p *prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if errors.Is(err, io.EOF) && line == "" {
		return "", errNoInput
	}

	return strings.TrimSpace(line), nil
}
