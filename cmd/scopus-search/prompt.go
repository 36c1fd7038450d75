package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dadope/scopus-search/internal/author"
	"github.com/dadope/scopus-search/internal/reference"
)

const otherChoice = "Other, input name..."

// promptPicker asks the user to choose a display name for an author whose
// names could not be read from Scopus.
type promptPicker struct {
	in  *bufio.Reader
	out io.Writer
}

func newPromptPicker(in io.Reader, out io.Writer) *promptPicker {
	return &promptPicker{in: bufio.NewReader(in), out: out}
}

// PickName lists the guesses followed by a free-form option and reads a
// choice. End of input returns an empty name.
func (p *promptPicker) PickName(ctx context.Context, a reference.Author, guesses []author.NameGuess) (string, error) {
	fmt.Fprintf(p.out, "\nScopus has no name for author %d. Choose one:\n", a.ScopusID)
	for i, g := range guesses {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, g)
	}
	other := len(guesses) + 1
	fmt.Fprintf(p.out, "  %d) %s\n", other, otherChoice)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		line, err := p.readLine("Choice: ")
		if err != nil {
			return "", endOfInput(err)
		}
		if line == "" {
			continue
		}

		n, convErr := strconv.Atoi(line)
		switch {
		case convErr != nil || n < 1 || n > other:
			fmt.Fprintf(p.out, "Enter a number between 1 and %d.\n", other)
		case n == other:
			name, err := p.readLine("Name (given name and surname): ")
			if err != nil {
				return "", endOfInput(err)
			}
			return name, nil
		default:
			return guesses[n-1].Name, nil
		}
	}
}

// readLine prints prompt and returns the next trimmed line. A final line
// without a newline is returned before io.EOF.
func (p *promptPicker) readLine(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// endOfInput treats a closed stdin as "no choice".
func endOfInput(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("reading choice: %w", err)
}
