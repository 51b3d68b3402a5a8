package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// prompter asks for workflow parameters on an interactive terminal. When
// stdin is not a terminal every question resolves to its default.
type prompter struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

func newPrompter(in *os.File, out io.Writer) *prompter {
	return &prompter{
		in:          bufio.NewReader(in),
		out:         out,
		interactive: term.IsTerminal(int(in.Fd())),
	}
}

// Text returns the trimmed answer, or def when the answer is empty
func (p *prompter) Text(question, def string) (string, error) {
	if !p.interactive {
		return def, nil
	}

	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", question, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", question)
	}

	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	answer := strings.TrimSpace(line)
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// Int is Text restricted to whole numbers
func (p *prompter) Int(question string, def int) (int, error) {
	var defText string
	if def != 0 {
		defText = strconv.Itoa(def)
	}
	answer, err := p.Text(question, defText)
	if err != nil {
		return 0, err
	}
	if answer == "" {
		return def, nil
	}
	n, err := strconv.Atoi(answer)
	if err != nil {
		return 0, fmt.Errorf("%q is not a whole number", answer)
	}
	return n, nil
}
