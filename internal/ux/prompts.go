package ux

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Prompter asks line based questions. It backs the non-interactive
// fallbacks of commands when no TTY form can be shown.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter reads answers from in and writes questions to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// StdPrompter prompts on the process stdin and stderr.
func StdPrompter() *Prompter {
	return NewPrompter(os.Stdin, os.Stderr)
}

// Confirm prompts the user for yes/no confirmation
func (p *Prompter) Confirm(message string, defaultYes bool) bool {
	prompt := message
	if defaultYes {
		prompt += " (Y/n): "
	} else {
		prompt += " (y/N): "
	}

	fmt.Fprint(p.out, prompt)
	response, err := p.in.ReadString('\n')
	if err != nil && response == "" {
		return defaultYes
	}

	response = strings.TrimSpace(strings.ToLower(response))

	if response == "" {
		return defaultYes
	}

	return response == "y" || response == "yes"
}

// PromptForString prompts the user for a string value
func (p *Prompter) PromptForString(message string, defaultValue string) string {
	if defaultValue != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", message, defaultValue)
	} else {
		fmt.Fprintf(p.out, "%s: ", message)
	}

	response, err := p.in.ReadString('\n')
	if err != nil && response == "" {
		return defaultValue
	}

	response = strings.TrimSpace(response)
	if response == "" {
		return defaultValue
	}

	return response
}
