package cmd

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
	"github.com/felixgeelhaar/eventify/internal/ux"
)

// interactive reports whether r is a terminal, where huh prompts can run.
func interactive(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

var (
	promptersMu sync.Mutex
	prompters   = map[io.Reader]*ux.Prompter{}
)

// prompterFor keeps one buffered prompter per input so consecutive
// questions do not lose read-ahead lines.
func prompterFor(cmd *cobra.Command) *ux.Prompter {
	promptersMu.Lock()
	defer promptersMu.Unlock()
	in := cmd.InOrStdin()
	p, ok := prompters[in]
	if !ok {
		p = ux.NewPrompter(in, cmd.ErrOrStderr())
		prompters[in] = p
	}
	return p
}

func aborted(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return apperrors.New(apperrors.ErrCodeValidation, "cancelled")
	}
	return err
}

// promptString asks for a value; piped input is read line by line.
func promptString(cmd *cobra.Command, title, def string) (string, error) {
	if interactive(cmd.InOrStdin()) {
		v := def
		err := huh.NewInput().Title(title).Value(&v).Run()
		return strings.TrimSpace(v), aborted(err)
	}
	return prompterFor(cmd).PromptForString(title, def), nil
}

// promptSecret asks for a value without echoing it.
func promptSecret(cmd *cobra.Command, title string) (string, error) {
	if interactive(cmd.InOrStdin()) {
		var v string
		err := huh.NewInput().Title(title).EchoMode(huh.EchoModePassword).Value(&v).Run()
		return v, aborted(err)
	}
	return prompterFor(cmd).PromptForString(title, ""), nil
}

// confirm asks a yes/no question. yes skips it.
func confirm(cmd *cobra.Command, message string, yes bool) (bool, error) {
	if yes {
		return true, nil
	}
	if interactive(cmd.InOrStdin()) {
		var ok bool
		err := huh.NewConfirm().Title(message).Affirmative("Yes").Negative("No").Value(&ok).Run()
		return ok, aborted(err)
	}
	return prompterFor(cmd).Confirm(message, false), nil
}
