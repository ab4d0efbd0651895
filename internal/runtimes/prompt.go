// SPDX-License-Identifier: MPL-2.0

package runtimes

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrNoSelection is returned when the user aborts a prompt.
var ErrNoSelection = errors.New("no selection made")

type (
	// Prompter asks the user for missing input.
	Prompter interface {
		// SelectRuntime asks for one of options.
		SelectRuntime(label string, options []string) (string, error)
		// Packages asks for a space separated package list.
		Packages(label string) ([]string, error)
	}

	// Terminal is the promptui Prompter.
	Terminal struct {
		Stdin  io.ReadCloser
		Stdout io.WriteCloser
	}
)

// SelectRuntime shows a select list.
func (t *Terminal) SelectRuntime(label string, options []string) (string, error) {
	sel := promptui.Select{
		Label:  label,
		Items:  options,
		Size:   len(options),
		Stdin:  t.Stdin,
		Stdout: t.Stdout,
	}
	_, choice, err := sel.Run()
	if err != nil {
		return "", promptError(err)
	}
	return choice, nil
}

// Packages reads a line and splits it on whitespace.
func (t *Terminal) Packages(label string) ([]string, error) {
	p := promptui.Prompt{
		Label:  label,
		Stdin:  t.Stdin,
		Stdout: t.Stdout,
	}
	line, err := p.Run()
	if err != nil {
		return nil, promptError(err)
	}
	return strings.Fields(line), nil
}

func promptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrAbort) {
		return fmt.Errorf("%w: %v", ErrNoSelection, err)
	}
	return fmt.Errorf("prompt failed: %w", err)
}
