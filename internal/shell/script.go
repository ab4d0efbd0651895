// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

const (
	// Sequence runs every fragment regardless of earlier failures.
	Sequence Join = "; "
	// AndThen stops at the first failing fragment.
	AndThen Join = " && "
)

// ErrInvalidScript is the sentinel wrapped by InvalidScriptError.
var ErrInvalidScript = errors.New("invalid shell script")

type (
	// Join is the separator placed between fragments.
	Join string

	// Script is an ordered list of shell fragments and the policy used to
	// join them into one bash command line.
	Script struct {
		join      Join
		fragments []string
	}

	// InvalidScriptError reports a composed command that bash would reject.
	InvalidScriptError struct {
		Script string
		Err    error
	}
)

// Error implements the error interface.
func (e *InvalidScriptError) Error() string {
	return fmt.Sprintf("invalid shell script %q: %v", e.Script, e.Err)
}

// Unwrap returns ErrInvalidScript for errors.Is.
func (e *InvalidScriptError) Unwrap() error { return ErrInvalidScript }

// NewScript creates a Script. Empty fragments are dropped.
func NewScript(join Join, fragments ...string) *Script {
	s := &Script{join: join}
	for _, f := range fragments {
		s.Add(f)
	}
	return s
}

// Add appends a fragment. Blank fragments are ignored.
func (s *Script) Add(fragment string) *Script {
	if f := strings.TrimSpace(fragment); f != "" {
		s.fragments = append(s.fragments, f)
	}
	return s
}

// Fragments returns a copy of the fragments in order.
func (s *Script) Fragments() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.fragments...)
}

// Empty reports whether the script has no fragments.
func (s *Script) Empty() bool {
	return s == nil || len(s.fragments) == 0
}

// String joins the fragments with the script's join policy.
func (s *Script) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(s.fragments, string(s.join))
}

// Quote quotes word for bash. Words that need no quoting are returned as is.
func Quote(word string) (string, error) {
	q, err := syntax.Quote(word, syntax.LangBash)
	if err != nil {
		return "", fmt.Errorf("quote %q: %w", word, err)
	}
	return q, nil
}

// Command renders a simple command, quoting every word.
func Command(words ...string) (string, error) {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		q, err := Quote(w)
		if err != nil {
			return "", err
		}
		quoted = append(quoted, q)
	}
	return strings.Join(quoted, " "), nil
}

// Validate parses cmd as bash and reports syntax errors.
func Validate(cmd string) error {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	if _, err := parser.Parse(strings.NewReader(cmd), ""); err != nil {
		return &InvalidScriptError{Script: cmd, Err: err}
	}
	return nil
}
