// Package errext gives planner errors two optional, composable behaviors:
// a human hint for the CLI to print, and an exit code for the CLI to
// return. It is deliberately small and works with plain %w wrapping, so
// any stdlib or third-party error can be annotated without changing its
// type.
package errext

import (
	"errors"
	"fmt"

	"github.com/Leealpha1/TinyG/internal/errext/exitcodes"
)

// HasHint is implemented by errors carrying a remediation hint.
type HasHint interface {
	error
	Hint() string
}

// HasExitCode is implemented by errors carrying a process exit code.
type HasExitCode interface {
	error
	ExitCode() exitcodes.ExitCode
}

type hintError struct {
	error
	hint string
}

func (e hintError) Hint() string { return e.hint }

func (e hintError) Unwrap() error { return e.error }

// WithHint wraps err with a hint. If err already has a hint, the new hint
// is prepended and the old one kept in parentheses, so repeated wrapping
// reads like "best hint (better hint (test hint))".
func WithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	var existing HasHint
	if errors.As(err, &existing) {
		hint = fmt.Sprintf("%s (%s)", hint, existing.Hint())
	}
	return hintError{error: err, hint: hint}
}

type exitCodeError struct {
	error
	exitCode exitcodes.ExitCode
}

func (e exitCodeError) ExitCode() exitcodes.ExitCode { return e.exitCode }

func (e exitCodeError) Unwrap() error { return e.error }

// WithExitCodeIfNone wraps err with code, unless err already carries an
// exit code, in which case the existing code is kept unchanged.
func WithExitCodeIfNone(err error, code exitcodes.ExitCode) error {
	if err == nil {
		return nil
	}
	var existing HasExitCode
	if errors.As(err, &existing) {
		return err
	}
	return exitCodeError{error: err, exitCode: code}
}
