package main

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// exitError carries a specific process exit code alongside the failure.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCode returns the process exit code for err. Errors without an explicit
// code exit 1.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var coded *exitError
	if errors.As(err, &coded) {
		return coded.code
	}
	return 1
}

// reportError prints err unless the run was cancelled or the command already
// reported it, and returns the exit code.
func reportError(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	var coded *exitError
	silent := errors.As(err, &coded) && coded.err == nil
	if !silent && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(w, err)
	}
	return exitCode(err)
}
