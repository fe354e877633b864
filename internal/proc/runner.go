// Package proc runs external programs and answers questions about OS
// processes: is a PID alive, which processes exist, and how to signal them.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/gandalfthegui/scout94/internal/errs"
)

// Result is the outcome of one external invocation. It is the single shape
// used for local test runs, generic commands and remote test runs.
type Result struct {
	Success  bool   `json:"success"`
	Output   string `json:"output"`
	Error    string `json:"error,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// Runner starts a program, waits for it and captures its output.
//
// A program that ran and exited non-zero is not an error: it yields a Result
// with Success false. The error return is reserved for failures to start.
type Runner interface {
	Run(ctx context.Context, program string, args []string, dir string) (*Result, error)
}

// SpawnError reports a program that could not be started at all.
type SpawnError struct {
	Program string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Program, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

func (e *SpawnError) ErrorKind() errs.Kind { return errs.Spawn }

// ExecRunner is the os/exec Runner.
type ExecRunner struct {
	// Env, when non-nil, replaces the inherited environment.
	Env []string
}

func (r ExecRunner) Run(ctx context.Context, program string, args []string, dir string) (*Result, error) {
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Dir = dir
	if r.Env != nil {
		cmd.Env = r.Env
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{
		Output: decode(stdout.Bytes()),
		Error:  decode(stderr.Bytes()),
	}
	if err == nil {
		res.Success = true
		return res, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return nil, &SpawnError{Program: program, Err: err}
}

// decode converts captured bytes to text, replacing invalid UTF-8.
func decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}
