// Package proctest provides test doubles for the proc interfaces.
package proctest

import (
	"context"
	"strings"
	"sync"

	"github.com/gandalfthegui/scout94/internal/proc"
)

// Call records one Runner invocation.
type Call struct {
	Program string
	Args    []string
	Dir     string
}

// Line renders the call as a single command line for assertions.
func (c Call) Line() string {
	return strings.Join(append([]string{c.Program}, c.Args...), " ")
}

// Runner records every call and answers through RunFunc. With no RunFunc
// every call succeeds with empty output.
type Runner struct {
	RunFunc func(call Call) (*proc.Result, error)

	mu    sync.Mutex
	calls []Call
}

func (r *Runner) Run(_ context.Context, program string, args []string, dir string) (*proc.Result, error) {
	call := Call{Program: program, Args: append([]string(nil), args...), Dir: dir}
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
	if r.RunFunc != nil {
		return r.RunFunc(call)
	}
	return &proc.Result{Success: true}, nil
}

// Calls returns a copy of the recorded calls in order.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Prober answers liveness from a fixed set.
type Prober map[int]bool

func (p Prober) Alive(pid int) bool { return p[pid] }

// Lister returns a canned listing.
type Lister struct {
	Procs []proc.Process
	Err   error
}

func (l Lister) Processes() ([]proc.Process, error) { return l.Procs, l.Err }
