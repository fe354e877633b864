package proc

import (
	"context"
	"fmt"
)

type psLister struct {
	runner Runner
}

// NewLister returns the platform process lister. On macOS it parses ps.
func NewLister() Lister {
	return psLister{runner: ExecRunner{}}
}

func (l psLister) Processes() ([]Process, error) {
	procs, err := l.ps("-axwwo", "pid=,command=")
	if err != nil {
		return nil, err
	}
	// -E appends each process's environment, readable for our own user only.
	withEnv, err := l.ps("-axwwEo", "pid=,command=")
	if err != nil {
		return nil, err
	}
	attachEnv(procs, withEnv)
	return procs, nil
}

func (l psLister) ps(args ...string) ([]Process, error) {
	res, err := l.runner.Run(context.Background(), "ps", args, "")
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, fmt.Errorf("ps exited %d: %s", res.ExitCode, res.Error)
	}
	return parsePS(res.Output), nil
}
