// Package remote deploys the scanner to a remote host and runs its test
// scripts there over a secure shell.
//
// Two transports are provided. CLITransport drives the system ssh and scp
// binaries non-interactively and is the default. NativeTransport speaks SSH
// in-process with golang.org/x/crypto/ssh and needs no client binaries.
package remote

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gandalfthegui/scout94/internal/proc"
	"github.com/gandalfthegui/scout94/internal/scripts"
)

// CheckTimeout bounds the connection attempt of CheckAccess.
const CheckTimeout = 5 * time.Second

// remoteDirName is created under Config.RemotePath to hold the scanner.
const remoteDirName = "scout94"

// Transport carries commands and files to a host.
//
// Exec and Copy return a Result whenever the remote side ran and reported an
// outcome, successful or not. The error return is reserved for failures of
// the transport itself: the client could not start, could not connect, or
// could not authenticate.
type Transport interface {
	Exec(ctx context.Context, cfg Config, command string, timeout time.Duration) (*proc.Result, error)
	Copy(ctx context.Context, cfg Config, localDir, remoteDir string) (*proc.Result, error)
}

// Executor implements the remote operations on top of a Transport.
type Executor struct {
	transport Transport
	scripts   scripts.Location
	log       *log.Logger
}

// NewExecutor returns an Executor deploying the scanner found at loc.
func NewExecutor(t Transport, loc scripts.Location, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.Default()
	}
	return &Executor{transport: t, scripts: loc, log: logger}
}

func remoteScannerDir(cfg Config) string {
	return path.Join(cfg.RemotePath, remoteDirName)
}

// Deploy creates <remote>/scout94 and copies the local scanner into it. The
// copy runs only after the directory step succeeds. A failing step yields an
// unsuccessful Result naming the step.
func (e *Executor) Deploy(ctx context.Context, cfg Config) (*proc.Result, error) {
	if err := cfg.validate(true); err != nil {
		return nil, err
	}
	dest := remoteScannerDir(cfg)
	e.log.Info("deploying scanner", "host", cfg.Host, "dest", dest)

	res, err := e.transport.Exec(ctx, cfg, "mkdir -p "+shellQuote(dest), 0)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return stepFailed("create remote directory", res), nil
	}

	res, err = e.transport.Copy(ctx, cfg, e.scripts.Dir, dest)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return stepFailed("copy scanner files", res), nil
	}

	return &proc.Result{
		Success: true,
		Output:  fmt.Sprintf("scanner deployed to %s:%s/", cfg.Host, dest),
	}, nil
}

// RunRemote runs the selected test script on the host with targetPath as the
// working directory.
func (e *Executor) RunRemote(ctx context.Context, cfg Config, selector, targetPath string) (*proc.Result, error) {
	if err := cfg.validate(true); err != nil {
		return nil, err
	}
	interpreter := e.scripts.Interpreter
	if interpreter == "" {
		interpreter = scripts.DefaultInterpreter
	}
	script := path.Join(remoteScannerDir(cfg), scripts.For(selector))
	command := fmt.Sprintf("cd %s && %s %s", shellQuote(targetPath), shellQuote(interpreter), shellQuote(script))

	e.log.Info("running remote test", "host", cfg.Host, "selector", selector, "target", targetPath)
	res, err := e.transport.Exec(ctx, cfg, command, 0)
	if err != nil {
		e.log.Warn("remote test transport failure", "host", cfg.Host, "err", err)
		return nil, err
	}
	return res, nil
}

// CheckAccess reports whether a non-interactive session to the host can be
// opened within CheckTimeout.
func (e *Executor) CheckAccess(ctx context.Context, cfg Config) bool {
	if err := cfg.validate(false); err != nil {
		return false
	}
	res, err := e.transport.Exec(ctx, cfg, "echo 'Connected'", CheckTimeout)
	if err != nil {
		e.log.Debug("remote access check failed", "host", cfg.Host, "err", err)
		return false
	}
	return res.Success
}

func stepFailed(step string, res *proc.Result) *proc.Result {
	detail := strings.TrimSpace(res.Error)
	if detail == "" {
		detail = fmt.Sprintf("exit status %d", res.ExitCode)
	}
	return &proc.Result{
		Success:  false,
		Output:   res.Output,
		Error:    fmt.Sprintf("%s: %s", step, detail),
		ExitCode: res.ExitCode,
	}
}
