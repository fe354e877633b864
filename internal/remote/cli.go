package remote

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gandalfthegui/scout94/internal/errs"
	"github.com/gandalfthegui/scout94/internal/proc"
)

// sshClientFailure is the exit status ssh reserves for its own errors.
const sshClientFailure = 255

// CLITransport runs the system ssh and scp clients through a Runner.
type CLITransport struct {
	Runner proc.Runner

	// KnownHosts overrides the client's known_hosts file when set.
	KnownHosts string
	// InsecureHostKey disables host key checking.
	InsecureHostKey bool
}

func (t *CLITransport) runner() proc.Runner {
	if t.Runner == nil {
		return proc.ExecRunner{}
	}
	return t.Runner
}

func (t *CLITransport) commonOpts(cfg Config) []string {
	opts := []string{"-o", "BatchMode=yes"}
	switch {
	case t.InsecureHostKey:
		opts = append(opts, "-o", "StrictHostKeyChecking=no", "-o", "UserKnownHostsFile=/dev/null")
	case t.KnownHosts != "":
		opts = append(opts, "-o", "UserKnownHostsFile="+t.KnownHosts)
	}
	if cfg.KeyPath != "" {
		opts = append(opts, "-i", cfg.KeyPath)
	}
	return opts
}

func (t *CLITransport) Exec(ctx context.Context, cfg Config, command string, timeout time.Duration) (*proc.Result, error) {
	args := []string{"-p", strconv.Itoa(cfg.port())}
	args = append(args, t.commonOpts(cfg)...)
	if timeout > 0 {
		args = append(args, "-o", fmt.Sprintf("ConnectTimeout=%d", int(timeout.Seconds())))
	}
	args = append(args, cfg.target(), command)

	res, err := t.runner().Run(ctx, "ssh", args, "")
	if err != nil {
		return nil, err
	}
	if res.ExitCode == sshClientFailure {
		return nil, errs.Errorf(errs.Transport, "ssh %s: %s", cfg.target(), strings.TrimSpace(res.Error))
	}
	return res, nil
}

func (t *CLITransport) Copy(ctx context.Context, cfg Config, localDir, remoteDir string) (*proc.Result, error) {
	sources, err := topLevelEntries(localDir)
	if err != nil {
		return nil, err
	}
	args := []string{"-P", strconv.Itoa(cfg.port())}
	args = append(args, t.commonOpts(cfg)...)
	args = append(args, "-r")
	args = append(args, sources...)
	args = append(args, cfg.target()+":"+remoteDir+"/")

	return t.runner().Run(ctx, "scp", args, "")
}

// topLevelEntries lists what a shell would expand dir/* to.
func topLevelEntries(dir string) ([]string, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.FromFS(err, "read scanner directory")
	}
	var out []string
	for _, de := range des {
		if strings.HasPrefix(de.Name(), ".") {
			continue
		}
		out = append(out, filepath.Join(dir, de.Name()))
	}
	if len(out) == 0 {
		return nil, errs.Errorf(errs.NotFound, "no scanner files in %s", dir)
	}
	return out, nil
}
