package proc

import (
	"strings"

	"github.com/prometheus/procfs"
)

type procfsLister struct {
	mount string
}

// NewLister returns the platform process lister. On Linux it reads /proc.
func NewLister() Lister {
	return procfsLister{mount: procfs.DefaultMountPoint}
}

func (l procfsLister) Processes() ([]Process, error) {
	fs, err := procfs.NewFS(l.mount)
	if err != nil {
		return nil, err
	}
	all, err := fs.AllProcs()
	if err != nil {
		return nil, err
	}
	procs := make([]Process, 0, len(all))
	for _, p := range all {
		args, err := p.CmdLine()
		if err != nil || len(args) == 0 {
			// Exited since the directory scan, or a kernel thread.
			continue
		}
		// Environ fails for processes we may not inspect; those stay
		// without an environment.
		env, _ := p.Environ()
		procs = append(procs, Process{PID: p.PID, Cmdline: strings.Join(args, " "), Env: env})
	}
	return procs, nil
}
