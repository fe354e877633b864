// Package supervisor owns the companion websocket service: it starts it in
// its own session, captures its output, and guarantees on Stop that the
// service and everything it spawned are gone.
//
//	 ┌───────────────────────────────┐
//	 │  Supervisor                   │
//	 │   Handle ── *service          │
//	 │              │ cmd (setsid)   │◄── PTY slave / pipe
//	 │              ▼                │
//	 │         output master         │
//	 │              │                │
//	 │       drain goroutine         │
//	 │        ├── rolling buffer     │
//	 │        └── service.log        │
//	 │       wait goroutine          │
//	 │        └── close(done)        │
//	 └───────────────────────────────┘
package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/gandalfthegui/scout94/internal/proc"
)

const (
	DefaultDir   = "../../websocket-server"
	DefaultURL   = "ws://localhost:8094"
	DefaultGrace = time.Second
)

// OwnerEnv is set in the service's environment. Every process the service
// spawns inherits it, which is how the orphan sweep tells our strays from
// unrelated processes with a similar command line.
const OwnerEnv = "SCOUT94_SERVICE=1"

// DefaultCommand starts the service.
var DefaultCommand = []string{"npm", "start"}

// Config describes the service to supervise.
type Config struct {
	// Dir is resolved against the working directory given to Start unless
	// absolute.
	Dir     string
	Command []string
	URL     string
	// Grace is how long Stop waits after SIGTERM before SIGKILL.
	Grace time.Duration
	// LogFile, when set, receives a copy of the service output.
	LogFile string
}

func (c Config) withDefaults() Config {
	if c.Dir == "" {
		c.Dir = DefaultDir
	}
	if len(c.Command) == 0 {
		c.Command = DefaultCommand
	}
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.Grace <= 0 {
		c.Grace = DefaultGrace
	}
	return c
}

// service is one spawned child. exit and ended are written before done is
// closed and read only after.
type service struct {
	cmd     *exec.Cmd
	pid     int
	dir     string
	started time.Time
	viaPTY  bool
	done    chan struct{}

	exit  string
	ended time.Time
}

func (svc *service) exited() bool {
	select {
	case <-svc.done:
		return true
	default:
		return false
	}
}

// Handle is the ownership cell for the running service. It is filled at most
// once and, once emptied, never refilled.
type Handle struct {
	mu   sync.Mutex
	svc  *service
	used bool
	last *service
}

func (h *Handle) set(svc *service) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.used {
		return false
	}
	h.svc, h.used = svc, true
	return true
}

func (h *Handle) take() *service {
	h.mu.Lock()
	defer h.mu.Unlock()
	svc := h.svc
	h.svc = nil
	if svc != nil {
		h.last = svc
	}
	return svc
}

func (h *Handle) peek() (current, last *service) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.svc, h.last
}

func (h *Handle) spent() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.used
}

// Supervisor starts and stops the service. A zero Supervisor is not usable;
// construct one with New.
type Supervisor struct {
	cfg    Config
	log    *log.Logger
	handle Handle
	output ring
}

// New returns a Supervisor for cfg with defaults filled in.
func New(cfg Config, logger *log.Logger) *Supervisor {
	if logger == nil {
		logger = log.Default()
	}
	return &Supervisor{
		cfg:    cfg.withDefaults(),
		log:    logger,
		output: ring{max: maxLogBytes},
	}
}

// ServiceDir resolves the configured directory against workDir.
func (s *Supervisor) ServiceDir(workDir string) string {
	if filepath.IsAbs(s.cfg.Dir) {
		return filepath.Clean(s.cfg.Dir)
	}
	return filepath.Join(workDir, s.cfg.Dir)
}

// Start launches the service from its directory under workDir. It never
// fails the caller: a missing directory or a spawn error is logged and the
// application runs without the service.
func (s *Supervisor) Start(workDir string) {
	if s.handle.spent() {
		s.log.Warn("service already started; ignoring start")
		return
	}
	dir := s.ServiceDir(workDir)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		s.log.Warn("service directory not found; continuing without it", "dir", dir)
		return
	}

	svc, err := s.spawn(dir)
	if err != nil {
		s.log.Error("could not start service", "dir", dir, "cmd", strings.Join(s.cfg.Command, " "), "err", err)
		return
	}
	if !s.handle.set(svc) {
		s.log.Warn("service already started; discarding duplicate", "pid", svc.pid)
		s.terminate(svc)
		return
	}
	s.log.Info("service started", "pid", svc.pid, "dir", dir, "pty", svc.viaPTY)
}

func (s *Supervisor) spawn(dir string) (*service, error) {
	cmd := exec.Command(s.cfg.Command[0], s.cfg.Command[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color", OwnerEnv)
	cmd.SysProcAttr = sysProcAttr()

	out, viaPTY, err := startAttached(cmd)
	if err != nil {
		return nil, err
	}
	svc := &service{
		cmd:     cmd,
		pid:     cmd.Process.Pid,
		dir:     dir,
		started: time.Now(),
		viaPTY:  viaPTY,
		done:    make(chan struct{}),
	}
	go s.wait(svc)
	go s.drain(out)
	return svc, nil
}

// startAttached starts cmd on a fresh PTY, or on a pipe when no PTY can be
// allocated, and returns the read side of its output.
func startAttached(cmd *exec.Cmd) (*os.File, bool, error) {
	ptm, tty, err := pty.Open()
	if err == nil {
		defer tty.Close()
		_ = pty.Setsize(ptm, &pty.Winsize{Rows: 40, Cols: 120})
		cmd.Stdin, cmd.Stdout, cmd.Stderr = tty, tty, tty
		cmd.SysProcAttr.Setctty = true
		cmd.SysProcAttr.Ctty = 0
		if err := cmd.Start(); err != nil {
			ptm.Close()
			return nil, false, err
		}
		return ptm, true, nil
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, false, fmt.Errorf("output pipe: %w", err)
	}
	cmd.Stdout, cmd.Stderr = w, w
	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		return nil, false, err
	}
	w.Close()
	return r, false, nil
}

func (s *Supervisor) wait(svc *service) {
	err := svc.cmd.Wait()
	svc.exit = describeExit(err)
	svc.ended = time.Now()
	close(svc.done)
	s.log.Info("service exited", "pid", svc.pid, "status", svc.exit)
}

func describeExit(err error) string {
	if err == nil {
		return "exited 0"
	}
	return err.Error()
}

// Stop terminates the service and its process group and returns once the
// child has been reaped. Without a running service it does nothing. OS
// errors are logged, never returned.
func (s *Supervisor) Stop() {
	svc := s.handle.take()
	if svc == nil {
		return
	}
	s.terminate(svc)
}

func (s *Supervisor) terminate(svc *service) {
	s.log.Info("stopping service", "pid", svc.pid, "grace", s.cfg.Grace)

	// setsid made the child a group leader, so its PID is the PGID.
	if err := proc.KillGroup(svc.pid, unix.SIGTERM); err != nil && !proc.Gone(err) {
		s.log.Warn("SIGTERM service group", "pgid", svc.pid, "err", err)
	}

	timer := time.NewTimer(s.cfg.Grace)
	select {
	case <-svc.done:
	case <-timer.C:
	}
	timer.Stop()

	// Descendants may outlive a leader that exited during the grace period.
	if err := proc.KillGroup(svc.pid, unix.SIGKILL); err != nil && !proc.Gone(err) {
		s.log.Warn("SIGKILL service group", "pgid", svc.pid, "err", err)
	}
	<-svc.done
	s.log.Info("service stopped", "pid", svc.pid)
}
