// Package guard keeps a single scoutd alive per machine.
//
// Ownership is recorded in a marker file in the system temporary directory
// holding the owner's PID as decimal text. A new process reads the marker,
// probes the recorded PID, and either backs off (the owner is alive) or
// replaces the marker with its own PID (the marker is absent or stale).
//
// The probe and the claim are separate steps. Two processes starting in the
// same instant can both find the marker stale and both claim it; the last
// writer owns the marker and the other will not release it. The window is
// accepted.
package guard

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/gandalfthegui/scout94/internal/errs"
	"github.com/gandalfthegui/scout94/internal/proc"
)

// DefaultMarkerName is the marker file name under os.TempDir().
const DefaultMarkerName = "scout94-mission-control.pid"

// ErrAlreadyRunning is matched by the error Acquire returns when a live
// instance holds the marker.
var ErrAlreadyRunning = errs.New(errs.AlreadyRunning, "already running")

// HeldError names the live instance that owns the marker.
type HeldError struct {
	PID  int
	Path string
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("already running (pid %d)", e.PID)
}

func (e *HeldError) Is(target error) bool { return target == ErrAlreadyRunning }

func (e *HeldError) ErrorKind() errs.Kind { return errs.AlreadyRunning }

// MarkerPath returns the marker location for name, defaulting to
// DefaultMarkerName.
func MarkerPath(name string) string {
	if name == "" {
		name = DefaultMarkerName
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(os.TempDir(), name)
}

// Guard claims and releases the instance marker for this process.
type Guard struct {
	path   string
	pid    int
	prober proc.Prober
	log    *log.Logger
}

// New returns a Guard for the marker at path, probing holders with prober.
func New(path string, prober proc.Prober, logger *log.Logger) *Guard {
	if logger == nil {
		logger = log.Default()
	}
	return &Guard{
		path:   path,
		pid:    os.Getpid(),
		prober: prober,
		log:    logger,
	}
}

// Path is the marker file location.
func (g *Guard) Path() string { return g.path }

// Acquire claims the marker. If a live process other than this one holds it,
// Acquire returns a *HeldError matching ErrAlreadyRunning and leaves the
// marker untouched.
func (g *Guard) Acquire() error {
	holder, err := readMarker(g.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		g.log.Warn("discarding unreadable instance marker", "path", g.path, "err", err)
		if err := removeMarker(g.path); err != nil {
			return err
		}
	case holder == g.pid:
		g.log.Debug("instance marker already names this process", "pid", holder)
	case g.prober.Alive(holder):
		return &HeldError{PID: holder, Path: g.path}
	default:
		g.log.Info("removing stale instance marker", "path", g.path, "pid", holder)
		if err := removeMarker(g.path); err != nil {
			return err
		}
	}

	if err := os.WriteFile(g.path, []byte(strconv.Itoa(g.pid)), 0o644); err != nil {
		return errs.Wrapf(err, errs.IO, "write instance marker %s", g.path)
	}
	g.log.Debug("instance marker claimed", "path", g.path, "pid", g.pid)
	return nil
}

// Release deletes the marker if it still names this process. Calling it
// again, or after another process replaced the marker, is a no-op.
func (g *Guard) Release() error {
	holder, err := readMarker(g.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err == nil && holder != g.pid {
		g.log.Warn("instance marker names another process; leaving it", "path", g.path, "pid", holder)
		return nil
	}
	return removeMarker(g.path)
}

func readMarker(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse marker %s: %w", path, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("parse marker %s: pid %d out of range", path, pid)
	}
	return pid, nil
}

func removeMarker(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errs.Wrapf(err, errs.IO, "remove instance marker %s", path)
	}
	return nil
}
