package shutdown

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gandalfthegui/scout94/internal/proc"
	"github.com/gandalfthegui/scout94/internal/proc/proctest"
	"github.com/gandalfthegui/scout94/internal/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func quietLogger() *log.Logger {
	l := log.New(os.Stderr)
	l.SetLevel(log.FatalLevel)
	return l
}

// owned is the environment of a process started by the supervisor.
var owned = []string{"PATH=/usr/bin", supervisor.OwnerEnv}

func TestFailingStepDoesNotBlockLaterSteps(t *testing.T) {
	var ran []string
	c := New(quietLogger(),
		Step{Name: "a", Run: func() error { ran = append(ran, "a"); return errors.New("boom") }},
		Step{Name: "b", Run: func() error { ran = append(ran, "b"); panic("kaput") }},
		Step{Name: "c", Run: func() error { ran = append(ran, "c"); return nil }},
	)

	report := c.Run()
	assert.Equal(t, []string{"a", "b", "c"}, ran)
	require.Len(t, report, 3)
	assert.EqualError(t, report[0].Err, "boom")
	assert.ErrorContains(t, report[1].Err, "kaput")
	assert.NoError(t, report[2].Err)
	assert.Len(t, report.Failed(), 2)
}

func TestRunOnce(t *testing.T) {
	var mu sync.Mutex
	count := 0
	c := New(quietLogger(), Step{Name: "count", Run: func() error {
		mu.Lock()
		count++
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		return nil
	}})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Len(t, c.Run(), 1)
		}()
	}
	wg.Wait()
	c.Run()
	assert.Equal(t, 1, count)
}

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

type fakeService struct{ rec *recorder }

func (f fakeService) Stop() { f.rec.add("stop") }

type fakeMarker struct {
	rec *recorder
	err error
}

func (f fakeMarker) Release() error {
	f.rec.add("release")
	return f.err
}

func TestForAppOrder(t *testing.T) {
	rec := &recorder{}
	sweeper := &Sweeper{
		Lister: proctest.Lister{Procs: []proc.Process{{PID: 500, Cmdline: "node server.js", Env: owned}}},
		Kill: func(pid int) error {
			rec.add(fmt.Sprintf("kill %d", pid))
			return nil
		},
		Patterns: DefaultPatterns,
		Self:     1,
		Log:      quietLogger(),
	}

	report := ForApp(quietLogger(), fakeService{rec}, fakeMarker{rec: rec, err: errors.New("read-only tmp")}, sweeper).Run()

	assert.Equal(t, []string{"stop", "release", "kill 500"}, rec.calls)
	require.Len(t, report, 3)
	assert.Equal(t, "release instance marker", report[1].Step)
	assert.Error(t, report[1].Err)
	assert.NoError(t, report[2].Err)
}

func TestSweepMatchesAndSkipsSelf(t *testing.T) {
	var killed []int
	s := &Sweeper{
		Lister: proctest.Lister{Procs: []proc.Process{
			{PID: 1, Cmdline: "/sbin/init websocket-server", Env: owned},
			{PID: 10, Cmdline: "node /home/me/scout94/websocket-server/server.js", Env: owned},
			{PID: 11, Cmdline: "node server.js", Env: owned},
			{PID: 12, Cmdline: "vim server.go", Env: owned},
			{PID: 13, Cmdline: "scoutd --root /tmp/websocket-server", Env: owned},
			{PID: 14, Cmdline: "npm start", Env: owned},
		}},
		Patterns: DefaultPatterns,
		Self:     13,
		Kill: func(pid int) error {
			killed = append(killed, pid)
			if pid == 11 {
				return unix.ESRCH
			}
			return nil
		},
		Log: quietLogger(),
	}

	got, err := s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, []int{10, 11}, killed)
	assert.Equal(t, []int{10}, got, "already-gone processes are not reported")
}

func TestSweepLeavesUntaggedLookAlikes(t *testing.T) {
	var killed []int
	s := &Sweeper{
		Lister: proctest.Lister{Procs: []proc.Process{
			{PID: 30, Cmdline: "node server.js", Env: []string{"PATH=/usr/bin"}},
			{PID: 31, Cmdline: "grep websocket-server notes.txt"},
			{PID: 32, Cmdline: "bash -c cd ~/app && node server.js", Env: []string{"SCOUT94_SERVICE=0"}},
			{PID: 33, Cmdline: "node server.js", Env: owned},
		}},
		Patterns: DefaultPatterns,
		Self:     2,
		Kill: func(pid int) error {
			killed = append(killed, pid)
			return nil
		},
		Log: quietLogger(),
	}

	got, err := s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, []int{33}, killed)
	assert.Equal(t, []int{33}, got)
}

func TestSweepReportsKillFailures(t *testing.T) {
	s := &Sweeper{
		Lister:   proctest.Lister{Procs: []proc.Process{{PID: 20, Cmdline: "node server.js", Env: owned}}},
		Patterns: DefaultPatterns,
		Self:     2,
		Kill:     func(int) error { return unix.EPERM },
		Log:      quietLogger(),
	}
	_, err := s.Sweep()
	assert.ErrorIs(t, err, unix.EPERM)
}

func TestSweepListFailure(t *testing.T) {
	s := &Sweeper{Lister: proctest.Lister{Err: errors.New("no /proc")}, Patterns: DefaultPatterns, Log: quietLogger()}
	_, err := s.Sweep()
	assert.Error(t, err)
}

// startLoop runs a shell loop whose command line carries marker as $0.
func startLoop(t *testing.T, marker string, env []string) (*exec.Cmd, <-chan struct{}) {
	t.Helper()
	cmd := exec.Command("sh", "-c", "while :; do sleep 1; done", marker)
	cmd.Env = env
	require.NoError(t, cmd.Start())
	done := make(chan struct{})
	go func() { cmd.Wait(); close(done) }()
	t.Cleanup(func() { cmd.Process.Kill() })
	return cmd, done
}

func TestSweepKillsRealOrphan(t *testing.T) {
	marker := fmt.Sprintf("scout94-sweep-%d", os.Getpid())
	cmd, done := startLoop(t, marker, append(os.Environ(), supervisor.OwnerEnv))

	s := NewSweeper([]string{marker}, quietLogger())
	var killed []int
	require.Eventually(t, func() bool {
		var err error
		killed, err = s.Sweep()
		return err == nil && len(killed) == 1
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, cmd.Process.Pid, killed[0])

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("orphan survived the sweep")
	}
}

func TestSweepSparesUnrelatedProcess(t *testing.T) {
	marker := fmt.Sprintf("scout94-unrelated-%d", os.Getpid())
	other, otherDone := startLoop(t, marker, os.Environ())
	ours, oursDone := startLoop(t, marker, append(os.Environ(), supervisor.OwnerEnv))

	s := NewSweeper([]string{marker}, quietLogger())
	var killed []int
	require.Eventually(t, func() bool {
		var err error
		killed, err = s.Sweep()
		return err == nil && len(killed) == 1
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, []int{ours.Process.Pid}, killed)

	select {
	case <-oursDone:
	case <-time.After(5 * time.Second):
		t.Fatal("tagged process survived the sweep")
	}
	select {
	case <-otherDone:
		t.Fatal("untagged process was killed")
	case <-time.After(200 * time.Millisecond):
	}
	assert.NoError(t, other.Process.Signal(unix.Signal(0)))
}
