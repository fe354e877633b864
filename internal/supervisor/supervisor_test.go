package supervisor

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gandalfthegui/scout94/internal/proc"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *log.Logger {
	l := log.New(os.Stderr)
	l.SetLevel(log.FatalLevel)
	return l
}

// layout creates <tmp>/ui/app (the working directory) and
// <tmp>/websocket-server (the service directory) and returns both.
func layout(t *testing.T) (workDir, serviceDir string) {
	t.Helper()
	root := t.TempDir()
	workDir = filepath.Join(root, "ui", "app")
	serviceDir = filepath.Join(root, "websocket-server")
	require.NoError(t, os.MkdirAll(workDir, 0o755))
	require.NoError(t, os.MkdirAll(serviceDir, 0o755))
	return workDir, serviceDir
}

func newSupervisor(script string, grace time.Duration) *Supervisor {
	return New(Config{
		Command: []string{"sh", "-c", script},
		Grace:   grace,
		URL:     "ws://127.0.0.1:1",
	}, quietLogger())
}

// exited reports whether pid is gone or only a zombie awaiting its reaper.
func exited(pid int) bool {
	if !(proc.SignalProber{}).Alive(pid) {
		return true
	}
	out, err := exec.Command("ps", "-o", "stat=", "-p", strconv.Itoa(pid)).Output()
	if err != nil {
		// ps exits non-zero when the pid is not listed.
		return true
	}
	return strings.HasPrefix(strings.TrimSpace(string(out)), "Z")
}

func readPID(t *testing.T, path string) int {
	t.Helper()
	var pid int
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		if err != nil {
			return false
		}
		pid, err = strconv.Atoi(strings.TrimSpace(string(data)))
		return err == nil && pid > 0
	}, 5*time.Second, 20*time.Millisecond)
	return pid
}

func TestServiceDirResolution(t *testing.T) {
	s := New(Config{}, quietLogger())
	assert.Equal(t, "/opt/scout94/websocket-server", s.ServiceDir("/opt/scout94/ui/src-tauri"))

	s = New(Config{Dir: "/srv/ws"}, quietLogger())
	assert.Equal(t, "/srv/ws", s.ServiceDir("/anywhere"))
}

func TestStartWithoutServiceDirIsNoop(t *testing.T) {
	s := newSupervisor("sleep 30", 100*time.Millisecond)
	s.Start(filepath.Join(t.TempDir(), "ui", "app"))

	st := s.Status(context.Background())
	assert.False(t, st.Running)
	assert.Zero(t, st.PID)
	s.Stop()
}

func TestStartSpawnFailureIsLogged(t *testing.T) {
	workDir, _ := layout(t)
	s := New(Config{Command: []string{"scout94-no-such-binary"}}, quietLogger())
	s.Start(workDir)
	assert.False(t, s.Status(context.Background()).Running)
	s.Stop()
}

func TestStopKillsProcessGroup(t *testing.T) {
	workDir, serviceDir := layout(t)
	pidFile := filepath.Join(serviceDir, "child.pid")
	s := newSupervisor("sleep 300 & echo $! > child.pid; wait", 200*time.Millisecond)

	s.Start(workDir)
	st := s.Status(context.Background())
	require.True(t, st.Running)
	leader := st.PID
	child := readPID(t, pidFile)

	s.Stop()

	assert.True(t, exited(leader), "leader %d still alive", leader)
	assert.Eventually(t, func() bool { return exited(child) }, 5*time.Second, 20*time.Millisecond,
		"grandchild %d outlived the supervisor", child)

	st = s.Status(context.Background())
	assert.False(t, st.Running)
	assert.Equal(t, leader, st.PID)
	assert.NotEmpty(t, st.Exit)
}

func TestStopEscalatesWhenTermIgnored(t *testing.T) {
	workDir, serviceDir := layout(t)
	s := newSupervisor(`trap "" TERM; echo ready > ready; while :; do sleep 1; done`, 300*time.Millisecond)

	s.Start(workDir)
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(serviceDir, "ready"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	leader := s.Status(context.Background()).PID

	start := time.Now()
	s.Stop()
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
	assert.True(t, exited(leader))
}

func TestStopReturnsEarlyWhenServiceExitsOnTerm(t *testing.T) {
	workDir, _ := layout(t)
	s := newSupervisor("exec sleep 300", 5*time.Second)
	s.Start(workDir)
	require.True(t, s.Status(context.Background()).Running)

	start := time.Now()
	s.Stop()
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestStopIsIdempotent(t *testing.T) {
	workDir, _ := layout(t)
	s := newSupervisor("exec sleep 300", 100*time.Millisecond)
	s.Start(workDir)

	s.Stop()
	s.Stop()
	assert.False(t, s.Status(context.Background()).Running)
}

func TestConcurrentStopsReapOnce(t *testing.T) {
	workDir, _ := layout(t)
	s := newSupervisor("exec sleep 300", 100*time.Millisecond)
	s.Start(workDir)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Stop()
		}()
	}
	wg.Wait()
	assert.False(t, s.Status(context.Background()).Running)
}

func TestStartIsSetOnce(t *testing.T) {
	workDir, _ := layout(t)
	s := newSupervisor("exec sleep 300", 100*time.Millisecond)
	t.Cleanup(s.Stop)

	s.Start(workDir)
	first := s.Status(context.Background()).PID
	s.Start(workDir)
	assert.Equal(t, first, s.Status(context.Background()).PID)

	s.Stop()
	s.Start(workDir)
	assert.False(t, s.Status(context.Background()).Running, "a stopped handle is never reused")
}

func TestOutputCaptured(t *testing.T) {
	workDir, _ := layout(t)
	logFile := filepath.Join(t.TempDir(), "service.log")
	s := New(Config{
		Command: []string{"sh", "-c", "echo listening on 8094; exec sleep 300"},
		Grace:   100 * time.Millisecond,
		LogFile: logFile,
	}, quietLogger())
	s.Start(workDir)
	t.Cleanup(s.Stop)

	require.Eventually(t, func() bool {
		return bytes.Contains(s.Logs(), []byte("listening on 8094"))
	}, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		data, _ := os.ReadFile(logFile)
		return bytes.Contains(data, []byte("listening on 8094"))
	}, 5*time.Second, 20*time.Millisecond)
}

func TestServiceEnvironmentCarriesOwnerTag(t *testing.T) {
	workDir, _ := layout(t)
	s := New(Config{
		Command: []string{"sh", "-c", `sh -c 'echo "child: $SCOUT94_SERVICE"'; exec sleep 300`},
		Grace:   100 * time.Millisecond,
	}, quietLogger())
	s.Start(workDir)
	t.Cleanup(s.Stop)

	require.Eventually(t, func() bool {
		return bytes.Contains(s.Logs(), []byte("child: 1"))
	}, 5*time.Second, 20*time.Millisecond)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFollowEndsWhenServiceStops(t *testing.T) {
	workDir, _ := layout(t)
	s := newSupervisor("echo first; sleep 0.3; echo second; exec sleep 300", 100*time.Millisecond)
	s.Start(workDir)

	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- s.Follow(context.Background(), &out) }()

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "second") }, 5*time.Second, 20*time.Millisecond)
	s.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Follow did not return after Stop")
	}
	assert.Contains(t, out.String(), "first")
}

func TestFollowHonoursContext(t *testing.T) {
	workDir, _ := layout(t)
	s := newSupervisor("exec sleep 300", 100*time.Millisecond)
	s.Start(workDir)
	t.Cleanup(s.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := s.Follow(ctx, &syncBuffer{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRingTrims(t *testing.T) {
	r := ring{max: 8}
	r.Write([]byte("abcdef"))
	_, pos := r.since(0)
	r.Write([]byte("ghijkl"))

	all, _ := r.since(0)
	assert.Equal(t, "efghijkl", string(all))

	fresh, end := r.since(pos)
	assert.Equal(t, "ghijkl", string(fresh))
	assert.Equal(t, int64(12), end)

	stale, _ := r.since(1)
	assert.Equal(t, "efghijkl", string(stale))
}

func TestReachable(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	assert.True(t, Reachable(context.Background(), url))
	srv.Close()
	assert.False(t, Reachable(context.Background(), url))
}
