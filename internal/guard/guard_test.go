package guard

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gandalfthegui/scout94/internal/errs"
	"github.com/gandalfthegui/scout94/internal/proc"
	"github.com/gandalfthegui/scout94/internal/proc/proctest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deadPID = 99999999

func itoa(n int) string { return strconv.Itoa(n) }

func quietLogger() *log.Logger {
	l := log.New(os.Stderr)
	l.SetLevel(log.FatalLevel)
	return l
}

func markerPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), DefaultMarkerName)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestAcquireWithoutMarker(t *testing.T) {
	path := markerPath(t)
	g := New(path, proc.SignalProber{}, quietLogger())

	require.NoError(t, g.Acquire())
	assert.Equal(t, itoa(os.Getpid()), readFile(t, path))
}

func TestAcquireReplacesStaleMarker(t *testing.T) {
	path := markerPath(t)
	require.NoError(t, os.WriteFile(path, []byte(itoa(deadPID)), 0o644))

	g := New(path, proc.SignalProber{}, quietLogger())
	require.NoError(t, g.Acquire())
	assert.Equal(t, itoa(os.Getpid()), readFile(t, path))
}

func TestAcquireBacksOffFromLiveHolder(t *testing.T) {
	path := markerPath(t)
	// Our parent (the test runner) is certainly alive.
	holder := os.Getppid()
	require.NoError(t, os.WriteFile(path, []byte(itoa(holder)), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, past, past))

	g := New(path, proc.SignalProber{}, quietLogger())
	err := g.Acquire()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyRunning))
	assert.Equal(t, errs.AlreadyRunning, errs.KindOf(err))

	var held *HeldError
	require.ErrorAs(t, err, &held)
	assert.Equal(t, holder, held.PID)
	assert.Contains(t, err.Error(), itoa(holder))

	assert.Equal(t, itoa(holder), readFile(t, path), "marker must not be mutated")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(past), "marker must not be rewritten")
}

func TestAcquireUsesProber(t *testing.T) {
	path := markerPath(t)
	require.NoError(t, os.WriteFile(path, []byte("4242\n"), 0o644))

	err := New(path, proctest.Prober{4242: true}, quietLogger()).Acquire()
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, New(path, proctest.Prober{}, quietLogger()).Acquire())
	assert.Equal(t, itoa(os.Getpid()), readFile(t, path))
}

func TestAcquireTreatsCorruptMarkerAsStale(t *testing.T) {
	for _, content := range []string{"", "not-a-pid", "-12", "0", "12 34"} {
		path := markerPath(t)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		g := New(path, proctest.Prober{}, quietLogger())
		require.NoError(t, g.Acquire(), "content %q", content)
		assert.Equal(t, itoa(os.Getpid()), readFile(t, path))
	}
}

func TestAcquireReclaimsOwnMarker(t *testing.T) {
	path := markerPath(t)
	g := New(path, proc.SignalProber{}, quietLogger())
	require.NoError(t, g.Acquire())
	require.NoError(t, g.Acquire())
	assert.Equal(t, itoa(os.Getpid()), readFile(t, path))
}

func TestSecondInstanceIsRejected(t *testing.T) {
	path := markerPath(t)
	first := New(path, proctest.Prober{}, quietLogger())
	first.pid = 1001
	require.NoError(t, first.Acquire())

	second := New(path, proctest.Prober{1001: true}, quietLogger())
	second.pid = 1002
	assert.ErrorIs(t, second.Acquire(), ErrAlreadyRunning)
	assert.Equal(t, "1001", readFile(t, path))

	require.NoError(t, first.Release())
	require.NoError(t, second.Acquire())
	assert.Equal(t, "1002", readFile(t, path))
}

func TestReleaseIsIdempotent(t *testing.T) {
	path := markerPath(t)
	g := New(path, proc.SignalProber{}, quietLogger())
	require.NoError(t, g.Acquire())

	require.NoError(t, g.Release())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, g.Release())
}

func TestReleaseLeavesForeignMarker(t *testing.T) {
	path := markerPath(t)
	require.NoError(t, os.WriteFile(path, []byte("777"), 0o644))

	g := New(path, proctest.Prober{}, quietLogger())
	require.NoError(t, g.Release())
	assert.Equal(t, "777", readFile(t, path))
}

func TestMarkerPath(t *testing.T) {
	assert.Equal(t, filepath.Join(os.TempDir(), DefaultMarkerName), MarkerPath(""))
	assert.Equal(t, filepath.Join(os.TempDir(), "x.pid"), MarkerPath("x.pid"))
	assert.Equal(t, "/run/scout.pid", MarkerPath("/run/scout.pid"))
}
