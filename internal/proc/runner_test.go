package proc

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gandalfthegui/scout94/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunnerSuccess(t *testing.T) {
	res, err := ExecRunner{}.Run(context.Background(), "sh", []string{"-c", "echo hello"}, "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "hello\n", res.Output)
	assert.Empty(t, res.Error)
	assert.Equal(t, 0, res.ExitCode)
}

func TestExecRunnerNonZeroIsNotAnError(t *testing.T) {
	res, err := ExecRunner{}.Run(context.Background(), "sh", []string{"-c", "echo out; echo bad >&2; exit 3"}, "")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "out\n", res.Output)
	assert.Equal(t, "bad\n", res.Error)
	assert.Equal(t, 3, res.ExitCode)
}

func TestExecRunnerWorkingDirectory(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	res, err := ExecRunner{}.Run(context.Background(), "pwd", []string{"-P"}, dir)
	require.NoError(t, err)
	assert.Equal(t, dir, strings.TrimSpace(res.Output))
}

func TestExecRunnerSpawnFailure(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), "scout94-no-such-program", nil, "")
	require.Error(t, err)
	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, "scout94-no-such-program", spawnErr.Program)
	assert.Equal(t, errs.Spawn, errs.KindOf(err))
}

func TestExecRunnerMissingDirectory(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), "true", nil, "/no/such/dir/for/scout94")
	assert.Equal(t, errs.Spawn, errs.KindOf(err))
}

func TestExecRunnerLossyDecoding(t *testing.T) {
	res, err := ExecRunner{}.Run(context.Background(), "printf", []string{`a\377b`}, "")
	require.NoError(t, err)
	assert.Equal(t, "a�b", res.Output)
}

func TestSignalProber(t *testing.T) {
	p := SignalProber{}
	assert.True(t, p.Alive(os.Getpid()))
	assert.True(t, p.Alive(os.Getppid()))
	assert.False(t, p.Alive(0))
	assert.False(t, p.Alive(-1))
	assert.False(t, p.Alive(99999999))
}

type staticLister []Process

func (l staticLister) Processes() ([]Process, error) { return l, nil }

func TestListProber(t *testing.T) {
	p := ListProber{Lister: staticLister{{PID: 42, Cmdline: "node server.js"}}}
	assert.True(t, p.Alive(42))
	assert.False(t, p.Alive(420))
	assert.False(t, p.Alive(4))
	assert.False(t, ListProber{}.Alive(42))
}

func TestParsePS(t *testing.T) {
	out := "    1 /sbin/launchd\n  812 node server.js --port 8094\n\nbogus line\n  -3 nope\n"
	procs := parsePS(out)
	require.Len(t, procs, 2)
	assert.Equal(t, Process{PID: 1, Cmdline: "/sbin/launchd"}, procs[0])
	assert.Equal(t, Process{PID: 812, Cmdline: "node server.js --port 8094"}, procs[1])
}

func TestAttachEnv(t *testing.T) {
	procs := []Process{
		{PID: 812, Cmdline: "node server.js"},
		{PID: 813, Cmdline: "sleep 5"},
		{PID: 814, Cmdline: "vim"},
	}
	withEnv := parsePS("  812 node server.js TERM=xterm SCOUT94_SERVICE=1\n" +
		"  813 sleep 6 HOME=/Users/me\n")

	attachEnv(procs, withEnv)
	assert.Equal(t, []string{"TERM=xterm", "SCOUT94_SERVICE=1"}, procs[0].Env)
	assert.True(t, procs[0].HasEnv("SCOUT94_SERVICE=1"))
	assert.False(t, procs[0].HasEnv("SCOUT94_SERVICE=0"))
	assert.Nil(t, procs[1].Env, "command line changed between listings")
	assert.Nil(t, procs[2].Env)
	assert.False(t, procs[2].HasEnv("SCOUT94_SERVICE=1"))
}

func TestNewListerSeesSelf(t *testing.T) {
	procs, err := NewLister().Processes()
	require.NoError(t, err)
	var self *Process
	for i, p := range procs {
		if p.PID == os.Getpid() {
			self = &procs[i]
		}
	}
	require.NotNil(t, self, "own pid missing from listing")
	assert.NotEmpty(t, self.Env, "own environment should be readable")
}

func TestKillGroupRejectsNonPositive(t *testing.T) {
	assert.Error(t, KillGroup(0, 0))
	assert.True(t, Gone(Kill(99999999)))
}
