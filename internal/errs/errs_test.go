package errs

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

type spawnish struct{}

func (spawnish) Error() string   { return "spawn" }
func (spawnish) ErrorKind() Kind { return Spawn }

func TestKindOfWalksChain(t *testing.T) {
	err := fmt.Errorf("outer: %w", Errorf(Transport, "ssh %s", "host"))
	assert.Equal(t, Transport, KindOf(err))
	assert.True(t, Is(err, Transport))
	assert.False(t, Is(err, Spawn))
}

func TestKindOfForeignKinder(t *testing.T) {
	err := fmt.Errorf("run: %w", spawnish{})
	assert.Equal(t, Spawn, KindOf(err))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Unknown, KindOf(errors.New("plain")))
	assert.Equal(t, Unknown, KindOf(nil))
	assert.False(t, Is(nil, Unknown))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, IO, "x"))
	assert.NoError(t, Wrapf(nil, IO, "x %d", 1))
	assert.NoError(t, FromFS(nil, "x"))
}

func TestWrapMessageAndUnwrap(t *testing.T) {
	base := errors.New("disk full")
	err := Wrap(base, IO, "write marker")
	assert.Equal(t, "write marker: disk full", err.Error())
	assert.ErrorIs(t, err, base)
}

func TestFromFS(t *testing.T) {
	_, err := os.Stat("/definitely/not/here")
	assert.Equal(t, NotFound, KindOf(FromFS(err, "stat")))
	assert.Equal(t, IO, KindOf(FromFS(os.ErrPermission, "open")))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "already_running", AlreadyRunning.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
