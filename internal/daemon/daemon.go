// Package daemon implements the scoutd command surface.
//
// The daemon listens on a Unix domain socket. Each request is a single
// newline-terminated JSON object; the daemon writes a single
// newline-terminated JSON response and closes the connection, except for a
// following service_logs request, which streams raw service output after the
// response. Every connection is served on its own goroutine.
package daemon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/gandalfthegui/scout94/internal/config"
	"github.com/gandalfthegui/scout94/internal/errs"
	"github.com/gandalfthegui/scout94/internal/proc"
	"github.com/gandalfthegui/scout94/internal/proto"
	"github.com/gandalfthegui/scout94/internal/remote"
	"github.com/gandalfthegui/scout94/internal/supervisor"
)

// ServiceView is what the command surface needs from the supervisor.
type ServiceView interface {
	Status(ctx context.Context) supervisor.Status
	Logs() []byte
	Follow(ctx context.Context, w io.Writer) error
}

// Options wires the daemon to the rest of the application. Nil fields get
// working defaults except Service, which is then reported as absent.
type Options struct {
	Config  *config.Config
	Runner  proc.Runner
	Remote  *remote.Executor
	Service ServiceView
	// OnShutdown runs after a shutdown request has been acknowledged.
	OnShutdown func()
	Logger     *log.Logger
}

// Daemon serves requests from scout clients.
type Daemon struct {
	rootDir    string
	cfg        *config.Config
	runner     proc.Runner
	remote     *remote.Executor
	service    ServiceView
	onShutdown func()
	log        *log.Logger

	mu       sync.Mutex
	project  string // selected project directory
	listener net.Listener
	closed   bool
}

// New creates a Daemon that keeps its state under rootDir (~/.scout94).
func New(rootDir string, opts Options) (*Daemon, error) {
	for _, sub := range []string{"", "logs"} {
		if err := os.MkdirAll(filepath.Join(rootDir, sub), 0o755); err != nil {
			return nil, err
		}
	}

	d := &Daemon{
		rootDir:    rootDir,
		cfg:        opts.Config,
		runner:     opts.Runner,
		remote:     opts.Remote,
		service:    opts.Service,
		onShutdown: opts.OnShutdown,
		log:        opts.Logger,
	}
	if d.log == nil {
		d.log = log.Default()
	}
	if d.cfg == nil {
		d.cfg = config.Default()
	}
	if d.runner == nil {
		d.runner = proc.ExecRunner{}
	}
	if d.remote == nil {
		d.remote = remote.NewExecutor(d.cfg.Transport(), d.cfg.ScriptLocation(), d.log.WithPrefix("remote"))
	}

	if err := d.loadState(); err != nil {
		d.log.Warn("could not reload saved state", "err", err)
	}
	return d, nil
}

// Run listens on socketPath and serves until Close is called. It returns nil
// after Close and an error if the socket cannot be served.
func (d *Daemon) Run(socketPath string) error {
	// Remove stale socket. The instance guard makes sure it is not live.
	os.Remove(socketPath)

	l, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		l.Close()
		return nil
	}
	d.listener = l
	d.mu.Unlock()
	defer l.Close()

	d.log.Info("scoutd listening", "socket", socketPath)

	for {
		conn, err := l.Accept()
		if err != nil {
			if d.isClosed() {
				return nil
			}
			return fmt.Errorf("accept on %s: %w", socketPath, err)
		}
		go d.handleConn(conn)
	}
}

// Close stops accepting connections and makes Run return. Requests already
// in flight finish on their own.
func (d *Daemon) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.listener != nil {
		return d.listener.Close()
	}
	return nil
}

func (d *Daemon) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// ─── Connection handling ──────────────────────────────────────────────────────

func (d *Daemon) handleConn(conn net.Conn) {
	defer conn.Close()

	id := uuid.NewString()
	var req proto.Request
	if err := proto.Read(bufio.NewReader(conn), &req); err != nil {
		if !errors.Is(err, io.EOF) {
			respond(conn, failure(id, errs.Wrap(err, errs.Invalid, "bad request")))
		}
		return
	}

	start := time.Now()
	logger := d.log.With("id", id, "type", req.Type)
	logger.Debug("request")

	if req.Type == proto.ReqServiceLogs && req.Follow {
		d.followLogs(conn, id)
		return
	}

	resp, err := d.dispatch(context.Background(), req)
	if err != nil {
		logger.Debug("request failed", "err", err, "took", time.Since(start))
		respond(conn, failure(id, err))
		return
	}
	resp.OK = true
	resp.RequestID = id
	respond(conn, resp)
	logger.Debug("request done", "took", time.Since(start))

	if req.Type == proto.ReqShutdown && d.onShutdown != nil {
		go d.onShutdown()
	}
}

func respond(conn net.Conn, r proto.Response) {
	proto.Write(conn, r)
}

func failure(id string, err error) proto.Response {
	return proto.Response{
		OK:        false,
		Error:     err.Error(),
		ErrorKind: errs.KindOf(err).String(),
		RequestID: id,
	}
}

func (d *Daemon) followLogs(conn net.Conn, id string) {
	if d.service == nil {
		respond(conn, failure(id, errNoService))
		return
	}
	respond(conn, proto.Response{OK: true, RequestID: id})
	if err := d.service.Follow(context.Background(), conn); err != nil {
		d.log.Debug("log follower gone", "id", id, "err", err)
	}
}
