package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gandalfthegui/scout94/internal/proto"
)

// rootDir returns the scoutd data directory. SCOUT_ROOT overrides the
// default ~/.scout94.
func rootDir() string {
	if env := os.Getenv("SCOUT_ROOT"); env != "" {
		abs, err := filepath.Abs(env)
		if err == nil {
			return abs
		}
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".scout94")
}

// daemonSocket returns the Unix socket path and ensures the daemon is running.
func daemonSocket() (string, error) {
	root := rootDir()
	sock := filepath.Join(root, "scoutd.sock")
	if err := ensureDaemon(root, sock); err != nil {
		return "", err
	}
	return sock, nil
}

// ensureDaemon starts scoutd in the background if the socket is missing or
// not answering pings. Daemon stderr goes to <root>/logs/scoutd.log.
func ensureDaemon(root, socketPath string) error {
	if pingDaemon(socketPath) {
		return nil
	}

	exe, _ := os.Executable()
	daemonBin := filepath.Join(filepath.Dir(exe), "scoutd")
	if _, err := os.Stat(daemonBin); err != nil {
		daemonBin = "scoutd"
	}

	logDir := filepath.Join(root, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return err
	}
	logFile, err := os.OpenFile(filepath.Join(logDir, "scoutd.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer logFile.Close()

	cmd := exec.Command(daemonBin, "--root", root)
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("could not start daemon: %w", err)
	}
	// scoutd may exit straight away when another copy holds the marker; reap
	// it so it does not linger as a zombie while we wait.
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	for i := 0; i < 30; i++ {
		select {
		case <-exited:
			if pingDaemon(socketPath) {
				return nil
			}
			return fmt.Errorf("daemon exited during startup; see %s", logFile.Name())
		case <-time.After(100 * time.Millisecond):
		}
		if pingDaemon(socketPath) {
			return nil
		}
	}
	return fmt.Errorf("daemon did not start in time; see %s", logFile.Name())
}

// pingDaemon returns true if the daemon is alive and responding.
func pingDaemon(socketPath string) bool {
	conn, err := net.DialTimeout("unix", socketPath, 500*time.Millisecond)
	if err != nil {
		return false
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(500 * time.Millisecond))
	if err := proto.Write(conn, proto.Request{Type: proto.ReqPing}); err != nil {
		return false
	}
	var resp proto.Response
	err = proto.Read(bufio.NewReader(conn), &resp)
	return err == nil && resp.OK
}

// dial connects to a running (or freshly started) daemon and sends req.
// The caller owns the returned connection and reader.
func dial(req proto.Request) (net.Conn, *bufio.Reader, proto.Response, error) {
	sock, err := daemonSocket()
	if err != nil {
		return nil, nil, proto.Response{}, err
	}
	return send(sock, req)
}

// send is dial without the auto-start.
func send(socketPath string, req proto.Request) (net.Conn, *bufio.Reader, proto.Response, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, nil, proto.Response{}, err
	}
	if err := proto.Write(conn, req); err != nil {
		conn.Close()
		return nil, nil, proto.Response{}, err
	}
	r := bufio.NewReader(conn)
	var resp proto.Response
	if err := proto.Read(r, &resp); err != nil {
		conn.Close()
		return nil, nil, proto.Response{}, err
	}
	return conn, r, resp, nil
}

// tryRequest sends req to the daemon at socketPath. Unlike request it never
// starts scoutd, so callers can tolerate a daemon that isn't running.
func tryRequest(socketPath string, req proto.Request) (proto.Response, error) {
	conn, _, resp, err := send(socketPath, req)
	if err != nil {
		return proto.Response{}, err
	}
	conn.Close()
	if !resp.OK {
		return resp, responseError(resp)
	}
	return resp, nil
}

// request sends req, starting scoutd first if needed. A response with OK
// unset comes back as an error carrying the daemon's message and kind.
func request(req proto.Request) (proto.Response, error) {
	sock, err := daemonSocket()
	if err != nil {
		return proto.Response{}, err
	}
	return tryRequest(sock, req)
}

func responseError(resp proto.Response) error {
	if resp.ErrorKind != "" {
		return fmt.Errorf("%s (%s)", resp.Error, resp.ErrorKind)
	}
	return fmt.Errorf("%s", resp.Error)
}
