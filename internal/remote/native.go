package remote

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/gandalfthegui/scout94/internal/errs"
	"github.com/gandalfthegui/scout94/internal/proc"
)

// NativeTransport speaks SSH directly. Authentication uses Config.KeyPath
// and, when reachable, the ssh-agent. Host keys are verified against a
// known_hosts file unless InsecureIgnoreHostKey is set.
type NativeTransport struct {
	KnownHostsPath        string
	InsecureIgnoreHostKey bool
	// AgentSocket defaults to $SSH_AUTH_SOCK.
	AgentSocket string
}

func (t *NativeTransport) Exec(ctx context.Context, cfg Config, command string, timeout time.Duration) (*proc.Result, error) {
	client, err := t.dial(ctx, cfg, timeout)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	stop := context.AfterFunc(ctx, func() { client.Close() })
	defer stop()

	sess, err := client.NewSession()
	if err != nil {
		return nil, errs.Wrap(err, errs.Transport, "open ssh session")
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr
	return sessionResult(sess.Run(command), &stdout, &stderr)
}

func (t *NativeTransport) Copy(ctx context.Context, cfg Config, localDir, remoteDir string) (*proc.Result, error) {
	if _, err := topLevelEntries(localDir); err != nil {
		return nil, err
	}
	client, err := t.dial(ctx, cfg, 0)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	stop := context.AfterFunc(ctx, func() { client.Close() })
	defer stop()

	sess, err := client.NewSession()
	if err != nil {
		return nil, errs.Wrap(err, errs.Transport, "open ssh session")
	}
	defer sess.Close()

	stdin, err := sess.StdinPipe()
	if err != nil {
		return nil, errs.Wrap(err, errs.Transport, "ssh stdin")
	}
	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	if err := sess.Start("tar -xf - -C " + shellQuote(remoteDir)); err != nil {
		return nil, errs.Wrap(err, errs.Transport, "start remote tar")
	}
	writeErr := writeTar(stdin, localDir)
	stdin.Close()
	waitErr := sess.Wait()
	if writeErr != nil && waitErr == nil {
		return nil, errs.Wrap(writeErr, errs.IO, "stream scanner files")
	}
	return sessionResult(waitErr, &stdout, &stderr)
}

func (t *NativeTransport) dial(ctx context.Context, cfg Config, timeout time.Duration) (*ssh.Client, error) {
	hostKeys, err := t.hostKeyCallback()
	if err != nil {
		return nil, err
	}
	auth, closeAgent, err := t.auth(cfg)
	if err != nil {
		return nil, err
	}
	// Agent keys are only used for signing during the handshake.
	defer closeAgent()

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.port()))
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errs.Wrapf(err, errs.Transport, "dial %s", addr)
	}
	if timeout > 0 {
		conn.SetDeadline(time.Now().Add(timeout))
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         timeout,
	})
	if err != nil {
		conn.Close()
		return nil, errs.Wrapf(err, errs.Transport, "ssh handshake with %s", addr)
	}
	conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

func (t *NativeTransport) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if t.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	path := t.KnownHostsPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errs.Wrap(err, errs.Transport, "locate known_hosts")
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, errs.Wrapf(err, errs.Transport, "load known hosts %s", path)
	}
	return cb, nil
}

// auth offers the configured key and any agent keys as one publickey
// method; the client tries each method name only once. The returned func
// closes the agent connection and must be called once the handshake is over.
func (t *NativeTransport) auth(cfg Config) ([]ssh.AuthMethod, func(), error) {
	var signers []ssh.Signer
	if cfg.KeyPath != "" {
		pem, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, nil, errs.FromFS(err, "read private key")
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, nil, errs.Wrapf(err, errs.Invalid, "parse private key %s", cfg.KeyPath)
		}
		signers = append(signers, signer)
	}

	sock := t.AgentSocket
	if sock == "" {
		sock = os.Getenv("SSH_AUTH_SOCK")
	}
	var ag agent.ExtendedAgent
	closeAgent := func() {}
	if sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			ag = agent.NewClient(conn)
			closeAgent = func() { conn.Close() }
		}
	}

	return []ssh.AuthMethod{ssh.PublicKeysCallback(func() ([]ssh.Signer, error) {
		if ag == nil {
			return signers, nil
		}
		agentSigners, err := ag.Signers()
		if err != nil {
			return signers, nil
		}
		return append(append([]ssh.Signer(nil), signers...), agentSigners...), nil
	})}, closeAgent, nil
}

func sessionResult(err error, stdout, stderr *bytes.Buffer) (*proc.Result, error) {
	res := &proc.Result{
		Output: strings.ToValidUTF8(stdout.String(), "�"),
		Error:  strings.ToValidUTF8(stderr.String(), "�"),
	}
	if err == nil {
		res.Success = true
		return res, nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitStatus()
		return res, nil
	}
	return nil, errs.Wrap(err, errs.Transport, "ssh session")
}

// writeTar streams the non-hidden contents of dir as a tar archive with
// paths relative to dir.
func writeTar(w io.Writer, dir string) error {
	tw := tar.NewWriter(w)
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil || rel == "." {
			return err
		}
		if !strings.Contains(rel, string(filepath.Separator)) && strings.HasPrefix(rel, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		link := ""
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(p); err != nil {
				return err
			}
		}
		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return err
	}
	return tw.Close()
}
