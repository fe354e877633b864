package supervisor

import (
	"context"
	"io"
	"os"
	"sync"
	"time"
)

const (
	maxLogBytes    = 1 << 20 // 1 MiB rolling log
	followInterval = 100 * time.Millisecond
)

// ring keeps the most recent max bytes of output. total counts every byte
// ever appended so followers can tell how far they have read.
type ring struct {
	mu    sync.Mutex
	max   int
	buf   []byte
	total int64
}

func (r *ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, p...)
	if len(r.buf) > r.max {
		r.buf = append([]byte(nil), r.buf[len(r.buf)-r.max:]...)
	}
	r.total += int64(len(p))
	return len(p), nil
}

// since returns the bytes appended after position pos and the new position.
// Bytes already trimmed away are skipped.
func (r *ring) since(pos int64) ([]byte, int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	start := r.total - int64(len(r.buf))
	if pos < start {
		pos = start
	}
	data := make([]byte, r.total-pos)
	copy(data, r.buf[pos-start:])
	return data, r.total
}

func (s *Supervisor) drain(out *os.File) {
	defer out.Close()

	var logFd *os.File
	if s.cfg.LogFile != "" {
		f, err := os.OpenFile(s.cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			s.log.Warn("cannot open service log file", "path", s.cfg.LogFile, "err", err)
		} else {
			logFd = f
			defer logFd.Close()
		}
	}

	buf := make([]byte, 4096)
	for {
		n, err := out.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			s.output.Write(chunk)
			if logFd != nil {
				logFd.Write(chunk)
			}
		}
		if err != nil {
			// EIO or EOF once every holder of the slave side is gone.
			return
		}
	}
}

// Logs returns a copy of the recent service output.
func (s *Supervisor) Logs() []byte {
	data, _ := s.output.since(0)
	return data
}

// Follow writes the recent output to w and then streams new output until the
// service is no longer running, ctx ends, or a write fails.
func (s *Supervisor) Follow(ctx context.Context, w io.Writer) error {
	data, pos := s.output.since(0)
	if len(data) > 0 {
		if _, err := w.Write(data); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		running := s.running()
		data, pos = s.output.since(pos)
		if len(data) > 0 {
			if _, err := w.Write(data); err != nil {
				return err
			}
		}
		if !running && len(data) == 0 {
			return nil
		}
	}
}
