package supervisor

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

const probeTimeout = 2 * time.Second

// Status describes the service as last observed.
type Status struct {
	Running   bool      `json:"running"`
	PID       int       `json:"pid,omitempty"`
	Dir       string    `json:"dir,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Exit      string    `json:"exit,omitempty"`
	URL       string    `json:"url"`
	Reachable bool      `json:"reachable"`
}

func (s *Supervisor) running() bool {
	current, _ := s.handle.peek()
	return current != nil && !current.exited()
}

// Status reports the current or most recent service and whether its
// websocket endpoint accepts a handshake.
func (s *Supervisor) Status(ctx context.Context) Status {
	st := Status{URL: s.cfg.URL}
	current, last := s.handle.peek()
	svc := current
	if svc == nil {
		svc = last
	}
	if svc != nil {
		st.PID = svc.pid
		st.Dir = svc.dir
		st.StartedAt = svc.started
		if svc.exited() {
			st.Exit = svc.exit
		} else {
			st.Running = current != nil
		}
	}
	st.Reachable = Reachable(ctx, s.cfg.URL)
	return st
}

// Reachable reports whether a websocket handshake with url succeeds.
func Reachable(ctx context.Context, url string) bool {
	d := websocket.Dialer{HandshakeTimeout: probeTimeout}
	conn, resp, err := d.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
