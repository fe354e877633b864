// Package proto defines the IPC message types used between scout (client)
// and scoutd (daemon) over a Unix domain socket.
//
// Commands use newline-delimited JSON: the client sends one Request, the
// daemon sends one Response, then the connection closes. A service_logs
// request with Follow set is the exception: after the JSON response the
// daemon streams raw service output until the service stops.
package proto

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/gandalfthegui/scout94/internal/fsbrowse"
	"github.com/gandalfthegui/scout94/internal/proc"
	"github.com/gandalfthegui/scout94/internal/remote"
	"github.com/gandalfthegui/scout94/internal/supervisor"
)

// Request type constants.
const (
	ReqPing            = "ping"
	ReqRunTest         = "run_test"
	ReqSelectProject   = "select_project"
	ReqReadScreenshot  = "read_screenshot"
	ReqListScreenshots = "list_screenshots"
	ReqReadFile        = "read_file"
	ReqWriteFile       = "write_file"
	ReqExec            = "exec"
	ReqListDir         = "list_dir"
	ReqReadTree        = "read_tree"
	ReqDeployRemote    = "deploy_remote"
	ReqRunRemote       = "run_remote"
	ReqCheckRemote     = "check_remote"
	ReqServiceStatus   = "service_status"
	ReqServiceLogs     = "service_logs"
	ReqShutdown        = "shutdown"
)

// Request is the JSON payload sent from scout to scoutd. Which fields matter
// depends on Type.
type Request struct {
	Type string `json:"type"`

	// Path is the file or directory operated on; for select_project, the
	// project to select (empty to query the selection).
	Path    string `json:"path,omitempty"`
	Content string `json:"content,omitempty"`

	// Project overrides the selected project for run_test and
	// list_screenshots.
	Project  string `json:"project,omitempty"`
	TestType string `json:"test_type,omitempty"`

	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
	Cwd     string   `json:"cwd,omitempty"`

	MaxDepth int `json:"max_depth,omitempty"`

	Remote     *remote.Config `json:"remote,omitempty"`
	TargetPath string         `json:"target_path,omitempty"`

	Follow bool `json:"follow,omitempty"`
}

// Response is the JSON payload returned by the daemon.
type Response struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	Result    *proc.Result       `json:"result,omitempty"`
	Project   string             `json:"project,omitempty"`
	Content   string             `json:"content,omitempty"`
	Data      []byte             `json:"data,omitempty"`
	Paths     []string           `json:"paths,omitempty"`
	Entries   []fsbrowse.Entry   `json:"entries,omitempty"`
	Tree      []fsbrowse.Node    `json:"tree,omitempty"`
	Reachable bool               `json:"reachable,omitempty"`
	Service   *supervisor.Status `json:"service,omitempty"`
}

// Write sends v as one JSON line.
func Write(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Read decodes one JSON line from r into v. Lines are unbounded so file
// contents and screenshots fit in a single message.
func Read(r *bufio.Reader, v any) error {
	line, err := r.ReadBytes('\n')
	if err != nil && (err != io.EOF || len(line) == 0) {
		return err
	}
	return json.Unmarshal(line, v)
}
