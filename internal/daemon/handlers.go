package daemon

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/gandalfthegui/scout94/internal/errs"
	"github.com/gandalfthegui/scout94/internal/fsbrowse"
	"github.com/gandalfthegui/scout94/internal/proto"
	"github.com/gandalfthegui/scout94/internal/scripts"
)

var (
	errNoService = errs.New(errs.NotFound, "no background service is supervised")
	errNoProject = errs.New(errs.Invalid, "no project selected")
)

func (d *Daemon) dispatch(ctx context.Context, req proto.Request) (proto.Response, error) {
	switch req.Type {
	case proto.ReqPing, proto.ReqShutdown:
		return proto.Response{}, nil

	case proto.ReqRunTest:
		return d.handleRunTest(ctx, req)

	case proto.ReqSelectProject:
		return d.handleSelectProject(req)

	case proto.ReqReadScreenshot:
		if err := requirePath(req); err != nil {
			return proto.Response{}, err
		}
		data, err := fsbrowse.ReadBytes(req.Path)
		return proto.Response{Data: data}, err

	case proto.ReqListScreenshots:
		project, err := d.projectFor(req.Project)
		if err != nil {
			return proto.Response{}, err
		}
		return proto.Response{Project: project, Paths: fsbrowse.ListScreenshots(project)}, nil

	case proto.ReqReadFile:
		if err := requirePath(req); err != nil {
			return proto.Response{}, err
		}
		content, err := fsbrowse.ReadText(req.Path)
		return proto.Response{Content: content}, err

	case proto.ReqWriteFile:
		if err := requirePath(req); err != nil {
			return proto.Response{}, err
		}
		return proto.Response{}, fsbrowse.WriteText(req.Path, req.Content)

	case proto.ReqExec:
		if strings.TrimSpace(req.Command) == "" {
			return proto.Response{}, errs.New(errs.Invalid, "command is required")
		}
		res, err := d.runner.Run(ctx, req.Command, req.Args, req.Cwd)
		return proto.Response{Result: res}, err

	case proto.ReqListDir:
		if err := requirePath(req); err != nil {
			return proto.Response{}, err
		}
		entries, err := fsbrowse.ListDir(req.Path)
		return proto.Response{Entries: entries}, err

	case proto.ReqReadTree:
		if err := requirePath(req); err != nil {
			return proto.Response{}, err
		}
		depth := req.MaxDepth
		if depth <= 0 {
			depth = d.cfg.Tree.MaxDepth
		}
		tree, err := fsbrowse.ListTree(req.Path, depth)
		return proto.Response{Tree: tree}, err

	case proto.ReqDeployRemote:
		if req.Remote == nil {
			return proto.Response{}, errs.New(errs.Invalid, "remote config is required")
		}
		res, err := d.remote.Deploy(ctx, *req.Remote)
		return proto.Response{Result: res}, err

	case proto.ReqRunRemote:
		if req.Remote == nil {
			return proto.Response{}, errs.New(errs.Invalid, "remote config is required")
		}
		if req.TargetPath == "" {
			return proto.Response{}, errs.New(errs.Invalid, "target path is required")
		}
		res, err := d.remote.RunRemote(ctx, *req.Remote, req.TestType, req.TargetPath)
		return proto.Response{Result: res}, err

	case proto.ReqCheckRemote:
		if req.Remote == nil {
			return proto.Response{}, errs.New(errs.Invalid, "remote config is required")
		}
		return proto.Response{Reachable: d.remote.CheckAccess(ctx, *req.Remote)}, nil

	case proto.ReqServiceStatus:
		if d.service == nil {
			return proto.Response{}, errNoService
		}
		st := d.service.Status(ctx)
		return proto.Response{Service: &st}, nil

	case proto.ReqServiceLogs:
		if d.service == nil {
			return proto.Response{}, errNoService
		}
		return proto.Response{Content: string(d.service.Logs())}, nil

	default:
		return proto.Response{}, errs.Errorf(errs.Invalid, "unknown request type: %s", req.Type)
	}
}

func requirePath(req proto.Request) error {
	if strings.TrimSpace(req.Path) == "" {
		return errs.Errorf(errs.Invalid, "%s: path is required", req.Type)
	}
	return nil
}

func (d *Daemon) handleRunTest(ctx context.Context, req proto.Request) (proto.Response, error) {
	project, err := d.projectFor(req.Project)
	if err != nil {
		return proto.Response{}, err
	}
	selector := req.TestType
	if selector == "" {
		selector = "all"
	}
	if !scripts.Known(selector) {
		d.log.Warn("unknown test type; running the full suite", "test_type", selector)
	}
	d.log.Info("running test", "project", project, "test_type", selector)

	res, err := scripts.RunLocal(ctx, d.runner, d.cfg.ScriptLocation(), project, selector)
	if err != nil {
		return proto.Response{}, err
	}
	return proto.Response{Project: project, Result: res}, nil
}

// handleSelectProject records the project folder. An empty path only reports
// the current selection.
func (d *Daemon) handleSelectProject(req proto.Request) (proto.Response, error) {
	if req.Path == "" {
		d.mu.Lock()
		project := d.project
		d.mu.Unlock()
		return proto.Response{Project: project}, nil
	}

	project, err := filepath.Abs(req.Path)
	if err != nil {
		return proto.Response{}, errs.Wrap(err, errs.Invalid, "project path")
	}
	info, err := os.Stat(project)
	if err != nil {
		return proto.Response{}, errs.FromFS(err, "select project")
	}
	if !info.IsDir() {
		return proto.Response{}, errs.Errorf(errs.Invalid, "%s is not a directory", project)
	}

	d.mu.Lock()
	d.project = project
	d.mu.Unlock()
	if err := d.saveState(state{Project: project}); err != nil {
		d.log.Warn("could not save selected project", "err", err)
	}
	d.log.Info("project selected", "project", project)
	return proto.Response{Project: project}, nil
}

// projectFor returns override when given, else the selected project.
func (d *Daemon) projectFor(override string) (string, error) {
	if override != "" {
		return filepath.Abs(override)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.project == "" {
		return "", errNoProject
	}
	return d.project, nil
}
