// scoutd – the scout94 control-panel backend.
//
// Usage:
//
//	scoutd [--root <dir>] [--config <file>] [--workdir <dir>] [--log-level <level>]
//
// scoutd makes sure it is the only copy running, supervises the companion
// websocket service, and serves the scout CLI on a Unix domain socket at
// <root>/scoutd.sock. On SIGINT, SIGTERM, SIGHUP or a shutdown request it
// stops the service, releases its instance marker and kills any orphaned
// service processes before exiting.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/gandalfthegui/scout94/internal/config"
	"github.com/gandalfthegui/scout94/internal/daemon"
	"github.com/gandalfthegui/scout94/internal/guard"
	"github.com/gandalfthegui/scout94/internal/proc"
	"github.com/gandalfthegui/scout94/internal/remote"
	"github.com/gandalfthegui/scout94/internal/shutdown"
	"github.com/gandalfthegui/scout94/internal/supervisor"
)

func main() {
	os.Exit(run())
}

func run() int {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "scoutd: cannot determine home directory: %v\n", err)
		return 1
	}
	defaultRoot := filepath.Join(homeDir, ".scout94")
	// SCOUT_ROOT points scoutd at a scratch directory without touching
	// ~/.scout94.
	if env := os.Getenv("SCOUT_ROOT"); env != "" {
		defaultRoot = env
	}
	cwd, _ := os.Getwd()

	rootDir := flag.String("root", defaultRoot, "scoutd data directory (env: SCOUT_ROOT)")
	configPath := flag.String("config", "", "config file (default <root>/scoutd.yaml)")
	workDir := flag.String("workdir", cwd, "directory the service location is resolved against")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "scoutd",
	})
	if lvl, err := log.ParseLevel(*logLevel); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.Warn("unknown log level; using info", "level", *logLevel)
	}

	if *configPath == "" {
		*configPath = filepath.Join(*rootDir, config.FileName)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "err", err)
		return 1
	}

	// ─── Singleton ──────────────────────────────────────────────────────────
	g := guard.New(guard.MarkerPath(cfg.Guard.Marker), proc.SignalProber{}, logger.WithPrefix("guard"))
	if err := g.Acquire(); err != nil {
		if errors.Is(err, guard.ErrAlreadyRunning) {
			fmt.Fprintf(os.Stderr, "scoutd: %v\n", err)
			return 1
		}
		logger.Error("claim instance marker", "err", err)
		return 1
	}

	// A previous scoutd that crashed or was killed outright may have left its
	// service behind.
	sweeper := shutdown.NewSweeper(cfg.Sweep.Patterns, logger.WithPrefix("sweep"))
	if killed, err := sweeper.Sweep(); err != nil {
		logger.Warn("startup orphan sweep", "err", err)
	} else if len(killed) > 0 {
		logger.Info("killed orphans from a previous run", "count", len(killed))
	}

	// ─── Service ────────────────────────────────────────────────────────────
	svc := supervisor.New(
		cfg.ServiceConfig(filepath.Join(*rootDir, "logs", "service.log")),
		logger.WithPrefix("supervisor"),
	)
	coord := shutdown.ForApp(logger.WithPrefix("shutdown"), svc, g, sweeper)

	var d *daemon.Daemon
	d, err = daemon.New(*rootDir, daemon.Options{
		Config:  cfg,
		Runner:  proc.ExecRunner{},
		Remote:  remote.NewExecutor(cfg.Transport(), cfg.ScriptLocation(), logger.WithPrefix("remote")),
		Service: svc,
		OnShutdown: func() {
			logger.Info("shutdown requested")
			d.Close()
		},
		Logger: logger.WithPrefix("daemon"),
	})
	if err != nil {
		logger.Error("daemon init", "err", err)
		coord.Run()
		return 1
	}

	svc.Start(*workDir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		d.Close()
	}()

	socketPath := filepath.Join(*rootDir, "scoutd.sock")
	runErr := d.Run(socketPath)
	if runErr != nil {
		logger.Error("daemon run", "err", runErr)
	}

	coord.Run()
	if runErr != nil {
		return 1
	}
	return 0
}
