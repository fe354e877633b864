// Package config loads scoutd.yaml. Every field is optional; a missing file
// yields the defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gandalfthegui/scout94/internal/guard"
	"github.com/gandalfthegui/scout94/internal/remote"
	"github.com/gandalfthegui/scout94/internal/scripts"
	"github.com/gandalfthegui/scout94/internal/shutdown"
	"github.com/gandalfthegui/scout94/internal/supervisor"
)

// FileName is the config file name under the root directory.
const FileName = "scoutd.yaml"

const (
	TransportCLI    = "cli"
	TransportNative = "native"
)

// Duration is a time.Duration written as a Go duration string ("1s", "750ms").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Config holds the parsed contents of scoutd.yaml.
type Config struct {
	Scripts struct {
		Dir         string `yaml:"dir"`         // scanner checkout; default ~/CascadeProjects/scout94
		Interpreter string `yaml:"interpreter"` // default "php"
	} `yaml:"scripts"`

	Service struct {
		Dir     string   `yaml:"dir"` // relative to scoutd's working directory
		Command []string `yaml:"command"`
		URL     string   `yaml:"url"`
		Grace   Duration `yaml:"grace"`
	} `yaml:"service"`

	Sweep struct {
		Patterns []string `yaml:"patterns"`
	} `yaml:"sweep"`

	Guard struct {
		Marker string `yaml:"marker"` // file name under the temp dir, or an absolute path
	} `yaml:"guard"`

	Remote struct {
		Transport       string `yaml:"transport"` // cli or native
		InsecureHostKey bool   `yaml:"insecure_host_key"`
		KnownHosts      string `yaml:"known_hosts"`
	} `yaml:"remote"`

	Tree struct {
		MaxDepth int `yaml:"max_depth"`
	} `yaml:"tree"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{}
	c.Scripts.Dir = "~/CascadeProjects/scout94"
	c.Scripts.Interpreter = scripts.DefaultInterpreter
	c.Service.Dir = supervisor.DefaultDir
	c.Service.Command = append([]string(nil), supervisor.DefaultCommand...)
	c.Service.URL = supervisor.DefaultURL
	c.Service.Grace = Duration{supervisor.DefaultGrace}
	c.Sweep.Patterns = append([]string(nil), shutdown.DefaultPatterns...)
	c.Guard.Marker = guard.DefaultMarkerName
	c.Remote.Transport = TransportCLI
	return c
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, c.normalize()
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := c.normalize(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Scripts.Dir, err = ExpandHome(c.Scripts.Dir); err != nil {
		return err
	}
	if c.Remote.KnownHosts, err = ExpandHome(c.Remote.KnownHosts); err != nil {
		return err
	}
	switch c.Remote.Transport {
	case "":
		c.Remote.Transport = TransportCLI
	case TransportCLI, TransportNative:
	default:
		return fmt.Errorf("remote.transport: unknown transport %q (want %s or %s)", c.Remote.Transport, TransportCLI, TransportNative)
	}
	if len(c.Service.Command) == 0 {
		return fmt.Errorf("service.command must not be empty")
	}
	if c.Service.Grace.Duration <= 0 {
		c.Service.Grace.Duration = supervisor.DefaultGrace
	}
	if c.Tree.MaxDepth < 0 {
		return fmt.Errorf("tree.max_depth must not be negative")
	}
	return nil
}

// ExpandHome replaces a leading ~/ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// ServiceConfig is the supervisor view of the service section.
func (c *Config) ServiceConfig(logFile string) supervisor.Config {
	return supervisor.Config{
		Dir:     c.Service.Dir,
		Command: c.Service.Command,
		URL:     c.Service.URL,
		Grace:   c.Service.Grace.Duration,
		LogFile: logFile,
	}
}

// ScriptLocation is where the scanner lives and how it runs.
func (c *Config) ScriptLocation() scripts.Location {
	return scripts.Location{Dir: c.Scripts.Dir, Interpreter: c.Scripts.Interpreter}
}

// Transport builds the configured remote transport.
func (c *Config) Transport() remote.Transport {
	if c.Remote.Transport == TransportNative {
		return &remote.NativeTransport{
			KnownHostsPath:        c.Remote.KnownHosts,
			InsecureIgnoreHostKey: c.Remote.InsecureHostKey,
		}
	}
	return &remote.CLITransport{
		KnownHosts:      c.Remote.KnownHosts,
		InsecureHostKey: c.Remote.InsecureHostKey,
	}
}
