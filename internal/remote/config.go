package remote

import (
	"strings"

	"github.com/gandalfthegui/scout94/internal/errs"
)

// DefaultPort is used when Config.Port is zero.
const DefaultPort = 22

// Config addresses one remote host. It is supplied per call.
type Config struct {
	Host       string `json:"host" yaml:"host"`
	User       string `json:"user" yaml:"user"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty"`
	KeyPath    string `json:"key_path,omitempty" yaml:"key_path,omitempty"`
	RemotePath string `json:"remote_path" yaml:"remote_path"`
}

func (c Config) port() int {
	if c.Port <= 0 {
		return DefaultPort
	}
	return c.Port
}

// target is the user@host form understood by ssh and scp.
func (c Config) target() string {
	return c.User + "@" + c.Host
}

func (c Config) validate(needPath bool) error {
	if strings.TrimSpace(c.Host) == "" {
		return errs.New(errs.Invalid, "remote host is required")
	}
	if strings.TrimSpace(c.User) == "" {
		return errs.New(errs.Invalid, "remote user is required")
	}
	// ssh and scp would parse a leading dash as an option.
	if strings.HasPrefix(c.Host, "-") {
		return errs.Errorf(errs.Invalid, "remote host %q must not start with '-'", c.Host)
	}
	if strings.HasPrefix(c.User, "-") {
		return errs.Errorf(errs.Invalid, "remote user %q must not start with '-'", c.User)
	}
	if c.Port < 0 || c.Port > 65535 {
		return errs.Errorf(errs.Invalid, "remote port %d out of range", c.Port)
	}
	if needPath && strings.TrimSpace(c.RemotePath) == "" {
		return errs.New(errs.Invalid, "remote path is required")
	}
	return nil
}
