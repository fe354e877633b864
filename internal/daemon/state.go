package daemon

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// state is what survives a scoutd restart.
type state struct {
	Project string `yaml:"project,omitempty"`
}

func (d *Daemon) statePath() string {
	return filepath.Join(d.rootDir, "state.yaml")
}

func (d *Daemon) loadState() error {
	data, err := os.ReadFile(d.statePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var st state
	if err := yaml.Unmarshal(data, &st); err != nil {
		return err
	}
	if st.Project != "" {
		if info, err := os.Stat(st.Project); err != nil || !info.IsDir() {
			d.log.Warn("previously selected project is gone", "project", st.Project)
			return nil
		}
	}
	d.mu.Lock()
	d.project = st.Project
	d.mu.Unlock()
	return nil
}

// saveState replaces the state file atomically.
func (d *Daemon) saveState(st state) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return err
	}
	tmp := d.statePath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, d.statePath())
}
