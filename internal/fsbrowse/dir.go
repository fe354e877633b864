package fsbrowse

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gandalfthegui/scout94/internal/errs"
)

// Entry is one item of a flat directory listing. Size is set for files only.
type Entry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	IsDirectory bool   `json:"is_directory"`
	Size        *int64 `json:"size,omitempty"`
}

// ListDir returns the immediate entries of dir sorted by name. No filtering
// is applied.
func ListDir(dir string) ([]Entry, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.FromFS(err, "list directory")
	}
	entries := make([]Entry, 0, len(des))
	for _, de := range des {
		e := Entry{
			Name:        de.Name(),
			Path:        filepath.Join(dir, de.Name()),
			IsDirectory: de.IsDir(),
		}
		if !e.IsDirectory {
			if info, err := de.Info(); err == nil {
				size := info.Size()
				e.Size = &size
			}
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// ListScreenshots returns the PNG and JPEG files under <project>/screenshots.
// A missing or unreadable directory yields an empty list.
func ListScreenshots(project string) []string {
	dir := filepath.Join(project, "screenshots")
	des, err := os.ReadDir(dir)
	if err != nil {
		return []string{}
	}
	paths := []string{}
	for _, de := range des {
		if de.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(de.Name())) {
		case ".png", ".jpg":
			paths = append(paths, filepath.Join(dir, de.Name()))
		}
	}
	sort.Strings(paths)
	return paths
}
