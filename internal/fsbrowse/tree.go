// Package fsbrowse produces display-oriented views of a project's files:
// a filtered, bounded-depth tree, flat directory listings, screenshots, and
// plain read/write access.
package fsbrowse

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/gandalfthegui/scout94/internal/errs"
)

// DefaultMaxDepth bounds ListTree when the caller passes zero.
const DefaultMaxDepth = 5

// Node is one entry in a project tree.
type Node struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	IsDirectory bool   `json:"is_directory"`
	Language    string `json:"language,omitempty"`
	Children    []Node `json:"children,omitempty"`
}

// denylist entries are matched as substrings of the entry name.
var denylist = []string{
	"node_modules", ".git", ".next", ".vscode", "dist", "build", "target",
	".DS_Store", "vendor", ".idea", "__pycache__", ".cache", "coverage",
	".env", ".venv", "venv", "out", ".output", ".nuxt", ".vercel",
	".netlify", ".turbo", ".parcel-cache",
}

// ListTree walks root and returns its filtered entries, directories first.
// Entries at depth maxDepth and below are never read; maxDepth <= 0 means
// DefaultMaxDepth.
func ListTree(root string, maxDepth int) ([]Node, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, errs.FromFS(err, "read tree")
	}
	if !info.IsDir() {
		return nil, errs.Errorf(errs.Invalid, "%s is not a directory", root)
	}

	w := &walker{maxDepth: maxDepth, fold: cases.Fold()}
	nodes, err := w.walk(root, 0)
	if err != nil {
		return nil, errs.FromFS(err, "read tree")
	}
	return nodes, nil
}

type walker struct {
	maxDepth int
	fold     cases.Caser
}

func (w *walker) walk(dir string, depth int) ([]Node, error) {
	if depth >= w.maxDepth {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var nodes []Node
	for _, e := range entries {
		name := e.Name()
		if skipName(name) {
			continue
		}
		full := filepath.Join(dir, name)
		isDir := isDirEntry(e, full)
		if !isDir && isMinified(full, name) {
			continue
		}

		n := Node{Name: name, Path: full, IsDirectory: isDir}
		if isDir {
			// An unreadable subdirectory is shown without children.
			if children, err := w.walk(full, depth+1); err == nil && len(children) > 0 {
				n.Children = children
			}
		} else {
			n.Language = LanguageFor(name)
		}
		nodes = append(nodes, n)
	}

	w.sort(nodes)
	return nodes, nil
}

func (w *walker) sort(nodes []Node) {
	keys := make(map[string]string, len(nodes))
	for _, n := range nodes {
		keys[n.Name] = w.fold.String(n.Name)
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.IsDirectory != b.IsDirectory {
			return a.IsDirectory
		}
		if keys[a.Name] != keys[b.Name] {
			return keys[a.Name] < keys[b.Name]
		}
		return a.Name < b.Name
	})
}

func skipName(name string) bool {
	if strings.HasPrefix(name, ".") && name != "." && name != ".." {
		return true
	}
	for _, bad := range denylist {
		if strings.Contains(name, bad) {
			return true
		}
	}
	return false
}

// isDirEntry follows symlinks so a linked directory is browsed like a real
// one. The depth bound stops link cycles.
func isDirEntry(e fs.DirEntry, full string) bool {
	if e.Type()&fs.ModeSymlink == 0 {
		return e.IsDir()
	}
	info, err := os.Stat(full)
	return err == nil && info.IsDir()
}
