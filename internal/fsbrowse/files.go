package fsbrowse

import (
	"os"
	"path/filepath"

	"github.com/gandalfthegui/scout94/internal/errs"
)

// ReadText returns the contents of a file as text.
func ReadText(path string) (string, error) {
	data, err := ReadBytes(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadBytes returns the raw contents of a regular file.
func ReadBytes(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errs.FromFS(err, "read file")
	}
	if info.IsDir() {
		return nil, errs.Errorf(errs.Invalid, "%s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.FromFS(err, "read file")
	}
	return data, nil
}

// WriteText replaces the contents of path, creating parent directories.
func WriteText(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Wrap(err, errs.IO, "create parent directories")
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errs.FromFS(err, "write file")
	}
	return nil
}
