package fsbrowse

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	sniffBytes       = 500
	minifiedMinBytes = 100
	minifiedMaxLines = 3
)

// isMinified reports bundled assets that are useless in a tree view. Names
// ending in .min.js or .min.css always count; other scripts and stylesheets
// count when their head is long but has almost no line breaks.
func isMinified(path, name string) bool {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".min.js") || strings.HasSuffix(lower, ".min.css") {
		return true
	}
	switch filepath.Ext(lower) {
	case ".js", ".jsx", ".css":
	default:
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false
	}
	head = head[:n]
	return n > minifiedMinBytes && bytes.Count(head, []byte{'\n'}) < minifiedMaxLines
}
