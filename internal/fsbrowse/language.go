package fsbrowse

import (
	"path/filepath"
	"strings"
)

var languages = map[string]string{
	"rs":         "rust",
	"js":         "javascript",
	"jsx":        "jsx",
	"ts":         "typescript",
	"tsx":        "tsx",
	"py":         "python",
	"php":        "php",
	"java":       "java",
	"c":          "c",
	"cpp":        "cpp",
	"cc":         "cpp",
	"cxx":        "cpp",
	"h":          "cpp",
	"hpp":        "cpp",
	"cs":         "csharp",
	"go":         "go",
	"rb":         "ruby",
	"swift":      "swift",
	"kt":         "kotlin",
	"html":       "html",
	"css":        "css",
	"scss":       "scss",
	"sass":       "scss",
	"json":       "json",
	"xml":        "xml",
	"yaml":       "yaml",
	"yml":        "yaml",
	"md":         "markdown",
	"markdown":   "markdown",
	"sql":        "sql",
	"sh":         "bash",
	"bash":       "bash",
	"dockerfile": "dockerfile",
	"toml":       "toml",
	"vue":        "vue",
	"svelte":     "svelte",
}

// LanguageFor returns the syntax-highlighting tag for a file name.
// Unknown extensions are "text".
func LanguageFor(name string) string {
	if strings.EqualFold(name, "Dockerfile") {
		return "dockerfile"
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if lang, ok := languages[ext]; ok {
		return lang
	}
	return "text"
}
