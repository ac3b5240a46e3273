// Package pathutil normalises file paths for matching and for messages.
package pathutil

import (
	"path/filepath"
	"strings"
)

// RedactPath reduces a full path to .../<parent>/<basename> for log lines
// and error messages. For example, "/home/user/.nudge/constraints.yaml"
// becomes ".../.nudge/constraints.yaml".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	dir := filepath.Dir(cleaned)
	base := filepath.Base(cleaned)
	parent := filepath.Base(dir)
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}

// ToSlashRelative rewrites path as a forward-slash path relative to root,
// so project globs like "src/**/*.go" match absolute paths sent by an
// agent. Paths outside root, or any path when root is empty, are only
// cleaned and slash-converted.
func ToSlashRelative(path, root string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	if root != "" && filepath.IsAbs(cleaned) {
		if rel, err := filepath.Rel(filepath.Clean(root), cleaned); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
			cleaned = rel
		}
	}
	return filepath.ToSlash(cleaned)
}
