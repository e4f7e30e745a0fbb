// Package security confines the file system paths accepted from tool
// callers to the configured invoice directory.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned for paths that escape the invoice directory.
var ErrOutsideRoot = errors.New("path is outside the invoice directory")

// Sandbox resolves caller supplied paths against a root directory
type Sandbox struct {
	root string
}

// NewSandbox creates a sandbox rooted at root. The root does not have to
// exist yet.
func NewSandbox(root string) (*Sandbox, error) {
	if root == "" {
		return nil, fmt.Errorf("invoice directory cannot be empty")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve invoice directory: %w", err)
	}

	return &Sandbox{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute root directory.
func (s *Sandbox) Root() string {
	return s.root
}

// Resolve returns the absolute form of path. Relative paths are taken
// relative to the root. Symlinks are followed before the containment check.
func (s *Sandbox) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}
	clean := filepath.Clean(path)

	if !within(clean, s.root) && !within(clean, realPath(s.root)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}

	// A symlink inside the root may still point elsewhere, also for a
	// path whose leaf is about to be created.
	real, err := existingRealPath(clean)
	if err != nil || (!within(real, s.root) && !within(real, realPath(s.root))) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}

	return clean, nil
}

// ResolveDirectory resolves path and requires it to be an existing
// directory. An empty path means the root itself.
func (s *Sandbox) ResolveDirectory(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = s.root
	}

	dir, err := s.Resolve(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("directory does not exist: %s", path)
		}
		return "", fmt.Errorf("cannot access directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", path)
	}

	return dir, nil
}

func realPath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}

// existingRealPath resolves symlinks in the longest existing prefix of path
// and appends the components that do not exist yet. A dangling symlink in
// that prefix is an error since writing through it lands at its target.
func existingRealPath(path string) (string, error) {
	var missing []string
	current := path
	for {
		if _, err := os.Lstat(current); err == nil {
			break
		}
		parent := filepath.Dir(current)
		if parent == current {
			return path, nil
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}

	resolved, err := filepath.EvalSymlinks(current)
	if err != nil {
		return "", err
	}
	for i := len(missing) - 1; i >= 0; i-- {
		resolved = filepath.Join(resolved, missing[i])
	}
	return resolved, nil
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	prefix := dir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
