package paths

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/GriffinCanCode/filemanager/internal/shared/fserr"
)

// Separator used in client-facing paths
const Separator = "/"

// Resolver maps client paths onto a canonical sandbox root
type Resolver struct {
	root string
}

// NewResolver canonicalises root, creating it when missing.
func NewResolver(root string) (*Resolver, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("sandbox root is empty")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to make root absolute: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create root: %w", err)
	}

	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalise root: %w", err)
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sandbox root %s is not a directory", canonical)
	}

	return &Resolver{root: canonical}, nil
}

// Root returns the canonical sandbox root
func (r *Resolver) Root() string {
	return r.root
}

// Resolve turns a client path into a canonical absolute path inside the
// sandbox. Existing components are resolved through symlinks one at a
// time; missing trailing components are appended lexically. Any step that
// lands outside the root yields INVALID_PATH.
func (r *Resolver) Resolve(rel string) (string, error) {
	if strings.ContainsRune(rel, 0) {
		return "", fserr.InvalidPath(rel)
	}

	current := r.root
	exists := true

	for _, seg := range strings.Split(rel, Separator) {
		switch seg {
		case "", ".":
			continue
		case "..":
			if current == r.root {
				return "", fserr.InvalidPath(rel)
			}
			current = filepath.Dir(current)
			continue
		}

		next := filepath.Join(current, seg)
		if exists {
			info, err := os.Lstat(next)
			switch {
			case err != nil:
				// Everything below a missing component is lexical.
				exists = false
			case info.Mode()&fs.ModeSymlink != 0:
				target, err := filepath.EvalSymlinks(next)
				if err != nil {
					return "", fserr.InvalidPath(rel)
				}
				next = target
			}
		}

		if !Within(r.root, next) {
			return "", fserr.InvalidPath(rel)
		}
		current = next
	}

	return current, nil
}

// ResolveExisting resolves rel and requires the target to exist.
func (r *Resolver) ResolveExisting(rel string) (string, os.FileInfo, error) {
	abs, err := r.Resolve(rel)
	if err != nil {
		return "", nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return "", nil, fserr.NotFound(rel)
		}
		return "", nil, fserr.Server(err, rel)
	}
	return abs, info, nil
}

// ResolveEntry resolves rel like ResolveExisting, except that a symlink
// in the final element is not followed: the returned path and info
// describe the link itself. Callers that delete, move or rename use it so
// the operation lands on the entry the client named.
func (r *Resolver) ResolveEntry(rel string) (string, os.FileInfo, error) {
	if strings.ContainsRune(rel, 0) {
		return "", nil, fserr.InvalidPath(rel)
	}

	trimmed := strings.TrimRight(rel, Separator)
	dir, base := "", trimmed
	if i := strings.LastIndex(trimmed, Separator); i >= 0 {
		dir, base = trimmed[:i], trimmed[i+1:]
	}
	switch base {
	case "", ".", "..":
		return r.ResolveExisting(rel)
	}

	parent, err := r.Resolve(dir)
	if err != nil {
		return "", nil, fserr.InvalidPath(rel)
	}
	abs := filepath.Join(parent, base)

	info, err := os.Lstat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return "", nil, fserr.NotFound(rel)
		}
		return "", nil, fserr.Server(err, rel)
	}
	return abs, info, nil
}

// IsSymlink reports whether info describes a symbolic link
func IsSymlink(info os.FileInfo) bool {
	return info.Mode()&fs.ModeSymlink != 0
}

// Rel converts an absolute sandbox path back into a client path.
func (r *Resolver) Rel(abs string) string {
	rel, err := filepath.Rel(r.root, abs)
	if err != nil || rel == "." {
		return Separator
	}
	return Separator + filepath.ToSlash(rel)
}

// ID is the client identifier of abs; directories carry a trailing slash.
func (r *Resolver) ID(abs string, isDir bool) string {
	rel := r.Rel(abs)
	if isDir && rel != Separator {
		rel += Separator
	}
	return rel
}

// IsRoot reports whether abs is the sandbox root
func (r *Resolver) IsRoot(abs string) bool {
	return filepath.Clean(abs) == r.root
}

// AssertNotRoot rejects operations that would touch the root itself.
func (r *Resolver) AssertNotRoot(abs, rel string) error {
	if r.IsRoot(abs) {
		return fserr.Forbidden(rel)
	}
	return nil
}

// Within reports whether child equals parent or lies beneath it.
func Within(parent, child string) bool {
	parent = filepath.Clean(parent)
	child = filepath.Clean(child)
	if parent == child {
		return true
	}
	prefix := parent
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(child, prefix)
}

// Canonical evaluates symlinks along the longest existing prefix of p and
// appends the remainder lexically. Used for directories that may not
// exist yet.
func Canonical(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}

	var missing []string
	current := abs
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			parts := append([]string{resolved}, missing...)
			return filepath.Join(parts...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return abs, nil
		}
		missing = append([]string{filepath.Base(current)}, missing...)
		current = parent
	}
}

// Clean normalises a client path to a rooted, slash-separated form.
// It never escapes the root: leading ".." segments collapse.
func Clean(rel string) string {
	return path.Clean(Separator + rel)
}
