package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/filemanager/internal/shared/fserr"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver(filepath.Join(t.TempDir(), "root"))
	require.NoError(t, err)
	return r
}

func TestNewResolverCreatesRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	r, err := NewResolver(dir)
	require.NoError(t, err)

	info, err := os.Stat(r.Root())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewResolverRejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := NewResolver(file)
	assert.Error(t, err)

	_, err = NewResolver("  ")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	r := newTestResolver(t)
	require.NoError(t, os.MkdirAll(filepath.Join(r.Root(), "docs", "sub"), 0o755))

	tests := []struct {
		name    string
		rel     string
		want    string
		wantErr error
	}{
		{"root", "/", r.Root(), nil},
		{"empty", "", r.Root(), nil},
		{"nested", "/docs/sub", filepath.Join(r.Root(), "docs", "sub"), nil},
		{"no leading slash", "docs", filepath.Join(r.Root(), "docs"), nil},
		{"dot dot inside", "/docs/sub/../", filepath.Join(r.Root(), "docs"), nil},
		{"missing leaf", "/docs/new.txt", filepath.Join(r.Root(), "docs", "new.txt"), nil},
		{"missing chain", "/x/y/z", filepath.Join(r.Root(), "x", "y", "z"), nil},
		{"escape", "/../etc/passwd", "", fserr.ErrInvalidPath},
		{"deep escape", "/docs/../../etc", "", fserr.ErrInvalidPath},
		{"nul byte", "/docs/\x00", "", fserr.ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.rel)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveSymlinks(t *testing.T) {
	r := newTestResolver(t)
	outside := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(r.Root(), "docs"), 0o755))

	require.NoError(t, os.Symlink(outside, filepath.Join(r.Root(), "escape")))
	require.NoError(t, os.Symlink(filepath.Join(r.Root(), "docs"), filepath.Join(r.Root(), "alias")))
	require.NoError(t, os.Symlink(filepath.Join(r.Root(), "gone"), filepath.Join(r.Root(), "dangling")))

	_, err := r.Resolve("/escape")
	assert.ErrorIs(t, err, fserr.ErrInvalidPath)

	_, err = r.Resolve("/escape/file.txt")
	assert.ErrorIs(t, err, fserr.ErrInvalidPath)

	_, err = r.Resolve("/dangling")
	assert.ErrorIs(t, err, fserr.ErrInvalidPath)

	got, err := r.Resolve("/alias/new.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(r.Root(), "docs", "new.txt"), got)
}

func TestResolveExisting(t *testing.T) {
	r := newTestResolver(t)
	require.NoError(t, os.WriteFile(filepath.Join(r.Root(), "a.txt"), []byte("hi"), 0o644))

	abs, info, err := r.ResolveExisting("/a.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(r.Root(), "a.txt"), abs)
	assert.Equal(t, int64(2), info.Size())

	_, _, err = r.ResolveExisting("/missing.txt")
	assert.ErrorIs(t, err, fserr.ErrNotFound)

	_, _, err = r.ResolveExisting("/a.txt/child")
	assert.ErrorIs(t, err, fserr.ErrNotFound)
}

func TestResolveEntryKeepsFinalSymlink(t *testing.T) {
	r := newTestResolver(t)
	outside := t.TempDir()
	folder := filepath.Join(r.Root(), "real")
	require.NoError(t, os.MkdirAll(folder, 0o755))
	require.NoError(t, os.Symlink(folder, filepath.Join(r.Root(), "shortcut")))
	require.NoError(t, os.Symlink(outside, filepath.Join(r.Root(), "escape")))
	require.NoError(t, os.Symlink(filepath.Join(r.Root(), "gone"), filepath.Join(r.Root(), "dangling")))

	tests := []struct {
		name string
		rel  string
		want string
		link bool
	}{
		{"link to folder", "/shortcut", filepath.Join(r.Root(), "shortcut"), true},
		{"trailing slash", "/shortcut/", filepath.Join(r.Root(), "shortcut"), true},
		{"link escaping the root", "/escape", filepath.Join(r.Root(), "escape"), true},
		{"dangling link", "/dangling", filepath.Join(r.Root(), "dangling"), true},
		{"plain folder", "/real", folder, false},
		{"dot dot", "/real/..", r.Root(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			abs, info, err := r.ResolveEntry(tt.rel)
			require.NoError(t, err)
			assert.Equal(t, tt.want, abs)
			assert.Equal(t, tt.link, IsSymlink(info))
		})
	}

	// The parent is still resolved, so escapes through it are rejected.
	_, _, err := r.ResolveEntry("/escape/file.txt")
	assert.ErrorIs(t, err, fserr.ErrInvalidPath)

	_, _, err = r.ResolveEntry("/../outside")
	assert.ErrorIs(t, err, fserr.ErrInvalidPath)

	_, _, err = r.ResolveEntry("/real/missing.txt")
	assert.ErrorIs(t, err, fserr.ErrNotFound)
}

func TestRelAndID(t *testing.T) {
	r := newTestResolver(t)

	assert.Equal(t, "/", r.Rel(r.Root()))
	assert.Equal(t, "/", r.ID(r.Root(), true))
	assert.Equal(t, "/docs/a.txt", r.Rel(filepath.Join(r.Root(), "docs", "a.txt")))
	assert.Equal(t, "/docs/", r.ID(filepath.Join(r.Root(), "docs"), true))

	assert.True(t, r.IsRoot(r.Root()))
	assert.ErrorIs(t, r.AssertNotRoot(r.Root(), "/"), fserr.ErrForbidden)
	assert.NoError(t, r.AssertNotRoot(filepath.Join(r.Root(), "docs"), "/docs"))
}

func TestWithin(t *testing.T) {
	assert.True(t, Within("/srv/files", "/srv/files"))
	assert.True(t, Within("/srv/files", "/srv/files/a/b"))
	assert.False(t, Within("/srv/files", "/srv/files-other"))
	assert.False(t, Within("/srv/files/a", "/srv/files"))
	assert.True(t, Within("/", "/anything"))
}

func TestCanonical(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "real")
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.Symlink(target, filepath.Join(base, "link")))

	got, err := Canonical(filepath.Join(base, "link", "thumbs", "x"))
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(target)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(want, "thumbs", "x"), got)
}

func TestClean(t *testing.T) {
	assert.Equal(t, "/", Clean(""))
	assert.Equal(t, "/docs", Clean("docs/"))
	assert.Equal(t, "/", Clean("/../.."))
}
