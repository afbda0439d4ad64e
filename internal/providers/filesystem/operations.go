package filesystem

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"

	"github.com/otiai10/copy"

	"github.com/GriffinCanCode/filemanager/internal/shared/fserr"
	"github.com/GriffinCanCode/filemanager/internal/shared/paths"
)

// Move relocates a file or folder into targetDir, keeping its name.
// Within one volume the move is an atomic rename; across volumes it
// falls back to copy then delete, which is not atomic. A symlink is
// moved as a link.
func (e *Engine) Move(ctx context.Context, rel, targetDir string) (desc *FileDescriptor, err error) {
	defer e.track("move")(&err)

	src, info, err := e.lookupMutable(rel)
	if err != nil {
		return nil, err
	}
	dir, _, err := e.lookupDir(targetDir)
	if err != nil {
		return nil, err
	}
	if !canWrite(filepath.Dir(src)) || !canWrite(dir) {
		return nil, fserr.Forbidden(rel)
	}
	if info.IsDir() && paths.Within(src, dir) {
		return nil, fserr.Forbidden(rel)
	}

	target, targetRel, err := e.destination(dir, info.Name(), info.IsDir())
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	srcRel := e.resolver.Rel(src)
	if err := e.relocate(src, target); err != nil {
		return nil, fserr.Server(err, srcRel)
	}
	e.warn("Failed to move thumbnail", srcRel, e.thumbs.Moved(srcRel, targetRel, info.IsDir()))

	d, err := e.describePath(target)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// relocate renames src to dst, copying across volumes.
func (e *Engine) relocate(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}

	e.logger.Debug("Cross-volume move, falling back to copy")
	if info, err := os.Lstat(src); err == nil && paths.IsSymlink(info) {
		link, err := os.Readlink(src)
		if err != nil {
			return err
		}
		if err := os.Symlink(link, dst); err != nil {
			return err
		}
		return os.Remove(src)
	}
	// A failed copy leaves the partial target in place.
	if err := copy.Copy(src, dst, e.copyOptions()); err != nil {
		return err
	}
	return os.RemoveAll(src)
}

// Copy duplicates a file or folder into targetDir. Symlinks are not
// copied and thumbnails are left to regenerate. A failed copy is not
// rolled back.
func (e *Engine) Copy(ctx context.Context, rel, targetDir string) (desc *FileDescriptor, err error) {
	defer e.track("copy")(&err)

	if err := e.checkWritable(targetDir); err != nil {
		return nil, err
	}
	src, info, err := e.lookupEntry(rel)
	if err != nil {
		return nil, err
	}
	if paths.IsSymlink(info) {
		return nil, fserr.Forbidden(rel)
	}
	if err := e.resolver.AssertNotRoot(src, rel); err != nil {
		return nil, err
	}
	dir, _, err := e.lookupDir(targetDir)
	if err != nil {
		return nil, err
	}
	if !canRead(src) || !canWrite(dir) {
		return nil, fserr.Forbidden(rel)
	}
	if info.IsDir() && paths.Within(src, dir) {
		return nil, fserr.Forbidden(rel)
	}

	target, targetRel, err := e.destination(dir, info.Name(), info.IsDir())
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := copy.Copy(src, target, e.copyOptions()); err != nil {
		return nil, fserr.Server(err, targetRel)
	}

	d, err := e.describePath(target)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (e *Engine) copyOptions() copy.Options {
	return copy.Options{
		OnSymlink: func(string) copy.SymlinkAction {
			return copy.Skip
		},
		Skip: func(_ os.FileInfo, src, _ string) (bool, error) {
			return e.isReserved(src), nil
		},
		PreserveTimes: true,
	}
}

// Rename changes the base name of a file or folder in place.
func (e *Engine) Rename(ctx context.Context, rel, name string) (desc *FileDescriptor, err error) {
	defer e.track("rename")(&err)

	if err := checkName(name); err != nil {
		return nil, err
	}
	src, info, err := e.lookupMutable(rel)
	if err != nil {
		return nil, err
	}
	parent := filepath.Dir(src)
	if !canWrite(parent) {
		return nil, fserr.Forbidden(rel)
	}

	target, targetRel, err := e.destination(parent, name, info.IsDir())
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	srcRel := e.resolver.Rel(src)
	if err := os.Rename(src, target); err != nil {
		return nil, fserr.Server(err, srcRel)
	}
	e.warn("Failed to move thumbnail", srcRel, e.thumbs.Moved(srcRel, targetRel, info.IsDir()))

	d, err := e.describePath(target)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Delete removes a file or folder recursively and returns its descriptor
// as it was before removal. A symlink is unlinked, never its target.
func (e *Engine) Delete(ctx context.Context, rel string) (desc *FileDescriptor, err error) {
	defer e.track("delete")(&err)

	abs, info, err := e.lookupMutable(rel)
	if err != nil {
		return nil, err
	}
	if !canWrite(filepath.Dir(abs)) {
		return nil, fserr.Forbidden(rel)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snapshot := e.describe(abs, info)
	absRel := e.resolver.Rel(abs)
	if info.IsDir() {
		err = os.RemoveAll(abs)
	} else {
		err = os.Remove(abs)
	}
	if err != nil {
		return nil, fserr.Server(err, absRel)
	}
	e.warn("Failed to remove thumbnail", absRel, e.thumbs.Removed(absRel, info.IsDir()))

	return &snapshot, nil
}
