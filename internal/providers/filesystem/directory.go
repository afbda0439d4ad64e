package filesystem

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/GriffinCanCode/filemanager/internal/shared/fserr"
	"github.com/GriffinCanCode/filemanager/internal/shared/utils"
)

// ReadFolder lists the immediate children of a folder. Restricted entries
// and the thumbnail tree are silently omitted; the "images" filter keeps
// folders and image files only. Folders sort first, then by name.
func (e *Engine) ReadFolder(ctx context.Context, rel, typeFilter string) (list []FileDescriptor, err error) {
	defer e.track("readfolder")(&err)

	abs, _, err := e.lookupDir(rel)
	if err != nil {
		return nil, err
	}
	if !canRead(abs) {
		return nil, fserr.Forbidden(rel)
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fserr.Server(err, rel)
	}

	list = make([]FileDescriptor, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		childRel := e.resolver.Rel(filepath.Join(abs, entry.Name()))
		// Re-resolve so symlinks escaping the sandbox are dropped.
		childAbs, info, err := e.resolver.ResolveExisting(childRel)
		if err != nil || e.isReserved(childAbs) {
			continue
		}
		if !e.rules.MatchesRestriction(childRel, info.IsDir()) {
			continue
		}
		if typeFilter == TypeFilterImages && !info.IsDir() && !e.rules.IsImage(info.Name()) {
			continue
		}

		d := e.describe(childAbs, info)
		// Keep the listed name and location for symlinked entries.
		d.ID = e.resolver.ID(filepath.Join(abs, entry.Name()), info.IsDir())
		d.Attributes.Name = entry.Name()
		d.Attributes.Path = e.publicPath(d.ID)
		list = append(list, d)
	}

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].IsDir() != list[j].IsDir() {
			return list[i].IsDir()
		}
		return strings.ToLower(list[i].Attributes.Name) < strings.ToLower(list[j].Attributes.Name)
	})
	return list, nil
}

// AddFolder creates a folder named after the normalised name.
func (e *Engine) AddFolder(ctx context.Context, rel, name string) (desc *FileDescriptor, err error) {
	defer e.track("addfolder")(&err)

	if err := e.checkWritable(rel); err != nil {
		return nil, err
	}
	parent, _, err := e.lookupDir(rel)
	if err != nil {
		return nil, err
	}
	if !canWrite(parent) {
		return nil, fserr.Forbidden(rel)
	}

	folder := utils.NormalizeName(name)
	if folder == "" {
		return nil, fserr.ForbiddenName(name)
	}
	if !e.rules.IsAllowed(folder, true) {
		return nil, fserr.ForbiddenName(folder)
	}

	target, targetRel, err := e.destination(parent, folder, true)
	if err != nil {
		return nil, err
	}
	if err := os.Mkdir(target, 0o755); err != nil {
		if os.IsExist(err) {
			return nil, fserr.AlreadyExists(targetRel + "/")
		}
		return nil, fserr.Server(err, targetRel)
	}

	d, err := e.describePath(target)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Summarize totals files, folders and bytes below the root. Unreadable
// files are counted without bytes; the thumbnail tree is excluded.
func (e *Engine) Summarize(ctx context.Context) (summary *Summary, err error) {
	defer e.track("summarize")(&err)

	root := e.resolver.Root()
	var (
		mu  sync.Mutex
		sum Summary
	)

	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, root, func(p string, d fs.DirEntry, err error) error {
		// Check for context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if p == root {
			return nil
		}
		if d != nil && d.IsDir() && e.isReserved(p) {
			return filepath.SkipDir
		}
		if err != nil {
			// Unreadable entry: count it, contribute nothing. A directory
			// that cannot be listed was already counted as a folder.
			if d == nil || !d.IsDir() {
				mu.Lock()
				sum.Files++
				mu.Unlock()
			}
			return nil
		}

		if d.IsDir() {
			mu.Lock()
			sum.Folders++
			mu.Unlock()
			return nil
		}

		var size int64
		if info, err := d.Info(); err == nil && info.Mode().IsRegular() {
			size = info.Size()
		}
		mu.Lock()
		sum.Files++
		sum.Size += size
		mu.Unlock()
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fserr.Server(err, "/")
	}
	return &sum, nil
}
