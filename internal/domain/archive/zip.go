package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"

	"github.com/GriffinCanCode/filemanager/internal/shared/fserr"
)

// SkipFunc excludes an entry (and, for directories, its subtree) from an
// archive.
type SkipFunc func(abs string, isDir bool) bool

// ZipOptions tunes ZipDirectory
type ZipOptions struct {
	Skip SkipFunc
}

// entry is a walked path waiting to be written
type entry struct {
	abs   string
	name  string
	isDir bool
}

// ZipDirectory archives the contents of dir into memory. Entry names are
// relative to dir and slash-separated; directories end with "/". Symlinks
// are not followed. If any entry disappears or fails to read, the whole
// archive fails with ARCHIVE_ERROR.
func ZipDirectory(ctx context.Context, dir string, opts ZipOptions) ([]byte, error) {
	entries, err := collect(ctx, dir, opts.Skip)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := writeEntry(zw, e); err != nil {
			return nil, fserr.Archive(err, e.name)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fserr.Archive(err, filepath.Base(dir))
	}
	return buf.Bytes(), nil
}

// collect walks dir concurrently and returns its entries in name order.
func collect(ctx context.Context, dir string, skip SkipFunc) ([]entry, error) {
	var (
		mu      sync.Mutex
		entries []entry
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(p string, d fs.DirEntry, err error) error {
		// Check for context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return err
		}
		if p == dir || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if skip != nil && skip(p, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}

		mu.Lock()
		entries = append(entries, entry{abs: p, name: filepath.ToSlash(rel), isDir: d.IsDir()})
		mu.Unlock()
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fserr.Archive(err, filepath.Base(dir))
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	return entries, nil
}

func writeEntry(zw *zip.Writer, e entry) error {
	info, err := os.Stat(e.abs)
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = e.name

	if e.isDir {
		header.Name += "/"
		header.Method = zip.Store
		_, err := zw.CreateHeader(header)
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", e.name)
	}
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	file, err := os.Open(e.abs)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(w, file)
	return err
}

// Guard decides where an archive entry may be written. It returns the
// absolute target and false when the entry must be skipped.
type Guard func(name string, isDir bool) (target string, ok bool)

// Skip reasons reported for entries that were not extracted
const (
	ReasonRejected = "rejected"
	ReasonTooLarge = "too_large"
	ReasonSymlink  = "symlink"
	ReasonConflict = "conflict"
)

// Skipped is an archive entry that was not extracted
type Skipped struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Extracted is an archive entry written to disk
type Extracted struct {
	Name   string
	Target string
	IsDir  bool
}

// ExtractResult separates written entries from skipped ones
type ExtractResult struct {
	Extracted []Extracted
	Skipped   []Skipped
}

// ExtractOptions tunes Extract
type ExtractOptions struct {
	// MaxEntrySize skips entries whose uncompressed size exceeds it.
	// Zero means unlimited.
	MaxEntrySize int64
	// Accept inspects a fully written entry before it replaces its
	// target. Entries it refuses are removed and reported as rejected.
	Accept func(tmp string) bool
}

// Extract unpacks the zip at archivePath. Every entry is screened by
// guard before any byte is written; rejected entries are reported, not
// fatal. Only I/O failures abort with ARCHIVE_ERROR.
func Extract(ctx context.Context, archivePath string, guard Guard, opts ExtractOptions) (*ExtractResult, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fserr.Archive(err, filepath.Base(archivePath))
	}
	defer reader.Close()

	result := &ExtractResult{}
	for _, file := range reader.File {
		// Check for context cancellation
		if err := ctx.Err(); err != nil {
			return result, err
		}

		name := strings.ReplaceAll(file.Name, `\`, "/")
		isDir := strings.HasSuffix(name, "/") || file.FileInfo().IsDir()

		if file.Mode()&fs.ModeSymlink != 0 {
			result.Skipped = append(result.Skipped, Skipped{Name: file.Name, Reason: ReasonSymlink})
			continue
		}
		if opts.MaxEntrySize > 0 && file.UncompressedSize64 > uint64(opts.MaxEntrySize) {
			result.Skipped = append(result.Skipped, Skipped{Name: file.Name, Reason: ReasonTooLarge})
			continue
		}

		target, ok := guard(name, isDir)
		if !ok {
			result.Skipped = append(result.Skipped, Skipped{Name: file.Name, Reason: ReasonRejected})
			continue
		}

		if isDir {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return result, fserr.Archive(err, file.Name)
			}
			result.Extracted = append(result.Extracted, Extracted{Name: file.Name, Target: target, IsDir: true})
			continue
		}

		if info, err := os.Stat(target); err == nil && info.IsDir() {
			result.Skipped = append(result.Skipped, Skipped{Name: file.Name, Reason: ReasonConflict})
			continue
		}

		reason, err := extractFile(file, target, opts)
		if err != nil {
			return result, fserr.Archive(err, file.Name)
		}
		if reason != "" {
			result.Skipped = append(result.Skipped, Skipped{Name: file.Name, Reason: reason})
			continue
		}
		result.Extracted = append(result.Extracted, Extracted{Name: file.Name, Target: target})
	}

	return result, nil
}

var errEntryTooLarge = errors.New("entry exceeds size limit")

// extractFile copies one entry next to target and renames it into place.
// Headers can lie about sizes, so the copy itself is bounded too. A
// non-empty reason means the entry was dropped and target left untouched.
func extractFile(file *zip.File, target string, opts ExtractOptions) (string, error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	tmp := filepath.Join(dir, ".extract-"+uuid.NewString())
	dst, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}

	err = copyBounded(dst, src, opts.MaxEntrySize)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if errors.Is(err, errEntryTooLarge) {
		os.Remove(tmp)
		return ReasonTooLarge, nil
	}
	if err != nil {
		os.Remove(tmp)
		return "", err
	}
	if opts.Accept != nil && !opts.Accept(tmp) {
		os.Remove(tmp)
		return ReasonRejected, nil
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return "", nil
}

func copyBounded(dst io.Writer, src io.Reader, limit int64) error {
	if limit <= 0 {
		_, err := io.Copy(dst, src)
		return err
	}
	n, err := io.Copy(dst, io.LimitReader(src, limit+1))
	if err != nil {
		return err
	}
	if n > limit {
		return errEntryTooLarge
	}
	return nil
}
