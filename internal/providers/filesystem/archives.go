package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/filemanager/internal/domain/archive"
	"github.com/GriffinCanCode/filemanager/internal/shared/fserr"
	"github.com/GriffinCanCode/filemanager/internal/shared/paths"
)

// Archive metric labels
const (
	directionExtract = "extract"
	resultWritten    = "written"
	resultSkipped    = "skipped"
)

// Extract unpacks a zip file into targetDir. Entries that would land
// outside targetDir, in the thumbnail tree or on a restricted path are
// skipped and reported, as are files whose sniffed content type is denied.
func (e *Engine) Extract(ctx context.Context, rel, targetDir string) (result *ExtractResult, err error) {
	defer e.track("extract")(&err)

	if err := e.checkWritable(targetDir); err != nil {
		return nil, err
	}
	src, info, err := e.lookupFile(rel)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(filepath.Ext(info.Name()), ".zip") {
		return nil, fserr.Forbidden(rel)
	}
	dir, _, err := e.lookupDir(targetDir)
	if err != nil {
		return nil, err
	}
	if !canRead(src) || !canWrite(dir) {
		return nil, fserr.Forbidden(targetDir)
	}

	dirRel := e.resolver.Rel(dir)
	guard := func(name string, isDir bool) (string, bool) {
		// Joined textually so ".." segments reach the resolver.
		target, err := e.resolver.Resolve(dirRel + paths.Separator + name)
		if err != nil || target == dir || !paths.Within(dir, target) {
			return "", false
		}
		if e.isReserved(target) || !e.rules.MatchesRestriction(e.resolver.Rel(target), isDir) {
			return "", false
		}
		return target, true
	}

	accept := func(tmp string) bool {
		mtype, err := mimetype.DetectFile(tmp)
		return err == nil && e.rules.IsAllowedContent(mtype.String())
	}

	extracted, err := archive.Extract(ctx, src, guard, archive.ExtractOptions{
		MaxEntrySize: e.cfg.ExtractMaxEntrySize,
		Accept:       accept,
	})
	if extracted != nil {
		for range extracted.Extracted {
			e.metrics.RecordArchiveEntry(directionExtract, resultWritten)
		}
		for _, s := range extracted.Skipped {
			e.metrics.RecordArchiveEntry(directionExtract, resultSkipped)
			e.logger.Debug("Skipped archive entry",
				zap.String("entry", s.Name),
				zap.String("reason", s.Reason),
			)
		}
	}
	if err != nil {
		return nil, err
	}

	result = &ExtractResult{
		Extracted: make([]FileDescriptor, 0, len(extracted.Extracted)),
		Skipped:   extracted.Skipped,
	}
	for _, entry := range extracted.Extracted {
		info, err := os.Stat(entry.Target)
		if err != nil {
			e.warn("Extracted entry vanished", entry.Name, err)
			continue
		}
		result.Extracted = append(result.Extracted, e.describe(entry.Target, info))
		e.warn("Failed to invalidate thumbnail", entry.Name, e.invalidateExtracted(entry))
	}
	return result, nil
}

// invalidateExtracted drops stale thumbnails of overwritten files.
func (e *Engine) invalidateExtracted(entry archive.Extracted) error {
	if entry.IsDir {
		return nil
	}
	return e.thumbs.Invalidate(e.resolver.Rel(entry.Target))
}
