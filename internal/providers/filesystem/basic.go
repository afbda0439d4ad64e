package filesystem

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/GriffinCanCode/filemanager/internal/domain/archive"
	"github.com/GriffinCanCode/filemanager/internal/shared/fserr"
	"github.com/GriffinCanCode/filemanager/internal/shared/utils"
)

var errTooLarge = errors.New("payload exceeds upload limit")

// GetInfo describes a single file.
func (e *Engine) GetInfo(ctx context.Context, rel string) (desc *FileDescriptor, err error) {
	defer e.track("getinfo")(&err)

	abs, info, err := e.lookupFile(rel)
	if err != nil {
		return nil, err
	}
	d := e.describe(abs, info)
	return &d, nil
}

// ReadFile opens a file for inline display.
func (e *Engine) ReadFile(ctx context.Context, rel string) (stream *Stream, err error) {
	defer e.track("readfile")(&err)

	abs, info, err := e.lookupFile(rel)
	if err != nil {
		return nil, err
	}
	return e.open(abs, info, DispositionInline)
}

// GetImage streams an image, or its thumbnail when thumb is set. When no
// thumbnail can be produced the original image is served.
func (e *Engine) GetImage(ctx context.Context, rel string, thumb bool) (stream *Stream, err error) {
	defer e.track("getimage")(&err)

	abs, info, err := e.lookupFile(rel)
	if err != nil {
		return nil, err
	}
	if !e.rules.IsImage(info.Name()) {
		return nil, fserr.Forbidden(rel)
	}
	if !thumb {
		return e.open(abs, info, DispositionInline)
	}

	canonical := e.resolver.Rel(abs)
	if e.thumbs.Persistent() {
		cached, err := e.thumbs.GetOrCreate(ctx, canonical)
		if err != nil {
			return nil, err
		}
		if cached != "" {
			if cinfo, err := os.Stat(cached); err == nil {
				s, err := e.open(cached, cinfo, DispositionInline)
				if err == nil {
					s.Name = info.Name()
					return s, nil
				}
			}
		}
		return e.open(abs, info, DispositionInline)
	}

	data, err := e.thumbs.Render(ctx, canonical)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return e.open(abs, info, DispositionInline)
	}
	return &Stream{
		Name:        info.Name(),
		ContentType: mimetype.Detect(data).String(),
		Size:        int64(len(data)),
		Disposition: DispositionInline,
		Body:        io.NopCloser(bytes.NewReader(data)),
	}, nil
}

// Download streams a file as an attachment. Folders are zipped when
// folder downloads are enabled.
func (e *Engine) Download(ctx context.Context, rel string) (stream *Stream, err error) {
	defer e.track("download")(&err)

	abs, info, err := e.lookup(rel)
	if err != nil {
		return nil, err
	}
	if err := e.resolver.AssertNotRoot(abs, rel); err != nil {
		return nil, err
	}
	if !canRead(abs) {
		return nil, fserr.Forbidden(rel)
	}
	if !info.IsDir() {
		return e.open(abs, info, DispositionAttachment)
	}

	if !e.cfg.AllowFolderDownload {
		return nil, fserr.Forbidden(rel)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fserr.Server(err, rel)
	}
	if len(entries) == 0 {
		return nil, fserr.DirectoryEmpty(rel)
	}

	data, err := archive.ZipDirectory(ctx, abs, archive.ZipOptions{
		Skip: func(p string, isDir bool) bool {
			return e.isReserved(p) || !e.rules.MatchesRestriction(e.resolver.Rel(p), isDir)
		},
	})
	if err != nil {
		return nil, err
	}
	return &Stream{
		Name:        info.Name() + ".zip",
		ContentType: "application/zip",
		Size:        int64(len(data)),
		Disposition: DispositionAttachment,
		Body:        io.NopCloser(bytes.NewReader(data)),
	}, nil
}

// SaveFile overwrites an existing file with content.
func (e *Engine) SaveFile(ctx context.Context, rel string, content io.Reader) (desc *FileDescriptor, err error) {
	defer e.track("savefile")(&err)

	if err := e.checkWritable(rel); err != nil {
		return nil, err
	}
	abs, _, err := e.lookupFile(rel)
	if err != nil {
		return nil, err
	}
	if !canWrite(abs) {
		return nil, fserr.Forbidden(rel)
	}

	canonical := e.resolver.Rel(abs)
	tmp, _, err := e.spool(filepath.Dir(abs), content)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			return nil, e.tooLarge()
		}
		return nil, fserr.Server(err, canonical)
	}
	if err := os.Rename(tmp, abs); err != nil {
		os.Remove(tmp)
		return nil, fserr.Server(err, canonical)
	}
	e.warn("Failed to invalidate thumbnail", canonical, e.thumbs.Invalidate(canonical))

	d, err := e.describePath(abs)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Upload writes files into targetDir, replacing same-name files. Names are
// normalised first. Processing stops at the first rejected file; files
// already written stay in place.
func (e *Engine) Upload(ctx context.Context, targetDir string, files []UploadFile) (list []FileDescriptor, err error) {
	defer e.track("upload")(&err)

	if err := e.checkWritable(targetDir); err != nil {
		return nil, err
	}
	dir, _, err := e.lookupDir(targetDir)
	if err != nil {
		return nil, err
	}
	if !canWrite(dir) {
		return nil, fserr.Forbidden(targetDir)
	}

	list = make([]FileDescriptor, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return list, err
		}
		d, err := e.uploadOne(dir, file)
		if err != nil {
			return list, err
		}
		list = append(list, *d)
	}
	return list, nil
}

func (e *Engine) uploadOne(dir string, file UploadFile) (*FileDescriptor, error) {
	name := utils.NormalizeFileName(file.Name)
	if name == "" {
		return nil, fserr.ForbiddenName(file.Name)
	}
	if file.Size == 0 {
		return nil, fserr.EmptyPayload(name)
	}
	if e.cfg.UploadLimit > 0 && file.Size > e.cfg.UploadLimit {
		return nil, e.tooLarge()
	}

	target := filepath.Join(dir, name)
	rel := e.resolver.Rel(target)
	if e.isReserved(target) || !e.rules.MatchesRestriction(rel, false) {
		return nil, fserr.Forbidden(rel)
	}
	if info, err := os.Lstat(target); err == nil && info.IsDir() {
		return nil, fserr.AlreadyExists(rel + "/")
	}

	tmp, n, err := e.spool(dir, file.Body)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			return nil, e.tooLarge()
		}
		return nil, fserr.Server(err, rel)
	}
	if n == 0 {
		os.Remove(tmp)
		return nil, fserr.EmptyPayload(name)
	}

	mtype, err := mimetype.DetectFile(tmp)
	if err != nil || !e.rules.IsAllowedContent(mtype.String()) {
		os.Remove(tmp)
		return nil, fserr.Forbidden(rel)
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return nil, fserr.Server(err, rel)
	}
	e.metrics.AddUploadedBytes(n)
	e.warn("Failed to invalidate thumbnail", rel, e.thumbs.Invalidate(rel))

	d, err := e.describePath(target)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// spool copies body into a hidden temp file in dir, enforcing the upload
// limit. The caller renames or removes the temp file.
func (e *Engine) spool(dir string, body io.Reader) (string, int64, error) {
	tmp := filepath.Join(dir, ".upload-"+uuid.NewString())
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", 0, err
	}

	reader := body
	if e.cfg.UploadLimit > 0 {
		reader = io.LimitReader(body, e.cfg.UploadLimit+1)
	}
	n, err := io.Copy(file, reader)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err == nil && e.cfg.UploadLimit > 0 && n > e.cfg.UploadLimit {
		err = errTooLarge
	}
	if err != nil {
		os.Remove(tmp)
		return "", 0, err
	}
	return tmp, n, nil
}

func (e *Engine) tooLarge() error {
	return fserr.PayloadTooLarge(utils.FormatBytes(e.cfg.UploadLimit, true))
}

// open returns a stream over abs. The caller closes Body.
func (e *Engine) open(abs string, info os.FileInfo, disposition Disposition) (*Stream, error) {
	file, err := os.Open(abs)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fserr.Forbidden(e.resolver.Rel(abs))
		}
		return nil, fserr.Server(err, e.resolver.Rel(abs))
	}
	return &Stream{
		Name:        info.Name(),
		ContentType: contentType(abs),
		Size:        info.Size(),
		Disposition: disposition,
		Body:        file,
	}, nil
}
