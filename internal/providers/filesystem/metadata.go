package filesystem

import (
	"io"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"

	"github.com/GriffinCanCode/filemanager/internal/domain/thumbnail"
	"github.com/GriffinCanCode/filemanager/internal/shared/fserr"
)

// DefaultContentType is served when detection fails
const DefaultContentType = "application/octet-stream"

// charsetSampleSize bounds the bytes read for charset detection
const charsetSampleSize = 8 * 1024

// describe builds a fresh descriptor for abs.
func (e *Engine) describe(abs string, info os.FileInfo) FileDescriptor {
	isDir := info.IsDir()
	id := e.resolver.ID(abs, isDir)

	d := FileDescriptor{
		ID:   id,
		Type: TypeFile,
		Attributes: FileAttributes{
			Name:      info.Name(),
			Path:      e.publicPath(id),
			Readable:  canRead(abs),
			Writable:  canWrite(abs),
			Created:   createdTime(abs, info),
			Modified:  info.ModTime(),
			Timestamp: info.ModTime().UnixMilli(),
		},
	}
	if isDir {
		d.Type = TypeFolder
		return d
	}

	d.Attributes.Size = info.Size()
	if info.Mode().IsRegular() && info.Size() > 0 && e.rules.IsImage(info.Name()) {
		d.Attributes.Width, d.Attributes.Height = imageDimensions(abs)
	}
	return d
}

// describePath stats abs without following a final symlink and describes it.
func (e *Engine) describePath(abs string) (FileDescriptor, error) {
	info, err := os.Lstat(abs)
	if err != nil {
		return FileDescriptor{}, fserr.Server(err, e.resolver.Rel(abs))
	}
	return e.describe(abs, info), nil
}

func (e *Engine) publicPath(id string) string {
	prefix := strings.TrimSuffix(e.cfg.PublicPrefix, "/")
	if prefix == "" {
		return id
	}
	return prefix + id
}

// imageDimensions returns 0,0 for unreadable images.
func imageDimensions(abs string) (int, int) {
	file, err := os.Open(abs)
	if err != nil {
		return 0, 0
	}
	defer file.Close()

	w, h, err := thumbnail.Dimensions(file)
	if err != nil {
		return 0, 0
	}
	return w, h
}

// contentType sniffs the media type of abs. Text types without a
// declared charset get one from statistical detection.
func contentType(abs string) string {
	mtype, err := mimetype.DetectFile(abs)
	if err != nil {
		return DefaultContentType
	}

	ct := mtype.String()
	if strings.HasPrefix(ct, "text/") && !strings.Contains(ct, "charset=") {
		if charset := detectCharset(abs); charset != "" {
			ct += "; charset=" + strings.ToLower(charset)
		}
	}
	return ct
}

func detectCharset(abs string) string {
	file, err := os.Open(abs)
	if err != nil {
		return ""
	}
	defer file.Close()

	sample, err := io.ReadAll(io.LimitReader(file, charsetSampleSize))
	if err != nil || len(sample) == 0 {
		return ""
	}

	result, err := chardet.NewTextDetector().DetectBest(sample)
	if err != nil {
		return ""
	}
	return result.Charset
}
