package filesystem

import (
	"io"
	"time"

	"github.com/GriffinCanCode/filemanager/internal/domain/archive"
)

// Descriptor types
const (
	TypeFile   = "file"
	TypeFolder = "folder"
)

// TypeFilterImages restricts a listing to image files
const TypeFilterImages = "images"

// FileDescriptor is the client view of a file or folder
type FileDescriptor struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Attributes FileAttributes `json:"attributes"`
}

// FileAttributes holds the metadata of a FileDescriptor
type FileAttributes struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Readable  bool      `json:"readable"`
	Writable  bool      `json:"writable"`
	Created   time.Time `json:"created"`
	Modified  time.Time `json:"modified"`
	Timestamp int64     `json:"timestamp"`
	Size      int64     `json:"size,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
}

// IsDir reports whether the descriptor denotes a folder
func (d *FileDescriptor) IsDir() bool {
	return d.Type == TypeFolder
}

// Summary totals the sandbox contents
type Summary struct {
	Files   int64 `json:"files"`
	Folders int64 `json:"folders"`
	Size    int64 `json:"size"`
}

// SkippedEntry is a path a best-effort walk could not process
type SkippedEntry struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// SearchResult separates matches from entries the walk had to skip
type SearchResult struct {
	Matches []FileDescriptor `json:"matches"`
	Skipped []SkippedEntry   `json:"skipped,omitempty"`
}

// ExtractResult lists what an extraction wrote and what it refused
type ExtractResult struct {
	Extracted []FileDescriptor  `json:"extracted"`
	Skipped   []archive.Skipped `json:"skipped,omitempty"`
}

// UploadFile is one file of an upload request
type UploadFile struct {
	Name string
	// Size is the declared size; negative when unknown.
	Size int64
	Body io.Reader
}

// Disposition tells the transport how to present a stream
type Disposition string

const (
	DispositionInline     Disposition = "inline"
	DispositionAttachment Disposition = "attachment"
)

// Stream is file content plus presentation hints. Callers must close Body.
type Stream struct {
	Name        string
	ContentType string
	Size        int64
	Disposition Disposition
	Body        io.ReadCloser
}

// Config holds engine options
type Config struct {
	// PublicPrefix is prepended to descriptor paths, e.g. "/files".
	PublicPrefix string
	// UploadLimit caps uploads and saves in bytes; zero disables it.
	UploadLimit int64
	// ReadOnly rejects every mutation.
	ReadOnly bool
	// AllowFolderDownload lets folders download as zip archives.
	AllowFolderDownload bool
	// ExtractMaxEntrySize skips larger archive entries; zero disables it.
	ExtractMaxEntrySize int64
}
