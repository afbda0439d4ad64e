package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/GriffinCanCode/filemanager/internal/infrastructure/logging"
	"github.com/GriffinCanCode/filemanager/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/filemanager/internal/shared/fserr"
	"github.com/GriffinCanCode/filemanager/internal/shared/paths"
)

// Config defines thumbnail cache behaviour
type Config struct {
	Root      string
	MaxWidth  int
	MaxHeight int
	// Persist writes thumbnails under Root; otherwise they are rendered
	// in memory on every request.
	Persist bool
}

// ImageFilter reports whether a file name denotes a thumbnail-able image
type ImageFilter func(name string) bool

// Cache maps sandbox files to resized copies mirrored under its root.
type Cache struct {
	cfg     Config
	root    string
	sandbox *paths.Resolver
	isImage ImageFilter
	codec   Codec
	group   singleflight.Group
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// New creates a cache. The root directory is created lazily on the
// first write.
func New(cfg Config, sandbox *paths.Resolver, isImage ImageFilter) (*Cache, error) {
	if cfg.Root == "" {
		return nil, errors.New("thumbnail root is empty")
	}
	root, err := paths.Canonical(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalise thumbnail root: %w", err)
	}
	if paths.Within(root, sandbox.Root()) {
		return nil, errors.New("thumbnail root must not contain the sandbox root")
	}

	return &Cache{
		cfg:     cfg,
		root:    root,
		sandbox: sandbox,
		isImage: isImage,
		codec:   ImagingCodec{},
		logger:  logging.NewNop(),
	}, nil
}

// WithCodec replaces the image codec
func (c *Cache) WithCodec(codec Codec) *Cache {
	c.codec = codec
	return c
}

// WithLogger sets the logger used for best-effort failures
func (c *Cache) WithLogger(logger *logging.Logger) *Cache {
	c.logger = logger.Named("thumbnail")
	return c
}

// WithMetrics adds metrics collection to the cache
func (c *Cache) WithMetrics(metrics *monitoring.Metrics) *Cache {
	c.metrics = metrics
	return c
}

// Root returns the canonical cache root
func (c *Cache) Root() string {
	return c.root
}

// Persistent reports whether thumbnails are written to disk
func (c *Cache) Persistent() bool {
	return c.cfg.Persist
}

// GetOrCreate returns the cached thumbnail for rel, generating it when it
// is missing or older than the source. An empty path means no thumbnail
// can be produced (missing source, not an image, empty file, undecodable);
// stale artifacts for vanished sources are removed.
func (c *Cache) GetOrCreate(ctx context.Context, rel string) (string, error) {
	src, info, err := c.sandbox.ResolveExisting(rel)
	if err != nil {
		if errors.Is(err, fserr.ErrNotFound) {
			c.forget(paths.Clean(rel), false)
			return "", nil
		}
		return "", err
	}

	canonical := c.sandbox.Rel(src)
	if !c.eligible(info) {
		c.metrics.RecordThumbnail(monitoring.ThumbnailSkipped)
		return "", nil
	}

	dst := c.mirror(canonical)
	if fresh(dst, info) {
		c.metrics.RecordThumbnail(monitoring.ThumbnailHit)
		return dst, nil
	}

	v, err, _ := c.group.Do(canonical, func() (interface{}, error) {
		// Another caller may have finished while we waited.
		if fresh(dst, info) {
			return dst, nil
		}
		c.metrics.RecordThumbnail(monitoring.ThumbnailMiss)

		data, err := c.render(ctx, src, info.Name())
		if err != nil {
			return "", err
		}
		if err := writeAtomic(dst, data); err != nil {
			return "", err
		}
		return dst, nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		c.metrics.RecordThumbnail(monitoring.ThumbnailFailed)
		c.logger.Warn("Thumbnail generation failed",
			zap.String("path", canonical),
			zap.Error(err),
		)
		return "", nil
	}
	return v.(string), nil
}

// Render produces a thumbnail in memory without touching the cache.
// A nil slice means no thumbnail can be produced.
func (c *Cache) Render(ctx context.Context, rel string) ([]byte, error) {
	src, info, err := c.sandbox.ResolveExisting(rel)
	if err != nil {
		return nil, err
	}
	if !c.eligible(info) {
		return nil, nil
	}

	data, err := c.render(ctx, src, info.Name())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.metrics.RecordThumbnail(monitoring.ThumbnailFailed)
		c.logger.Warn("Thumbnail rendering failed",
			zap.String("path", c.sandbox.Rel(src)),
			zap.Error(err),
		)
		return nil, nil
	}
	return data, nil
}

// Moved relocates the thumbnail of a moved or renamed file. Directory
// moves drop the old subtree; thumbnails regenerate lazily.
func (c *Cache) Moved(oldRel, newRel string, isDir bool) error {
	oldPath := c.mirror(oldRel)
	if isDir {
		return c.removeTree(oldPath)
	}

	if _, err := os.Stat(oldPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	newPath := c.mirror(newRel)
	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		return err
	}
	return os.Rename(oldPath, newPath)
}

// Removed deletes the thumbnail of rel, recursively for directories.
func (c *Cache) Removed(rel string, isDir bool) error {
	target := c.mirror(rel)
	if isDir {
		return c.removeTree(target)
	}
	return removeFile(target)
}

// Invalidate drops a single file's thumbnail after its source changed.
func (c *Cache) Invalidate(rel string) error {
	return removeFile(c.mirror(rel))
}

func (c *Cache) forget(rel string, isDir bool) {
	if err := c.Removed(rel, isDir); err != nil {
		c.logger.Warn("Failed to remove stale thumbnail",
			zap.String("path", rel),
			zap.Error(err),
		)
	}
}

func (c *Cache) eligible(info os.FileInfo) bool {
	return !info.IsDir() && info.Size() > 0 && c.isImage(info.Name())
}

// mirror maps a sandbox path to its place under the cache root. Cleaning
// a rooted path cannot climb above the root.
func (c *Cache) mirror(rel string) string {
	clean := path.Clean("/" + filepath.ToSlash(rel))
	return filepath.Join(c.root, filepath.FromSlash(clean))
}

func (c *Cache) removeTree(target string) error {
	if target == c.root {
		return errors.New("refusing to remove the thumbnail root")
	}
	return os.RemoveAll(target)
}

func (c *Cache) render(ctx context.Context, src, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	file, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, err := c.codec.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	bounds := img.Bounds()
	w, h := Fit(bounds.Dx(), bounds.Dy(), c.cfg.MaxWidth, c.cfg.MaxHeight)
	if w == 0 || h == 0 {
		return nil, errors.New("image has no pixels")
	}
	if w != bounds.Dx() || h != bounds.Dy() {
		img = c.codec.Resize(img, w, h)
	}

	var buf bytes.Buffer
	if err := c.codec.Encode(&buf, img, name); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	c.metrics.ObserveThumbnailGeneration(time.Since(start))
	return buf.Bytes(), nil
}

// fresh reports whether the cached file exists and is not older than src.
func fresh(dst string, src os.FileInfo) bool {
	info, err := os.Stat(dst)
	if err != nil {
		return false
	}
	return !info.ModTime().Before(src.ModTime())
}

// writeAtomic writes data next to dst and renames it into place.
func writeAtomic(dst string, data []byte) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := filepath.Join(dir, ".thumb-"+uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func removeFile(p string) error {
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
