package thumbnail

import (
	"image"
	"io"
	"math"

	"github.com/disintegration/imaging"

	// Registers the WebP decoder with image.Decode and image.DecodeConfig.
	_ "golang.org/x/image/webp"
)

// JPEGQuality is used when re-encoding JPEG thumbnails
const JPEGQuality = 85

// Codec decodes, scales and encodes images.
type Codec interface {
	Decode(r io.Reader) (image.Image, error)
	Resize(img image.Image, width, height int) image.Image
	Encode(w io.Writer, img image.Image, name string) error
}

// ImagingCodec implements Codec on disintegration/imaging.
type ImagingCodec struct{}

// Decode reads an image and applies its EXIF orientation.
func (ImagingCodec) Decode(r io.Reader) (image.Image, error) {
	return imaging.Decode(r, imaging.AutoOrientation(true))
}

// Resize scales img to exactly width x height.
func (ImagingCodec) Resize(img image.Image, width, height int) image.Image {
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

// Encode writes img in the format implied by name. Formats imaging cannot
// write (WebP) fall back to PNG.
func (ImagingCodec) Encode(w io.Writer, img image.Image, name string) error {
	format, err := imaging.FormatFromFilename(name)
	if err != nil {
		format = imaging.PNG
	}
	return imaging.Encode(w, img, format, imaging.JPEGQuality(JPEGQuality))
}

// Dimensions decodes just enough of r to report its size.
func Dimensions(r io.Reader) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// Fit computes the bounding box of a width x height image scaled into
// maxWidth x maxHeight. Aspect ratio is preserved and images are never
// upscaled. A non-positive bound leaves that axis unconstrained.
func Fit(width, height, maxWidth, maxHeight int) (int, int) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	fitsW := maxWidth <= 0 || width <= maxWidth
	fitsH := maxHeight <= 0 || height <= maxHeight
	if fitsW && fitsH {
		return width, height
	}

	ratio := math.Inf(1)
	if maxWidth > 0 {
		ratio = float64(maxWidth) / float64(width)
	}
	if maxHeight > 0 {
		ratio = math.Min(ratio, float64(maxHeight)/float64(height))
	}

	w := int(math.Round(float64(width) * ratio))
	h := int(math.Round(float64(height) * ratio))
	return max(w, 1), max(h, 1)
}
