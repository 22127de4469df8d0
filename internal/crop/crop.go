// Package crop computes a single content bounding box shared by every page of
// a document and applies it uniformly, so downstream normalized coordinates
// stay comparable page-to-page.
package crop

import (
	"image"
	"log/slog"

	"github.com/disintegration/imaging"

	"github.com/figprep/figprep/internal/bbox"
)

// Config controls content segmentation and the unified crop.
type Config struct {
	// DetectWidth is the downscale width used for foreground segmentation;
	// detected extents are scaled back to full resolution.
	DetectWidth int
	// Threshold is the grayscale luminance (0..255) below which a pixel
	// counts as foreground. Scanned drawings sit on near-white background.
	Threshold uint8
	// Padding expands the unified box on every side before clamping.
	Padding int
}

// DefaultConfig provides sensible defaults.
func DefaultConfig() Config {
	return Config{
		DetectWidth: 800,
		Threshold:   250,
		Padding:     50,
	}
}

// Cropper derives and applies the unified crop box.
type Cropper struct {
	cfg Config
}

// NewCropper creates a cropper.
func NewCropper(cfg Config) *Cropper {
	if cfg.DetectWidth <= 0 {
		cfg.DetectWidth = DefaultConfig().DetectWidth
	}
	return &Cropper{cfg: cfg}
}

// PageBox returns the content extent of a single page in full-resolution
// pixel coordinates. A page with no distinguishable foreground falls back to
// its full extent.
func (c *Cropper) PageBox(img image.Image) bbox.Box {
	full := bbox.FromRect(img.Bounds().Sub(img.Bounds().Min))
	if full.Empty() {
		return full
	}

	ratio := float64(full.Width()) / float64(c.cfg.DetectWidth)
	if ratio < 1 {
		ratio = 1
	}
	detectW := int(float64(full.Width()) / ratio)
	detectH := int(float64(full.Height()) / ratio)
	if detectW < 1 || detectH < 1 {
		return full
	}

	small := imaging.Grayscale(imaging.Resize(img, detectW, detectH, imaging.NearestNeighbor))

	content, found := foregroundExtent(small, c.cfg.Threshold)
	if !found {
		return full
	}

	// Scale the detected extent back up and keep it inside the page.
	return content.Scale(ratio, ratio).Clamp(full)
}

// Unified computes the single crop box valid for every page: the union of all
// per-page content boxes, padded, clamped to the intersection of all page
// bounds. The second return is false when the union degenerates and cropping
// must be skipped entirely.
func (c *Cropper) Unified(pages []image.Image) (bbox.Box, bool) {
	if len(pages) == 0 {
		return bbox.Box{}, false
	}

	var union bbox.Box
	common := bbox.FromRect(pages[0].Bounds().Sub(pages[0].Bounds().Min))
	for _, img := range pages {
		union = union.Union(c.PageBox(img))

		full := bbox.FromRect(img.Bounds().Sub(img.Bounds().Min))
		common = bbox.New(0, 0,
			minInt(common.X1, full.X1),
			minInt(common.Y1, full.Y1))
	}

	unified := union.Pad(c.cfg.Padding).Clamp(common)
	if unified.Empty() {
		slog.Debug("unified crop box degenerate, skipping crop")
		return bbox.Box{}, false
	}
	return unified, true
}

// Apply crops img to the unified box. The box must lie within img's bounds;
// callers obtain it from Unified over the same page set.
func (c *Cropper) Apply(img image.Image, unified bbox.Box) *image.NRGBA {
	return imaging.Crop(img, unified.Rect())
}

// foregroundExtent scans a grayscale image for pixels darker than threshold
// and returns their bounding box.
func foregroundExtent(img *image.NRGBA, threshold uint8) (bbox.Box, bool) {
	b := img.Bounds()
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X, b.Min.Y
	found := false

	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride:]
		for x := b.Min.X; x < b.Max.X; x++ {
			// Grayscale NRGBA stores the luminance in R.
			if row[(x-b.Min.X)*4] < threshold {
				found = true
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}
	if !found {
		return bbox.Box{}, false
	}
	return bbox.New(minX, minY, maxX+1, maxY+1), true
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
