// Package raster turns PDF pages into bitmaps and bitmaps back into PDFs.
//
// Scanned patent documents carry one full-page scan per page, so
// rasterization extracts the embedded page images with pdfcpu and scales
// them to the requested DPI using the page geometry. Pages without an
// embedded image come back as blank canvases so downstream stages always
// see a bitmap per requested page.
package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/figprep/figprep/internal/document"
)

// Config controls rasterization.
type Config struct {
	// DPI is the render resolution for page bitmaps.
	DPI int
}

// DefaultConfig provides sensible defaults.
func DefaultConfig() Config {
	return Config{DPI: 400}
}

// Rasterizer renders PDF pages to bitmaps at a fixed DPI.
type Rasterizer struct {
	cfg Config
}

// New creates a rasterizer.
func New(cfg Config) *Rasterizer {
	if cfg.DPI <= 0 {
		cfg.DPI = DefaultConfig().DPI
	}
	return &Rasterizer{cfg: cfg}
}

// DPI reports the configured render resolution.
func (r *Rasterizer) DPI() int { return r.cfg.DPI }

// Document is an opened PDF staged on disk, with its page geometry read
// up front. Close removes the staged copy.
type Document struct {
	path      string
	dpi       int
	PageCount int
	dims      []types.Dim
}

// Open stages the PDF bytes in a temporary file and reads its page
// geometry. A PDF pdfcpu cannot parse surfaces as ErrMalformedPDF.
func (r *Rasterizer) Open(data []byte) (*Document, error) {
	tmp, err := os.CreateTemp("", "figprep-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to stage pdf: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to stage pdf: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to stage pdf: %w", err)
	}

	count, err := api.PageCountFile(tmp.Name())
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("%w: %v", document.ErrMalformedPDF, err)
	}
	dims, err := api.PageDimsFile(tmp.Name())
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("%w: %v", document.ErrMalformedPDF, err)
	}

	return &Document{
		path:      tmp.Name(),
		dpi:       r.cfg.DPI,
		PageCount: count,
		dims:      dims,
	}, nil
}

// Close removes the staged PDF copy.
func (d *Document) Close() error {
	if d.path == "" {
		return nil
	}
	err := os.Remove(d.path)
	d.path = ""
	return err
}

// PixelDims returns the bitmap dimensions of the given 1-based page at
// the configured DPI. Pages whose geometry pdfcpu did not report fall
// back to US Letter.
func (d *Document) PixelDims(page int) (width, height int) {
	wPts, hPts := 612.0, 792.0
	if page >= 1 && page <= len(d.dims) {
		wPts = d.dims[page-1].Width
		hPts = d.dims[page-1].Height
	}
	scale := float64(d.dpi) / 72.0
	return int(math.Round(wPts * scale)), int(math.Round(hPts * scale))
}

// Render rasterizes the requested page range in order. Every returned
// bitmap has the page's DPI-derived dimensions; pages without an
// embedded scan render as blank white canvases.
func (r *Rasterizer) Render(ctx context.Context, doc *Document, rng document.PageRange) ([]*image.NRGBA, error) {
	if err := rng.Validate(doc.PageCount); err != nil {
		return nil, err
	}

	byPage, err := r.extractPageImages(doc.path, rng)
	if err != nil {
		return nil, err
	}

	pages := make([]*image.NRGBA, 0, rng.Count())
	for n := rng.From; n <= rng.To; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w, h := doc.PixelDims(n)
		src := largestImage(byPage[n])
		if src == nil {
			pages = append(pages, imaging.New(w, h, color.White))
			continue
		}
		pages = append(pages, imaging.Resize(src, w, h, imaging.Lanczos))
	}
	return pages, nil
}

// extractPageImages pulls the embedded images for the requested pages
// into a scratch directory and groups the decoded results by page.
func (r *Rasterizer) extractPageImages(path string, rng document.PageRange) (map[int][]image.Image, error) {
	tempDir, err := os.MkdirTemp("", "figprep-extract-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	pageStrings := make([]string, 0, rng.Count())
	for n := rng.From; n <= rng.To; n++ {
		pageStrings = append(pageStrings, strconv.Itoa(n))
	}

	if err := api.ExtractImagesFile(path, tempDir, pageStrings, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", document.ErrMalformedPDF, err)
	}

	return collectExtractedImages(tempDir)
}

// collectExtractedImages walks the scratch directory and groups images by
// page number. pdfcpu names extracted files page_<num>_image_<idx>.<ext>.
func collectExtractedImages(dir string) (map[int][]image.Image, error) {
	result := make(map[int][]image.Image)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		pageNum, err := parsePageFromFilename(info.Name())
		if err != nil {
			return nil
		}

		img, err := loadImageFile(path)
		if err != nil {
			// Unreadable embedded images degrade to a blank page.
			return nil
		}
		result[pageNum] = append(result[pageNum], img)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect extracted images: %w", err)
	}
	return result, nil
}

func parsePageFromFilename(filename string) (int, error) {
	if !strings.HasPrefix(filename, "page_") {
		return 0, fmt.Errorf("not a page file: %s", filename)
	}
	parts := strings.Split(filename, "_")
	if len(parts) < 2 {
		return 0, fmt.Errorf("unexpected filename format: %s", filename)
	}
	pageNum, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid page number in %s", filename)
	}
	return pageNum, nil
}

func loadImageFile(path string) (image.Image, error) {
	file, err := os.Open(path) //nolint:gosec // G304: scratch dir created by us
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	return img, err
}

// largestImage picks the scan with the greatest pixel area; pages
// occasionally carry small auxiliary images next to the full-page scan.
func largestImage(imgs []image.Image) image.Image {
	var best image.Image
	bestArea := 0
	for _, img := range imgs {
		b := img.Bounds()
		if area := b.Dx() * b.Dy(); area > bestArea {
			best, bestArea = img, area
		}
	}
	return best
}

// ComposePDF builds a PDF with one page per bitmap, in order. It backs
// the corrected-document artifact.
func ComposePDF(pages []image.Image) ([]byte, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages to compose")
	}

	readers := make([]io.Reader, 0, len(pages))
	for i, img := range pages {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", i+1, err)
		}
		readers = append(readers, &buf)
	}

	var out bytes.Buffer
	if err := api.ImportImages(nil, &out, readers, nil, nil); err != nil {
		return nil, fmt.Errorf("failed to compose pdf: %w", err)
	}
	return out.Bytes(), nil
}
