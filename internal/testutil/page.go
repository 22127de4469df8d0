// Package testutil generates synthetic patent-drawing pages and fake OCR
// engines for tests, so the pipeline can be exercised without a PDF corpus or
// an installed Tesseract.
package testutil

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/figprep/figprep/internal/bbox"
)

// PageConfig describes a synthetic drawing page.
type PageConfig struct {
	Width   int
	Height  int
	Content bbox.Box // drawing extent; empty means a blank page
	Label   string   // optional text drawn at the top of the content box
}

// DrawingPage renders a white page with a dark rectangle outline standing in
// for line art, plus an optional figure label drawn with a basic font face.
func DrawingPage(cfg PageConfig) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	if !cfg.Content.Empty() {
		outlineRect(img, cfg.Content, 3)
		if cfg.Label != "" {
			drawer := &font.Drawer{
				Dst:  img,
				Src:  image.NewUniform(color.Black),
				Face: basicfont.Face7x13,
				Dot:  fixed.P(cfg.Content.X0+8, cfg.Content.Y0+16),
			}
			drawer.DrawString(cfg.Label)
		}
	}
	return img
}

// outlineRect draws a black rectangle outline with the given stroke width.
func outlineRect(img *image.NRGBA, b bbox.Box, stroke int) {
	black := image.NewUniform(color.Black)
	// top, bottom, left, right bands
	draw.Draw(img, image.Rect(b.X0, b.Y0, b.X1, b.Y0+stroke), black, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(b.X0, b.Y1-stroke, b.X1, b.Y1), black, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(b.X0, b.Y0, b.X0+stroke, b.Y1), black, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(b.X1-stroke, b.Y0, b.X1, b.Y1), black, image.Point{}, draw.Src)
}

// MarkerPage returns a white landscape page carrying a solid dark square in
// the top-left corner. The marker survives thumbnailing, so orientation can
// be judged at any scale with MarkerUpright.
func MarkerPage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	side := minInt(width, height) / 4
	draw.Draw(img, image.Rect(0, 0, side, side), image.NewUniform(color.Black), image.Point{}, draw.Src)
	return img
}

// Rotated returns img rotated counterclockwise by angle (0/90/180/270).
func Rotated(img image.Image, angle int) image.Image {
	switch angle {
	case 90:
		return imaging.Rotate90(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate270(img)
	default:
		return img
	}
}

// MarkerUpright reports whether a MarkerPage-derived image is in its original
// orientation: dark top-left corner, light bottom-right corner.
func MarkerUpright(img image.Image) bool {
	b := img.Bounds()
	side := minInt(b.Dx(), b.Dy()) / 8
	if side < 1 {
		return false
	}
	tl := meanLuma(img, image.Rect(b.Min.X, b.Min.Y, b.Min.X+side, b.Min.Y+side))
	br := meanLuma(img, image.Rect(b.Max.X-side, b.Max.Y-side, b.Max.X, b.Max.Y))
	return tl < 100 && br > 200
}

func meanLuma(img image.Image, r image.Rectangle) float64 {
	var sum, n float64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			sum += 0.299*float64(cr>>8) + 0.587*float64(cg>>8) + 0.114*float64(cb>>8)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
