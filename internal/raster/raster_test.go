package raster

import (
	"bytes"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/figprep/figprep/internal/document"
	"github.com/figprep/figprep/internal/testutil"
)

func TestOpen_MalformedPDF(t *testing.T) {
	r := New(DefaultConfig())

	_, err := r.Open([]byte("this is not a pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, document.ErrMalformedPDF)
}

func TestPixelDims(t *testing.T) {
	d := &Document{
		dpi:       400,
		PageCount: 1,
		dims:      []types.Dim{{Width: 612, Height: 792}},
	}

	w, h := d.PixelDims(1)
	assert.Equal(t, 3400, w) // 8.5in * 400dpi
	assert.Equal(t, 4400, h) // 11in * 400dpi

	// Out-of-range pages fall back to Letter geometry.
	w, h = d.PixelDims(7)
	assert.Equal(t, 3400, w)
	assert.Equal(t, 4400, h)
}

func TestParsePageFromFilename(t *testing.T) {
	n, err := parsePageFromFilename("page_3_image_1.png")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = parsePageFromFilename("thumbnail.png")
	assert.Error(t, err)

	_, err = parsePageFromFilename("page_x_image_1.png")
	assert.Error(t, err)
}

func TestLargestImage(t *testing.T) {
	small := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	big := image.NewNRGBA(image.Rect(0, 0, 100, 200))

	assert.Nil(t, largestImage(nil))
	assert.Equal(t, image.Image(big), largestImage([]image.Image{small, big}))
}

func TestComposePDF(t *testing.T) {
	_, err := ComposePDF(nil)
	assert.Error(t, err)

	page := testutil.DrawingPage(testutil.PageConfig{Width: 200, Height: 300})
	out, err := ComposePDF([]image.Image{page, page})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")), "expected a pdf header")
}

func TestRoundTrip_ComposeThenRender(t *testing.T) {
	page := testutil.DrawingPage(testutil.PageConfig{Width: 400, Height: 600})
	pdf, err := ComposePDF([]image.Image{page})
	require.NoError(t, err)

	r := New(Config{DPI: 72})
	doc, err := r.Open(pdf)
	require.NoError(t, err)
	defer func() { _ = doc.Close() }()

	assert.Equal(t, 1, doc.PageCount)

	pages, err := r.Render(t.Context(), doc, document.PageRange{From: 1, To: 1})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Positive(t, pages[0].Bounds().Dx())
	assert.Positive(t, pages[0].Bounds().Dy())
}

func TestRender_RangeValidation(t *testing.T) {
	page := testutil.DrawingPage(testutil.PageConfig{Width: 100, Height: 100})
	pdf, err := ComposePDF([]image.Image{page})
	require.NoError(t, err)

	r := New(DefaultConfig())
	doc, err := r.Open(pdf)
	require.NoError(t, err)
	defer func() { _ = doc.Close() }()

	_, err = r.Render(t.Context(), doc, document.PageRange{From: 1, To: 5})
	assert.ErrorIs(t, err, document.ErrPageOutOfRange)
}
