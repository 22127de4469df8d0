package crop

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/figprep/figprep/internal/bbox"
	"github.com/figprep/figprep/internal/testutil"
)

func drawnPage(w, h int, content bbox.Box) image.Image {
	return testutil.DrawingPage(testutil.PageConfig{Width: w, Height: h, Content: content})
}

func TestPageBox_FindsContentExtent(t *testing.T) {
	content := bbox.New(200, 300, 900, 1100)
	c := NewCropper(DefaultConfig())

	got := c.PageBox(drawnPage(1600, 1600, content))

	// Downscaled detection is approximate; the extent must cover the drawn
	// content and stay close to it.
	assert.LessOrEqual(t, got.X0, content.X0)
	assert.LessOrEqual(t, got.Y0, content.Y0)
	assert.GreaterOrEqual(t, got.X1, content.X1)
	assert.GreaterOrEqual(t, got.Y1, content.Y1)
	assert.InDelta(t, content.X0, got.X0, 8)
	assert.InDelta(t, content.Y1, got.Y1, 8)
}

func TestPageBox_BlankPageFallsBackToFullExtent(t *testing.T) {
	c := NewCropper(DefaultConfig())
	got := c.PageBox(drawnPage(640, 480, bbox.Box{}))
	assert.Equal(t, bbox.New(0, 0, 640, 480), got)
}

func TestUnified_UnionContainedInEveryPage(t *testing.T) {
	c := NewCropper(DefaultConfig())
	pages := []image.Image{
		drawnPage(1600, 1200, bbox.New(100, 100, 700, 600)),
		drawnPage(1600, 1200, bbox.New(500, 300, 1400, 1000)),
		drawnPage(1600, 1200, bbox.New(300, 200, 900, 900)),
	}

	unified, ok := c.Unified(pages)
	require.True(t, ok)
	require.NoError(t, unified.Validate())

	for _, p := range pages {
		assert.True(t, unified.ContainedIn(bbox.FromRect(p.Bounds())))
	}
	// The union must cover every page's content.
	assert.LessOrEqual(t, unified.X0, 100)
	assert.GreaterOrEqual(t, unified.X1, 1400)
	assert.GreaterOrEqual(t, unified.Y1, 1000)
}

func TestUnified_BlankPageJoinsAsFullExtent(t *testing.T) {
	c := NewCropper(DefaultConfig())
	pages := []image.Image{
		drawnPage(800, 600, bbox.New(100, 100, 300, 300)),
		drawnPage(800, 600, bbox.Box{}), // pure white
	}

	unified, ok := c.Unified(pages)
	require.True(t, ok)
	// The blank page's full-extent fallback drags the union to the page size.
	assert.Equal(t, bbox.New(0, 0, 800, 600), unified)
}

func TestUnified_ClampsToSmallestPage(t *testing.T) {
	c := NewCropper(DefaultConfig())
	pages := []image.Image{
		drawnPage(800, 600, bbox.New(50, 50, 760, 560)),
		drawnPage(600, 800, bbox.New(50, 50, 560, 760)), // rotated sibling
	}

	unified, ok := c.Unified(pages)
	require.True(t, ok)
	for _, p := range pages {
		assert.True(t, unified.ContainedIn(bbox.FromRect(p.Bounds())))
	}
}

func TestUnified_NoPages(t *testing.T) {
	c := NewCropper(DefaultConfig())
	_, ok := c.Unified(nil)
	assert.False(t, ok)
}

func TestApply_UniformDimensionsAcrossPages(t *testing.T) {
	c := NewCropper(DefaultConfig())
	pages := []image.Image{
		drawnPage(1000, 800, bbox.New(100, 100, 500, 400)),
		drawnPage(1000, 800, bbox.New(200, 150, 800, 700)),
	}

	unified, ok := c.Unified(pages)
	require.True(t, ok)

	first := c.Apply(pages[0], unified)
	second := c.Apply(pages[1], unified)
	assert.Equal(t, first.Bounds().Dx(), second.Bounds().Dx())
	assert.Equal(t, first.Bounds().Dy(), second.Bounds().Dy())
	assert.Equal(t, unified.Width(), first.Bounds().Dx())
	assert.Equal(t, unified.Height(), first.Bounds().Dy())
}
