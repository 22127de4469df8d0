package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/figprep/figprep/internal/bbox"
	"github.com/figprep/figprep/internal/document"
	"github.com/figprep/figprep/internal/raster"
	"github.com/figprep/figprep/internal/tesseract"
	"github.com/figprep/figprep/internal/testutil"
)

// testPDF builds a small two-page PDF with drawing content.
func testPDF(t *testing.T) []byte {
	t.Helper()
	page := testutil.DrawingPage(testutil.PageConfig{
		Width:   400,
		Height:  600,
		Content: bbox.New(80, 100, 320, 500),
		Label:   "FIG. 1",
	})
	pdf, err := raster.ComposePDF([]image.Image{page, page})
	require.NoError(t, err)
	return pdf
}

func fixedWordsEngine(words []tesseract.Word) *testutil.FakeEngine {
	return &testutil.FakeEngine{
		WordsFn: func(_ context.Context, _ image.Image) ([]tesseract.Word, error) {
			return words, nil
		},
	}
}

func buildTestPipeline(t *testing.T, engine tesseract.Engine) *Pipeline {
	t.Helper()
	p, err := NewBuilder().
		WithDPI(72).
		WithWorkers(2).
		WithEngine(engine).
		Build(t.Context())
	require.NoError(t, err)
	return p
}

func TestBuild_EngineUnavailable(t *testing.T) {
	engine := &testutil.FakeEngine{PingErr: errors.New("no binary")}

	_, err := NewBuilder().WithEngine(engine).Build(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, document.ErrEngineUnavailable)
}

func TestProcess_WholeDocument(t *testing.T) {
	engine := fixedWordsEngine([]tesseract.Word{
		{Text: "FIG.1", Conf: 92, Box: bbox.New(10, 10, 80, 30)},
		{Text: "140", Conf: 85, Box: bbox.New(50, 120, 90, 140)},
	})
	p := buildTestPipeline(t, engine)

	res, err := p.Process(t.Context(), Request{Filename: "drawing.pdf", Data: testPDF(t)})
	require.NoError(t, err)

	assert.Equal(t, "drawing.pdf", res.Source)
	assert.Equal(t, 72, res.DPI)
	assert.Equal(t, 2, res.TotalPages)
	require.Len(t, res.Pages, 2)

	for i, pr := range res.Pages {
		assert.Equal(t, i+1, pr.PageNumber)
		assert.Equal(t, 0, pr.Rotation)
		assert.False(t, pr.Degraded)
		assert.NotNil(t, pr.Image)
		assert.Len(t, pr.Hints, 2)
	}

	// Both pages carry identical content, so both cropped bitmaps match.
	assert.Equal(t, res.Pages[0].Width, res.Pages[1].Width)
	assert.Equal(t, res.Pages[0].Height, res.Pages[1].Height)

	assert.Equal(t, "corrected_drawing.pdf", res.Artifacts.CorrectedName)
	assert.Equal(t, "ocr_log_drawing.txt", res.Artifacts.HintLogName)
	assert.NotEmpty(t, res.Artifacts.CorrectedPDF)
	assert.Contains(t, string(res.Artifacts.HintLog), "=== Page 1")
	assert.Contains(t, string(res.Artifacts.HintLog), "=== Page 2")
}

func TestProcess_CorrectsMixedRotations(t *testing.T) {
	upright := testutil.MarkerPage(400, 200)
	pdf, err := raster.ComposePDF([]image.Image{upright, testutil.Rotated(upright, 180), upright})
	require.NoError(t, err)

	engine := testutil.UprightEngine([]tesseract.Word{
		{Text: "FIG.", Conf: 95, Box: bbox.New(20, 20, 60, 40)},
		{Text: "1", Conf: 92, Box: bbox.New(65, 20, 80, 40)},
		{Text: "140", Conf: 88, Box: bbox.New(120, 120, 150, 140)},
	})
	p := buildTestPipeline(t, engine)

	res, err := p.Process(t.Context(), Request{Filename: "marker.pdf", Data: pdf})
	require.NoError(t, err)
	require.Len(t, res.Pages, 3)

	assert.Equal(t, 0, res.Pages[0].Rotation)
	assert.Equal(t, 180, res.Pages[1].Rotation)
	assert.Equal(t, 0, res.Pages[2].Rotation)

	// After correction every page crops to the same dimensions.
	for _, pr := range res.Pages[1:] {
		assert.Equal(t, res.Pages[0].Width, pr.Width)
		assert.Equal(t, res.Pages[0].Height, pr.Height)
	}
}

func TestProcess_PageRange(t *testing.T) {
	p := buildTestPipeline(t, fixedWordsEngine(nil))

	res, err := p.Process(t.Context(), Request{
		Filename: "drawing.pdf",
		Data:     testPDF(t),
		Pages:    document.Single(2),
	})
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, 2, res.Pages[0].PageNumber)
	assert.Equal(t, 2, res.TotalPages)
}

func TestProcess_RangeOutOfBounds(t *testing.T) {
	p := buildTestPipeline(t, fixedWordsEngine(nil))

	_, err := p.Process(t.Context(), Request{
		Filename: "drawing.pdf",
		Data:     testPDF(t),
		Pages:    document.PageRange{From: 1, To: 9},
	})
	assert.ErrorIs(t, err, document.ErrPageOutOfRange)
}

func TestProcess_MalformedPDF(t *testing.T) {
	p := buildTestPipeline(t, fixedWordsEngine(nil))

	_, err := p.Process(t.Context(), Request{Filename: "junk.pdf", Data: []byte("not a pdf")})
	assert.ErrorIs(t, err, document.ErrMalformedPDF)
}

func TestProcess_DegradedHintExtraction(t *testing.T) {
	// Rotation probes succeed (empty word lists), hint extraction fails.
	calls := 0
	var mu sync.Mutex
	engine := &testutil.FakeEngine{
		WordsFn: func(_ context.Context, _ image.Image) ([]tesseract.Word, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			// Four rotation probes per page come first; fail afterwards so
			// only the hint stage degrades.
			if calls > 8 {
				return nil, errors.New("ocr crashed")
			}
			return nil, nil
		},
	}
	p, err := NewBuilder().WithDPI(72).WithWorkers(1).WithEngine(engine).Build(t.Context())
	require.NoError(t, err)

	res, err := p.Process(t.Context(), Request{Filename: "drawing.pdf", Data: testPDF(t)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.DegradedPages())
	for _, pr := range res.Pages {
		assert.True(t, pr.Degraded)
		assert.Empty(t, pr.Hints)
	}
	assert.NotEmpty(t, res.Warnings)
	assert.Contains(t, string(res.Artifacts.HintLog), "ocr failed")
}

func TestProcess_DegradedRotationIsolated(t *testing.T) {
	// Page 2 is square, and the engine crashes on square inputs: all four of
	// its rotation probes fail while every other OCR call succeeds. The
	// unified crop box is not square, so the later hint pass still runs on
	// the degraded page.
	tall := testutil.DrawingPage(testutil.PageConfig{
		Width:   400,
		Height:  600,
		Content: bbox.New(80, 100, 320, 500),
		Label:   "FIG. 1",
	})
	square := testutil.DrawingPage(testutil.PageConfig{
		Width:   500,
		Height:  500,
		Content: bbox.New(80, 100, 420, 420),
		Label:   "FIG. 2",
	})
	pdf, err := raster.ComposePDF([]image.Image{tall, square, tall})
	require.NoError(t, err)

	words := []tesseract.Word{{Text: "FIG.1", Conf: 92, Box: bbox.New(10, 10, 80, 30)}}
	engine := &testutil.FakeEngine{
		WordsFn: func(_ context.Context, img image.Image) ([]tesseract.Word, error) {
			b := img.Bounds()
			if b.Dx() == b.Dy() {
				return nil, errors.New("ocr crashed")
			}
			return words, nil
		},
	}
	p := buildTestPipeline(t, engine)

	res, err := p.Process(t.Context(), Request{Filename: "mixed.pdf", Data: pdf})
	require.NoError(t, err)
	require.Len(t, res.Pages, 3)

	assert.True(t, res.Pages[1].Degraded)
	assert.Equal(t, "rotation detection failed", res.Pages[1].DegradedReason)
	assert.Equal(t, 0, res.Pages[1].Rotation)
	assert.NotEmpty(t, res.Pages[1].Hints)

	assert.False(t, res.Pages[0].Degraded)
	assert.False(t, res.Pages[2].Degraded)
	assert.Equal(t, 1, res.DegradedPages())
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "page 2: rotation detection failed")
}

func TestProcess_WarningsInPageOrder(t *testing.T) {
	// Ten pages whose OCR always fails: rotation warnings come first in
	// page order, then the hint warnings, with page 10 after page 2 rather
	// than alphabetized before it.
	imgs := make([]image.Image, 10)
	for i := range imgs {
		imgs[i] = testutil.MarkerPage(120, 80)
	}
	pdf, err := raster.ComposePDF(imgs)
	require.NoError(t, err)

	engine := &testutil.FakeEngine{
		WordsFn: func(_ context.Context, _ image.Image) ([]tesseract.Word, error) {
			return nil, errors.New("ocr crashed")
		},
	}
	p := buildTestPipeline(t, engine)

	res, err := p.Process(t.Context(), Request{Filename: "drawing.pdf", Data: pdf})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 20)
	for i := 0; i < 10; i++ {
		assert.Contains(t, res.Warnings[i], fmt.Sprintf("page %d: rotation detection failed", i+1))
		assert.Contains(t, res.Warnings[10+i], fmt.Sprintf("page %d: hint extraction failed", i+1))
	}
	assert.Equal(t, "rotation detection failed; hint extraction failed", res.Pages[0].DegradedReason)
}

func TestProcess_Cancelled(t *testing.T) {
	p := buildTestPipeline(t, fixedWordsEngine(nil))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := p.Process(ctx, Request{Filename: "drawing.pdf", Data: testPDF(t)})
	assert.Error(t, err)
}

func TestProgressCallback_StagesReported(t *testing.T) {
	var mu sync.Mutex
	var stages []string
	cb := &recordingCallback{onStage: func(s string) {
		mu.Lock()
		stages = append(stages, s)
		mu.Unlock()
	}}

	p, err := NewBuilder().
		WithDPI(72).
		WithEngine(fixedWordsEngine(nil)).
		WithProgressCallback(cb).
		Build(t.Context())
	require.NoError(t, err)

	_, err = p.Process(t.Context(), Request{Filename: "drawing.pdf", Data: testPDF(t)})
	require.NoError(t, err)

	assert.Equal(t, []string{StageRasterize, StageRotate, StageCrop, StageHints, StageArtifacts}, stages)
	assert.True(t, cb.completed)
}

type recordingCallback struct {
	onStage   func(string)
	completed bool
}

func (r *recordingCallback) OnStart(totalPages int) {}
func (r *recordingCallback) OnStage(stage string) {
	if r.onStage != nil {
		r.onStage(stage)
	}
}
func (r *recordingCallback) OnPage(done, total int)   {}
func (r *recordingCallback) OnComplete()              { r.completed = true }
func (r *recordingCallback) OnError(page int, err error) {}
