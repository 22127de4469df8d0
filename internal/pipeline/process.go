package pipeline

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"time"

	"github.com/figprep/figprep/internal/document"
	"github.com/figprep/figprep/internal/hints"
	"github.com/figprep/figprep/internal/raster"
	"github.com/figprep/figprep/internal/rotation"
)

// Request describes one document parse.
type Request struct {
	// Filename is the client-supplied name, used to derive artifact names.
	Filename string
	// Data is the raw PDF.
	Data []byte
	// Pages selects the 1-based inclusive page range. The zero value means
	// the whole document.
	Pages document.PageRange
	// Progress overrides the pipeline-level callback for this request.
	Progress ProgressCallback
}

// Process runs the document through rasterization, rotation correction,
// unified cropping and hint extraction. Page-level failures degrade the
// affected page and are reported through warnings; only document-level
// failures (malformed input, bad range, cancellation) abort.
func (p *Pipeline) Process(ctx context.Context, req Request) (*document.Result, error) {
	progress := req.Progress
	if progress == nil {
		progress = p.cfg.Progress
	}
	if progress == nil {
		progress = NoOpProgressCallback{}
	}

	doc, err := p.rasterizer.Open(req.Data)
	if err != nil {
		documentsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	defer func() { _ = doc.Close() }()

	// Open-ended bounds default to the document edges.
	rng := req.Pages
	if rng.From == 0 {
		rng.From = 1
	}
	if rng.To == 0 {
		rng.To = doc.PageCount
	}
	if err := rng.Validate(doc.PageCount); err != nil {
		documentsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	progress.OnStart(rng.Count())
	defer progress.OnComplete()

	pages, err := p.rasterizePages(ctx, doc, rng, progress)
	if err != nil {
		documentsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	result := &document.Result{
		Source:     req.Filename,
		DPI:        p.rasterizer.DPI(),
		TotalPages: doc.PageCount,
	}

	if err := p.rotatePages(ctx, pages, result, progress); err != nil {
		documentsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	// All pages must be upright before the unified box can be computed.
	p.cropPages(pages, result, progress)

	if err := p.extractHints(ctx, req.Filename, pages, result, progress); err != nil {
		documentsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	p.assembleArtifacts(req.Filename, pages, result, progress)

	documentsTotal.WithLabelValues("ok").Inc()
	return result, nil
}

// rasterizePages renders the selected range and seeds the page slots.
func (p *Pipeline) rasterizePages(ctx context.Context, doc *raster.Document, rng document.PageRange, progress ProgressCallback) ([]*document.Page, error) {
	progress.OnStage(StageRasterize)
	start := time.Now()
	defer func() { stageDuration.WithLabelValues(StageRasterize).Observe(time.Since(start).Seconds()) }()

	bitmaps, err := p.rasterizer.Render(ctx, doc, rng)
	if err != nil {
		return nil, err
	}

	pages := make([]*document.Page, len(bitmaps))
	for i, bm := range bitmaps {
		pages[i] = &document.Page{Number: rng.From + i, Raw: bm}
	}
	return pages, nil
}

// rotatePages detects and applies the upright rotation per page in
// parallel. Detection failures keep the page as-is and mark it degraded;
// the marker is carried into the PageResult by extractHints.
func (p *Pipeline) rotatePages(ctx context.Context, pages []*document.Page, result *document.Result, progress ProgressCallback) error {
	progress.OnStage(StageRotate)
	start := time.Now()
	defer func() { stageDuration.WithLabelValues(StageRotate).Observe(time.Since(start).Seconds()) }()

	warnings := make([]string, len(pages))
	err := p.forEachPage(ctx, len(pages), progress, func(ctx context.Context, i int) {
		page := pages[i]
		res, err := p.detector.Detect(ctx, page.Raw)
		if err != nil {
			page.Rotation = 0
			page.Corrected = page.Raw
			page.DegradedReason = "rotation detection failed"
			warnings[i] = fmt.Sprintf("page %d: rotation detection failed, kept original orientation", page.Number)
			progress.OnError(page.Number, err)
			pagesTotal.WithLabelValues("degraded").Inc()
			return
		}
		page.Rotation = res.Angle
		page.RotationScore = res.Score
		page.Corrected = rotation.Rotate(page.Raw, res.Angle)
		rotationsApplied.WithLabelValues(strconv.Itoa(res.Angle)).Inc()
	})
	if err != nil {
		return err
	}
	result.Warnings = appendWarnings(result.Warnings, warnings)
	return nil
}

// appendWarnings folds per-index worker warnings into the result in page
// order, skipping empty slots.
func appendWarnings(dst, slots []string) []string {
	for _, w := range slots {
		if w != "" {
			dst = append(dst, w)
		}
	}
	return dst
}

// cropPages computes the unified content box across all corrected pages
// and applies it. A degenerate union keeps the pages uncropped.
func (p *Pipeline) cropPages(pages []*document.Page, result *document.Result, progress ProgressCallback) {
	progress.OnStage(StageCrop)
	start := time.Now()
	defer func() { stageDuration.WithLabelValues(StageCrop).Observe(time.Since(start).Seconds()) }()

	corrected := make([]image.Image, len(pages))
	for i, page := range pages {
		corrected[i] = page.Corrected
	}

	box, ok := p.cropper.Unified(corrected)
	result.CropBox = box
	result.Cropped = ok
	if !ok {
		for _, page := range pages {
			page.Cropped = page.Corrected
		}
		result.Warnings = append(result.Warnings, "crop: no content detected, pages kept at full size")
		return
	}
	for _, page := range pages {
		page.Cropped = p.cropper.Apply(page.Corrected, box)
	}
}

// extractHints OCRs the cropped pages in parallel, filling per-page
// results and the hint log in page order.
func (p *Pipeline) extractHints(ctx context.Context, filename string, pages []*document.Page, result *document.Result, progress ProgressCallback) error {
	progress.OnStage(StageHints)
	start := time.Now()
	defer func() { stageDuration.WithLabelValues(StageHints).Observe(time.Since(start).Seconds()) }()

	result.Pages = make([]document.PageResult, len(pages))
	log := hints.NewLog(len(pages))

	warnings := make([]string, len(pages))
	err := p.forEachPage(ctx, len(pages), progress, func(ctx context.Context, i int) {
		page := pages[i]
		b := page.Cropped.Bounds()
		pr := document.PageResult{
			PageNumber: page.Number,
			Width:      b.Dx(),
			Height:     b.Dy(),
			Rotation:   page.Rotation,
			Hints:      []document.Hint{},
			Image:      page.Cropped,
		}
		if page.DegradedReason != "" {
			pr.Degraded = true
			pr.DegradedReason = page.DegradedReason
		}

		pageHints, words, err := p.extractor.Extract(ctx, page.Cropped)
		if err != nil && ctx.Err() == nil {
			pr.Degraded = true
			if pr.DegradedReason != "" {
				pr.DegradedReason += "; hint extraction failed"
			} else {
				pr.DegradedReason = "hint extraction failed"
			}
			log.RecordFailure(i, page.Number, err)
			warnings[i] = fmt.Sprintf("page %d: hint extraction failed, no hints available", page.Number)
			progress.OnError(page.Number, err)
			pagesTotal.WithLabelValues("degraded").Inc()
		} else if err == nil {
			pr.Hints = pageHints
			log.Record(i, page.Number, words, pageHints)
			hintsExtracted.Add(float64(len(pageHints)))
			pagesTotal.WithLabelValues("ok").Inc()
		}
		result.Pages[i] = pr
	})
	if err != nil {
		return err
	}
	result.Warnings = appendWarnings(result.Warnings, warnings)

	result.Artifacts.HintLog = log.Bytes()
	result.Artifacts.HintLogName = document.HintLogArtifactName(filename)
	return nil
}

// assembleArtifacts rebuilds the corrected multi-page PDF. Assembly is
// best effort; failure leaves the artifact nil with a warning.
func (p *Pipeline) assembleArtifacts(filename string, pages []*document.Page, result *document.Result, progress ProgressCallback) {
	progress.OnStage(StageArtifacts)
	start := time.Now()
	defer func() { stageDuration.WithLabelValues(StageArtifacts).Observe(time.Since(start).Seconds()) }()

	imgs := make([]image.Image, len(pages))
	for i, page := range pages {
		imgs[i] = page.Cropped
	}

	pdf, err := raster.ComposePDF(imgs)
	if err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("corrected document assembly failed: %v", err))
		return
	}
	result.Artifacts.CorrectedPDF = pdf
	result.Artifacts.CorrectedName = document.CorrectedArtifactName(filename)
}
