// Package pipeline wires rasterization, rotation correction, cropping and
// hint extraction into a single document-processing flow.
package pipeline

import (
	"context"
	"fmt"
	"runtime"

	"github.com/figprep/figprep/internal/crop"
	"github.com/figprep/figprep/internal/document"
	"github.com/figprep/figprep/internal/hints"
	"github.com/figprep/figprep/internal/raster"
	"github.com/figprep/figprep/internal/rotation"
	"github.com/figprep/figprep/internal/tesseract"
)

// Config holds configuration for the pipeline and its stages.
type Config struct {
	Raster   raster.Config
	Rotation rotation.Config
	Crop     crop.Config
	Hints    hints.Config
	OCR      tesseract.Config

	// Workers is the size of the per-page worker pools (0 = NumCPU).
	Workers int
	// Progress receives stage and page updates; nil means no reporting.
	Progress ProgressCallback
}

// DefaultConfig returns a default pipeline config with stage defaults.
func DefaultConfig() Config {
	return Config{
		Raster:   raster.DefaultConfig(),
		Rotation: rotation.DefaultConfig(),
		Crop:     crop.DefaultConfig(),
		Hints:    hints.DefaultConfig(),
		OCR:      tesseract.DefaultConfig(),
		Workers:  runtime.NumCPU(),
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg    Config
	engine tesseract.Engine
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithDPI sets the rasterization resolution.
func (b *Builder) WithDPI(dpi int) *Builder {
	if dpi > 0 {
		b.cfg.Raster.DPI = dpi
	}
	return b
}

// WithOCRBinary sets the tesseract binary path.
func (b *Builder) WithOCRBinary(path string) *Builder {
	if path != "" {
		b.cfg.OCR.Binary = path
	}
	return b
}

// WithLanguages sets the OCR language pack list.
func (b *Builder) WithLanguages(langs string) *Builder {
	if langs != "" {
		b.cfg.OCR.Languages = langs
	}
	return b
}

// WithEngine injects an OCR engine, bypassing the exec-based client.
func (b *Builder) WithEngine(engine tesseract.Engine) *Builder {
	b.engine = engine
	return b
}

// WithRotationTolerance sets the score margin a non-zero angle must win by.
func (b *Builder) WithRotationTolerance(tol float64) *Builder {
	if tol > 0 {
		b.cfg.Rotation.Tolerance = tol
	}
	return b
}

// WithCropPadding sets the pixel padding around the unified content box.
func (b *Builder) WithCropPadding(pad int) *Builder {
	if pad >= 0 {
		b.cfg.Crop.Padding = pad
	}
	return b
}

// WithMinConfidence sets the hint retention confidence floor.
func (b *Builder) WithMinConfidence(conf float64) *Builder {
	if conf >= 0 {
		b.cfg.Hints.MinConfidence = conf
	}
	return b
}

// WithWorkers sets the per-page worker pool size.
func (b *Builder) WithWorkers(n int) *Builder {
	if n > 0 {
		b.cfg.Workers = n
	}
	return b
}

// WithProgressCallback sets the progress callback for page processing.
func (b *Builder) WithProgressCallback(callback ProgressCallback) *Builder {
	b.cfg.Progress = callback
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Pipeline runs documents through the preparation stages.
type Pipeline struct {
	cfg        Config
	rasterizer *raster.Rasterizer
	detector   *rotation.Detector
	cropper    *crop.Cropper
	extractor  *hints.Extractor
	engine     tesseract.Engine
}

// Build initializes the pipeline stages and verifies the OCR engine is
// reachable. An engine that does not answer the ping surfaces as
// ErrEngineUnavailable.
func (b *Builder) Build(ctx context.Context) (*Pipeline, error) {
	engine := b.engine
	if engine == nil {
		engine = tesseract.NewClient(b.cfg.OCR)
	}
	if err := engine.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", document.ErrEngineUnavailable, err)
	}

	return &Pipeline{
		cfg:        b.cfg,
		rasterizer: raster.New(b.cfg.Raster),
		detector:   rotation.NewDetector(b.cfg.Rotation, engine),
		cropper:    crop.NewCropper(b.cfg.Crop),
		extractor:  hints.NewExtractor(b.cfg.Hints, engine),
		engine:     engine,
	}, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Ping verifies the OCR engine is still reachable.
func (p *Pipeline) Ping(ctx context.Context) error { return p.engine.Ping(ctx) }

// Info returns key pipeline properties for diagnostics endpoints.
func (p *Pipeline) Info() map[string]interface{} {
	return map[string]interface{}{
		"dpi":      p.cfg.Raster.DPI,
		"workers":  p.cfg.Workers,
		"ocr":      map[string]interface{}{"binary": p.cfg.OCR.Binary, "languages": p.cfg.OCR.Languages},
		"rotation": map[string]interface{}{"tolerance": p.cfg.Rotation.Tolerance, "fig_bonus": p.cfg.Rotation.FigBonus},
		"crop":     map[string]interface{}{"padding": p.cfg.Crop.Padding, "threshold": p.cfg.Crop.Threshold},
		"hints":    map[string]interface{}{"min_confidence": p.cfg.Hints.MinConfidence},
	}
}
