// Package rotation detects which of the four cardinal orientations restores a
// page's upright reading direction, using OCR confidence as the signal. The
// search runs on a downscaled copy for speed; the winning angle is then
// applied to the full-resolution bitmap.
package rotation

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/figprep/figprep/internal/tesseract"
)

// Angles are the candidate counterclockwise rotations, probed in order. The
// order matters: 0 is scored first so the stability tie-break can compare
// later candidates against it.
var Angles = [4]int{0, 90, 180, 270}

// figLabelPattern matches patent figure captions ("FIG. 3", "FIG 12") in the
// joined recognized text.
var figLabelPattern = regexp.MustCompile(`(?i)FIG[.\s]*\d+`)

// Config controls rotation detection behavior.
type Config struct {
	// DetectSize is the maximum thumbnail edge used for candidate scoring.
	// Full resolution is never OCRed four times per page.
	DetectSize int
	// Tolerance is the margin by which a non-zero candidate must beat the 0°
	// score before it wins; within the tolerance 0° is kept for stability.
	Tolerance float64
	// FigBonus is added to a candidate's score per recognized figure label.
	// Figure captions are the most orientation-discriminating text on a
	// drawing sheet.
	FigBonus float64
	// EarlyExitFigCount stops probing once a candidate shows this many
	// figure labels (0 disables the early exit).
	EarlyExitFigCount int
}

// DefaultConfig provides sensible defaults.
func DefaultConfig() Config {
	return Config{
		DetectSize:        1000,
		Tolerance:         0.25,
		FigBonus:          2.0,
		EarlyExitFigCount: 2,
	}
}

// Result is the outcome of rotation detection for one page.
type Result struct {
	// Angle is the counterclockwise rotation (0/90/180/270) that restores
	// upright orientation.
	Angle int
	// Score is the winning candidate's OCR score. Zero means detection was
	// inconclusive and the default 0° was kept.
	Score float64
}

// Detector scores the four candidate rotations with an OCR engine.
type Detector struct {
	cfg    Config
	engine tesseract.Engine
}

// NewDetector creates a detector using the given engine.
func NewDetector(cfg Config, engine tesseract.Engine) *Detector {
	if cfg.DetectSize <= 0 {
		cfg.DetectSize = DefaultConfig().DetectSize
	}
	return &Detector{cfg: cfg, engine: engine}
}

// Detect returns the rotation that best restores upright orientation.
// A page with no recognizable text at any candidate yields 0° with a zero
// score. An error is returned only when every OCR probe failed, in which case
// the zero-valued Result is still the documented fallback.
func (d *Detector) Detect(ctx context.Context, img image.Image) (Result, error) {
	if img == nil {
		return Result{}, fmt.Errorf("nil image")
	}

	thumb := imaging.Fit(img, d.cfg.DetectSize, d.cfg.DetectSize, imaging.NearestNeighbor)

	var scores [4]float64
	var probed int
	var lastErr error

	for i, angle := range Angles {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		candidate := Rotate(thumb, angle)
		words, err := d.engine.Words(ctx, candidate)
		if err != nil {
			lastErr = err
			slog.Debug("rotation probe failed", "angle", angle, "error", err)
			continue
		}
		probed++

		score, figs := d.score(words)
		scores[i] = score
		slog.Debug("rotation probe", "angle", angle, "words", len(words), "score", score, "fig_labels", figs)

		if d.cfg.EarlyExitFigCount > 0 && figs >= d.cfg.EarlyExitFigCount {
			break
		}
	}

	if probed == 0 {
		return Result{}, fmt.Errorf("rotation detection: all probes failed: %w", lastErr)
	}

	best := d.pick(scores)
	return Result{Angle: Angles[best], Score: scores[best]}, nil
}

// score combines recognized-word count with mean confidence, plus a bonus per
// figure label. The exact weighting is a tunable policy, not a contract; the
// pick below only relies on upright pages scoring clearly above sideways ones.
func (d *Detector) score(words []tesseract.Word) (float64, int) {
	if len(words) == 0 {
		return 0, 0
	}
	var confSum float64
	parts := make([]string, 0, len(words))
	for _, w := range words {
		confSum += w.Conf
		parts = append(parts, w.Text)
	}
	meanConf := confSum / float64(len(words))
	figs := len(figLabelPattern.FindAllString(strings.Join(parts, " "), -1))

	return float64(len(words))*meanConf/100.0 + d.cfg.FigBonus*float64(figs), figs
}

// pick selects the winning candidate index. 0° wins all ties and anything
// within the tolerance; the bias keeps already-upright documents stable under
// marginal OCR noise.
func (d *Detector) pick(scores [4]float64) int {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] && scores[i] > scores[0]+d.cfg.Tolerance {
			best = i
		}
	}
	return best
}

// Rotate rotates img counterclockwise by angle (0/90/180/270), expanding
// bounds so 90/270 swap width and height.
func Rotate(img image.Image, angle int) *image.NRGBA {
	switch angle {
	case 90:
		return imaging.Rotate90(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate270(img)
	default:
		return imaging.Clone(img)
	}
}
