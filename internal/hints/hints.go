// Package hints runs the OCR pass over corrected, cropped pages and turns
// word-level output into normalized location hints for the downstream
// extraction step. The input is already upright, so no orientation handling
// happens here.
package hints

import (
	"context"
	"fmt"
	"image"
	"regexp"
	"sort"
	"strings"

	"github.com/figprep/figprep/internal/document"
	"github.com/figprep/figprep/internal/tesseract"
)

var (
	// figLabelPattern matches figure captions like "FIG.3" or "FIG 12" at the
	// start of a token.
	figLabelPattern = regexp.MustCompile(`(?i)^FIG[.\s]*\d+`)
	// componentPattern matches component reference labels: digits with an
	// optional letter and up to two primes (140, 140', 1a, W1).
	componentPattern = regexp.MustCompile(`^\d+[A-Za-z]?['"]{0,2}$`)
)

// Config controls hint filtering.
type Config struct {
	// MinConfidence drops tokens the engine is unsure about (percent).
	MinConfidence float64
	// MaxNumericLen drops longer pure-digit tokens; patent reference labels
	// rarely exceed six digits, anything longer is scanner noise.
	MaxNumericLen int
}

// DefaultConfig provides sensible defaults.
func DefaultConfig() Config {
	return Config{
		MinConfidence: 20,
		MaxNumericLen: 6,
	}
}

// Extractor produces ordered, normalized OCR hints for cropped pages.
type Extractor struct {
	cfg    Config
	engine tesseract.Engine
}

// NewExtractor creates an extractor using the given engine.
func NewExtractor(cfg Config, engine tesseract.Engine) *Extractor {
	return &Extractor{cfg: cfg, engine: engine}
}

// Extract OCRs the page bitmap and returns retained hints in reading order,
// along with the raw word list for logging.
func (e *Extractor) Extract(ctx context.Context, img image.Image) ([]document.Hint, []tesseract.Word, error) {
	words, err := e.engine.Words(ctx, img)
	if err != nil {
		return nil, nil, fmt.Errorf("hint ocr: %w", err)
	}

	b := img.Bounds()
	width, height := b.Dx(), b.Dy()

	hints := make([]document.Hint, 0, len(words))
	for _, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" || w.Conf < e.cfg.MinConfidence {
			continue
		}
		if isJunk(text, e.cfg.MaxNumericLen) {
			continue
		}
		hints = append(hints, document.Hint{
			Kind:       Classify(text),
			Text:       text,
			Box:        w.Box.Normalize(width, height),
			Confidence: w.Conf,
		})
	}

	sortReadingOrder(hints)
	return hints, words, nil
}

// Classify assigns a hint kind from the token's shape.
func Classify(text string) document.HintKind {
	switch {
	case figLabelPattern.MatchString(text):
		return document.HintFigureLabel
	case componentPattern.MatchString(text) || len(text) == 1:
		return document.HintComponent
	default:
		return document.HintText
	}
}

// isJunk filters tokens that are never useful hints: overlong numerals and
// the lone "0" an engine tends to hallucinate from specks.
func isJunk(text string, maxNumericLen int) bool {
	if text == "0" {
		return true
	}
	if maxNumericLen > 0 && len(text) > maxNumericLen && isDigits(text) {
		return true
	}
	return false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// sortReadingOrder orders hints top-to-bottom, then left-to-right, for stable
// downstream consumption.
func sortReadingOrder(hints []document.Hint) {
	sort.SliceStable(hints, func(i, j int) bool {
		if hints[i].Box.Y0 == hints[j].Box.Y0 {
			return hints[i].Box.X0 < hints[j].Box.X0
		}
		return hints[i].Box.Y0 < hints[j].Box.Y0
	})
}
