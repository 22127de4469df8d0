// Package extract defines the boundary to structured-figure extraction
// collaborators. The pipeline hands over cropped page bitmaps with their
// OCR hints; an Extractor turns them into per-figure records.
package extract

import (
	"context"
	"image"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/figprep/figprep/internal/document"
)

// PageInput is one prepared page offered to an extractor.
type PageInput struct {
	// PageNumber is 1-based within the source document.
	PageNumber int
	// Image is the cropped, upright page bitmap.
	Image *image.NRGBA
	// Rotation is the correction that was applied, counterclockwise degrees.
	Rotation int
	// Hints are the page's OCR hints in reading order, [0,1000] normalized.
	Hints []document.Hint
}

// Figure is one extracted drawing figure.
type Figure struct {
	Page       int      `json:"page"`
	Label      string   `json:"label"`
	Components []string `json:"components"`
	Rotation   int      `json:"rotation,omitempty"`
}

// Extractor turns prepared pages into figure records.
type Extractor interface {
	ExtractFigures(ctx context.Context, pages []PageInput) ([]Figure, error)
}

// HintsOnly derives figures from OCR hints alone, with no model backend.
// Each page becomes one figure: the first figure-label hint names it and
// the component hints list its reference labels in numeric order.
type HintsOnly struct{}

// NewHintsOnly creates the hint-driven extractor.
func NewHintsOnly() *HintsOnly { return &HintsOnly{} }

// ExtractFigures implements Extractor.
func (h *HintsOnly) ExtractFigures(ctx context.Context, pages []PageInput) ([]Figure, error) {
	figures := make([]Figure, 0, len(pages))
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fig := Figure{
			Page:       page.PageNumber,
			Components: []string{},
			Rotation:   page.Rotation,
		}
		seen := make(map[string]struct{})
		for _, hint := range page.Hints {
			switch hint.Kind {
			case document.HintFigureLabel:
				if fig.Label == "" {
					fig.Label = hint.Text
				}
			case document.HintComponent:
				if _, dup := seen[hint.Text]; !dup {
					seen[hint.Text] = struct{}{}
					fig.Components = append(fig.Components, hint.Text)
				}
			}
		}
		sortComponents(fig.Components)
		figures = append(figures, fig)
	}
	return figures, nil
}

var leadingDigits = regexp.MustCompile(`^\d+`)

// sortComponents orders reference labels numerically first, then by their
// suffix, so "2" < "10" < "10a" < "10'" < "W1".
func sortComponents(components []string) {
	sort.SliceStable(components, func(i, j int) bool {
		ni, si, oki := splitComponent(components[i])
		nj, sj, okj := splitComponent(components[j])
		switch {
		case oki && !okj:
			return true
		case !oki && okj:
			return false
		case oki && okj && ni != nj:
			return ni < nj
		case oki && okj:
			return si < sj
		default:
			return components[i] < components[j]
		}
	})
}

// splitComponent splits a label into its leading number and the remainder.
func splitComponent(s string) (num int, suffix string, ok bool) {
	m := leadingDigits.FindString(s)
	if m == "" {
		return 0, s, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, s, false
	}
	return n, strings.TrimPrefix(s, m), true
}
