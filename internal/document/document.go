// Package document defines the data model flowing through the preparation
// pipeline: pages with their bitmaps and rotation state, per-page results
// with hints, and the document-level result with its side artifacts.
package document

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/figprep/figprep/internal/bbox"
)

// PageRange is an inclusive, 1-based page selection.
type PageRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Single builds a range selecting one page.
func Single(page int) PageRange { return PageRange{From: page, To: page} }

// Validate checks the range against a document's page count.
func (r PageRange) Validate(totalPages int) error {
	if r.From < 1 || r.To < r.From || r.To > totalPages {
		return fmt.Errorf("%w: requested %d..%d, valid 1..%d", ErrPageOutOfRange, r.From, r.To, totalPages)
	}
	return nil
}

// Count returns the number of selected pages.
func (r PageRange) Count() int { return r.To - r.From + 1 }

// Page carries a single page's bitmaps through the pipeline stages. It is
// created by the rasterizer, mutated in place by rotation correction and
// cropping, then read by hint extraction; it does not outlive the request.
type Page struct {
	// Number is the 1-based page number within the source document.
	Number int
	// Raw is the bitmap as rasterized, before any correction.
	Raw *image.NRGBA
	// Corrected is Raw rotated upright; nil until rotation detection ran.
	Corrected *image.NRGBA
	// Cropped is Corrected restricted to the unified crop box; nil until
	// cropping ran. When cropping is skipped it aliases Corrected.
	Cropped *image.NRGBA
	// Rotation is the counterclockwise angle (0/90/180/270) applied to
	// restore upright reading orientation.
	Rotation int
	// RotationScore is the detector's score for the chosen angle.
	RotationScore float64
	// DegradedReason is set when a stage fell back after a recoverable
	// failure on this page; it is carried into the PageResult.
	DegradedReason string
}

// HintKind classifies an OCR hint token.
type HintKind string

const (
	// HintFigureLabel marks a figure caption such as "FIG. 3".
	HintFigureLabel HintKind = "figure_label"
	// HintComponent marks a component reference label such as "140'" or "G".
	HintComponent HintKind = "component"
	// HintText marks any other retained token.
	HintText HintKind = "text"
)

// Hint is a recognized text token with its location in the [0,1000]
// normalized space, used to assist downstream structured extraction.
type Hint struct {
	Kind       HintKind     `json:"type"`
	Text       string       `json:"text"`
	Box        bbox.NormBox `json:"box_2d"`
	Confidence float64      `json:"confidence,omitempty"`
}

// PageResult is the per-page output handed to the extraction collaborator.
type PageResult struct {
	PageNumber int    `json:"page"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Rotation   int    `json:"page_rotation,omitempty"`
	Hints      []Hint `json:"hints"`
	// Degraded marks a page produced under a documented fallback after a
	// recoverable failure; DegradedReason says which one.
	Degraded       bool   `json:"degraded,omitempty"`
	DegradedReason string `json:"degraded_reason,omitempty"`

	// Image is the cropped, upright bitmap for this page. Excluded from JSON;
	// the collaborator receives it through extract.PageInput.
	Image *image.NRGBA `json:"-"`
}

// Artifacts are the best-effort side outputs of a parse, returned as byte
// buffers so ownership stays with the caller.
type Artifacts struct {
	// CorrectedPDF is a multi-page PDF rebuilt from the rotation-corrected,
	// crop-unified pages. Nil when assembly failed (reported via warnings).
	CorrectedPDF []byte
	// CorrectedName is the deterministic artifact filename.
	CorrectedName string
	// HintLog is the plain-text per-page OCR hint log.
	HintLog []byte
	// HintLogName is the deterministic log filename.
	HintLogName string
}

// Result is the document-level pipeline output.
type Result struct {
	Source     string       `json:"source"`
	DPI        int          `json:"dpi"`
	TotalPages int          `json:"total_pages"`
	// CropBox is the unified crop box in raw-bitmap pixel coordinates.
	CropBox bbox.Box `json:"crop_box"`
	// Cropped is false when the degenerate-union fallback kept full pages.
	Cropped  bool         `json:"cropped"`
	Pages    []PageResult `json:"pages"`
	Warnings []string     `json:"warnings,omitempty"`

	Artifacts Artifacts `json:"-"`
}

// DegradedPages counts pages that fell back after a recoverable failure.
func (r *Result) DegradedPages() int {
	n := 0
	for i := range r.Pages {
		if r.Pages[i].Degraded {
			n++
		}
	}
	return n
}

// CorrectedArtifactName derives the deterministic corrected-document filename
// from the source filename.
func CorrectedArtifactName(source string) string {
	return "corrected_" + stem(source) + ".pdf"
}

// HintLogArtifactName derives the deterministic hint log filename from the
// source filename.
func HintLogArtifactName(source string) string {
	return "ocr_log_" + stem(source) + ".txt"
}

func stem(source string) string {
	base := filepath.Base(source)
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "document"
	}
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
