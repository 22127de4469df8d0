//go:build tesscgo

package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"

	"github.com/figprep/figprep/internal/bbox"
)

// CGoEngine recognizes via libtesseract in-process through gosseract. It
// avoids the per-call subprocess cost but cannot honor a custom binary path
// or abort a call mid-recognition, so the subprocess Client stays the default.
// Build with -tags tesscgo to enable.
type CGoEngine struct {
	cfg Config
}

// NewCGoEngine creates an in-process engine using the given configuration.
// The Binary field is ignored; gosseract locates the library at link time.
func NewCGoEngine(cfg Config) *CGoEngine {
	return &CGoEngine{cfg: cfg}
}

// Ping verifies a client can be constructed against the linked library.
func (e *CGoEngine) Ping(_ context.Context) error {
	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()
	if client.Version() == "" {
		return fmt.Errorf("%w: gosseract reported no library version", ErrUnavailable)
	}
	return nil
}

// Words recognizes img and returns word-level tokens. Cancellation is checked
// before the call; an in-flight recognition cannot be interrupted.
func (e *CGoEngine) Words(ctx context.Context, img image.Image) ([]Word, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode input: %w", err)
	}

	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if e.cfg.Languages != "" {
		if err := client.SetLanguage(e.cfg.Languages); err != nil {
			return nil, fmt.Errorf("set language: %w", err)
		}
	}
	if e.cfg.PSM > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(e.cfg.PSM)); err != nil {
			return nil, fmt.Errorf("set psm: %w", err)
		}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("bounding boxes: %w", err)
	}

	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, Word{
			Text: b.Word,
			Conf: b.Confidence,
			Box:  bbox.FromRect(b.Box),
		})
	}
	return words, nil
}
