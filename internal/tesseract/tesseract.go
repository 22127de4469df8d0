// Package tesseract invokes an externally installed Tesseract OCR engine and
// parses its word-level output. The default client shells out to the
// configured binary so the engine location stays an explicit configuration
// value and every call can be bounded by a context deadline.
package tesseract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/figprep/figprep/internal/bbox"
)

// ErrUnavailable indicates the engine binary could not be located or run at
// all. Callers treat this as fatal rather than a per-page condition.
var ErrUnavailable = errors.New("tesseract engine unavailable")

// Word is a single recognized token with its pixel-space box and the engine's
// confidence in percent (0..100).
type Word struct {
	Text string
	Conf float64
	Box  bbox.Box
}

// Engine abstracts the OCR call so pipelines and tests can substitute
// implementations.
type Engine interface {
	// Words runs a recognition pass over img and returns word-level results.
	// The call respects ctx cancellation and deadlines.
	Words(ctx context.Context, img image.Image) ([]Word, error)
	// Ping verifies the engine is operational.
	Ping(ctx context.Context) error
}

// Config controls how the external engine is invoked.
type Config struct {
	// Binary is the Tesseract executable; resolved via PATH when not absolute.
	Binary string
	// Languages is the -l argument (e.g. "eng").
	Languages string
	// PSM is the page segmentation mode. Sparse text (11) suits drawings
	// where labels float freely around line art.
	PSM int
	// DPI is the resolution hint passed to the engine; scanned input often
	// lacks embedded density metadata.
	DPI int
	// Timeout bounds a single recognition call. The effective deadline is the
	// sooner of this and the caller's context deadline.
	Timeout time.Duration
}

// DefaultConfig provides sensible defaults.
func DefaultConfig() Config {
	return Config{
		Binary:    "tesseract",
		Languages: "eng",
		PSM:       11,
		DPI:       300,
		Timeout:   30 * time.Second,
	}
}

// Client runs the Tesseract binary as a subprocess, feeding PNG data on stdin
// and reading TSV word records from stdout.
type Client struct {
	cfg Config
}

// NewClient creates a client for the configured binary. No probing happens
// here; use Ping to verify the installation.
func NewClient(cfg Config) *Client {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Client{cfg: cfg}
}

// Config returns a copy of the client configuration.
func (c *Client) Config() Config { return c.cfg }

// Ping runs the binary with --version to confirm it is present and runnable.
func (c *Client) Ping(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, c.cfg.Binary, "--version")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrUnavailable, c.cfg.Binary, err)
	}
	return nil
}

// Words recognizes img and returns word-level tokens in TSV emission order.
func (c *Client) Words(ctx context.Context, img image.Image) ([]Word, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var input bytes.Buffer
	if err := png.Encode(&input, img); err != nil {
		return nil, fmt.Errorf("encode input: %w", err)
	}

	args := []string{"stdin", "stdout"}
	if c.cfg.Languages != "" {
		args = append(args, "-l", c.cfg.Languages)
	}
	if c.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(c.cfg.PSM))
	}
	if c.cfg.DPI > 0 {
		args = append(args, "--dpi", strconv.Itoa(c.cfg.DPI))
	}
	args = append(args, "tsv")

	cmd := exec.CommandContext(ctx, c.cfg.Binary, args...)
	cmd.Stdin = &input
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// Prefer the context error so callers can distinguish a timeout from
		// an engine failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("ocr call aborted: %w", ctxErr)
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, fmt.Errorf("%w: %q: %w", ErrUnavailable, c.cfg.Binary, err)
		}
		return nil, fmt.Errorf("tesseract: %w: %s", err, firstLine(stderr.String()))
	}

	return ParseTSV(stdout.String())
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
