package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/figprep/figprep/internal/document"
	"github.com/figprep/figprep/internal/extract"
	"github.com/figprep/figprep/internal/pipeline"
)

// prepareCmd represents the prepare command.
var prepareCmd = &cobra.Command{
	Use:   "prepare [file...]",
	Short: "Prepare patent drawing PDFs for figure extraction",
	Long: `Prepare one or more patent drawing PDFs: correct page rotation, crop
to the unified content box, and extract normalized OCR hints.

For each input a corrected PDF and an OCR hint log are written next to
the input file (or to --output-dir), and a JSON summary with the page
results and extracted figures is printed to stdout.

Examples:
  figprep prepare drawing.pdf
  figprep prepare scans/*.pdf --output-dir prepared/
  figprep prepare drawing.pdf --page 2 --show-rotation`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runPrepare,
}

// prepareOutput is the per-file JSON summary printed to stdout.
type prepareOutput struct {
	File      string            `json:"file"`
	Document  *document.Result  `json:"document"`
	Figures   []extract.Figure  `json:"figures,omitempty"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
}

func runPrepare(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	builder := pipeline.NewBuilder().
		WithDPI(cfg.Pipeline.DPI).
		WithOCRBinary(cfg.Pipeline.OCR.Binary).
		WithLanguages(cfg.Pipeline.OCR.Languages).
		WithRotationTolerance(cfg.Pipeline.Rotation.Tolerance).
		WithCropPadding(cfg.Pipeline.Crop.Padding).
		WithMinConfidence(cfg.Pipeline.Hints.MinConfidence).
		WithWorkers(cfg.Pipeline.Workers)

	if v, _ := cmd.Flags().GetInt("dpi"); cmd.Flags().Changed("dpi") {
		builder = builder.WithDPI(v)
	}
	if v, _ := cmd.Flags().GetString("ocr-binary"); cmd.Flags().Changed("ocr-binary") {
		builder = builder.WithOCRBinary(v)
	}
	if v, _ := cmd.Flags().GetString("languages"); cmd.Flags().Changed("languages") {
		builder = builder.WithLanguages(v)
	}
	if v, _ := cmd.Flags().GetInt("workers"); cmd.Flags().Changed("workers") {
		builder = builder.WithWorkers(v)
	}
	if v, _ := cmd.Flags().GetFloat64("min-confidence"); cmd.Flags().Changed("min-confidence") {
		builder = builder.WithMinConfidence(v)
	}
	if v, _ := cmd.Flags().GetInt("crop-padding"); cmd.Flags().Changed("crop-padding") {
		builder = builder.WithCropPadding(v)
	}
	if cfg.Verbose {
		builder = builder.WithProgressCallback(pipeline.NewLogProgressCallback(slog.Default(), slog.LevelDebug))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	pl, err := builder.Build(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	rng, err := prepareRange(cmd)
	if err != nil {
		return err
	}
	showRotation, _ := cmd.Flags().GetBool("show-rotation")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	if outputDir == "" {
		outputDir = cfg.Output.Dir
	}

	extractor := extract.NewHintsOnly()
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")

	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		res, err := pl.Process(ctx, pipeline.Request{
			Filename: filepath.Base(path),
			Data:     data,
			Pages:    rng,
		})
		if err != nil {
			return fmt.Errorf("processing %s: %w", path, err)
		}

		pages := make([]extract.PageInput, len(res.Pages))
		for i, pr := range res.Pages {
			pages[i] = extract.PageInput{
				PageNumber: pr.PageNumber,
				Image:      pr.Image,
				Rotation:   pr.Rotation,
				Hints:      pr.Hints,
			}
		}
		figures, err := extractor.ExtractFigures(ctx, pages)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("figure extraction failed: %v", err))
		}

		dir := outputDir
		if dir == "" {
			dir = filepath.Dir(path)
		}
		artifacts := writePrepareArtifacts(res, dir)

		// Cleared angles are dropped from the JSON via omitempty.
		if !showRotation {
			for i := range res.Pages {
				res.Pages[i].Rotation = 0
			}
			for i := range figures {
				figures[i].Rotation = 0
			}
		}

		out := prepareOutput{
			File:      path,
			Document:  res,
			Figures:   figures,
			Artifacts: artifacts,
		}
		if err := encoder.Encode(out); err != nil {
			return fmt.Errorf("encoding result for %s: %w", path, err)
		}
	}

	return nil
}

// prepareRange builds the page selection from command flags.
func prepareRange(cmd *cobra.Command) (document.PageRange, error) {
	if cmd.Flags().Changed("page") {
		page, _ := cmd.Flags().GetInt("page")
		if page < 1 {
			return document.PageRange{}, fmt.Errorf("invalid page: %d", page)
		}
		return document.Single(page), nil
	}

	var rng document.PageRange
	if cmd.Flags().Changed("from") {
		rng.From, _ = cmd.Flags().GetInt("from")
		if rng.From < 1 {
			return document.PageRange{}, fmt.Errorf("invalid from page: %d", rng.From)
		}
	}
	if cmd.Flags().Changed("to") {
		rng.To, _ = cmd.Flags().GetInt("to")
		if rng.To < 1 {
			return document.PageRange{}, fmt.Errorf("invalid to page: %d", rng.To)
		}
	}
	if rng.To != 0 && rng.From == 0 {
		rng.From = 1
	}
	return rng, nil
}

// writePrepareArtifacts persists the corrected PDF and hint log. Failures
// become result warnings, matching the server's best-effort behavior.
func writePrepareArtifacts(res *document.Result, dir string) map[string]string {
	artifacts := make(map[string]string)

	if res.Artifacts.CorrectedPDF != nil {
		path := filepath.Join(dir, res.Artifacts.CorrectedName)
		if err := os.WriteFile(path, res.Artifacts.CorrectedPDF, 0o644); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("writing corrected document failed: %v", err))
		} else {
			artifacts["corrected_pdf"] = path
		}
	}
	if res.Artifacts.HintLog != nil {
		path := filepath.Join(dir, res.Artifacts.HintLogName)
		if err := os.WriteFile(path, res.Artifacts.HintLog, 0o644); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("writing hint log failed: %v", err))
		} else {
			artifacts["hint_log"] = path
		}
	}
	if len(artifacts) == 0 {
		return nil
	}
	return artifacts
}

func init() {
	rootCmd.AddCommand(prepareCmd)

	prepareCmd.Flags().Int("page", 0, "process a single page (1-based)")
	prepareCmd.Flags().Int("from", 0, "first page of the range to process (1-based, inclusive)")
	prepareCmd.Flags().Int("to", 0, "last page of the range to process (1-based, inclusive)")
	prepareCmd.Flags().Bool("show-rotation", false, "include applied rotation angles in the output")
	prepareCmd.Flags().StringP("output-dir", "o", "", "directory for artifacts (default: next to each input)")
	prepareCmd.Flags().Int("dpi", 0, "rasterization resolution")
	prepareCmd.Flags().Int("workers", 0, "per-page worker pool size (0=NumCPU)")
	prepareCmd.Flags().String("ocr-binary", "", "tesseract binary path")
	prepareCmd.Flags().StringP("languages", "l", "", "OCR language packs (e.g., eng)")
	prepareCmd.Flags().Float64("min-confidence", 0, "hint retention confidence floor (0..100)")
	prepareCmd.Flags().Int("crop-padding", 0, "pixel padding around the unified content box")
}
