package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/figprep/figprep/internal/document"
	"github.com/figprep/figprep/internal/extract"
	"github.com/figprep/figprep/internal/pipeline"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dpi := 0
	if v, ok := s.pipeline.Info()["dpi"].(int); ok {
		dpi = v
	}

	pingCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, engine := "healthy", "available"
	if err := s.pipeline.Ping(pingCtx); err != nil {
		status, engine = "degraded", "unavailable"
	}

	response := HealthResponse{
		Status: status,
		Engine: engine,
		Time:   time.Now().UTC().Format(time.RFC3339),
		DPI:    dpi,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("encoding health response failed", "error", err)
	}
}

// parseHandler processes a multipart document parse request.
func (s *Server) parseHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)

	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "too large") {
			s.writeErrorResponse(w, "File too large", "", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", "", http.StatusBadRequest)
		}
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeErrorResponse(w, "No PDF file provided", "", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > s.maxUploadMB*1024*1024 {
		s.writeErrorResponse(w, "File too large", "", http.StatusRequestEntityTooLarge)
		return
	}
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read upload", "", http.StatusInternalServerError)
		return
	}

	rng, err := parsePageParams(r)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), "", http.StatusBadRequest)
		return
	}
	showRotation := r.FormValue("show_rotation") == "1" || r.URL.Query().Get("show_rotation") == "1"

	ctx := r.Context()
	if s.timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
		defer cancel()
	}

	start := time.Now()
	res, err := s.pipeline.Process(ctx, pipeline.Request{
		Filename: header.Filename,
		Data:     data,
		Pages:    rng,
	})
	if err != nil {
		parseRequestsTotal.WithLabelValues("http", "error").Inc()
		s.writeParseError(w, err)
		return
	}
	parseRequestsTotal.WithLabelValues("http", "success").Inc()
	parseDuration.WithLabelValues("http").Observe(time.Since(start).Seconds())

	response := s.buildParseResponse(ctx, res, showRotation)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("encoding parse response failed", "error", err)
	}
}

// buildParseResponse assembles the response body: figure extraction,
// best-effort artifact writes and optional rotation metadata.
func (s *Server) buildParseResponse(ctx context.Context, res *document.Result, showRotation bool) ParseResponse {
	response := ParseResponse{Success: true, Document: res}

	figures, err := s.extractor.ExtractFigures(ctx, pipelinePages(res))
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("figure extraction failed: %v", err))
	} else {
		response.Figures = figures
	}

	response.Artifacts = s.writeArtifacts(res)

	// Clearing the angles makes omitempty drop the rotation keys from the
	// serialized body; the metadata is omitted, not reported as 0.
	if !showRotation {
		for i := range res.Pages {
			res.Pages[i].Rotation = 0
		}
		for i := range response.Figures {
			response.Figures[i].Rotation = 0
		}
	}
	return response
}

// writeArtifacts persists the side outputs to the configured directory.
// Failures become response warnings, never request failures.
func (s *Server) writeArtifacts(res *document.Result) *ArtifactInfo {
	if s.outputDir == "" {
		return nil
	}

	info := &ArtifactInfo{}
	if res.Artifacts.CorrectedPDF != nil {
		path := filepath.Join(s.outputDir, res.Artifacts.CorrectedName)
		if err := os.WriteFile(path, res.Artifacts.CorrectedPDF, 0o644); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("writing corrected document failed: %v", err))
		} else {
			info.CorrectedPDF = path
		}
	}
	if res.Artifacts.HintLog != nil {
		path := filepath.Join(s.outputDir, res.Artifacts.HintLogName)
		if err := os.WriteFile(path, res.Artifacts.HintLog, 0o644); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("writing hint log failed: %v", err))
		} else {
			info.HintLog = path
		}
	}
	if info.CorrectedPDF == "" && info.HintLog == "" {
		return nil
	}
	return info
}

// parsePageParams reads the page selection: either a single `page` or an
// inclusive `from`/`to` pair. Zero means the whole document.
func parsePageParams(r *http.Request) (document.PageRange, error) {
	get := func(name string) string {
		if v := r.FormValue(name); v != "" {
			return v
		}
		return r.URL.Query().Get(name)
	}

	if pageStr := get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			return document.PageRange{}, fmt.Errorf("invalid page parameter: %q", pageStr)
		}
		return document.Single(page), nil
	}

	var rng document.PageRange
	if fromStr := get("from"); fromStr != "" {
		from, err := strconv.Atoi(fromStr)
		if err != nil || from < 1 {
			return document.PageRange{}, fmt.Errorf("invalid from parameter: %q", fromStr)
		}
		rng.From = from
	}
	if toStr := get("to"); toStr != "" {
		to, err := strconv.Atoi(toStr)
		if err != nil || to < 1 {
			return document.PageRange{}, fmt.Errorf("invalid to parameter: %q", toStr)
		}
		rng.To = to
	}
	if rng.To != 0 && rng.From == 0 {
		rng.From = 1
	}
	return rng, nil
}

// pipelinePages adapts per-page results for the extraction collaborator.
func pipelinePages(res *document.Result) []extract.PageInput {
	pages := make([]extract.PageInput, len(res.Pages))
	for i, pr := range res.Pages {
		pages[i] = extract.PageInput{
			PageNumber: pr.PageNumber,
			Image:      pr.Image,
			Rotation:   pr.Rotation,
			Hints:      pr.Hints,
		}
	}
	return pages
}

// writeParseError maps document-level failures onto HTTP statuses:
// malformed input and bad ranges are client errors, an unreachable OCR
// engine is a 503, everything else a 500.
func (s *Server) writeParseError(w http.ResponseWriter, err error) {
	kind := document.ErrorKind(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, document.ErrMalformedPDF), errors.Is(err, document.ErrPageOutOfRange):
		status = http.StatusBadRequest
	case errors.Is(err, document.ErrEngineUnavailable):
		status = http.StatusServiceUnavailable
	}
	s.writeErrorResponse(w, err.Error(), kind, status)
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message, kind string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ParseResponse{
		Success:   false,
		Error:     message,
		ErrorKind: kind,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("encoding error response failed", "error", err)
	}
}
