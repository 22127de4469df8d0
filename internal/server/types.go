// Package server exposes the preparation pipeline over HTTP: a multipart
// parse endpoint, a websocket variant streaming per-page progress, health
// and Prometheus metrics.
package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/figprep/figprep/internal/document"
	"github.com/figprep/figprep/internal/extract"
	"github.com/figprep/figprep/internal/pipeline"
)

// pipelineInterface defines what the server needs from a pipeline.
type pipelineInterface interface {
	Process(ctx context.Context, req pipeline.Request) (*document.Result, error)
	Ping(ctx context.Context) error
	Info() map[string]interface{}
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    pipelineInterface
	extractor   extract.Extractor
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
	outputDir   string
	rateLimiter *RateLimiter
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	MaxDataPerDay     int64
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	// OutputDir receives the best-effort artifacts; empty disables writing.
	OutputDir string
	Pipeline  pipeline.Config
	RateLimit RateLimitConfig
}

// HealthResponse reports service and engine status.
type HealthResponse struct {
	Status string `json:"status"`
	Engine string `json:"engine"`
	Time   string `json:"time"`
	DPI    int    `json:"dpi"`
}

// ArtifactInfo names the artifact files written for a parse.
type ArtifactInfo struct {
	CorrectedPDF string `json:"corrected_pdf,omitempty"`
	HintLog      string `json:"hint_log,omitempty"`
}

// ParseResponse is the JSON body of a parse request.
type ParseResponse struct {
	Success   bool             `json:"success"`
	Document  *document.Result `json:"document,omitempty"`
	Figures   []extract.Figure `json:"figures,omitempty"`
	Artifacts *ArtifactInfo    `json:"artifacts,omitempty"`
	Error     string           `json:"error,omitempty"`
	ErrorKind string           `json:"error_kind,omitempty"`
}

// NewServer creates a parse server, building the pipeline from config.
// An unreachable OCR engine fails construction with ErrEngineUnavailable.
func NewServer(ctx context.Context, config Config) (*Server, error) {
	cfg := config.Pipeline

	pl, err := pipeline.NewBuilder().
		WithDPI(cfg.Raster.DPI).
		WithOCRBinary(cfg.OCR.Binary).
		WithLanguages(cfg.OCR.Languages).
		WithRotationTolerance(cfg.Rotation.Tolerance).
		WithCropPadding(cfg.Crop.Padding).
		WithMinConfidence(cfg.Hints.MinConfidence).
		WithWorkers(cfg.Workers).
		Build(ctx)
	if err != nil {
		return nil, err
	}

	s := &Server{
		pipeline:    pl,
		extractor:   extract.NewHintsOnly(),
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeoutSec:  config.TimeoutSec,
		outputDir:   config.OutputDir,
	}
	if config.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(config.RateLimit.RequestsPerMinute, config.RateLimit.MaxDataPerDay)
	}
	return s, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/api/parse", s.corsMiddleware(s.rateLimitMiddleware(s.parseHandler)))
	mux.HandleFunc("/ws/parse", s.parseWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}
