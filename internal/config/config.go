// Package config loads application settings from configuration files,
// environment variables, and command-line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/figprep/figprep/internal/crop"
	"github.com/figprep/figprep/internal/hints"
	"github.com/figprep/figprep/internal/pipeline"
	"github.com/figprep/figprep/internal/raster"
	"github.com/figprep/figprep/internal/rotation"
	"github.com/figprep/figprep/internal/server"
	"github.com/figprep/figprep/internal/tesseract"
)

// Config represents the complete configuration for the figprep application.
// It covers both commands (prepare, serve) and supports loading from
// configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Pipeline configuration
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// PipelineConfig contains document preparation pipeline settings.
type PipelineConfig struct {
	// DPI is the rasterization resolution.
	DPI int `mapstructure:"dpi" yaml:"dpi" json:"dpi"`

	// Workers is the size of the per-page worker pools.
	Workers int `mapstructure:"workers" yaml:"workers" json:"workers"`

	// OCR settings
	OCR OCRConfig `mapstructure:"ocr" yaml:"ocr" json:"ocr"`

	// Rotation detection settings
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation" json:"rotation"`

	// Content cropping settings
	Crop CropConfig `mapstructure:"crop" yaml:"crop" json:"crop"`

	// Hint extraction settings
	Hints HintsConfig `mapstructure:"hints" yaml:"hints" json:"hints"`
}

// OCRConfig contains OCR engine settings.
type OCRConfig struct {
	Binary     string `mapstructure:"binary" yaml:"binary" json:"binary"`
	Languages  string `mapstructure:"languages" yaml:"languages" json:"languages"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
}

// RotationConfig contains rotation detection settings.
type RotationConfig struct {
	Tolerance  float64 `mapstructure:"tolerance" yaml:"tolerance" json:"tolerance"`
	FigBonus   float64 `mapstructure:"fig_bonus" yaml:"fig_bonus" json:"fig_bonus"`
	DetectSize int     `mapstructure:"detect_size" yaml:"detect_size" json:"detect_size"`
}

// CropConfig contains unified content cropping settings.
type CropConfig struct {
	Padding     int `mapstructure:"padding" yaml:"padding" json:"padding"`
	Threshold   int `mapstructure:"threshold" yaml:"threshold" json:"threshold"`
	DetectWidth int `mapstructure:"detect_width" yaml:"detect_width" json:"detect_width"`
}

// HintsConfig contains OCR hint extraction settings.
type HintsConfig struct {
	MinConfidence float64 `mapstructure:"min_confidence" yaml:"min_confidence" json:"min_confidence"`
	MaxNumericLen int     `mapstructure:"max_numeric_len" yaml:"max_numeric_len" json:"max_numeric_len"`
}

// OutputConfig contains artifact output settings.
type OutputConfig struct {
	// Dir receives the corrected PDF and hint log; empty disables writing.
	Dir string `mapstructure:"dir" yaml:"dir" json:"dir"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	pcfg := pipeline.DefaultConfig()
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Pipeline: PipelineConfig{
			DPI:     pcfg.Raster.DPI,
			Workers: pcfg.Workers,
			OCR: OCRConfig{
				Binary:     pcfg.OCR.Binary,
				Languages:  pcfg.OCR.Languages,
				TimeoutSec: int(pcfg.OCR.Timeout / time.Second),
			},
			Rotation: RotationConfig{
				Tolerance:  pcfg.Rotation.Tolerance,
				FigBonus:   pcfg.Rotation.FigBonus,
				DetectSize: pcfg.Rotation.DetectSize,
			},
			Crop: CropConfig{
				Padding:     pcfg.Crop.Padding,
				Threshold:   int(pcfg.Crop.Threshold),
				DetectWidth: pcfg.Crop.DetectWidth,
			},
			Hints: HintsConfig{
				MinConfidence: pcfg.Hints.MinConfidence,
				MaxNumericLen: pcfg.Hints.MaxNumericLen,
			},
		},
		Output: OutputConfig{},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      120,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 30,
				MaxDataPerDay:     500 * 1024 * 1024,
			},
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Pipeline.DPI < 72 || c.Pipeline.DPI > 1200 {
		return fmt.Errorf("invalid dpi: %d (must be between 72 and 1200)", c.Pipeline.DPI)
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("invalid workers: %d (must be positive)", c.Pipeline.Workers)
	}
	if c.Pipeline.Rotation.Tolerance < 0 {
		return fmt.Errorf("invalid rotation tolerance: %.2f (must not be negative)", c.Pipeline.Rotation.Tolerance)
	}
	if c.Pipeline.Crop.Padding < 0 {
		return fmt.Errorf("invalid crop padding: %d (must not be negative)", c.Pipeline.Crop.Padding)
	}
	if c.Pipeline.Crop.Threshold < 0 || c.Pipeline.Crop.Threshold > 255 {
		return fmt.Errorf("invalid crop threshold: %d (must be between 0 and 255)", c.Pipeline.Crop.Threshold)
	}
	if c.Pipeline.Hints.MinConfidence < 0 || c.Pipeline.Hints.MinConfidence > 100 {
		return fmt.Errorf("invalid hint min confidence: %.2f (must be between 0 and 100)", c.Pipeline.Hints.MinConfidence)
	}
	if c.Pipeline.OCR.TimeoutSec <= 0 {
		return fmt.Errorf("invalid ocr timeout: %d (must be positive)", c.Pipeline.OCR.TimeoutSec)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}

	return nil
}

// ToPipelineConfig converts the config to the internal pipeline configuration format.
func (c *Config) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Raster = raster.Config{DPI: c.Pipeline.DPI}
	cfg.Workers = c.Pipeline.Workers
	cfg.OCR = tesseract.Config{
		Binary:    c.Pipeline.OCR.Binary,
		Languages: c.Pipeline.OCR.Languages,
		PSM:       cfg.OCR.PSM,
		DPI:       c.Pipeline.DPI,
		Timeout:   time.Duration(c.Pipeline.OCR.TimeoutSec) * time.Second,
	}
	cfg.Rotation = rotation.Config{
		DetectSize:        c.Pipeline.Rotation.DetectSize,
		Tolerance:         c.Pipeline.Rotation.Tolerance,
		FigBonus:          c.Pipeline.Rotation.FigBonus,
		EarlyExitFigCount: cfg.Rotation.EarlyExitFigCount,
	}
	cfg.Crop = crop.Config{
		DetectWidth: c.Pipeline.Crop.DetectWidth,
		Threshold:   uint8(c.Pipeline.Crop.Threshold),
		Padding:     c.Pipeline.Crop.Padding,
	}
	cfg.Hints = hints.Config{
		MinConfidence: c.Pipeline.Hints.MinConfidence,
		MaxNumericLen: c.Pipeline.Hints.MaxNumericLen,
	}
	return cfg
}

// ToServerConfig converts the config to the server configuration format.
func (c *Config) ToServerConfig() server.Config {
	return server.Config{
		Host:        c.Server.Host,
		Port:        c.Server.Port,
		CORSOrigin:  c.Server.CORSOrigin,
		MaxUploadMB: int64(c.Server.MaxUploadMB),
		TimeoutSec:  c.Server.TimeoutSec,
		OutputDir:   c.Output.Dir,
		Pipeline:    c.ToPipelineConfig(),
		RateLimit: server.RateLimitConfig{
			Enabled:           c.Server.RateLimit.Enabled,
			RequestsPerMinute: c.Server.RateLimit.RequestsPerMinute,
			MaxDataPerDay:     c.Server.RateLimit.MaxDataPerDay,
		},
	}
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
