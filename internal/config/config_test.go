package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 400, cfg.Pipeline.DPI)
	assert.Equal(t, "tesseract", cfg.Pipeline.OCR.Binary)
	assert.Equal(t, "eng", cfg.Pipeline.OCR.Languages)
	assert.InDelta(t, 0.25, cfg.Pipeline.Rotation.Tolerance, 1e-9)
	assert.Equal(t, 50, cfg.Pipeline.Crop.Padding)
	assert.InDelta(t, 20.0, cfg.Pipeline.Hints.MinConfidence, 1e-9)
	assert.Equal(t, 8080, cfg.Server.Port)

	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.LogLevel = "trace" },
			wantErr: "invalid log level",
		},
		{
			name:    "dpi too low",
			modify:  func(c *Config) { c.Pipeline.DPI = 50 },
			wantErr: "invalid dpi",
		},
		{
			name:    "zero workers",
			modify:  func(c *Config) { c.Pipeline.Workers = 0 },
			wantErr: "invalid workers",
		},
		{
			name:    "negative crop padding",
			modify:  func(c *Config) { c.Pipeline.Crop.Padding = -1 },
			wantErr: "invalid crop padding",
		},
		{
			name:    "crop threshold above byte range",
			modify:  func(c *Config) { c.Pipeline.Crop.Threshold = 300 },
			wantErr: "invalid crop threshold",
		},
		{
			name:    "confidence above 100",
			modify:  func(c *Config) { c.Pipeline.Hints.MinConfidence = 150 },
			wantErr: "invalid hint min confidence",
		},
		{
			name:    "bad port",
			modify:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "zero timeout",
			modify:  func(c *Config) { c.Server.TimeoutSec = 0 },
			wantErr: "invalid timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ToPipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.DPI = 300
	cfg.Pipeline.Workers = 3
	cfg.Pipeline.OCR.TimeoutSec = 45
	cfg.Pipeline.Crop.Threshold = 240

	pcfg := cfg.ToPipelineConfig()

	assert.Equal(t, 300, pcfg.Raster.DPI)
	assert.Equal(t, 3, pcfg.Workers)
	assert.Equal(t, 45*time.Second, pcfg.OCR.Timeout)
	assert.Equal(t, uint8(240), pcfg.Crop.Threshold)
	// The engine DPI hint follows the rasterization resolution.
	assert.Equal(t, 300, pcfg.OCR.DPI)
}

func TestConfig_ToServerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Dir = "/tmp/out"
	cfg.Server.RateLimit.Enabled = true

	scfg := cfg.ToServerConfig()

	assert.Equal(t, "localhost", scfg.Host)
	assert.Equal(t, 8080, scfg.Port)
	assert.Equal(t, int64(50), scfg.MaxUploadMB)
	assert.Equal(t, "/tmp/out", scfg.OutputDir)
	assert.True(t, scfg.RateLimit.Enabled)
	assert.Equal(t, 400, scfg.Pipeline.Raster.DPI)
}

func TestLoader_LoadWithFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "figprep.yaml")
	content := `
log_level: debug
pipeline:
  dpi: 300
  workers: 2
  crop:
    padding: 25
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	loader := &Loader{v: viper.New()}
	cfg, err := loader.LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 300, cfg.Pipeline.DPI)
	assert.Equal(t, 2, cfg.Pipeline.Workers)
	assert.Equal(t, 25, cfg.Pipeline.Crop.Padding)
	assert.Equal(t, 9090, cfg.Server.Port)

	// Unset keys keep their defaults.
	assert.Equal(t, "tesseract", cfg.Pipeline.OCR.Binary)
	assert.Equal(t, 50, cfg.Server.MaxUploadMB)
}

func TestConfig_YAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "warn"
	cfg.Pipeline.DPI = 200
	cfg.Output.Dir = "/data/out"

	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "figprep.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	loader := &Loader{v: viper.New()}
	loaded, err := loader.LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", loaded.LogLevel)
	assert.Equal(t, 200, loaded.Pipeline.DPI)
	assert.Equal(t, "/data/out", loaded.Output.Dir)
	assert.Equal(t, cfg.Server.Port, loaded.Server.Port)
}

func TestLoader_LoadWithFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "figprep.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  dpi: 10\n"), 0o600))

	loader := &Loader{v: viper.New()}
	_, err := loader.LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid dpi")
}

func TestLoader_LoadWithFile_Missing(t *testing.T) {
	loader := &Loader{v: viper.New()}
	_, err := loader.LoadWithFile("/nonexistent/figprep.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}
