package pipeline

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ProgressCallback receives updates while a document moves through the
// pipeline stages.
type ProgressCallback interface {
	// OnStart is called once with the number of pages to process.
	OnStart(totalPages int)

	// OnStage is called when a processing stage begins.
	OnStage(stage string)

	// OnPage is called after each page completes the current stage.
	OnPage(done, total int)

	// OnComplete is called when the document is finished.
	OnComplete()

	// OnError is called for page-level failures the pipeline degrades over.
	OnError(page int, err error)
}

// Stage names reported through OnStage.
const (
	StageRasterize = "rasterize"
	StageRotate    = "rotate"
	StageCrop      = "crop"
	StageHints     = "hints"
	StageArtifacts = "artifacts"
)

// NoOpProgressCallback implements ProgressCallback but does nothing.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(totalPages int)   {}
func (NoOpProgressCallback) OnStage(stage string)     {}
func (NoOpProgressCallback) OnPage(done, total int)   {}
func (NoOpProgressCallback) OnComplete()              {}
func (NoOpProgressCallback) OnError(page int, err error) {}

// LogProgressCallback logs progress updates using slog.
type LogProgressCallback struct {
	logger    *slog.Logger
	level     slog.Level
	startTime time.Time
	mu        sync.Mutex
	stage     string
}

// NewLogProgressCallback creates a log-based progress reporter.
func NewLogProgressCallback(logger *slog.Logger, level slog.Level) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger, level: level}
}

func (l *LogProgressCallback) OnStart(totalPages int) {
	l.mu.Lock()
	l.startTime = time.Now()
	l.mu.Unlock()
	l.logger.Log(nil, l.level, "processing started", "pages", totalPages)
}

func (l *LogProgressCallback) OnStage(stage string) {
	l.mu.Lock()
	l.stage = stage
	l.mu.Unlock()
	l.logger.Log(nil, l.level, "stage started", "stage", stage)
}

func (l *LogProgressCallback) OnPage(done, total int) {
	l.mu.Lock()
	stage := l.stage
	l.mu.Unlock()
	percent := float64(done) / float64(total) * 100.0
	l.logger.Log(nil, l.level, "page done",
		"stage", stage,
		"done", done,
		"total", total,
		"percent", fmt.Sprintf("%.1f", percent),
	)
}

func (l *LogProgressCallback) OnComplete() {
	l.mu.Lock()
	elapsed := time.Since(l.startTime)
	l.mu.Unlock()
	l.logger.Log(nil, l.level, "processing completed", "elapsed", elapsed.Round(time.Millisecond))
}

func (l *LogProgressCallback) OnError(page int, err error) {
	l.logger.Log(nil, slog.LevelWarn, "page degraded", "page", page, "error", err)
}

// MultiProgressCallback fans updates out to several callbacks.
type MultiProgressCallback struct {
	callbacks []ProgressCallback
}

// NewMultiProgressCallback creates a callback reporting to all of the given callbacks.
func NewMultiProgressCallback(callbacks ...ProgressCallback) *MultiProgressCallback {
	return &MultiProgressCallback{callbacks: callbacks}
}

func (m *MultiProgressCallback) OnStart(totalPages int) {
	for _, cb := range m.callbacks {
		cb.OnStart(totalPages)
	}
}

func (m *MultiProgressCallback) OnStage(stage string) {
	for _, cb := range m.callbacks {
		cb.OnStage(stage)
	}
}

func (m *MultiProgressCallback) OnPage(done, total int) {
	for _, cb := range m.callbacks {
		cb.OnPage(done, total)
	}
}

func (m *MultiProgressCallback) OnComplete() {
	for _, cb := range m.callbacks {
		cb.OnComplete()
	}
}

func (m *MultiProgressCallback) OnError(page int, err error) {
	for _, cb := range m.callbacks {
		cb.OnError(page, err)
	}
}
