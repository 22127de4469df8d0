package hints

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/figprep/figprep/internal/document"
	"github.com/figprep/figprep/internal/tesseract"
)

// Log accumulates the per-page OCR record for a document. Slots are
// index-addressed so concurrent page workers can record out of order while
// the assembled artifact stays in page order. Recording never fails; only
// the caller's final write of the artifact can, and that is non-fatal.
type Log struct {
	mu    sync.Mutex
	slots []string
}

// NewLog creates a log with one slot per selected page.
func NewLog(pages int) *Log {
	return &Log{slots: make([]string, pages)}
}

// Record stores the raw OCR words and retained hints for the page in slot i.
func (l *Log) Record(i, pageNumber int, words []tesseract.Word, pageHints []document.Hint) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "=== Page %d OCR Hints (Normalized 0-1000) ===\n", pageNumber)
	fmt.Fprintf(&b, "raw words: %d\n", len(words))
	for _, w := range words {
		fmt.Fprintf(&b, "  raw %q conf=%.1f box=(%d,%d)-(%d,%d)\n",
			w.Text, w.Conf, w.Box.X0, w.Box.Y0, w.Box.X1, w.Box.Y1)
	}
	fmt.Fprintf(&b, "hints: %d\n", len(pageHints))
	for _, h := range pageHints {
		fmt.Fprintf(&b, "  [%s] %q box=[%d,%d,%d,%d] conf=%.1f\n",
			h.Kind, h.Text, h.Box.Y0, h.Box.X0, h.Box.Y1, h.Box.X1, h.Confidence)
	}
	b.WriteByte('\n')

	l.set(i, b.String())
}

// RecordFailure stores a note for a page whose OCR pass failed.
func (l *Log) RecordFailure(i, pageNumber int, err error) {
	l.set(i, fmt.Sprintf("=== Page %d OCR Hints (Normalized 0-1000) ===\nocr failed: %v\n\n", pageNumber, err))
}

func (l *Log) set(i int, entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i >= 0 && i < len(l.slots) {
		l.slots[i] = entry
	}
}

// Bytes assembles the artifact in page order.
func (l *Log) Bytes() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	var b bytes.Buffer
	for _, s := range l.slots {
		b.WriteString(s)
	}
	return b.Bytes()
}
