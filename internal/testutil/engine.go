package testutil

import (
	"context"
	"image"
	"sync"

	"github.com/figprep/figprep/internal/tesseract"
)

// FakeEngine is a scriptable tesseract.Engine for tests. When WordsFn is nil
// it behaves as an engine that sees no text at all.
type FakeEngine struct {
	WordsFn func(ctx context.Context, img image.Image) ([]tesseract.Word, error)
	PingErr error

	mu    sync.Mutex
	calls int
}

// Words invokes the scripted function, counting calls.
func (f *FakeEngine) Words(ctx context.Context, img image.Image) ([]tesseract.Word, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.WordsFn == nil {
		return nil, nil
	}
	return f.WordsFn(ctx, img)
}

// Ping returns the scripted startup error, if any.
func (f *FakeEngine) Ping(context.Context) error { return f.PingErr }

// Calls reports how many recognition calls were made.
func (f *FakeEngine) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// UprightEngine returns a fake that recognizes the given words only when the
// input derives from a MarkerPage in its upright orientation. Rotated inputs
// read as blank, which is how the real engine behaves on sideways drawings.
func UprightEngine(words []tesseract.Word) *FakeEngine {
	return &FakeEngine{
		WordsFn: func(_ context.Context, img image.Image) ([]tesseract.Word, error) {
			if MarkerUpright(img) {
				return words, nil
			}
			return nil, nil
		},
	}
}
