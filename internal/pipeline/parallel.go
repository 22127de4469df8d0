package pipeline

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// pageJob addresses one page slot in a per-page stage.
type pageJob struct {
	index int
}

// forEachPage runs fn for every page index using a bounded worker pool.
// fn writes its output into index-addressed slots, so results stay in
// page order without reshuffling. The only error returned is context
// cancellation; page-level failures degrade inside fn.
func (p *Pipeline) forEachPage(ctx context.Context, total int, progress ProgressCallback, fn func(ctx context.Context, index int)) error {
	if total == 0 {
		return nil
	}

	workers := p.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > total {
		workers = total
	}

	jobs := make(chan pageJob, total)
	var done atomic.Int64
	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case job, ok := <-jobs:
					if !ok {
						return
					}
					fn(ctx, job.index)
					progress.OnPage(int(done.Add(1)), total)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for i := range total {
		select {
		case jobs <- pageJob{index: i}:
		case <-ctx.Done():
		}
	}
	close(jobs)

	wg.Wait()
	return ctx.Err()
}
