package retriever

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// progressInterval is how often batch progress is reported. Reporting only
// polls a counter; it never blocks or delays task completion.
const progressInterval = 100 * time.Millisecond

// runBounded executes tasks with at most limit concurrently in flight and
// returns their results in submission order, regardless of completion order.
//
// There is no cancellation or timeout here: a stalled task occupies its slot
// until it returns. Bounding individual task duration is the job of the
// backend/HTTP layer.
func runBounded[T any](ctx context.Context, tasks []func(context.Context) T, limit int, showProgress bool, desc string) []T {
	if limit <= 0 {
		limit = 1
	}

	results := make([]T, len(tasks))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	var completed atomic.Int64

	stop := make(chan struct{})
	if showProgress && len(tasks) > 1 {
		go reportProgress(&completed, int64(len(tasks)), desc, stop)
	}

	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task func(context.Context) T) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = task(ctx)
			completed.Add(1)
		}(i, task)
	}

	wg.Wait()
	close(stop)
	return results
}

// reportProgress periodically logs completion count until stop is closed.
func reportProgress(completed *atomic.Int64, total int64, desc string, stop <-chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	last := int64(-1)
	for {
		select {
		case <-stop:
			slog.Info(desc, slog.Int64("done", completed.Load()), slog.Int64("total", total))
			return
		case <-ticker.C:
			done := completed.Load()
			if done != last {
				slog.Info(desc, slog.Int64("done", done), slog.Int64("total", total))
				last = done
			}
		}
	}
}
