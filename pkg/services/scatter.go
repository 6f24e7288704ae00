package services

import (
	"context"
	"sync"
	"time"
)

// ScatterConfig bounds a fan-out: at most MaxConcurrent tasks in flight,
// each cut off after ItemTimeout.
type ScatterConfig struct {
	MaxConcurrent int
	ItemTimeout   time.Duration
}

// ScatterTask is one unit of fan-out work.
type ScatterTask[T any] struct {
	Name    string
	Execute func(ctx context.Context) (T, error)
}

// ScatterResult pairs a task's output with its submission index so callers
// can correlate results regardless of completion order.
type ScatterResult[T any] struct {
	Name   string
	Index  int
	Result T
	Err    error
}

// Scatter runs all tasks with bounded parallelism and per-task deadlines.
// It returns when every task finished or the parent context expired,
// whichever comes first; on early expiry the results gathered so far are
// returned with complete=false. A failed task occupies its result slot with
// Err set; siblings keep running.
func Scatter[T any](ctx context.Context, cfg ScatterConfig, tasks []ScatterTask[T]) (results []ScatterResult[T], complete bool) {
	if len(tasks) == 0 {
		return nil, true
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}

	resultsChan := make(chan ScatterResult[T], len(tasks))
	sem := make(chan struct{}, cfg.MaxConcurrent)

	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(index int, task ScatterTask[T]) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				resultsChan <- ScatterResult[T]{Name: task.Name, Index: index, Err: ctx.Err()}
				return
			}

			taskCtx := ctx
			if cfg.ItemTimeout > 0 {
				var cancel context.CancelFunc
				taskCtx, cancel = context.WithTimeout(ctx, cfg.ItemTimeout)
				defer cancel()
			}

			result, err := task.Execute(taskCtx)
			resultsChan <- ScatterResult[T]{Name: task.Name, Index: index, Result: result, Err: err}
		}(i, task)
	}

	// Workers always send exactly one result, so the channel drains fully
	// once the WaitGroup clears.
	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	results = make([]ScatterResult[T], 0, len(tasks))
	for {
		select {
		case r, ok := <-resultsChan:
			if !ok {
				return results, true
			}
			results = append(results, r)
		case <-ctx.Done():
			// Drain whatever is already buffered, then hand back the
			// partial set. Outstanding workers notice ctx themselves.
			for {
				select {
				case r, ok := <-resultsChan:
					if !ok {
						return results, true
					}
					results = append(results, r)
				default:
					return results, false
				}
			}
		}
	}
}
