// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"runtime"

	"github.com/sourcegraph/conc/pool"
)

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
// 2x suits read-bound batches.
const DefaultWorkerMultiplier = 2

// ProgressFunc is called after each file is processed.
type ProgressFunc func()

// ErrorFunc is called when a file processing error occurs.
// Receives the file path and the error. If nil, errors are silently skipped.
type ErrorFunc func(path string, err error)

func defaultWorkers(n int) int {
	if n <= 0 {
		return runtime.NumCPU() * DefaultWorkerMultiplier
	}
	return n
}

// slot holds one file's outcome at the file's input index.
type slot[T any] struct {
	value T
	ok    bool
}

// collect flattens successful slots, preserving input order.
func collect[T any](slots []slot[T]) []T {
	results := make([]T, 0, len(slots))
	for _, s := range slots {
		if s.ok {
			results = append(results, s.value)
		}
	}
	return results
}

// ForEachFile processes files in parallel, calling fn for each file.
// Results are returned in input order; files whose fn fails are omitted.
func ForEachFile[T any](ctx context.Context, files []string, fn func(string) (T, error), onError ErrorFunc) []T {
	return ForEachFileN(ctx, files, 0, fn, nil, onError)
}

// ForEachFileN processes files with configurable worker count and callbacks.
// If maxWorkers is <= 0, defaults to 2x NumCPU. Files not yet started when
// ctx is cancelled are reported to onError with the context error.
func ForEachFileN[T any](ctx context.Context, files []string, maxWorkers int, fn func(string) (T, error), onProgress ProgressFunc, onError ErrorFunc) []T {
	if len(files) == 0 {
		return nil
	}

	slots := make([]slot[T], len(files))
	p := pool.New().WithMaxGoroutines(defaultWorkers(maxWorkers))
	for i, path := range files {
		p.Go(func() {
			defer func() {
				if onProgress != nil {
					onProgress()
				}
			}()

			if err := ctx.Err(); err != nil {
				if onError != nil {
					onError(path, err)
				}
				return
			}

			result, err := fn(path)
			if err != nil {
				if onError != nil {
					onError(path, err)
				}
				return
			}
			slots[i] = slot[T]{value: result, ok: true}
		})
	}
	p.Wait()

	return collect(slots)
}
