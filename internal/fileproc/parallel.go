// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e ProcessingError) Unwrap() error {
	return e.Err
}

// ProcessingErrors collects multiple file processing errors.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Sorted returns the collected errors ordered by path.
func (e *ProcessingErrors) Sorted() []ProcessingError {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := append([]ProcessingError(nil), e.Errors...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// Unwrap exposes every file error to errors.Is and errors.As.
func (e *ProcessingErrors) Unwrap() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	errs := make([]error, len(e.Errors))
	for i, pe := range e.Errors {
		errs[i] = pe
	}
	return errs
}

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
// 2x is optimal for mixed I/O and CGO workloads.
const DefaultWorkerMultiplier = 2

// Workers resolves a configured worker count. Values <= 0 mean 2x NumCPU.
func Workers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU() * DefaultWorkerMultiplier
}

// ProgressFunc is called after each file is processed.
type ProgressFunc func()

// Result is the outcome for one file. Results are returned in input order.
type Result[T any] struct {
	Path  string
	Value T
	Err   error
}

// MapFiles processes files in parallel and returns one result per file, in
// the order of files. Individual failures are recorded in Result.Err and do
// not stop the other files. Files not started before ctx is cancelled carry
// the context error.
func MapFiles[T any](ctx context.Context, files []string, maxWorkers int, fn func(context.Context, string) (T, error), onProgress ProgressFunc) []Result[T] {
	return MapFilesWithResource(ctx, files, maxWorkers,
		func() (struct{}, error) { return struct{}{}, nil },
		nil,
		func(ctx context.Context, _ struct{}, path string) (T, error) { return fn(ctx, path) },
		onProgress,
	)
}

// MapFilesWithResource processes files in parallel, calling fn for each file with a per-worker resource.
// The initResource function is called once per worker to create the resource (e.g., a parser).
// The closeResource function is called when all files are done to release the resource.
func MapFilesWithResource[T any, R any](
	ctx context.Context,
	files []string,
	maxWorkers int,
	initResource func() (R, error),
	closeResource func(R),
	fn func(context.Context, R, string) (T, error),
	onProgress ProgressFunc,
) []Result[T] {
	if len(files) == 0 {
		return nil
	}

	maxWorkers = min(Workers(maxWorkers), len(files))
	results := make([]Result[T], len(files))

	type resourceWrapper struct {
		resource R
		err      error
	}
	resourcePool := make(chan *resourceWrapper, maxWorkers)
	for i := 0; i < maxWorkers; i++ {
		r, err := initResource()
		resourcePool <- &resourceWrapper{resource: r, err: err}
	}

	p := pool.New().WithMaxGoroutines(maxWorkers).WithContext(ctx)
	for i, path := range files {
		p.Go(func(ctx context.Context) error {
			// Indexed assignment: each goroutine owns results[i].
			results[i].Path = path
			defer func() {
				if onProgress != nil {
					onProgress()
				}
			}()

			select {
			case <-ctx.Done():
				results[i].Err = ctx.Err()
				return nil
			default:
			}

			wrapper := <-resourcePool
			defer func() { resourcePool <- wrapper }()

			if wrapper.err != nil {
				results[i].Err = fmt.Errorf("worker init: %w", wrapper.err)
				return nil
			}
			results[i].Value, results[i].Err = fn(ctx, wrapper.resource, path)
			return nil // Don't stop pool on individual file errors
		})
	}
	_ = p.Wait()

	close(resourcePool)
	for wrapper := range resourcePool {
		if wrapper.err == nil && closeResource != nil {
			closeResource(wrapper.resource)
		}
	}

	return results
}

// Collect splits results into the successful values, in order, and the
// failures. The error collection is nil when every file succeeded.
func Collect[T any](results []Result[T]) ([]T, *ProcessingErrors) {
	values := make([]T, 0, len(results))
	errs := &ProcessingErrors{}
	for _, r := range results {
		if r.Err != nil {
			errs.Add(r.Path, r.Err)
			continue
		}
		values = append(values, r.Value)
	}
	if !errs.HasErrors() {
		return values, nil
	}
	return values, errs
}
