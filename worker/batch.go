package worker

import (
	"context"
	"runtime"
	"sync"

	valueset "github.com/gofhir/valueset"
)

// BatchExpander expands a set of value sets and returns the results in
// input order. Small batches run sequentially; larger ones fan out over
// a bounded number of goroutines.
type BatchExpander struct {
	expand  ExpandFunc
	workers int
}

// NewBatchExpander creates a batch expander. Workers <= 0 defaults to
// runtime.NumCPU().
func NewBatchExpander(expand ExpandFunc, workers int) *BatchExpander {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &BatchExpander{expand: expand, workers: workers}
}

// ExpandBatch expands every URL and returns results in input order.
func (be *BatchExpander) ExpandBatch(ctx context.Context, urls []string) *BatchResult {
	if len(urls) == 0 {
		return &BatchResult{Results: make([]*JobResult, 0)}
	}

	// Goroutine overhead is not worth it for a couple of expansions.
	if len(urls) <= 2 {
		return be.expandSequential(ctx, urls)
	}
	return be.expandParallel(ctx, urls)
}

func (be *BatchExpander) expandSequential(ctx context.Context, urls []string) *BatchResult {
	results := make([]*JobResult, 0, len(urls))
	failed := 0

	for _, url := range urls {
		select {
		case <-ctx.Done():
			return &BatchResult{
				Results:       results,
				TotalJobs:     len(urls),
				CompletedJobs: len(results),
				FailedJobs:    failed,
			}
		default:
		}

		expansion, err := be.expand(ctx, url)
		if err != nil {
			failed++
		}
		results = append(results, &JobResult{
			ID:        url,
			URL:       url,
			Expansion: expansion,
			Err:       err,
		})
	}

	return &BatchResult{
		Results:       results,
		TotalJobs:     len(urls),
		CompletedJobs: len(results),
		FailedJobs:    failed,
	}
}

func (be *BatchExpander) expandParallel(ctx context.Context, urls []string) *BatchResult {
	numWorkers := be.workers
	if numWorkers > len(urls) {
		numWorkers = len(urls)
	}

	jobs := make(chan indexedURL, len(urls))
	resultsChan := make(chan indexedExpansion, len(urls))

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			for job := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				expansion, err := be.expand(ctx, job.url)
				resultsChan <- indexedExpansion{
					index:     job.index,
					expansion: expansion,
					err:       err,
				}
			}
		}()
	}

	for i, url := range urls {
		jobs <- indexedURL{index: i, url: url}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	results := make([]*JobResult, len(urls))
	completed := 0
	failed := 0
	for ie := range resultsChan {
		results[ie.index] = &JobResult{
			ID:        urls[ie.index],
			URL:       urls[ie.index],
			Expansion: ie.expansion,
			Err:       ie.err,
		}
		completed++
		if ie.err != nil {
			failed++
		}
	}

	return &BatchResult{
		Results:       results,
		TotalJobs:     len(urls),
		CompletedJobs: completed,
		FailedJobs:    failed,
	}
}

type indexedURL struct {
	index int
	url   string
}

type indexedExpansion struct {
	index     int
	expansion *valueset.Expansion
	err       error
}

// ExpandAll is a convenience wrapper over a one-shot BatchExpander.
func ExpandAll(ctx context.Context, expand ExpandFunc, urls []string) *BatchResult {
	return NewBatchExpander(expand, runtime.NumCPU()).ExpandBatch(ctx, urls)
}
