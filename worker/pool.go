package worker

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	valueset "github.com/gofhir/valueset"
)

// ExpandFunc expands one value set by canonical URL. Typically this is
// a terminology store's ExpandValueSet or a cached wrapper around it.
type ExpandFunc func(ctx context.Context, url string) (*valueset.Expansion, error)

// ErrNoExpander is returned in job results when the pool was built
// without an expand function.
var ErrNoExpander = poolError("no expand function configured")

type poolError string

func (e poolError) Error() string {
	return string(e)
}

// Pool runs expansions on a fixed set of worker goroutines. Jobs go in
// through Submit, results come out of Results in completion order.
type Pool struct {
	workers    int
	jobsChan   chan Job
	resultChan chan *JobResult
	expand     ExpandFunc
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	closed     atomic.Bool

	jobsSubmitted atomic.Uint64
	jobsCompleted atomic.Uint64
	totalDuration atomic.Uint64
}

// NewPool creates a pool with the given number of workers. Workers <= 0
// defaults to runtime.NumCPU().
func NewPool(expand ExpandFunc, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		workers:    workers,
		jobsChan:   make(chan Job, workers*2),
		resultChan: make(chan *JobResult, workers*2),
		expand:     expand,
		ctx:        ctx,
		cancel:     cancel,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit queues a job, blocking while the queue is full. Returns false
// once the pool is closed.
func (p *Pool) Submit(job Job) bool {
	if p.closed.Load() {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.jobsChan <- job:
		p.jobsSubmitted.Add(1)
		return true
	}
}

// SubmitAsync queues a job without blocking. Returns false if the queue
// is full or the pool closed.
func (p *Pool) SubmitAsync(job Job) bool {
	if p.closed.Load() {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.jobsChan <- job:
		p.jobsSubmitted.Add(1)
		return true
	default:
		return false
	}
}

// Results returns the channel results arrive on. The channel closes
// when the pool is closed.
func (p *Pool) Results() <-chan *JobResult {
	return p.resultChan
}

// Close stops the pool, discarding any undelivered results. Safe to
// call more than once.
func (p *Pool) Close() {
	if p.closed.Swap(true) {
		return
	}

	p.cancel()
	close(p.jobsChan)

	// Drain in the background so workers blocked on the result channel
	// can exit.
	done := make(chan struct{})
	go func() {
		for range p.resultChan {
		}
		close(done)
	}()

	p.wg.Wait()
	close(p.resultChan)
	<-done
}

// CloseAndWait stops accepting jobs, lets queued jobs finish, and
// returns everything produced so far.
func (p *Pool) CloseAndWait() *BatchResult {
	if p.closed.Swap(true) {
		return &BatchResult{}
	}

	close(p.jobsChan)

	results := make([]*JobResult, 0)
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(p.resultChan)
		close(done)
	}()

	failed := 0
	for result := range p.resultChan {
		results = append(results, result)
		if result.Err != nil {
			failed++
		}
	}
	<-done
	p.cancel()

	return &BatchResult{
		Results:       results,
		TotalJobs:     int(p.jobsSubmitted.Load()),
		CompletedJobs: int(p.jobsCompleted.Load()),
		FailedJobs:    failed,
	}
}

// PoolStats reports pool throughput.
type PoolStats struct {
	Workers       int
	JobsSubmitted uint64
	JobsCompleted uint64
	AvgDuration   time.Duration
}

// Stats returns current pool statistics.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Workers:       p.workers,
		JobsSubmitted: p.jobsSubmitted.Load(),
		JobsCompleted: p.jobsCompleted.Load(),
		AvgDuration:   p.averageDuration(),
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for job := range p.jobsChan {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		result := p.processJob(job)
		p.jobsCompleted.Add(1)
		p.totalDuration.Add(uint64(result.Duration))

		select {
		case <-p.ctx.Done():
			return
		case p.resultChan <- result:
		}
	}
}

func (p *Pool) processJob(job Job) *JobResult {
	start := time.Now()

	id := job.ID
	if id == "" {
		id = job.URL
	}
	result := &JobResult{ID: id, URL: job.URL}

	if p.expand == nil {
		result.Err = ErrNoExpander
		result.Duration = time.Since(start)
		return result
	}

	result.Expansion, result.Err = p.expand(p.ctx, job.URL)
	result.Duration = time.Since(start)
	return result
}

func (p *Pool) averageDuration() time.Duration {
	completed := p.jobsCompleted.Load()
	if completed == 0 {
		return 0
	}
	return time.Duration(p.totalDuration.Load() / completed)
}
