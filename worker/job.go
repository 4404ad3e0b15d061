package worker

import (
	"time"

	valueset "github.com/gofhir/valueset"
)

// Job is one expansion request: a canonical value set URL, optionally
// with a version suffix ("url|version").
type Job struct {
	// ID correlates the job with its result. Defaults to the URL when
	// left empty.
	ID string

	// URL is the canonical URL of the value set to expand.
	URL string
}

// JobResult is the outcome of one expansion job.
type JobResult struct {
	// ID matches the Job.ID that produced this result.
	ID string

	// URL is the canonical URL that was expanded.
	URL string

	// Expansion is the materialized expansion, nil when Err is set.
	Expansion *valueset.Expansion

	// Err holds the expansion failure, if any.
	Err error

	// Duration is the time the expansion took.
	Duration time.Duration
}

// BatchResult aggregates the results of a batch of expansion jobs, in
// submission order.
type BatchResult struct {
	Results       []*JobResult
	TotalJobs     int
	CompletedJobs int
	FailedJobs    int
}

// HasFailures reports whether any job in the batch failed.
func (br *BatchResult) HasFailures() bool {
	return br.FailedJobs > 0
}

// FailureCount returns the number of failed jobs.
func (br *BatchResult) FailureCount() int {
	return br.FailedJobs
}

// Failures returns the results of the failed jobs.
func (br *BatchResult) Failures() []*JobResult {
	var out []*JobResult
	for _, r := range br.Results {
		if r != nil && r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
