// Package worker provides a goroutine pool for expanding many value
// sets in parallel, for example when pre-warming an expansion cache at
// startup.
//
// Example:
//
//	pool := worker.NewPool(store.ExpandValueSet, 4)
//	for _, url := range urls {
//	    pool.Submit(worker.Job{URL: url})
//	}
//	batch := pool.CloseAndWait()
//	if batch.HasFailures() {
//	    // inspect batch.Failures()
//	}
//
// For one-shot batches with results in input order, use BatchExpander
// or the ExpandAll helper.
package worker
