// Package runner executes UI scenarios across parallel workers.
//
// Each scenario runs on its own worker through a fixed lifecycle: acquire a
// session, run the steps, capture a screenshot on failure, release the
// session and emit one outcome record. Failures are re-run under a shared
// retry policy; only the final attempt reaches the aggregator.
//
// It provides:
//   - Bounded concurrency with named workers
//   - Bail mode that stops scheduling after the first failure
//   - Per-test timeouts and per-step wait overrides
//   - Before and after shell hooks
//   - One trace span per attempt
package runner
