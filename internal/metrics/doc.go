// Package metrics turns the results of a load test run into statistics.
//
// Two views are provided over a [collector.Collector]:
//
// # Summary
//
// [Summarize] computes a closed-form summary of a finished run:
//
//	summary := metrics.Summarize(c.Snapshot(), start, end)
//	fmt.Printf("p95=%.1fms rps=%.1f\n", summary.P95ResponseTimeMs, summary.RequestsPerSecond)
//
// Percentiles use the nearest-rank index floor(len*q) over the sorted
// response times, clamped to the last element. Failed requests are grouped
// by error class, the text of the error before its first colon (see
// [ErrorClass]). Results are also bucketed into one-second windows relative
// to the first appended result.
//
// # Live statistics
//
// [Snapshot] is a cheap view of an in-progress run that only looks at the
// last [LiveWindow] results:
//
//	total, ok := c.Counts()
//	live := metrics.Snapshot(total, ok, c.Tail(metrics.LiveWindow), true, start, time.Now())
//	if live.Empty() {
//		// no results yet
//	}
//
// # Ordering
//
// Results are appended in completion order, not issue order. Time bucketing
// anchors on the first appended result, which is only approximately the run
// start under concurrency.
package metrics
