package metrics_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/torosent/surge/internal/collector"
	"github.com/torosent/surge/internal/metrics"
)

func okResult(id int64, at time.Time, ms float64, size int) collector.Result {
	return collector.Result{
		RequestID:         id,
		Timestamp:         at,
		ResponseTimeMs:    ms,
		StatusCode:        200,
		Success:           true,
		ResponseSizeBytes: size,
	}
}

func failed(id int64, at time.Time, ms float64, code int, msg string) collector.Result {
	return collector.Result{
		RequestID:      id,
		Timestamp:      at,
		ResponseTimeMs: ms,
		StatusCode:     code,
		Error:          msg,
	}
}

func TestSummarizeEmpty(t *testing.T) {
	start := time.Now()
	s := metrics.Summarize(nil, start, start.Add(2*time.Second))

	if s.TotalRequests != 0 || s.SuccessfulRequests != 0 || s.FailedRequests != 0 {
		t.Fatalf("expected zero totals, got %+v", s)
	}
	if s.MinResponseTimeMs != 0 || s.MaxResponseTimeMs != 0 || s.P99ResponseTimeMs != 0 {
		t.Fatalf("expected zero latencies")
	}
	if s.RequestsPerSecond != 0 || s.ErrorRate != 0 {
		t.Fatalf("expected zero rates")
	}
	if s.StatusCodeDistribution == nil || len(s.StatusCodeDistribution) != 0 {
		t.Fatalf("expected empty status distribution")
	}
	if s.ErrorsByType == nil || len(s.ErrorsByType) != 0 {
		t.Fatalf("expected empty errors_by_type")
	}
	if len(s.ResponseTimeBuckets) != 0 || len(s.ThroughputBuckets) != 0 {
		t.Fatalf("expected no buckets")
	}
}

func TestSummarizeFixedLatency(t *testing.T) {
	start := time.Now()
	results := make([]collector.Result, 0, 10)
	for i := 0; i < 10; i++ {
		results = append(results, okResult(int64(i), start.Add(time.Duration(i)*100*time.Millisecond), 100, 10))
	}

	s := metrics.Summarize(results, start, start.Add(time.Second))

	if s.TotalRequests != 10 || s.SuccessfulRequests != 10 {
		t.Fatalf("expected 10 successful requests, got %d/%d", s.SuccessfulRequests, s.TotalRequests)
	}
	if s.SuccessRate != 100 {
		t.Fatalf("expected 100%% success rate, got %f", s.SuccessRate)
	}
	if math.Abs(s.MeanResponseTimeMs-100) > 1e-9 {
		t.Fatalf("expected mean 100ms, got %f", s.MeanResponseTimeMs)
	}
	if s.RequestsPerSecond != 10 {
		t.Fatalf("expected 10 rps, got %f", s.RequestsPerSecond)
	}
	if s.TotalBytesReceived != 100 || s.AvgBytesPerSecond != 100 {
		t.Fatalf("unexpected bytes: total=%d avg=%f", s.TotalBytesReceived, s.AvgBytesPerSecond)
	}
	if s.StatusCodeDistribution[200] != 10 {
		t.Fatalf("expected 10 x 200, got %v", s.StatusCodeDistribution)
	}
}

func TestSummarizePercentiles(t *testing.T) {
	start := time.Now()
	var results []collector.Result
	// Append in reverse so sorting is exercised.
	for i := 100; i >= 1; i-- {
		results = append(results, okResult(int64(i), start, float64(i), 0))
	}

	s := metrics.Summarize(results, start, start.Add(10*time.Second))

	if s.MinResponseTimeMs != 1 || s.MaxResponseTimeMs != 100 {
		t.Fatalf("min/max = %f/%f", s.MinResponseTimeMs, s.MaxResponseTimeMs)
	}
	// sorted[95] and sorted[99] of 1..100.
	if s.P95ResponseTimeMs != 96 {
		t.Fatalf("expected p95 96, got %f", s.P95ResponseTimeMs)
	}
	if s.P99ResponseTimeMs != 100 {
		t.Fatalf("expected p99 100, got %f", s.P99ResponseTimeMs)
	}
	if s.MedianResponseTimeMs != 50.5 {
		t.Fatalf("expected median 50.5, got %f", s.MedianResponseTimeMs)
	}
}

func TestSummarizePercentileIndexClamped(t *testing.T) {
	start := time.Now()
	for n := 1; n <= 25; n++ {
		var results []collector.Result
		for i := 0; i < n; i++ {
			results = append(results, okResult(int64(i), start, float64(i+1), 0))
		}
		s := metrics.Summarize(results, start, start.Add(time.Second))
		// floor(n*0.99) is n-1 for n < 100, the last element.
		if s.P99ResponseTimeMs != float64(n) {
			t.Fatalf("n=%d: expected p99 %d, got %f", n, n, s.P99ResponseTimeMs)
		}
		if !(s.MinResponseTimeMs <= s.MedianResponseTimeMs &&
			s.MedianResponseTimeMs <= s.P95ResponseTimeMs &&
			s.P95ResponseTimeMs <= s.P99ResponseTimeMs &&
			s.P99ResponseTimeMs <= s.MaxResponseTimeMs) {
			t.Fatalf("n=%d: percentiles not monotonic: %+v", n, s)
		}
	}
}

func TestSummarizeErrorsAndTotals(t *testing.T) {
	start := time.Now()
	results := []collector.Result{
		okResult(1, start, 10, 5),
		failed(2, start, 30000, 0, "Request timeout"),
		failed(3, start, 3, 0, "Request error: connection refused"),
		failed(4, start, 4, 0, "Request error: no such host"),
		failed(5, start, 20, 503, ""),
		failed(6, start, 1, 0, "Unexpected error: boom"),
	}

	s := metrics.Summarize(results, start, start.Add(time.Second))

	if s.TotalRequests != s.SuccessfulRequests+s.FailedRequests {
		t.Fatalf("totals do not add up: %+v", s)
	}
	if s.FailedRequests != 5 {
		t.Fatalf("expected 5 failures, got %d", s.FailedRequests)
	}
	want := map[string]int{
		"Request timeout":  1,
		"Request error":    2,
		"Unexpected error": 1,
	}
	for k, v := range want {
		if s.ErrorsByType[k] != v {
			t.Errorf("errors_by_type[%q] = %d, want %d", k, s.ErrorsByType[k], v)
		}
	}
	if s.StatusCodeDistribution[503] != 1 || s.StatusCodeDistribution[200] != 1 {
		t.Fatalf("unexpected status distribution %v", s.StatusCodeDistribution)
	}
	if s.StatusCodeDistribution[0] != 4 {
		t.Fatalf("expected 4 results without a response under status 0, got %v", s.StatusCodeDistribution)
	}
	if math.Abs(s.ErrorRate-500.0/6.0) > 1e-9 {
		t.Fatalf("unexpected error rate %f", s.ErrorRate)
	}
}

func TestSummarizeAllTimeouts(t *testing.T) {
	start := time.Now()
	var results []collector.Result
	for i := 0; i < 7; i++ {
		results = append(results, failed(int64(i), start, 30000, 0, "Request timeout"))
	}

	s := metrics.Summarize(results, start, start.Add(30*time.Second))

	if s.ErrorRate != 100 {
		t.Fatalf("expected error rate 100, got %f", s.ErrorRate)
	}
	if s.ErrorsByType["Request timeout"] != s.TotalRequests {
		t.Fatalf("expected every request classified as timeout: %v", s.ErrorsByType)
	}
	if s.StatusCodeDistribution[0] != s.TotalRequests || len(s.StatusCodeDistribution) != 1 {
		t.Fatalf("expected every request under status 0, got %v", s.StatusCodeDistribution)
	}
}

func TestSummarizeZeroDuration(t *testing.T) {
	start := time.Now()
	s := metrics.Summarize([]collector.Result{okResult(1, start, 5, 10)}, start, start)
	if s.RequestsPerSecond != 0 || s.AvgBytesPerSecond != 0 {
		t.Fatalf("expected zero rates for zero duration, got %f/%f", s.RequestsPerSecond, s.AvgBytesPerSecond)
	}
}

func TestSummarizeTimeBuckets(t *testing.T) {
	start := time.Now()
	results := []collector.Result{
		okResult(1, start, 10, 0),
		okResult(2, start.Add(200*time.Millisecond), 20, 0),
		okResult(3, start.Add(1100*time.Millisecond), 30, 0),
		// Completed out of order: earlier than the current bucket, stays in it.
		okResult(4, start.Add(900*time.Millisecond), 50, 0),
		okResult(5, start.Add(3500*time.Millisecond), 40, 0),
	}

	s := metrics.Summarize(results, start, start.Add(4*time.Second))

	wantLatency := []metrics.TimeBucket{
		{Second: 0, AvgResponseTime: 15, Count: 2},
		{Second: 1, AvgResponseTime: 40, Count: 2},
		{Second: 3, AvgResponseTime: 40, Count: 1},
	}
	if len(s.ResponseTimeBuckets) != len(wantLatency) {
		t.Fatalf("expected %d buckets, got %+v", len(wantLatency), s.ResponseTimeBuckets)
	}
	for i, b := range wantLatency {
		if s.ResponseTimeBuckets[i] != b {
			t.Errorf("bucket %d = %+v, want %+v", i, s.ResponseTimeBuckets[i], b)
		}
		if s.ThroughputBuckets[i].Second != b.Second || s.ThroughputBuckets[i].RPS != float64(b.Count) {
			t.Errorf("throughput bucket %d = %+v", i, s.ThroughputBuckets[i])
		}
	}
}

func TestSummaryJSONFields(t *testing.T) {
	start := time.Now()
	s := metrics.Summarize([]collector.Result{okResult(1, start, 5, 10)}, start, start.Add(time.Second))

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	required := []string{
		"total_requests", "successful_requests", "failed_requests",
		"total_duration_seconds", "requests_per_second",
		"min_response_time_ms", "max_response_time_ms", "mean_response_time_ms",
		"median_response_time_ms", "p95_response_time_ms", "p99_response_time_ms",
		"error_rate", "status_code_distribution", "errors_by_type",
		"total_bytes_received", "avg_bytes_per_second",
		"response_time_over_time", "throughput_over_time",
	}
	for _, field := range required {
		if _, ok := parsed[field]; !ok {
			t.Errorf("missing field %q", field)
		}
	}
}
