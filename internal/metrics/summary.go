package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/torosent/surge/internal/collector"
)

// Summary is the closed-form statistical summary of a finished run.
type Summary struct {
	RunID    string `json:"run_id,omitempty"`
	TestType string `json:"test_type,omitempty"`

	TotalRequests      int `json:"total_requests"`
	SuccessfulRequests int `json:"successful_requests"`
	FailedRequests     int `json:"failed_requests"`

	StartTime            time.Time `json:"start_time"`
	EndTime              time.Time `json:"end_time"`
	TotalDurationSeconds float64   `json:"total_duration_seconds"`
	RequestsPerSecond    float64   `json:"requests_per_second"`

	MinResponseTimeMs    float64 `json:"min_response_time_ms"`
	MaxResponseTimeMs    float64 `json:"max_response_time_ms"`
	MeanResponseTimeMs   float64 `json:"mean_response_time_ms"`
	MedianResponseTimeMs float64 `json:"median_response_time_ms"`
	P95ResponseTimeMs    float64 `json:"p95_response_time_ms"`
	P99ResponseTimeMs    float64 `json:"p99_response_time_ms"`

	// Percentages in the range [0, 100].
	ErrorRate   float64 `json:"error_rate"`
	SuccessRate float64 `json:"success_rate"`

	StatusCodeDistribution map[int]int    `json:"status_code_distribution"`
	ErrorsByType           map[string]int `json:"errors_by_type"`

	TotalBytesReceived int64   `json:"total_bytes_received"`
	AvgBytesPerSecond  float64 `json:"avg_bytes_per_second"`

	ResponseTimeBuckets []TimeBucket       `json:"response_time_over_time"`
	ThroughputBuckets   []ThroughputBucket `json:"throughput_over_time"`
}

// TimeBucket is the mean response time of the results that fell into one second.
type TimeBucket struct {
	Second          int     `json:"second"`
	AvgResponseTime float64 `json:"avg_response_time"`
	Count           int     `json:"count"`
}

// ThroughputBucket is the number of results completed in one second.
type ThroughputBucket struct {
	Second int     `json:"second"`
	RPS    float64 `json:"rps"`
}

// Summarize aggregates the results of a finished run. An empty result set
// yields a zero-valued summary with empty (non-nil) maps.
func Summarize(results []collector.Result, start, end time.Time) Summary {
	s := Summary{
		StartTime:              start,
		EndTime:                end,
		StatusCodeDistribution: map[int]int{},
		ErrorsByType:           map[string]int{},
		ResponseTimeBuckets:    []TimeBucket{},
		ThroughputBuckets:      []ThroughputBucket{},
	}

	duration := end.Sub(start).Seconds()
	if duration < 0 {
		duration = 0
	}
	s.TotalDurationSeconds = duration

	if len(results) == 0 {
		return s
	}

	times := make([]float64, 0, len(results))
	var sum float64
	for _, r := range results {
		s.TotalRequests++
		if r.Success {
			s.SuccessfulRequests++
		} else {
			s.FailedRequests++
			if r.Error != "" {
				s.ErrorsByType[ErrorClass(r.Error)]++
			}
		}
		s.StatusCodeDistribution[r.StatusCode]++
		s.TotalBytesReceived += int64(r.ResponseSizeBytes)
		times = append(times, r.ResponseTimeMs)
		sum += r.ResponseTimeMs
	}

	sort.Float64s(times)
	s.MinResponseTimeMs = times[0]
	s.MaxResponseTimeMs = times[len(times)-1]
	s.MeanResponseTimeMs = sum / float64(len(times))
	s.MedianResponseTimeMs = median(times)
	s.P95ResponseTimeMs = percentile(times, 0.95)
	s.P99ResponseTimeMs = percentile(times, 0.99)

	s.ErrorRate = float64(s.FailedRequests) / float64(s.TotalRequests) * 100
	s.SuccessRate = float64(s.SuccessfulRequests) / float64(s.TotalRequests) * 100

	if duration > 0 {
		s.RequestsPerSecond = float64(s.TotalRequests) / duration
		s.AvgBytesPerSecond = float64(s.TotalBytesReceived) / duration
	}

	s.ResponseTimeBuckets, s.ThroughputBuckets = bucketize(results)
	return s
}

// percentile picks sorted[floor(len*q)], clamped to the last element.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Floor(float64(len(sorted)) * q))
	if idx > len(sorted)-1 {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// bucketize walks results in collector order and groups them by whole seconds
// elapsed since the first appended result. Because appends happen in completion
// order the anchor is only approximately the run start; a result that completed
// earlier than the anchor stays in the current bucket.
func bucketize(results []collector.Result) ([]TimeBucket, []ThroughputBucket) {
	latency := []TimeBucket{}
	throughput := []ThroughputBucket{}
	if len(results) == 0 {
		return latency, throughput
	}

	anchor := results[0].Timestamp
	current := 0
	var bucketSum float64
	bucketCount := 0

	flush := func() {
		if bucketCount == 0 {
			return
		}
		latency = append(latency, TimeBucket{
			Second:          current,
			AvgResponseTime: bucketSum / float64(bucketCount),
			Count:           bucketCount,
		})
		throughput = append(throughput, ThroughputBucket{
			Second: current,
			RPS:    float64(bucketCount),
		})
	}

	for _, r := range results {
		second := int(r.Timestamp.Sub(anchor).Seconds())
		if second > current {
			flush()
			current = second
			bucketSum = 0
			bucketCount = 0
		}
		bucketSum += r.ResponseTimeMs
		bucketCount++
	}
	flush()

	return latency, throughput
}
