// Package collector holds the result sequence of a single load test run.
package collector

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Result is the outcome of a single issued request.
type Result struct {
	RequestID         int64     `json:"request_id"`
	Timestamp         time.Time `json:"timestamp"`
	ResponseTimeMs    float64   `json:"response_time_ms"`
	StatusCode        int       `json:"status_code"`
	Success           bool      `json:"success"`
	Error             string    `json:"error,omitempty"`
	ResponseSizeBytes int       `json:"response_size_bytes"`
}

// Collector is the append-only result sequence of one run.
// Appends arrive from many goroutines in completion order.
type Collector struct {
	mu        sync.Mutex
	results   []Result
	successes int
	hist      *hdrhistogram.Histogram
}

func New() *Collector {
	return &Collector{
		results: make([]Result, 0, 1024),
		hist:    newHistogram(),
	}
}

// Track response times from 1µs up to 10 minutes with 3 significant figures.
func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(1, int64(10*time.Minute/time.Microsecond), 3)
}

// Append records a finished request.
func (c *Collector) Append(r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results = append(c.results, r)
	if r.Success {
		c.successes++
	}

	us := int64(r.ResponseTimeMs * 1000)
	if us < c.hist.LowestTrackableValue() {
		us = c.hist.LowestTrackableValue()
	}
	if us > c.hist.HighestTrackableValue() {
		us = c.hist.HighestTrackableValue()
	}
	_ = c.hist.RecordValue(us)
}

// Snapshot returns a copy of every result appended so far.
func (c *Collector) Snapshot() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Result, len(c.results))
	copy(out, c.results)
	return out
}

// Tail returns a copy of the last n results (fewer if not enough were appended).
func (c *Collector) Tail(n int) []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 {
		return nil
	}
	if n > len(c.results) {
		n = len(c.results)
	}
	out := make([]Result, n)
	copy(out, c.results[len(c.results)-n:])
	return out
}

func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// Counts returns the number of results and how many of them succeeded.
func (c *Collector) Counts() (total, successes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results), c.successes
}

// LiveQuantile returns the q-th percentile (0-100) response time in milliseconds
// from the live histogram. It is approximate and meant for progress display only.
func (c *Collector) LiveQuantile(q float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hist.TotalCount() == 0 {
		return 0
	}
	return float64(c.hist.ValueAtQuantile(q)) / 1000
}
