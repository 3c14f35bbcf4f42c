package metrics

import (
	"time"

	"github.com/torosent/surge/internal/collector"
)

// NoResults is the LiveStats status reported before the first result arrives.
const NoResults = "No results yet"

// LiveWindow is how many of the most recent results a snapshot looks at.
const LiveWindow = 100

// LiveStats is a cheap view of an in-progress run.
type LiveStats struct {
	Status             string  `json:"status,omitempty"`
	RunID              string  `json:"run_id,omitempty"`
	IsRunning          bool    `json:"is_running"`
	ElapsedSeconds     float64 `json:"elapsed_seconds"`
	TotalRequests      int     `json:"total_requests"`
	SuccessfulRequests int     `json:"successful_requests"`
	CurrentRPS         float64 `json:"current_rps"`
	AvgResponseTimeMs  float64 `json:"avg_response_time_ms"`
	// P95ResponseTimeMs is read from a histogram over the whole run and is
	// approximate.
	P95ResponseTimeMs float64 `json:"p95_response_time_ms,omitempty"`
}

// Empty reports whether s is the "no results yet" sentinel.
func (s LiveStats) Empty() bool {
	return s.Status == NoResults
}

// Snapshot computes live statistics. total and successes cover the whole run
// so far; recent holds at most the last LiveWindow results and drives the
// rate and latency estimates. The rate divides the window size by ten, which
// assumes roughly ten seconds of traffic per window.
func Snapshot(total, successes int, recent []collector.Result, running bool, start, now time.Time) LiveStats {
	if total == 0 {
		return LiveStats{Status: NoResults, IsRunning: running}
	}
	if len(recent) > LiveWindow {
		recent = recent[len(recent)-LiveWindow:]
	}

	stats := LiveStats{
		IsRunning:          running,
		TotalRequests:      total,
		SuccessfulRequests: successes,
	}
	if !start.IsZero() {
		stats.ElapsedSeconds = now.Sub(start).Seconds()
	}

	if len(recent) > 0 {
		var sum float64
		for _, r := range recent {
			sum += r.ResponseTimeMs
		}
		stats.CurrentRPS = float64(len(recent)) / 10
		stats.AvgResponseTimeMs = sum / float64(len(recent))
	}
	return stats
}

