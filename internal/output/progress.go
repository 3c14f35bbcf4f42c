package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/surge/internal/metrics"
)

// StatsSource provides live statistics. *loadtester.LoadTester satisfies it.
type StatsSource interface {
	CurrentStats() metrics.LiveStats
}

// ProgressReporter rewrites a single status line at a fixed interval.
type ProgressReporter struct {
	source   StatsSource
	interval time.Duration
	writer   io.Writer
	done     chan struct{}
	finished chan struct{}
	active   int32
}

func NewProgressReporter(source StatsSource, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &ProgressReporter{
		source:   source,
		interval: interval,
		writer:   writer,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Start begins reporting in a background goroutine. Calling it twice is a
// no-op.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return
	}
	go p.run()
}

// Stop halts reporting, prints a final line and waits for the goroutine to
// exit.
func (p *ProgressReporter) Stop() {
	if !atomic.CompareAndSwapInt32(&p.active, 1, 2) {
		return
	}
	close(p.done)
	<-p.finished
	fmt.Fprintln(p.writer, "\r"+FormatProgress(p.source.CurrentStats()))
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fmt.Fprint(p.writer, "\r"+FormatProgress(p.source.CurrentStats()))
		case <-p.done:
			return
		}
	}
}

// FormatProgress renders one progress line.
func FormatProgress(s metrics.LiveStats) string {
	if s.Empty() {
		return metrics.NoResults
	}
	elapsed := time.Duration(s.ElapsedSeconds * float64(time.Second)).Round(time.Second)
	return fmt.Sprintf("Requests: %d | Successes: %d | Failures: %d | RPS: %.1f | Avg: %.1fms | P95: %.1fms | Elapsed: %s",
		s.TotalRequests,
		s.SuccessfulRequests,
		s.TotalRequests-s.SuccessfulRequests,
		s.CurrentRPS,
		s.AvgResponseTimeMs,
		s.P95ResponseTimeMs,
		elapsed,
	)
}
