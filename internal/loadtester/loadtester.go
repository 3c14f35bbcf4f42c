// Package loadtester is the entry point for running a load test: it owns
// the state of the current run, drives the scheduler and summarizes what
// was collected.
package loadtester

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	log "github.com/sirupsen/logrus"

	"github.com/torosent/surge/internal/collector"
	"github.com/torosent/surge/internal/executor"
	"github.com/torosent/surge/internal/logging"
	"github.com/torosent/surge/internal/metrics"
	"github.com/torosent/surge/internal/scheduler"
	"github.com/torosent/surge/internal/telemetry"
)

var (
	// ErrRunInProgress is returned when a run is started while another one is
	// still going on the same LoadTester.
	ErrRunInProgress = errors.New("load test already running")
	// ErrInvalidRequest wraps precondition failures on a Request.
	ErrInvalidRequest = errors.New("invalid load test request")
)

type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Request holds the parameters of one run. Use NewRequest for the defaults.
// An io.Reader Body is read once when the run starts and resent in full by
// every request.
type Request struct {
	URL             string
	Method          string
	Headers         map[string]string
	Body            any
	TestType        scheduler.TestType
	DurationSeconds int
	TargetRPS       int
	ConcurrentUsers int
	RampUpSeconds   int
}

// NewRequest returns a GET load test of url for 60s at 10 rps with 10 users
// and a 10s ramp-up.
func NewRequest(url string) Request {
	return Request{
		URL:             url,
		Method:          "GET",
		TestType:        scheduler.Load,
		DurationSeconds: 60,
		TargetRPS:       10,
		ConcurrentUsers: 10,
		RampUpSeconds:   10,
	}
}

func (r Request) withDefaults() Request {
	if strings.TrimSpace(r.Method) == "" {
		r.Method = "GET"
	}
	if r.TestType == "" {
		r.TestType = scheduler.Load
	}
	return r
}

func (r Request) validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidRequest)
	}
	if _, err := scheduler.ParseTestType(string(r.TestType)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

func (r Request) params() scheduler.Params {
	return scheduler.Params{
		TestType:        r.TestType,
		DurationSeconds: r.DurationSeconds,
		TargetRPS:       r.TargetRPS,
		ConcurrentUsers: r.ConcurrentUsers,
		RampUpSeconds:   r.RampUpSeconds,
	}
}

// run is the state of a single execution.
type run struct {
	id       string
	testType scheduler.TestType
	start    time.Time
	end      time.Time
	results  *collector.Collector
}

type LoadTester struct {
	opts      scheduler.Options
	logger    *log.Logger
	telemetry *telemetry.Recorder

	mu      sync.Mutex
	state   State
	running bool
	current *run
}

type Option func(*LoadTester)

// WithDoer replaces the default HTTP executor.
func WithDoer(d executor.Doer) Option {
	return func(lt *LoadTester) { lt.opts.Doer = d }
}

func WithPacer(p scheduler.Pacer) Option {
	return func(lt *LoadTester) { lt.opts.Pacer = p }
}

// WithMaxInFlight caps concurrent requests.
func WithMaxInFlight(n int) Option {
	return func(lt *LoadTester) { lt.opts.MaxInFlight = n }
}

// WithRateLimit sets a hard requests-per-second ceiling on top of the
// shape's pacing.
func WithRateLimit(rps int) Option {
	return func(lt *LoadTester) { lt.opts.RateLimit = rps }
}

func WithLogger(l *log.Logger) Option {
	return func(lt *LoadTester) { lt.logger = l }
}

func WithTelemetry(r *telemetry.Recorder) Option {
	return func(lt *LoadTester) { lt.telemetry = r }
}

func New(opts ...Option) *LoadTester {
	lt := &LoadTester{state: StateIdle}
	for _, opt := range opts {
		opt(lt)
	}
	if lt.logger == nil {
		lt.logger = logging.Discard()
	}
	if lt.opts.Doer == nil {
		lt.opts.Doer = executor.New(executor.WithTelemetry(lt.telemetry))
	}
	lt.opts.Logger = lt.logger
	lt.opts.Telemetry = lt.telemetry
	return lt
}

// RunLoadTest executes req and returns its summary. If the run fails before
// any request was issued only the error is returned. If it fails later, the
// summary covers the partial results and is returned with the error.
func (lt *LoadTester) RunLoadTest(ctx context.Context, req Request) (summary *metrics.Summary, err error) {
	req = req.withDefaults()
	if err := req.validate(); err != nil {
		return nil, err
	}
	req.TestType, _ = scheduler.ParseTestType(string(req.TestType))

	call, err := executor.Request{
		URL:     req.URL,
		Method:  req.Method,
		Headers: req.Headers,
		Body:    req.Body,
	}.Buffered()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	r, err := lt.begin(req.TestType)
	if err != nil {
		return nil, err
	}

	var stats scheduler.Stats
	defer func() {
		end := lt.finish(r, err)
		if err != nil && stats.Issued == 0 {
			summary = nil
			return
		}
		s := metrics.Summarize(r.results.Snapshot(), r.start, end)
		s.RunID = r.id
		s.TestType = string(r.testType)
		summary = &s
	}()

	sched := scheduler.New(lt.opts)
	stats, err = sched.Run(ctx, scheduler.Run{
		ID:      r.id,
		Params:  req.params(),
		Request: call,
		Results: r.results,
	})
	if err != nil {
		err = fmt.Errorf("run %s: %w", r.id, err)
	}
	return nil, err
}

func (lt *LoadTester) begin(testType scheduler.TestType) (*run, error) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	if lt.running {
		return nil, ErrRunInProgress
	}
	r := &run{
		id:       ulid.Make().String(),
		testType: testType,
		start:    time.Now(),
		results:  collector.New(),
	}
	lt.current = r
	lt.running = true
	lt.state = StateRunning
	return r, nil
}

func (lt *LoadTester) finish(r *run, err error) time.Time {
	lt.mu.Lock()
	r.end = time.Now()
	lt.running = false
	result := "completed"
	lt.state = StateCompleted
	if err != nil {
		result = "failed"
		lt.state = StateFailed
	}
	lt.mu.Unlock()

	lt.logger.WithFields(log.Fields{
		"run_id":    r.id,
		"result":    result,
		"collected": r.results.Len(),
	}).Debug("run finished")
	lt.telemetry.RunFinished(string(r.testType), result)
	return r.end
}

// CurrentStats returns live statistics for the current or most recent run.
// It is safe to call while a run is in progress.
func (lt *LoadTester) CurrentStats() metrics.LiveStats {
	lt.mu.Lock()
	r := lt.current
	running := lt.running
	var start, end time.Time
	if r != nil {
		start, end = r.start, r.end
	}
	lt.mu.Unlock()

	if r == nil {
		return metrics.Snapshot(0, 0, nil, false, time.Time{}, time.Time{})
	}

	now := time.Now()
	if !running && !end.IsZero() {
		now = end
	}
	total, successes := r.results.Counts()
	stats := metrics.Snapshot(total, successes, r.results.Tail(metrics.LiveWindow), running, start, now)
	stats.RunID = r.id
	if !stats.Empty() {
		stats.P95ResponseTimeMs = r.results.LiveQuantile(95)
	}
	return stats
}

func (lt *LoadTester) State() State {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.state
}
