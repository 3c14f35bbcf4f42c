// Package executor performs single HTTP requests on behalf of the scheduler
// and turns every outcome, including failures, into a collector.Result.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/surge/internal/collector"
	"github.com/torosent/surge/internal/metrics"
	"github.com/torosent/surge/internal/telemetry"
	"github.com/torosent/surge/internal/tracing"
)

// Request describes the call made for every request of a run.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	// Body is sent as JSON when it is a map, raw for string and []byte, and
	// as fmt text otherwise. An io.Reader body must be converted with
	// Buffered first.
	Body any
}

// Doer executes one request. Implementations must not panic and must report
// failures inside the returned Result.
type Doer interface {
	Execute(ctx context.Context, id int64, req Request) collector.Result
}

type Executor struct {
	client    *http.Client
	timeout   time.Duration
	tracing   *tracing.Provider
	telemetry *telemetry.Recorder
	logger    *log.Logger
}

type Option func(*Executor)

// WithClient replaces the default pooled client.
func WithClient(c *http.Client) Option {
	return func(e *Executor) {
		if c != nil {
			e.client = c
		}
	}
}

// WithTimeout sets the per-request ceiling. Non-positive values keep the
// default.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithTracing(p *tracing.Provider) Option {
	return func(e *Executor) { e.tracing = p }
}

func WithTelemetry(r *telemetry.Recorder) Option {
	return func(e *Executor) { e.telemetry = r }
}

// WithErrorLog logs every failed request at warn level.
func WithErrorLog(l *log.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

func New(opts ...Option) *Executor {
	e := &Executor{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(e)
	}
	if e.client == nil {
		e.client = NewClient(0)
	}
	return e
}

// Timeout returns the per-request ceiling.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Execute performs req and always returns a Result. Timeouts report the
// configured ceiling as their response time; every other outcome reports the
// measured elapsed time.
func (e *Executor) Execute(ctx context.Context, id int64, req Request) (res collector.Result) {
	start := time.Now()
	res = collector.Result{RequestID: id, Timestamp: start}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	ctx, span := tracing.StartRequestSpan(ctx, e.tracing.Tracer(), id, method, req.URL)
	done := e.telemetry.RequestStarted()

	defer func() {
		if p := recover(); p != nil {
			res.StatusCode = 0
			res.Success = false
			res.ResponseSizeBytes = 0
			res.Error = fmt.Sprintf("%s: %v", metrics.ErrUnexpected, p)
			res.ResponseTimeMs = elapsedMs(start)
		}
		done()
		e.finish(span, method, res, time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	httpReq, err := e.build(ctx, method, req)
	if err != nil {
		res.Error = fmt.Sprintf("%s: %v", metrics.ErrUnexpected, err)
		res.ResponseTimeMs = elapsedMs(start)
		return res
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		e.fail(ctx, &res, err, start)
		return res
	}
	defer resp.Body.Close()

	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		e.fail(ctx, &res, err, start)
		return res
	}

	res.ResponseTimeMs = elapsedMs(start)
	res.StatusCode = resp.StatusCode
	res.ResponseSizeBytes = int(n)
	res.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	return res
}

func (e *Executor) build(ctx context.Context, method string, req Request) (*http.Request, error) {
	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for key, value := range req.Headers {
		k := strings.TrimSpace(key)
		if k == "" || strings.ContainsAny(k, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", k)
		}
		httpReq.Header.Set(k, value)
	}
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if e.tracing.ShouldPropagate() {
		tracing.InjectHTTPHeaders(ctx, httpReq.Header)
	}
	return httpReq, nil
}

// fail classifies a transport or body-read error.
func (e *Executor) fail(ctx context.Context, res *collector.Result, err error, start time.Time) {
	res.StatusCode = 0
	res.Success = false
	res.ResponseSizeBytes = 0

	if isTimeout(ctx, err) {
		res.Error = metrics.ErrTimeout
		res.ResponseTimeMs = float64(e.timeout) / float64(time.Millisecond)
		return
	}

	res.ResponseTimeMs = elapsedMs(start)
	var urlErr *url.Error
	var netErr net.Error
	switch {
	case errors.As(err, &urlErr):
		res.Error = fmt.Sprintf("%s: %v", metrics.ErrTransport, urlErr.Err)
	case errors.As(err, &netErr):
		res.Error = fmt.Sprintf("%s: %v", metrics.ErrTransport, netErr)
	default:
		res.Error = fmt.Sprintf("%s: %v", metrics.ErrUnexpected, err)
	}
}

func (e *Executor) finish(span trace.Span, method string, res collector.Result, elapsed time.Duration) {
	class := ""
	if res.Error != "" {
		class = metrics.ErrorClass(res.Error)
	}
	tracing.EndSpan(span, res.StatusCode, res.ResponseSizeBytes, class, res.Error)
	e.telemetry.ObserveResult(method, res.StatusCode, res.Error, elapsed, res.ResponseSizeBytes)

	if e.logger != nil && !res.Success {
		e.logger.WithFields(log.Fields{
			"request_id":  res.RequestID,
			"status_code": res.StatusCode,
			"elapsed_ms":  res.ResponseTimeMs,
		}).Warnf("request failed: %s", failureText(res))
	}
}

func failureText(res collector.Result) string {
	if res.Error != "" {
		return res.Error
	}
	return http.StatusText(res.StatusCode)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
