// Package threshold parses pass/fail assertions such as
// "http_req_duration:p95 < 500" and checks them against a run summary.
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/torosent/surge/internal/metrics"
)

const (
	MetricDuration = "http_req_duration"
	MetricFailed   = "http_req_failed"
	MetricRequests = "http_requests"
	MetricBytes    = "http_bytes"
)

var (
	pattern = regexp.MustCompile(`^([a-z_]+):([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)

	aggregates = map[string][]string{
		MetricDuration: {"p50", "median", "p95", "p99", "avg", "mean", "min", "max"},
		MetricFailed:   {"rate", "count"},
		MetricRequests: {"rate", "count"},
		MetricBytes:    {"rate", "count"},
	}
	operators = []string{"<", "<=", ">", ">=", "=="}
)

// Threshold is one parsed assertion. Latencies are in milliseconds and the
// failure rate is a fraction in [0, 1].
type Threshold struct {
	Metric    string
	Aggregate string
	Operator  string
	Value     float64
	Raw       string
}

type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// Parse parses a single threshold expression.
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected metric:aggregate operator value, e.g. 'http_req_duration:p95 < 500')", s)
	}
	metric, aggregate, operator := m[1], m[2], m[3]

	value, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", m[4], err)
	}

	allowed, ok := aggregates[metric]
	if !ok {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: %s, %s, %s, %s)", metric, MetricDuration, MetricFailed, MetricRequests, MetricBytes)
	}
	if !slices.Contains(allowed, aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate %q for %s (supported: %s)", aggregate, metric, strings.Join(allowed, ", "))
	}
	if !slices.Contains(operators, operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: %s)", operator, strings.Join(operators, ", "))
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseAll parses every expression and reports all malformed ones at once.
func ParseAll(exprs []string) ([]Threshold, error) {
	if len(exprs) == 0 {
		return nil, nil
	}

	out := make([]Threshold, 0, len(exprs))
	var problems []string
	for i, s := range exprs {
		t, err := Parse(s)
		if err != nil {
			problems = append(problems, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		out = append(out, t)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(problems, "; "))
	}
	return out, nil
}

// Evaluate checks every threshold against s, in order.
func Evaluate(thresholds []Threshold, s metrics.Summary) []Result {
	if len(thresholds) == 0 {
		return nil
	}
	results := make([]Result, 0, len(thresholds))
	for _, t := range thresholds {
		results = append(results, evaluate(t, s))
	}
	return results
}

// Passed reports whether no result failed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func evaluate(t Threshold, s metrics.Summary) Result {
	actual, err := valueOf(t, s)
	if err != nil {
		return Result{Threshold: t, Message: fmt.Sprintf("error: %v", err)}
	}

	pass := compare(actual, t.Operator, t.Value)
	mark := "✓"
	if !pass {
		mark = "✗"
	}
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   fmt.Sprintf("%s %s: %.2f %s %.2f", mark, t.Raw, actual, t.Operator, t.Value),
	}
}

func valueOf(t Threshold, s metrics.Summary) (float64, error) {
	switch t.Metric + ":" + t.Aggregate {
	case MetricDuration + ":p50", MetricDuration + ":median":
		return s.MedianResponseTimeMs, nil
	case MetricDuration + ":p95":
		return s.P95ResponseTimeMs, nil
	case MetricDuration + ":p99":
		return s.P99ResponseTimeMs, nil
	case MetricDuration + ":avg", MetricDuration + ":mean":
		return s.MeanResponseTimeMs, nil
	case MetricDuration + ":min":
		return s.MinResponseTimeMs, nil
	case MetricDuration + ":max":
		return s.MaxResponseTimeMs, nil
	case MetricFailed + ":count":
		return float64(s.FailedRequests), nil
	case MetricFailed + ":rate":
		return s.ErrorRate / 100, nil
	case MetricRequests + ":count":
		return float64(s.TotalRequests), nil
	case MetricRequests + ":rate":
		return s.RequestsPerSecond, nil
	case MetricBytes + ":count":
		return float64(s.TotalBytesReceived), nil
	case MetricBytes + ":rate":
		return s.AvgBytesPerSecond, nil
	default:
		return 0, fmt.Errorf("unsupported threshold %s:%s", t.Metric, t.Aggregate)
	}
}

func compare(actual float64, operator string, expected float64) bool {
	const epsilon = 1e-9
	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
