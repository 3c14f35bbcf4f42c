// Package output renders run summaries as text tables, JSON or YAML, and
// prints a live progress line while a run is in flight.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/torosent/surge/internal/metrics"
	"github.com/torosent/surge/internal/threshold"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Report is a summary together with its threshold verdicts.
type Report struct {
	metrics.Summary
	Thresholds       []ThresholdResult `json:"thresholds,omitempty"`
	ThresholdsPassed *bool             `json:"thresholds_passed,omitempty"`
}

type ThresholdResult struct {
	Threshold string  `json:"threshold"`
	Metric    string  `json:"metric"`
	Aggregate string  `json:"aggregate"`
	Operator  string  `json:"operator"`
	Expected  float64 `json:"expected"`
	Actual    float64 `json:"actual"`
	Pass      bool    `json:"pass"`
}

// NewReport builds a Report. ThresholdsPassed is only set when thresholds
// were evaluated.
func NewReport(s metrics.Summary, results []threshold.Result) Report {
	r := Report{Summary: s}
	if len(results) == 0 {
		return r
	}
	r.Thresholds = make([]ThresholdResult, len(results))
	for i, tr := range results {
		r.Thresholds[i] = ThresholdResult{
			Threshold: tr.Threshold.Raw,
			Metric:    tr.Threshold.Metric,
			Aggregate: tr.Threshold.Aggregate,
			Operator:  tr.Threshold.Operator,
			Expected:  tr.Threshold.Value,
			Actual:    tr.Actual,
			Pass:      tr.Pass,
		}
	}
	passed := threshold.Passed(results)
	r.ThresholdsPassed = &passed
	return r
}

// Write renders r in the given format.
func Write(w io.Writer, format Format, r Report) error {
	switch format {
	case FormatText, "":
		PrintReport(w, r)
		return nil
	case FormatJSON:
		return PrintJSONReport(w, r)
	case FormatYAML:
		return PrintYAMLReport(w, r)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// PrintReport writes a human-readable report.
func PrintReport(w io.Writer, r Report) {
	s := r.Summary
	title := "Load Test Results"
	if s.TestType != "" {
		title = fmt.Sprintf("%s Test Results", strings.ToUpper(s.TestType))
	}
	fmt.Fprintf(w, "\n--- %s ---\n", title)
	if s.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", s.RunID)
	}

	overview := newTable()
	overview.AppendRows([]table.Row{
		{"Total Requests", s.TotalRequests},
		{"Successful", fmt.Sprintf("%d (%.2f%%)", s.SuccessfulRequests, s.SuccessRate)},
		{"Failed", fmt.Sprintf("%d (%.2f%%)", s.FailedRequests, s.ErrorRate)},
		{"Duration", seconds(s.TotalDurationSeconds)},
		{"Requests/sec", fmt.Sprintf("%.2f", s.RequestsPerSecond)},
		{"Bytes Received", s.TotalBytesReceived},
		{"Bytes/sec", fmt.Sprintf("%.2f", s.AvgBytesPerSecond)},
	})
	fmt.Fprintln(w, overview.Render())

	fmt.Fprintln(w, "\nResponse Time (ms):")
	latency := newTable()
	latency.AppendHeader(table.Row{"Min", "Mean", "Median", "P95", "P99", "Max"})
	latency.AppendRow(table.Row{
		ms(s.MinResponseTimeMs),
		ms(s.MeanResponseTimeMs),
		ms(s.MedianResponseTimeMs),
		ms(s.P95ResponseTimeMs),
		ms(s.P99ResponseTimeMs),
		ms(s.MaxResponseTimeMs),
	})
	fmt.Fprintln(w, latency.Render())

	if rows := metrics.FlattenStatusCodes(s.StatusCodeDistribution); len(rows) > 0 {
		fmt.Fprintln(w, "\nStatus Codes:")
		codes := newTable()
		codes.AppendHeader(table.Row{"Code", "Count"})
		for _, row := range rows {
			codes.AppendRow(table.Row{statusColor(row.Code).Sprint(row.Code), row.Count})
		}
		fmt.Fprintln(w, codes.Render())
	}

	if rows := metrics.FlattenErrors(s.ErrorsByType); len(rows) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		errs := newTable()
		errs.AppendHeader(table.Row{"Type", "Count"})
		for _, row := range rows {
			errs.AppendRow(table.Row{row.Class, row.Count})
		}
		fmt.Fprintln(w, errs.Render())
	}

	if len(r.Thresholds) > 0 {
		passed := 0
		for _, tr := range r.Thresholds {
			if tr.Pass {
				passed++
			}
		}
		fmt.Fprintf(w, "\nThresholds (%d/%d passed):\n", passed, len(r.Thresholds))
		th := newTable()
		th.AppendHeader(table.Row{"Threshold", "Actual", "Status"})
		for _, tr := range r.Thresholds {
			status := text.FgGreen.Sprint("PASS")
			if !tr.Pass {
				status = text.FgRed.Sprint("FAIL")
			}
			th.AppendRow(table.Row{tr.Threshold, fmt.Sprintf("%.2f", tr.Actual), status})
		}
		fmt.Fprintln(w, th.Render())
	}
}

// PrintJSONReport writes r as indented JSON.
func PrintJSONReport(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// PrintYAMLReport writes r as YAML using the same field names as the JSON
// report.
func PrintYAMLReport(w io.Writer, r Report) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("convert report: %w", err)
	}
	blockStyle(&doc)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// blockStyle drops the flow and quoting styles inherited from JSON input.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	return t
}

func statusColor(code int) text.Color {
	switch {
	case code >= 500 || code == 0:
		return text.FgRed
	case code >= 400:
		return text.FgYellow
	case code >= 300:
		return text.FgBlue
	default:
		return text.FgGreen
	}
}

func ms(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func seconds(v float64) string {
	return time.Duration(v * float64(time.Second)).Round(time.Millisecond).String()
}
