package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/torosent/surge/internal/config"
	"github.com/torosent/surge/internal/scheduler"
)

func targetServer(t *testing.T, status int) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestRunJSONReport(t *testing.T) {
	srv, hits := targetServer(t, http.StatusOK)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"--target", srv.URL,
		"--duration", "1",
		"--rps", "5",
		"--ramp-up", "0",
		"--output", "json",
		"--log-level", "error",
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run failed: %v\nstderr: %s", err, stderr.String())
	}

	doc := stdout.String()
	if got := gjson.Get(doc, "total_requests").Int(); got != 5 {
		t.Fatalf("expected 5 requests, got %d\n%s", got, doc)
	}
	if got := gjson.Get(doc, "status_code_distribution.200").Int(); got != 5 {
		t.Fatalf("expected five 200s, got %d", got)
	}
	if got := gjson.Get(doc, "total_bytes_received").Int(); got != 10 {
		t.Fatalf("expected 10 bytes, got %d", got)
	}
	if gjson.Get(doc, "run_id").String() == "" {
		t.Fatal("expected run id in report")
	}
	if hits.Load() != 5 {
		t.Fatalf("server saw %d requests", hits.Load())
	}
}

func TestRunThresholdFailure(t *testing.T) {
	srv, _ := targetServer(t, http.StatusInternalServerError)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"--target", srv.URL,
		"--duration", "1",
		"--rps", "2",
		"--ramp-up", "0",
		"--threshold", "http_req_failed:rate < 0.01",
		"--log-level", "error",
	}, &stdout, &stderr)
	if !errors.Is(err, ErrThresholdsFailed) {
		t.Fatalf("expected ErrThresholdsFailed, got %v", err)
	}
	if !strings.Contains(stdout.String(), "Thresholds (0/1 passed)") {
		t.Fatalf("expected threshold table in report:\n%s", stdout.String())
	}
}

func TestRunConfigFileYAMLOutput(t *testing.T) {
	srv, hits := targetServer(t, http.StatusCreated)

	dir := t.TempDir()
	path := filepath.Join(dir, "surge.yaml")
	content := "target: " + srv.URL + "\n" +
		"method: post\n" +
		"duration: 1s\n" +
		"rps: 3\n" +
		"rampUp: 0\n" +
		"output: yaml\n" +
		"logLevel: error\n" +
		"body:\n  name: test\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"--config", path}, &stdout, &stderr); err != nil {
		t.Fatalf("run failed: %v\nstderr: %s", err, stderr.String())
	}
	if !strings.Contains(stdout.String(), "total_requests: 3") {
		t.Fatalf("expected YAML report, got:\n%s", stdout.String())
	}
	if hits.Load() != 3 {
		t.Fatalf("server saw %d requests", hits.Load())
	}
}

func TestRunZeroDuration(t *testing.T) {
	srv, hits := targetServer(t, http.StatusOK)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"--target", srv.URL,
		"--duration", "0",
		"--ramp-up", "0",
		"--output", "json",
		"--metrics-addr", "127.0.0.1:0",
		"--log-level", "error",
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got := gjson.Get(stdout.String(), "total_requests").Int(); got != 0 {
		t.Fatalf("expected no requests, got %d", got)
	}
	if hits.Load() != 0 {
		t.Fatalf("server saw %d requests", hits.Load())
	}
}

func TestRunLogsHighRateWarning(t *testing.T) {
	srv, _ := targetServer(t, http.StatusOK)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"--target", srv.URL,
		"--duration", "0",
		"--ramp-up", "0",
		"--rps", "5000",
		"--output", "json",
		"--log-format", "json",
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(stderr.String(), `"level":"warning"`) || !strings.Contains(stderr.String(), "5000 RPS") {
		t.Fatalf("expected high rate warning in log output, got %q", stderr.String())
	}
}

func TestRunInvalidConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--target", "ftp://example.com"}, &stdout, &stderr)
	var verr config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRunInvalidThreshold(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"--target", "http://127.0.0.1:1",
		"--threshold", "latency < 5",
	}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "threshold") {
		t.Fatalf("expected threshold parse error, got %v", err)
	}
}

func TestNewRequestMapsConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.TargetURL = "http://example.com"
	cfg.TestType = config.TestTypeStress
	cfg.Body = `{"a":1}`
	cfg.BodyFormat = config.BodyFormatJSON

	req, err := newRequest(cfg)
	if err != nil {
		t.Fatalf("newRequest: %v", err)
	}
	if req.TestType != scheduler.Stress || req.TargetRPS != config.DefaultTargetRPS {
		t.Fatalf("unexpected request: %+v", req)
	}
	body, ok := req.Body.(map[string]any)
	if !ok || body["a"] != float64(1) {
		t.Fatalf("expected decoded JSON body, got %#v", req.Body)
	}
}
