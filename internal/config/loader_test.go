package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestAsString(t *testing.T) {
	tests := []struct {
		input interface{}
		want  string
	}{
		{"hello", "hello"},
		{123, "123"},
		{true, "true"},
		{nil, ""},
		{[]byte("bytes"), "bytes"},
	}

	for _, tt := range tests {
		got, err := asString(tt.input)
		if err != nil {
			t.Errorf("asString(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asString(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		input interface{}
		want  int
	}{
		{123, 123},
		{"456", 456},
		{int64(789), 789},
		{float64(10.0), 10},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asInt(tt.input)
		if err != nil {
			t.Errorf("asInt(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asInt(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestAsDuration(t *testing.T) {
	tests := []struct {
		input interface{}
		want  time.Duration
	}{
		{time.Second, time.Second},
		{"1m", time.Minute},
		{10, 10 * time.Second}, // int treated as seconds
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asDuration(tt.input)
		if err != nil {
			t.Errorf("asDuration(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asDuration(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAsStringSlice(t *testing.T) {
	got, err := asStringSlice("http_req_duration:p95 < 500")
	if err != nil || len(got) != 1 || got[0] != "http_req_duration:p95 < 500" {
		t.Fatalf("single threshold = %q, %v; want one unsplit element", got, err)
	}

	got, err = asStringSlice([]interface{}{"http_req_failed:rate<0.01", "http_requests:count>10"})
	if err != nil || len(got) != 2 || got[1] != "http_requests:count>10" {
		t.Fatalf("threshold list = %q, %v", got, err)
	}

	if got, err := asStringSlice(nil); err != nil || got != nil {
		t.Fatalf("nil = %q, %v; want nil", got, err)
	}
}

func TestAsBoolAndFloat(t *testing.T) {
	if b, err := asBool(" true "); err != nil || !b {
		t.Errorf("asBool(\" true \") = %v, %v", b, err)
	}
	if b, err := asBool(""); err != nil || b {
		t.Errorf("asBool(\"\") = %v, %v", b, err)
	}
	if _, err := asBool("maybe"); err == nil {
		t.Errorf("expected error for non-boolean string")
	}
	if f, err := asFloat64(" 0.25 "); err != nil || f != 0.25 {
		t.Errorf("asFloat64(\" 0.25 \") = %v, %v", f, err)
	}
	if f, err := asFloat64(1); err != nil || f != 1 {
		t.Errorf("asFloat64(1) = %v, %v", f, err)
	}
}

func TestAsStringMap(t *testing.T) {
	got, err := asStringMap(map[interface{}]interface{}{"X-Id": 7, "Accept": "text/plain"})
	if err != nil {
		t.Fatalf("asStringMap() error = %v", err)
	}
	if got["X-Id"] != "7" || got["Accept"] != "text/plain" {
		t.Errorf("headers = %v", got)
	}
	if _, err := asStringMap(map[string]interface{}{" ": "v"}); err == nil {
		t.Errorf("expected error for empty header key")
	}
	if _, err := asStringMap(42); err == nil {
		t.Errorf("expected error for non-map headers")
	}
}

func TestAsBodyMapNested(t *testing.T) {
	raw := map[interface{}]interface{}{
		"name": "widget",
		"tags": []interface{}{"a", map[interface{}]interface{}{"k": 1}},
		"meta": map[interface{}]interface{}{"count": 2},
	}

	got, err := asBodyMap(raw)
	if err != nil {
		t.Fatalf("asBodyMap() error = %v", err)
	}
	if got["name"] != "widget" {
		t.Errorf("name = %v, want widget", got["name"])
	}
	meta, ok := got["meta"].(map[string]any)
	if !ok || meta["count"] != 2 {
		t.Errorf("meta = %#v, want map with count 2", got["meta"])
	}
	tags, ok := got["tags"].([]any)
	if !ok || len(tags) != 2 {
		t.Fatalf("tags = %#v", got["tags"])
	}
	if _, ok := tags[1].(map[string]any); !ok {
		t.Errorf("nested list map not converted: %#v", tags[1])
	}

	if _, err := asBodyMap("not a map"); err == nil {
		t.Errorf("expected error for non-map body")
	}
}

func TestApplyConfigSettings(t *testing.T) {
	cfg := Defaults()
	settings := map[string]interface{}{
		"target":    "http://example.com",
		"method":    "POST",
		"test_type": "Spike",
		"duration":  "2m",
		"rps":       25,
		"users":     "4",
		"ramp_up":   5,
		"timeout":   "5s",
		"headers": map[string]interface{}{
			"Content-Type": "application/json",
		},
		"body": map[string]interface{}{
			"id": 7,
		},
		"tracing": map[string]interface{}{
			"endpoint":    "localhost:4317",
			"sample_rate": 0.5,
			"propagate":   false,
		},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		t.Fatalf("applyConfigSettings() error = %v", err)
	}

	if cfg.TargetURL != "http://example.com" {
		t.Errorf("TargetURL = %q, want http://example.com", cfg.TargetURL)
	}
	if cfg.Method != "POST" {
		t.Errorf("Method = %q, want POST", cfg.Method)
	}
	if cfg.TestType != TestTypeSpike {
		t.Errorf("TestType = %q, want spike", cfg.TestType)
	}
	if cfg.DurationSeconds != 120 {
		t.Errorf("DurationSeconds = %d, want 120", cfg.DurationSeconds)
	}
	if cfg.TargetRPS != 25 || cfg.ConcurrentUsers != 4 || cfg.RampUpSeconds != 5 {
		t.Errorf("rps/users/ramp = %d/%d/%d, want 25/4/5", cfg.TargetRPS, cfg.ConcurrentUsers, cfg.RampUpSeconds)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
	}
	if cfg.Headers["Content-Type"] != "application/json" {
		t.Errorf("Headers[Content-Type] = %q, want application/json", cfg.Headers["Content-Type"])
	}
	if cfg.BodyData["id"] != 7 {
		t.Errorf("BodyData = %#v, want id=7", cfg.BodyData)
	}
	if cfg.Tracing.Endpoint != "localhost:4317" || cfg.Tracing.SampleRate != 0.5 {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if cfg.Tracing.ShouldPropagate() {
		t.Errorf("ShouldPropagate() = true, want false")
	}
	if cfg.Tracing.ServiceName != "surge" {
		t.Errorf("ServiceName = %q, want default surge", cfg.Tracing.ServiceName)
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := Defaults()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)

	args := []string{
		"--rps=50",
		"--method=PUT",
		"--header=X-Test=123",
		"--test-type=STRESS",
		"--max-in-flight=20",
		"--output=json",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if err := applyFlagOverrides(cfg, fs); err != nil {
		t.Fatalf("applyFlagOverrides() error = %v", err)
	}

	if cfg.TargetRPS != 50 {
		t.Errorf("TargetRPS = %d, want 50", cfg.TargetRPS)
	}
	if cfg.DurationSeconds != DefaultDurationSeconds {
		t.Errorf("unchanged DurationSeconds = %d, want default", cfg.DurationSeconds)
	}
	if cfg.Method != "PUT" {
		t.Errorf("Method = %q, want PUT", cfg.Method)
	}
	if cfg.Headers["X-Test"] != "123" {
		t.Errorf("Headers[X-Test] = %q, want 123", cfg.Headers["X-Test"])
	}
	if cfg.TestType != TestTypeStress {
		t.Errorf("TestType = %q, want stress", cfg.TestType)
	}
	if cfg.MaxInFlight != 20 {
		t.Errorf("MaxInFlight = %d, want 20", cfg.MaxInFlight)
	}
	if cfg.Output != OutputJSON {
		t.Errorf("Output = %q, want json", cfg.Output)
	}
}

func TestApplyFlagOverridesBadHeader(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)
	if err := fs.Parse([]string{"--header=novalue"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := applyFlagOverrides(Defaults(), fs); err == nil {
		t.Fatalf("expected error for malformed header")
	}
}

func TestLoader_Load(t *testing.T) {
	loader := NewLoader()
	args := []string{
		"--target=http://example.com",
		"--users=2",
	}

	cfg, err := loader.Load(args)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetURL != "http://example.com" {
		t.Errorf("TargetURL = %q, want http://example.com", cfg.TargetURL)
	}
	if cfg.ConcurrentUsers != 2 {
		t.Errorf("ConcurrentUsers = %d, want 2", cfg.ConcurrentUsers)
	}
}
