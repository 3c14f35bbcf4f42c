package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type TestType string

const (
	TestTypeLoad   TestType = "load"
	TestTypeStress TestType = "stress"
	TestTypeSpike  TestType = "spike"
	TestTypeSoak   TestType = "soak"
)

type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

type BodyFormat string

const (
	BodyFormatRaw  BodyFormat = "raw"
	BodyFormatJSON BodyFormat = "json"
)

const (
	DefaultMethod          = "GET"
	DefaultDurationSeconds = 60
	DefaultTargetRPS       = 10
	DefaultConcurrentUsers = 10
	DefaultRampUpSeconds   = 10
	DefaultTimeout         = 30 * time.Second
	DefaultMaxInFlight     = 1000
)

type Config struct {
	TargetURL       string            `mapstructure:"target" validate:"required,url,http_protocol"`
	Method          string            `mapstructure:"method"`
	Headers         map[string]string `mapstructure:"headers"`
	Body            string            `mapstructure:"body"`
	BodyFile        string            `mapstructure:"body_file"`
	BodyFormat      BodyFormat        `mapstructure:"body_format"`
	BodyData        map[string]any    `mapstructure:"-"`
	TestType        TestType          `mapstructure:"test_type"`
	DurationSeconds int               `mapstructure:"duration"`
	TargetRPS       int               `mapstructure:"rps"`
	ConcurrentUsers int               `mapstructure:"users"`
	RampUpSeconds   int               `mapstructure:"ramp_up"`
	Timeout         time.Duration     `mapstructure:"timeout"`
	MaxInFlight     int               `mapstructure:"max_in_flight"`
	RateLimit       int               `mapstructure:"rate_limit"`
	Output          OutputFormat      `mapstructure:"output"`
	Progress        bool              `mapstructure:"progress"`
	LogLevel        string            `mapstructure:"log_level"`
	LogFormat       string            `mapstructure:"log_format"`
	LogErrors       bool              `mapstructure:"log_errors"`
	MetricsAddr     string            `mapstructure:"metrics_addr"`
	Thresholds      []string          `mapstructure:"thresholds"`
	Tracing         TracingConfig     `mapstructure:"tracing"`
	ConfigFile      string            `mapstructure:"-"`
}

// TracingConfig configures the OTLP exporter used for per-request spans.
// Tracing is off unless an endpoint is set.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   *bool   `mapstructure:"propagate"`
}

func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// ShouldPropagate reports whether W3C trace headers are injected into
// outgoing requests. Defaults to true when tracing is enabled.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate == nil {
		return t.Enabled()
	}
	return *t.Propagate
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "invalid configuration"
	}
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("http_protocol", func(fl validator.FieldLevel) bool {
		s := strings.ToLower(fl.Field().String())
		return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
	})
	return v
}

var validMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// HighRPSWarning is the rate above which Warnings asks the user to confirm
// they may load the target.
const HighRPSWarning = 1000

// Warnings returns advisory messages for settings that are valid but risky.
func (c Config) Warnings() []string {
	var warnings []string
	if c.TargetRPS > HighRPSWarning {
		warnings = append(warnings, fmt.Sprintf("high target rate configured (%d RPS); ensure you have authorization to test the target system", c.TargetRPS))
	}
	return warnings
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.TargetURL) == "" {
		issues = append(issues, "target is required (use --help for usage information)")
	} else if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				issues = append(issues, fmt.Sprintf("target %q is not a valid http(s) URL (%s)", c.TargetURL, fe.Tag()))
			}
		} else {
			issues = append(issues, err.Error())
		}
	}

	if !validMethods[strings.ToUpper(c.Method)] {
		issues = append(issues, fmt.Sprintf("method %q is not supported", c.Method))
	}
	switch c.TestType {
	case TestTypeLoad, TestTypeStress, TestTypeSpike, TestTypeSoak:
	default:
		issues = append(issues, fmt.Sprintf("test type %q must be one of load, stress, spike, soak", c.TestType))
	}
	if c.DurationSeconds < 0 {
		issues = append(issues, "duration must be >= 0")
	}
	if c.TargetRPS < 0 {
		issues = append(issues, "rps must be >= 0")
	}
	if c.ConcurrentUsers < 0 {
		issues = append(issues, "users must be >= 0")
	}
	if c.RampUpSeconds < 0 {
		issues = append(issues, "ramp-up must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.MaxInFlight < 0 {
		issues = append(issues, "max-in-flight must be >= 0")
	}
	if c.RateLimit < 0 {
		issues = append(issues, "rate-limit must be >= 0")
	}

	if strings.TrimSpace(c.Body) != "" && strings.TrimSpace(c.BodyFile) != "" {
		issues = append(issues, "body and bodyFile are mutually exclusive")
	}
	if c.BodyData != nil && (c.Body != "" || c.BodyFile != "") {
		issues = append(issues, "structured body cannot be combined with body or bodyFile")
	}
	switch c.BodyFormat {
	case "", BodyFormatRaw, BodyFormatJSON:
	default:
		issues = append(issues, fmt.Sprintf("body format %q must be raw or json", c.BodyFormat))
	}
	if c.BodyFile != "" {
		if _, err := os.Stat(c.BodyFile); err != nil {
			issues = append(issues, fmt.Sprintf("bodyFile: %v", err))
		}
	}

	switch c.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		issues = append(issues, fmt.Sprintf("output %q must be text, json or yaml", c.Output))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		issues = append(issues, fmt.Sprintf("log format %q must be text or json", c.LogFormat))
	}

	issues = append(issues, validateTracing(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateTracing(t TracingConfig) []string {
	if !t.Enabled() {
		return nil
	}
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol %q must be grpc or http", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, "tracing: sample rate must be between 0 and 1")
	}
	return issues
}
