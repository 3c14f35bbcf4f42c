package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "surge",
		Short:         "HTTP load testing with load, stress, spike and soak shapes",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

func configureFlags(flags *pflag.FlagSet) {
	// Request
	flags.String("target", "", "Target URL to load test")
	flags.String("method", DefaultMethod, "HTTP method to use")
	flags.StringSlice("header", nil, "Additional request header in key=value form")
	flags.String("body", "", "Inline request body payload")
	flags.String("body-file", "", "Path to file containing the request body")
	flags.String("body-format", string(BodyFormatRaw), "How the body is sent: raw or json (decoded and re-encoded as JSON)")

	// Load shape
	flags.String("test-type", string(TestTypeLoad), "Load shape: load, stress, spike or soak")
	flags.IntP("duration", "d", DefaultDurationSeconds, "Test duration in seconds")
	flags.IntP("rps", "r", DefaultTargetRPS, "Target requests per second")
	flags.IntP("users", "u", DefaultConcurrentUsers, "Concurrent users (stress pacing granularity)")
	flags.Int("ramp-up", DefaultRampUpSeconds, "Ramp-up seconds for load tests")
	flags.Duration("timeout", DefaultTimeout, "Per-request timeout")
	flags.Int("max-in-flight", DefaultMaxInFlight, "Maximum requests in flight at once")
	flags.Int("rate-limit", 0, "Hard ceiling on requests per second (0 means off)")

	// Output
	flags.StringP("output", "o", string(OutputText), "Report format: text, json or yaml")
	flags.Bool("progress", false, "Print live progress to stderr while the test runs")
	flags.StringSlice("threshold", nil, "Pass/fail threshold, e.g. http_req_duration:p95<500 (repeatable)")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Observability
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "text", "Log format: text or json")
	flags.Bool("log-errors", false, "Log each failed request")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flags.String("tracing-endpoint", "", "OTLP collector endpoint; enables request tracing")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.Float64("tracing-sample-rate", 1, "Fraction of requests to trace (0-1)")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
}

func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("target") {
		val, err := fs.GetString("target")
		if err != nil {
			return err
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}
	if fs.Changed("method") {
		val, err := fs.GetString("method")
		if err != nil {
			return err
		}
		cfg.Method = val
	}
	if fs.Changed("body") {
		val, err := fs.GetString("body")
		if err != nil {
			return err
		}
		cfg.Body = val
		cfg.BodyFile = ""
		cfg.BodyData = nil
	}
	if fs.Changed("body-file") {
		val, err := fs.GetString("body-file")
		if err != nil {
			return err
		}
		cfg.BodyFile = val
		cfg.Body = ""
		cfg.BodyData = nil
	}
	if fs.Changed("body-format") {
		val, err := fs.GetString("body-format")
		if err != nil {
			return err
		}
		cfg.BodyFormat = BodyFormat(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("test-type") {
		val, err := fs.GetString("test-type")
		if err != nil {
			return err
		}
		cfg.TestType = TestType(strings.ToLower(strings.TrimSpace(val)))
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"duration", &cfg.DurationSeconds},
		{"rps", &cfg.TargetRPS},
		{"users", &cfg.ConcurrentUsers},
		{"ramp-up", &cfg.RampUpSeconds},
		{"max-in-flight", &cfg.MaxInFlight},
		{"rate-limit", &cfg.RateLimit},
	}
	for _, f := range ints {
		if !fs.Changed(f.name) {
			continue
		}
		val, err := fs.GetInt(f.name)
		if err != nil {
			return err
		}
		*f.dst = val
	}

	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("output") {
		val, err := fs.GetString("output")
		if err != nil {
			return err
		}
		cfg.Output = OutputFormat(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("progress") {
		val, err := fs.GetBool("progress")
		if err != nil {
			return err
		}
		cfg.Progress = val
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = strings.TrimSpace(val)
	}
	if fs.Changed("log-format") {
		val, err := fs.GetString("log-format")
		if err != nil {
			return err
		}
		cfg.LogFormat = strings.TrimSpace(val)
	}
	if fs.Changed("log-errors") {
		val, err := fs.GetBool("log-errors")
		if err != nil {
			return err
		}
		cfg.LogErrors = val
	}
	if fs.Changed("metrics-addr") {
		val, err := fs.GetString("metrics-addr")
		if err != nil {
			return err
		}
		cfg.MetricsAddr = strings.TrimSpace(val)
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}

	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}

	vals, err := fs.GetStringSlice("header")
	if err != nil {
		return err
	}
	if len(vals) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for _, entry := range vals {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("header must be in key=value format: %s", entry)
			}
			key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
			if key == "" {
				return fmt.Errorf("header key cannot be empty")
			}
			cfg.Headers[key] = strings.TrimSpace(parts[1])
		}
	}
	return nil
}

