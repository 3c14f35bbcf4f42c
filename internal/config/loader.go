package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and an optional configuration file.
// Flags take precedence over file settings.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)
	cfg.BodyFile = strings.TrimSpace(cfg.BodyFile)
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	return cfg, nil
}

// Defaults returns a Config with every default applied.
func Defaults() *Config {
	return &Config{
		Method:          DefaultMethod,
		Headers:         map[string]string{},
		BodyFormat:      BodyFormatRaw,
		TestType:        TestTypeLoad,
		DurationSeconds: DefaultDurationSeconds,
		TargetRPS:       DefaultTargetRPS,
		ConcurrentUsers: DefaultConcurrentUsers,
		RampUpSeconds:   DefaultRampUpSeconds,
		Timeout:         DefaultTimeout,
		MaxInFlight:     DefaultMaxInFlight,
		Output:          OutputText,
		LogLevel:        "info",
		LogFormat:       "text",
		Tracing: TracingConfig{
			Protocol:    "grpc",
			ServiceName: "surge",
			SampleRate:  1,
		},
	}
}

// RequestBody resolves the configured body into the value handed to the
// executor: a map for structured bodies, bytes for raw ones, nil for none.
func (c Config) RequestBody() (any, error) {
	if c.BodyData != nil {
		return c.BodyData, nil
	}

	var raw []byte
	switch {
	case c.BodyFile != "":
		data, err := os.ReadFile(c.BodyFile)
		if err != nil {
			return nil, fmt.Errorf("read body file: %w", err)
		}
		raw = data
	case c.Body != "":
		raw = []byte(c.Body)
	default:
		return nil, nil
	}

	if c.BodyFormat != BodyFormatJSON {
		return raw, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("body is not a JSON object: %w", err)
	}
	return obj, nil
}

func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "target", "url"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("target: %w", err)
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "method"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("method: %w", err)
		}
		if val != "" {
			cfg.Method = val
		}
	}

	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		cfg.Headers = hdrs
	}

	if raw, ok := lookupSetting(settings, "body"); ok {
		switch raw.(type) {
		case map[string]interface{}, map[interface{}]interface{}:
			data, err := asBodyMap(raw)
			if err != nil {
				return fmt.Errorf("body: %w", err)
			}
			cfg.BodyData = data
		default:
			val, err := asString(raw)
			if err != nil {
				return fmt.Errorf("body: %w", err)
			}
			cfg.Body = val
		}
	}

	if raw, ok := lookupSetting(settings, "bodyfile", "body_file", "body-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("bodyFile: %w", err)
		}
		cfg.BodyFile = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "bodyformat", "body_format", "body-format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("bodyFormat: %w", err)
		}
		cfg.BodyFormat = BodyFormat(strings.ToLower(strings.TrimSpace(val)))
	}

	if raw, ok := lookupSetting(settings, "testtype", "test_type", "test-type"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("testType: %w", err)
		}
		cfg.TestType = TestType(strings.ToLower(strings.TrimSpace(val)))
	}

	if raw, ok := lookupSetting(settings, "duration", "durationseconds", "duration_seconds"); ok {
		d, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		cfg.DurationSeconds = int(d / time.Second)
	}

	if raw, ok := lookupSetting(settings, "rampup", "ramp_up", "ramp-up", "rampupseconds", "ramp_up_seconds"); ok {
		d, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("rampUp: %w", err)
		}
		cfg.RampUpSeconds = int(d / time.Second)
	}

	ints := []struct {
		name  string
		keys  []string
		value *int
	}{
		{"rps", []string{"rps", "targetrps", "target_rps"}, &cfg.TargetRPS},
		{"users", []string{"users", "concurrentusers", "concurrent_users"}, &cfg.ConcurrentUsers},
		{"maxInFlight", []string{"maxinflight", "max_in_flight", "max-in-flight"}, &cfg.MaxInFlight},
		{"rateLimit", []string{"ratelimit", "rate_limit", "rate-limit"}, &cfg.RateLimit},
	}
	for _, field := range ints {
		raw, ok := lookupSetting(settings, field.keys...)
		if !ok {
			continue
		}
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = val
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		d, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = d
	}

	if raw, ok := lookupSetting(settings, "output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("output: %w", err)
		}
		cfg.Output = OutputFormat(strings.ToLower(strings.TrimSpace(val)))
	}

	if raw, ok := lookupSetting(settings, "progress"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("progress: %w", err)
		}
		cfg.Progress = val
	}

	if raw, ok := lookupSetting(settings, "loglevel", "log_level", "log-level"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("logLevel: %w", err)
		}
		cfg.LogLevel = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "logformat", "log_format", "log-format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("logFormat: %w", err)
		}
		cfg.LogFormat = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "logerrors", "log_errors", "log-errors"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("logErrors: %w", err)
		}
		cfg.LogErrors = val
	}

	if raw, ok := lookupSetting(settings, "metricsaddr", "metrics_addr", "metrics-addr"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("metricsAddr: %w", err)
		}
		cfg.MetricsAddr = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := applyTracingSettings(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

func applyTracingSettings(t *TracingConfig, raw interface{}) error {
	settings, err := toStringKeyMap(raw)
	if err != nil {
		return err
	}
	if v, ok := lookupSetting(settings, "endpoint"); ok {
		s, err := asString(v)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		t.Endpoint = strings.TrimSpace(s)
	}
	if v, ok := lookupSetting(settings, "protocol"); ok {
		s, err := asString(v)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		t.Protocol = strings.ToLower(strings.TrimSpace(s))
	}
	if v, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		s, err := asString(v)
		if err != nil {
			return fmt.Errorf("serviceName: %w", err)
		}
		if s = strings.TrimSpace(s); s != "" {
			t.ServiceName = s
		}
	}
	if v, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		f, err := asFloat64(v)
		if err != nil {
			return fmt.Errorf("sampleRate: %w", err)
		}
		t.SampleRate = f
	}
	if v, ok := lookupSetting(settings, "insecure"); ok {
		b, err := asBool(v)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		t.Insecure = b
	}
	if v, ok := lookupSetting(settings, "propagate"); ok {
		b, err := asBool(v)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		t.Propagate = &b
	}
	return nil
}
