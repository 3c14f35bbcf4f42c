// Package config loads surge settings from flags and an optional JSON or YAML file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// lookupSetting returns the first of keys present in settings. Viper
// lowercases file keys, so keys are matched lowercased.
func lookupSetting(settings map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, key := range keys {
		if val, ok := settings[strings.ToLower(key)]; ok {
			return val, true
		}
	}
	return nil, false
}

func asString(value interface{}) (string, error) {
	return cast.ToStringE(value)
}

func asInt(value interface{}) (int, error) {
	if s, ok := value.(string); ok {
		value = strings.TrimSpace(s)
	}
	return cast.ToIntE(value)
}

func asFloat64(value interface{}) (float64, error) {
	if s, ok := value.(string); ok {
		value = strings.TrimSpace(s)
	}
	return cast.ToFloat64E(value)
}

func asBool(value interface{}) (bool, error) {
	if s, ok := value.(string); ok {
		if s = strings.TrimSpace(s); s == "" {
			return false, nil
		}
		value = s
	}
	return cast.ToBoolE(value)
}

// asDuration reads bare numbers as whole seconds and strings as Go
// durations ("1m30s").
func asDuration(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, nil
		}
		return time.ParseDuration(v)
	}
	secs, err := cast.ToIntE(value)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}

func asStringMap(value interface{}) (map[string]string, error) {
	if value == nil {
		return nil, nil
	}
	m, err := cast.ToStringMapStringE(value)
	if err != nil {
		return nil, err
	}
	for k := range m {
		if strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("header key cannot be empty")
		}
	}
	return m, nil
}

// asStringSlice keeps a single string as one element; thresholds contain
// spaces and must not be split.
func asStringSlice(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	}
	return cast.ToStringSliceE(value)
}

// asBodyMap converts a structured body from a config file into a map that
// encodes cleanly as JSON. Nested YAML maps are converted recursively.
func asBodyMap(value interface{}) (map[string]any, error) {
	m, ok := normalizeBodyValue(value).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected map, got %T", value)
	}
	return m, nil
}

func normalizeBodyValue(value interface{}) any {
	switch v := value.(type) {
	case map[string]interface{}, map[interface{}]interface{}:
		m := cast.ToStringMap(v)
		out := make(map[string]any, len(m))
		for key, val := range m {
			out[key] = normalizeBodyValue(val)
		}
		return out
	case []interface{}:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeBodyValue(item)
		}
		return out
	default:
		return v
	}
}

// toStringKeyMap converts a nested settings section into a map with
// lowercased keys.
func toStringKeyMap(value interface{}) (map[string]interface{}, error) {
	m, err := cast.ToStringMapE(value)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(m))
	for key, val := range m {
		out[strings.ToLower(strings.TrimSpace(key))] = val
	}
	return out, nil
}
