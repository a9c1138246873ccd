package connector

import (
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Values is a loosely typed option map decoded from JSON or YAML.
type Values map[string]any

// get returns the raw value for key with surrounding space trimmed from
// strings. ok is false when the key is absent or nil.
func (v Values) get(key string) (any, bool) {
	raw, ok := v[key]
	if !ok || raw == nil {
		return nil, false
	}
	if s, isStr := raw.(string); isStr {
		return strings.TrimSpace(s), true
	}
	return raw, true
}

// String returns the value for key as a string, or def when absent or empty.
func (v Values) String(key, def string) string {
	raw, ok := v[key]
	if !ok || raw == nil {
		return def
	}
	s, err := cast.ToStringE(raw)
	if err != nil || s == "" {
		return def
	}
	return s
}

// Int returns the value for key as an int, or def when absent or not numeric.
func (v Values) Int(key string, def int) int {
	raw, ok := v.get(key)
	if !ok {
		return def
	}
	n, err := cast.ToIntE(raw)
	if err != nil {
		return def
	}
	return n
}

// Bool returns the value for key as a bool, or def when absent.
func (v Values) Bool(key string, def bool) bool {
	raw, ok := v.get(key)
	if !ok {
		return def
	}
	b, err := cast.ToBoolE(raw)
	if err != nil {
		return def
	}
	return b
}

// Duration reads key as a duration. Bare numbers are seconds; strings may be
// Go durations ("1500ms") or plain seconds ("2").
func (v Values) Duration(key string, def time.Duration) time.Duration {
	raw, ok := v.get(key)
	if !ok {
		return def
	}
	if d, isDur := raw.(time.Duration); isDur {
		return d
	}
	if secs, err := cast.ToFloat64E(raw); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	if s, isStr := raw.(string); isStr {
		if d, err := cast.ToDurationE(s); err == nil {
			return d
		}
	}
	return def
}

// Float returns the value for key as a float64, or def.
func (v Values) Float(key string, def float64) float64 {
	raw, ok := v.get(key)
	if !ok {
		return def
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return def
	}
	return f
}

// StringMap returns a nested string map stored under key, such as the
// generic REST endpoint table. Scalar entries are converted to strings.
func (v Values) StringMap(key string) map[string]string {
	raw, ok := v[key]
	if !ok || raw == nil {
		return map[string]string{}
	}
	m, err := cast.ToStringMapStringE(raw)
	if err != nil {
		return map[string]string{}
	}
	return m
}
