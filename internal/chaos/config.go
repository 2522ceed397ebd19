package chaos

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Environment keys consulted when no override is given
const (
	EnvLatencyMs = "CHAOS_LATENCY_MS"
	EnvErrorRate = "CHAOS_ERROR_RATE"
)

// maxLatencyMs bounds the accepted latency to roughly 24 days so the value
// always fits a time.Duration.
const maxLatencyMs = math.MaxInt32

// Config is the effective chaos configuration. It is resolved once and never
// mutated afterwards.
type Config struct {
	LatencyMs int     `json:"latency_ms" yaml:"latency_ms"`
	ErrorRate float64 `json:"error_rate" yaml:"error_rate"`
}

// Overrides carries explicit configuration values. Values are kept raw so
// that anything a config file, flag, or caller supplies reaches the resolver
// untouched; nil means unset.
type Overrides struct {
	Latency   interface{}
	ErrorRate interface{}
}

// LookupFunc looks up an environment-style value. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// MapLookup returns a LookupFunc backed by a map.
func MapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

// Resolve computes the effective Config. Each field is taken from the first
// tier that holds a valid non-zero value, in the order override, environment,
// default (0). Invalid values are skipped, never reported.
func Resolve(overrides Overrides, env LookupFunc) Config {
	return Config{
		LatencyMs: resolveLatency(overrides.Latency, lookup(env, EnvLatencyMs)),
		ErrorRate: resolveErrorRate(overrides.ErrorRate, lookup(env, EnvErrorRate)),
	}
}

func lookup(env LookupFunc, key string) interface{} {
	if env == nil {
		return nil
	}
	v, ok := env(key)
	if !ok {
		return nil
	}
	return v
}

func resolveLatency(tiers ...interface{}) int {
	for _, tier := range tiers {
		if ms, ok := ParseLatency(tier); ok && ms > 0 {
			return ms
		}
	}
	return 0
}

func resolveErrorRate(tiers ...interface{}) float64 {
	for _, tier := range tiers {
		if rate, ok := ParseErrorRate(tier); ok && rate > 0 {
			return rate
		}
	}
	return 0
}

// ParseLatency interprets v as a latency in milliseconds. Integers, integral
// floats, decimal strings and Go duration strings ("250ms") are accepted.
// The boolean result is false for nil, negative, fractional, or otherwise
// unusable values.
func ParseLatency(v interface{}) (int, bool) {
	switch val := v.(type) {
	case nil, bool:
		return 0, false
	case time.Duration:
		return durationToMs(val)
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return checkLatency(float64(n))
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, false
		}
		return durationToMs(d)
	}

	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return checkLatency(f)
}

func durationToMs(d time.Duration) (int, bool) {
	if d < 0 {
		return 0, false
	}
	return checkLatency(float64(d / time.Millisecond))
}

func checkLatency(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > maxLatencyMs || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// ParseErrorRate interprets v as a probability in [0,1]. Numbers of any kind
// and decimal strings are accepted; NaN, infinities and values outside the
// unit interval are rejected.
func ParseErrorRate(v interface{}) (float64, bool) {
	var (
		f   float64
		err error
	)
	switch val := v.(type) {
	case nil, bool:
		return 0, false
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false
		}
		f, err = strconv.ParseFloat(s, 64)
	default:
		f, err = cast.ToFloat64E(v)
	}
	if err != nil || math.IsNaN(f) || f < 0 || f > 1 {
		return 0, false
	}
	return f, true
}

// Latency returns the configured delay as a duration.
func (c Config) Latency() time.Duration {
	return time.Duration(c.LatencyMs) * time.Millisecond
}

// Enabled reports whether the configuration injects anything at all.
func (c Config) Enabled() bool {
	return c.LatencyMs > 0 || c.ErrorRate > 0
}

// Validate reports whether the configuration is within range. Resolve never
// produces an invalid Config; this guards hand-built values.
func (c Config) Validate() error {
	if c.LatencyMs < 0 || c.LatencyMs > maxLatencyMs {
		return fmt.Errorf("latency_ms %d out of range [0, %d]", c.LatencyMs, maxLatencyMs)
	}
	if math.IsNaN(c.ErrorRate) || c.ErrorRate < 0 || c.ErrorRate > 1 {
		return fmt.Errorf("error_rate %v out of range [0, 1]", c.ErrorRate)
	}
	return nil
}

// sanitized returns c with every out-of-range field reset to its inert default.
func (c Config) sanitized() Config {
	if c.LatencyMs < 0 || c.LatencyMs > maxLatencyMs {
		c.LatencyMs = 0
	}
	if math.IsNaN(c.ErrorRate) || c.ErrorRate < 0 || c.ErrorRate > 1 {
		c.ErrorRate = 0
	}
	return c
}

func (c Config) String() string {
	return fmt.Sprintf("latency=%dms error_rate=%g", c.LatencyMs, c.ErrorRate)
}
