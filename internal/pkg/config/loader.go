package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Result is the outcome of loading one environment value.
//
// Loading is fail-open: an unset variable yields the default without a
// warning, while an unparsable or invalid one yields the default together
// with a Warning and FallbackApplied set.
type Result[T any] struct {
	Value           T
	Warning         string
	FallbackApplied bool
}

func load[T any](envKey string, defaultValue T, parse func(string) (T, error), validator func(T) error) Result[T] {
	raw := os.Getenv(envKey)
	if raw == "" {
		return Result[T]{Value: defaultValue}
	}

	fallback := func(err error) Result[T] {
		return Result[T]{
			Value:           defaultValue,
			Warning:         fmt.Sprintf("Invalid %s='%s': %v, falling back to default '%v'", envKey, raw, err, defaultValue),
			FallbackApplied: true,
		}
	}

	v, err := parse(raw)
	if err != nil {
		return fallback(err)
	}
	if validator != nil {
		if err := validator(v); err != nil {
			return fallback(err)
		}
	}
	return Result[T]{Value: v}
}

// LoadEnvString returns the value of envKey, or defaultValue when it is unset
// or empty. No validation is applied.
func LoadEnvString(envKey, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultValue
}

// LoadEnvWithFallback loads a string and validates it.
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) Result[string] {
	return load(envKey, defaultValue, func(s string) (string, error) { return s, nil }, validator)
}

// LoadEnvInt loads a base-10 integer. Surrounding spaces and decimals are
// rejected.
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) Result[int] {
	return load(envKey, defaultValue, func(s string) (int, error) {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid integer format")
		}
		return v, nil
	}, validator)
}

// LoadEnvDuration loads a time.ParseDuration string such as "30s" or "1h30m".
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) Result[time.Duration] {
	return load(envKey, defaultValue, time.ParseDuration, validator)
}

// LoadEnvBool accepts true/false, 1/0, yes/no and on/off in any case.
func LoadEnvBool(envKey string, defaultValue bool) Result[bool] {
	return load(envKey, defaultValue, func(s string) (bool, error) {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		}
		return false, fmt.Errorf("invalid boolean format")
	}, nil)
}

// Loader collects fallbacks while a component reads its configuration so
// every fallback is logged and counted the same way.
//
//	l := config.NewLoader(logger, metrics)
//	cfg.Prefetch = config.Apply(l, "prefetch", config.LoadEnvInt("WORKER_PREFETCH", cfg.Prefetch, nil))
//	l.Finish()
type Loader struct {
	logger   *slog.Logger
	metrics  *ConfigMetrics
	fallback bool
}

// NewLoader returns a Loader. metrics may be nil.
func NewLoader(logger *slog.Logger, metrics *ConfigMetrics) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger, metrics: metrics}
}

// Apply unwraps r, logging and counting the fallback under field if one was
// applied.
func Apply[T any](l *Loader, field string, r Result[T]) T {
	if !r.FallbackApplied {
		return r.Value
	}
	l.fallback = true
	if l.metrics != nil {
		l.metrics.RecordValidationError(field)
		l.metrics.RecordFallback(field, "default")
	}
	l.logger.Warn("Configuration fallback applied",
		slog.String("field", field),
		slog.String("warning", r.Warning))
	return r.Value
}

// FallbackApplied reports whether any Apply call fell back to a default.
func (l *Loader) FallbackApplied() bool {
	return l.fallback
}

// Finish publishes the fallback gauge and load timestamp.
func (l *Loader) Finish() {
	if l.metrics == nil {
		return
	}
	l.metrics.SetFallbackActive("", l.fallback)
	l.metrics.RecordLoadTimestamp()
}
