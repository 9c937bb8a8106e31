package config

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestLoadEnvString(t *testing.T) {
	assert.Equal(t, "prepare", LoadEnvString("TEST_QUEUE", "prepare"))

	t.Setenv("TEST_QUEUE", "prepare-eu")
	assert.Equal(t, "prepare-eu", LoadEnvString("TEST_QUEUE", "prepare"))

	t.Setenv("TEST_QUEUE", "")
	assert.Equal(t, "prepare", LoadEnvString("TEST_QUEUE", "prepare"))
}

func TestLoadEnvWithFallback(t *testing.T) {
	tests := []struct {
		name         string
		env          string
		want         string
		wantFallback bool
	}{
		{name: "unset uses default", env: "", want: "*/1 * * * *"},
		{name: "valid value", env: "*/5 * * * *", want: "*/5 * * * *"},
		{name: "descriptor", env: "@every 30s", want: "@every 30s"},
		{name: "invalid falls back", env: "every minute", want: "*/1 * * * *", wantFallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_CRON", tt.env)

			r := LoadEnvWithFallback("TEST_CRON", "*/1 * * * *", ValidateCronSchedule)

			assert.Equal(t, tt.want, r.Value)
			assert.Equal(t, tt.wantFallback, r.FallbackApplied)
			if tt.wantFallback {
				assert.Contains(t, r.Warning, "TEST_CRON")
				assert.Contains(t, r.Warning, "falling back to default")
			} else {
				assert.Empty(t, r.Warning)
			}
		})
	}
}

func TestLoadEnvInt(t *testing.T) {
	inRange := func(v int) error { return ValidateIntRange(v, 1, 25) }

	tests := []struct {
		name         string
		env          string
		want         int
		wantFallback bool
	}{
		{name: "unset", env: "", want: 5},
		{name: "valid", env: "12", want: 12},
		{name: "below minimum", env: "0", want: 5, wantFallback: true},
		{name: "above maximum", env: "26", want: 5, wantFallback: true},
		{name: "not a number", env: "five", want: 5, wantFallback: true},
		{name: "decimal", env: "2.5", want: 5, wantFallback: true},
		{name: "spaces", env: " 7 ", want: 5, wantFallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_ATTEMPTS", tt.env)

			r := LoadEnvInt("TEST_ATTEMPTS", 5, inRange)

			assert.Equal(t, tt.want, r.Value)
			assert.Equal(t, tt.wantFallback, r.FallbackApplied)
		})
	}
}

func TestLoadEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		env          string
		validator    func(time.Duration) error
		want         time.Duration
		wantFallback bool
	}{
		{name: "unset", env: "", want: 30 * time.Second},
		{name: "compound", env: "1m30s", want: 90 * time.Second},
		{name: "no validator accepts zero", env: "0s", want: 0},
		{name: "bad format", env: "thirty", want: 30 * time.Second, wantFallback: true},
		{name: "negative", env: "-5s", validator: ValidatePositiveDuration, want: 30 * time.Second, wantFallback: true},
		{
			name: "outside range",
			env:  "2h",
			validator: func(d time.Duration) error {
				return ValidateDuration(d, time.Second, time.Hour)
			},
			want:         30 * time.Second,
			wantFallback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_TIMEOUT", tt.env)

			r := LoadEnvDuration("TEST_TIMEOUT", 30*time.Second, tt.validator)

			assert.Equal(t, tt.want, r.Value)
			assert.Equal(t, tt.wantFallback, r.FallbackApplied)
		})
	}
}

func TestLoadEnvBool(t *testing.T) {
	for _, v := range []string{"true", "TRUE", "1", "yes", "On"} {
		t.Setenv("TEST_FLAG", v)
		assert.True(t, LoadEnvBool("TEST_FLAG", false).Value, v)
	}
	for _, v := range []string{"false", "0", "no", "OFF"} {
		t.Setenv("TEST_FLAG", v)
		assert.False(t, LoadEnvBool("TEST_FLAG", true).Value, v)
	}

	t.Setenv("TEST_FLAG", "maybe")
	r := LoadEnvBool("TEST_FLAG", true)
	assert.True(t, r.Value)
	assert.True(t, r.FallbackApplied)
}

func TestLoader_RecordsFallbacks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	metrics := NewConfigMetrics("test_loader")

	t.Setenv("TEST_LOADER_PREFETCH", "many")
	t.Setenv("TEST_LOADER_QUEUE", "prepare")

	l := NewLoader(logger, metrics)
	prefetch := Apply(l, "prefetch", LoadEnvInt("TEST_LOADER_PREFETCH", 20, nil))
	queue := Apply(l, "queue", LoadEnvWithFallback("TEST_LOADER_QUEUE", "q", nil))
	l.Finish()

	assert.Equal(t, 20, prefetch)
	assert.Equal(t, "prepare", queue)
	assert.True(t, l.FallbackApplied())
	assert.Contains(t, buf.String(), "Configuration fallback applied")
	assert.Contains(t, buf.String(), `"field":"prefetch"`)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("prefetch")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("queue")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FallbackActive))
	assert.Greater(t, testutil.ToFloat64(metrics.LoadTimestamp), float64(0))
}

func TestLoader_NilMetrics(t *testing.T) {
	t.Setenv("TEST_LOADER_NIL", "x")

	l := NewLoader(nil, nil)
	v := Apply(l, "n", LoadEnvInt("TEST_LOADER_NIL", 3, nil))
	l.Finish()

	assert.Equal(t, 3, v)
	assert.True(t, l.FallbackApplied())
}
