package filter

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	failureUnknownSource   = "unknown_source"
	failureUnknownOperator = "unknown_operator"
	failureJSONPath        = "jsonpath"
	failurePanic           = "panic"
	failureOther           = "other"
)

// filterFailuresTotal counts filters that failed open.
var filterFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "conditional_filter_failures_total",
		Help: "Total number of conditional filters that could not be evaluated and failed open",
	},
	[]string{"reason"}, // reason: unknown_source|unknown_operator|jsonpath|panic|other
)

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownSource):
		return failureUnknownSource
	case errors.Is(err, ErrUnknownOperator):
		return failureUnknownOperator
	case errors.Is(err, ErrInvalidJSONPath):
		return failureJSONPath
	default:
		return failureOther
	}
}
