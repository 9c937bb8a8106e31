// Package filter evaluates tenant-authored conditionals against a request's
// variable context.
//
// A conditional excludes the notification, channel or provider it is attached
// to when its filters match. Evaluation is fail-open: a filter that cannot be
// evaluated (unknown operator, unknown source, bad JSONPath, unexpected value
// shape) counts as "no match" and never excludes content on its own.
package filter

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/PaesslerAG/jsonpath"

	"notification-prep/internal/domain/entity"
)

// ShouldFilter reports whether cond excludes the content it guards.
//
// A nil conditional or one without filters never excludes. With the "and"
// operator (the default) every filter must match; with "or" any one suffices.
func ShouldFilter(cond *entity.Conditional, vars entity.VariableContext) bool {
	if cond == nil || len(cond.Filters) == 0 {
		return false
	}

	if cond.LogicalOperator == entity.LogicalOr {
		for _, f := range cond.Filters {
			if evaluateSafe(f, vars) {
				return true
			}
		}
		return false
	}

	for _, f := range cond.Filters {
		if !evaluateSafe(f, vars) {
			return false
		}
	}
	return true
}

// evaluateSafe evaluates a single filter and turns every failure, including a
// panic, into false.
func evaluateSafe(f entity.Filter, vars entity.VariableContext) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			filterFailuresTotal.WithLabelValues(failurePanic).Inc()
			matched = false
		}
	}()

	matched, err := Evaluate(f, vars)
	if err != nil {
		filterFailuresTotal.WithLabelValues(failureReason(err)).Inc()
		return false
	}
	return matched
}

// Evaluate evaluates one filter. Unlike ShouldFilter it reports why a filter
// could not be evaluated.
func Evaluate(f entity.Filter, vars entity.VariableContext) (bool, error) {
	doc, ok := vars.Source(f.Source)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownSource, f.Source)
	}

	resolved, err := resolve(doc, f.Property)
	if err != nil {
		return false, err
	}

	switch f.Operator {
	case entity.OpEquals:
		return equals(resolved, f.Value), nil
	case entity.OpNotEquals:
		return !equals(resolved, f.Value), nil
	case entity.OpGreaterThan:
		return toNumber(resolved) > toNumber(f.Value), nil
	case entity.OpLessThan:
		return toNumber(resolved) < toNumber(f.Value), nil
	case entity.OpGreaterThanEquals:
		return toNumber(resolved) >= toNumber(f.Value), nil
	case entity.OpLessThanEquals:
		return toNumber(resolved) <= toNumber(f.Value), nil
	case entity.OpContains:
		return contains(resolved, f.Value), nil
	case entity.OpNotContains:
		return !contains(resolved, f.Value), nil
	case entity.OpIsEmpty:
		return isFalsy(resolved), nil
	case entity.OpNotEmpty:
		return !isFalsy(resolved), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, f.Operator)
	}
}

// undefined marks a property that does not exist in the source document.
type undefined struct{}

// resolve looks property up in doc. Properties starting with "$" are JSONPath
// expressions; a path that selects nothing resolves to undefined.
func resolve(doc entity.Document, property string) (any, error) {
	if !strings.HasPrefix(property, "$") {
		v, ok := doc.Get(property)
		if !ok {
			return undefined{}, nil
		}
		return v, nil
	}

	eval, err := jsonpath.New(property)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSONPath, err)
	}
	v, err := eval(context.Background(), plain(doc))
	if err != nil {
		return undefined{}, nil
	}
	return v, nil
}

// plain converts Document values into map[string]any so reflection based
// JSONPath evaluation sees ordinary maps.
func plain(v any) any {
	switch t := v.(type) {
	case entity.Document:
		return plain(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plain(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case nil:
		return map[string]any{}
	default:
		return v
	}
}

func equals(resolved, want any) bool {
	return stringify(resolved) == stringify(want)
}

func contains(resolved, want any) bool {
	needle := stringify(want)
	switch t := resolved.(type) {
	case []any:
		for _, e := range t {
			if stringify(e) == needle {
				return true
			}
		}
		return false
	case string:
		return strings.Contains(t, needle)
	default:
		return false
	}
}

func isFalsy(v any) bool {
	switch t := v.(type) {
	case undefined, nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0 || math.IsNaN(t)
	case int:
		return t == 0
	case int64:
		return t == 0
	default:
		return false
	}
}
