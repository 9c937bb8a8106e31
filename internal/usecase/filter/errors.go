package filter

import "errors"

// Sentinel errors reported by Evaluate. ShouldFilter never returns them; it
// counts them and treats the filter as not matching.
var (
	// ErrUnknownSource indicates a filter source other than "data" or "profile".
	ErrUnknownSource = errors.New("unknown filter source")

	// ErrUnknownOperator indicates an operator the evaluator does not implement.
	ErrUnknownOperator = errors.New("unknown filter operator")

	// ErrInvalidJSONPath indicates a property starting with "$" that does not parse.
	ErrInvalidJSONPath = errors.New("invalid JSONPath property")
)
