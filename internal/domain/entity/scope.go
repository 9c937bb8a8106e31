package entity

import (
	"fmt"
	"strings"
)

// Environment selects the tenant partition a request is processed in.
type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentTest       Environment = "test"
)

// Scope is the parsed "<state>/<environment>" pair of a request.
type Scope struct {
	State       TemplateState
	Environment Environment
}

// DefaultScope is used when a message carries no scope.
var DefaultScope = Scope{State: StatePublished, Environment: EnvironmentProduction}

// ParseScope parses "<state>/<environment>". An empty string yields
// DefaultScope and a missing environment defaults to production.
func ParseScope(raw string) (Scope, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultScope, nil
	}

	state, env, _ := strings.Cut(raw, "/")
	s := Scope{State: TemplateState(state), Environment: Environment(env)}
	if s.Environment == "" {
		s.Environment = EnvironmentProduction
	}
	if !s.State.Valid() {
		return Scope{}, fmt.Errorf("%w: unknown state %q", ErrInvalidScope, state)
	}
	if s.Environment != EnvironmentProduction && s.Environment != EnvironmentTest {
		return Scope{}, fmt.Errorf("%w: unknown environment %q", ErrInvalidScope, env)
	}
	return s, nil
}

// String renders the scope back into its wire form.
func (s Scope) String() string {
	return string(s.State) + "/" + string(s.Environment)
}

// TenantKey returns the storage partition for tenantID. The test environment
// lives beside production under "<tenantId>/test".
func (s Scope) TenantKey(tenantID string) string {
	if s.Environment == EnvironmentTest {
		return tenantID + "/test"
	}
	return tenantID
}
